package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtflow/dtflow/pkg/dtflow/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"conv": 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg.Raw())
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal string
		want       string
	}{
		{"key exists", map[string]any{"sample": "zmu"}, "sample", "default", "zmu"},
		{"key missing", map[string]any{"other": "x"}, "sample", "default", "default"},
		{"empty string", map[string]any{"sample": ""}, "sample", "default", ""},
		{"wrong type", map[string]any{"sample": 13}, "sample", "default", "default"},
		{"nil map", nil, "sample", "default", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.String(tt.key, tt.defaultVal))
		})
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal int
		want       int
	}{
		{"int", map[string]any{"sector": 4}, "sector", 1, 4},
		{"int64", map[string]any{"sector": int64(10)}, "sector", 1, 10},
		{"whole float", map[string]any{"sector": 13.0}, "sector", 1, 13},
		{"fractional float", map[string]any{"sector": 13.5}, "sector", 1, 1},
		{"missing", map[string]any{}, "sector", 1, 1},
		{"wrong type", map[string]any{"sector": "four"}, "sector", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Int(tt.key, tt.defaultVal))
		})
	}
}

func TestFloat(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal float64
		want       float64
	}{
		{"float", map[string]any{"conv": 0.5}, "conv", 1.0, 0.5},
		{"int", map[string]any{"conv": 2}, "conv", 1.0, 2.0},
		{"int64", map[string]any{"conv": int64(3)}, "conv", 1.0, 3.0},
		{"missing", map[string]any{}, "conv", 1.0, 1.0},
		{"wrong type", map[string]any{"conv": "half"}, "conv", 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Float(tt.key, tt.defaultVal))
		})
	}
}

func TestBool(t *testing.T) {
	cfg := config.New(map[string]any{"descending": true, "bins": 10})
	assert.True(t, cfg.Bool("descending", false))
	assert.False(t, cfg.Bool("missing", false))
	assert.True(t, cfg.Bool("bins", true), "wrong type falls back")
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal time.Duration
		want       time.Duration
	}{
		{"string", map[string]any{"timeout": "30s"}, "timeout", time.Second, 30 * time.Second},
		{"compound string", map[string]any{"timeout": "1h30m"}, "timeout", time.Second, 90 * time.Minute},
		{"bad string", map[string]any{"timeout": "soon"}, "timeout", time.Second, time.Second},
		{"int seconds", map[string]any{"timeout": 5}, "timeout", time.Second, 5 * time.Second},
		{"float seconds", map[string]any{"timeout": 1.5}, "timeout", time.Second, 1500 * time.Millisecond},
		{"duration", map[string]any{"timeout": 2 * time.Minute}, "timeout", time.Second, 2 * time.Minute},
		{"missing", map[string]any{}, "timeout", time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.Duration(tt.key, tt.defaultVal))
		})
	}
}

func TestStringSlice(t *testing.T) {
	tests := []struct {
		name       string
		data       map[string]any
		key        string
		defaultVal []string
		want       []string
	}{
		{"string slice", map[string]any{"files": []string{"a.arrow", "b.arrow"}}, "files", nil, []string{"a.arrow", "b.arrow"}},
		{"any slice", map[string]any{"files": []any{"a.arrow"}}, "files", nil, []string{"a.arrow"}},
		{"mixed any slice", map[string]any{"files": []any{"a.arrow", 2}}, "files", []string{"d"}, []string{"d"}},
		{"missing", map[string]any{}, "files", []string{"d"}, []string{"d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.Equal(t, tt.want, cfg.StringSlice(tt.key, tt.defaultVal))
		})
	}
}

func TestHasAndAny(t *testing.T) {
	cfg := config.New(map[string]any{"conv": 0.5})
	assert.True(t, cfg.Has("conv"))
	assert.False(t, cfg.Has("missing"))
	assert.Equal(t, 0.5, cfg.Any("conv", nil))
	assert.Equal(t, "fallback", cfg.Any("missing", "fallback"))
}

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte("sample: zmu\nworkers: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, "zmu", cfg.String("sample", ""))
	assert.Equal(t, 4, cfg.Int("workers", 0))

	_, err = config.FromYAML([]byte(":\n:bad"))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"sample": "zmu", "workers": 4}`))
	require.NoError(t, err)
	assert.Equal(t, "zmu", cfg.String("sample", ""))
	assert.Equal(t, 4, cfg.Int("workers", 0))

	_, err = config.FromJSON([]byte("{"))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("workers: 2\n"), 0o644))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Int("workers", 0))

	jsonPath := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"workers": 3}`), 0o644))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Int("workers", 0))

	tomlPath := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("workers = 2\n"), 0o644))
	_, err = config.FromFile(tomlPath)
	assert.ErrorContains(t, err, "unsupported")

	_, err = config.FromFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
