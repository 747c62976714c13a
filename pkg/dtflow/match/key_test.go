package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtflow/dtflow/pkg/dtflow/match"
)

// TestByAttrs tests keys join the named values in order and absent or
// nil values leave the entity keyless.
func TestByAttrs(t *testing.T) {
	key := match.ByAttrs("wheel", "sector", "station")

	e := makeEntities("segments", []map[string]any{
		{"wheel": int64(-2), "sector": int64(4), "station": int64(1)},
	})[0]
	k, ok := key(e)
	require.True(t, ok)
	assert.Equal(t, "-2|4|1", k)

	t.Run("missing attribute", func(t *testing.T) {
		e := makeEntities("segments", []map[string]any{{"wheel": int64(1)}})[0]
		_, ok := key(e)
		assert.False(t, ok)
	})

	t.Run("nil attribute", func(t *testing.T) {
		e := makeEntities("segments", []map[string]any{
			{"wheel": int64(1), "sector": nil, "station": int64(1)},
		})[0]
		_, ok := key(e)
		assert.False(t, ok)
	})
}

// TestByChamber tests chamber keys normalize the extra MB4 readout
// sectors onto their host chambers.
func TestByChamber(t *testing.T) {
	key := match.ByChamber("wh", "sc", "st")

	e := makeEntities("segments", []map[string]any{
		{"wh": int64(2), "sc": int64(13), "st": int64(4)},
	})[0]
	k, ok := key(e)
	require.True(t, ok)
	assert.Equal(t, "2|4|4", k)

	e = makeEntities("segments", []map[string]any{
		{"wh": int64(0), "sc": int64(7), "st": int64(3)},
	})[0]
	k, ok = key(e)
	require.True(t, ok)
	assert.Equal(t, "0|7|3", k)

	t.Run("non-integer sector", func(t *testing.T) {
		e := makeEntities("segments", []map[string]any{
			{"wh": int64(0), "sc": "north", "st": int64(3)},
		})[0]
		_, ok := key(e)
		assert.False(t, ok)
	})
}

// TestNormalizeSector tests only the two extra readout sectors remap.
func TestNormalizeSector(t *testing.T) {
	assert.Equal(t, int64(4), match.NormalizeSector(13))
	assert.Equal(t, int64(10), match.NormalizeSector(14))
	for sc := int64(1); sc <= 12; sc++ {
		assert.Equal(t, sc, match.NormalizeSector(sc))
	}
}
