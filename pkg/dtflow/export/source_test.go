package export_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtflow/dtflow/pkg/dtflow"
	"github.com/dtflow/dtflow/pkg/dtflow/export"
)

func TestRows_ColumnNaming(t *testing.T) {
	rows := export.Rows([]*dtflow.Event{sampleEvent(t)})
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, int64(312), row["run"])
	assert.Equal(t, 0.85, row["weight"])
	assert.Equal(t, int64(1), row["n_genmuons"])
	assert.Equal(t, int64(2), row["n_segments"])
	assert.Equal(t, []any{0.31, 1.27}, row["segments_phi"])
	assert.Equal(t, []any{int64(-2), int64(0)}, row["segments_wheel"])
	assert.Equal(t, []any{"prompt"}, row["genmuons_label"])

	// References stay out of the flat view.
	_, ok := row["genmuons_matched_segments"]
	assert.False(t, ok)
}

func TestRows_UnevenAttributes(t *testing.T) {
	// A pipeline may have set an attribute on some entities only; the
	// column still covers the whole collection, nil where unset.
	ev := dtflow.NewEvent(0)
	a := dtflow.NewEntity("hits")
	a.SetAttr("t", 1.0)
	b := dtflow.NewEntity("hits")
	b.SetAttr("t", 2.0)
	b.SetAttr("flag", true)
	ev.SetCollection("hits", []*dtflow.Entity{a, b})

	row := export.Rows([]*dtflow.Event{ev})[0]
	assert.Equal(t, []any{1.0, 2.0}, row["hits_t"])
	assert.Equal(t, []any{nil, true}, row["hits_flag"])
}

func TestOpenSource_RebuildsUnderSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.jsonl")
	require.NoError(t, export.WriteFile(path, []*dtflow.Event{sampleEvent(t)}))

	src, err := export.OpenSource(path)
	require.NoError(t, err)
	require.Equal(t, 1, src.Len())

	schema := dtflow.Schema{
		Metadata: []dtflow.Attribute{
			{Name: "run", Rule: dtflow.Column("run").Coerce(dtflow.CoerceInt)},
		},
		Entities: []dtflow.EntitySchema{
			{
				Type:  "segments",
				Count: dtflow.CountColumn("n_segments"),
				Attributes: []dtflow.Attribute{
					{Name: "phi", Rule: dtflow.Column("segments_phi").Coerce(dtflow.CoerceFloat)},
					{Name: "wheel", Rule: dtflow.Column("segments_wheel").Coerce(dtflow.CoerceInt)},
				},
			},
		},
	}
	b, err := dtflow.NewBuilder(schema)
	require.NoError(t, err)

	ev, err := dtflow.NewSequence(src, b, nil).Get(0)
	require.NoError(t, err)
	require.NotNil(t, ev)

	run, ok := ev.Meta("run")
	require.True(t, ok)
	assert.Equal(t, int64(312), run)
	segs := ev.Collection("segments")
	require.Len(t, segs, 2)
	phi, ok := segs[1].Float("phi")
	require.True(t, ok)
	assert.Equal(t, 1.27, phi)
	wheel, ok := segs[0].Int("wheel")
	require.True(t, ok)
	assert.Equal(t, int64(-2), wheel)
}
