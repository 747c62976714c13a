package source

import "fmt"

// Row is one in-memory record: column name to a scalar or a per-entity
// slice value.
type Row map[string]any

// MemorySource serves records from an in-memory slice of rows. It is
// intended for tests, fixtures and small derived samples; rows are held
// by reference and must not be mutated while the source is in use.
type MemorySource struct {
	rows []Row
}

// NewMemory creates a source over the given rows.
func NewMemory(rows ...Row) *MemorySource {
	return &MemorySource{rows: rows}
}

// Len returns the number of rows.
func (s *MemorySource) Len() int { return len(s.rows) }

// Read returns the row at index i.
func (s *MemorySource) Read(i int) (Record, error) {
	if i < 0 || i >= len(s.rows) {
		return nil, fmt.Errorf("read %d of %d: %w", i, len(s.rows), ErrOutOfRange)
	}
	return memRecord(s.rows[i]), nil
}

type memRecord Row

func (r memRecord) Column(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}
