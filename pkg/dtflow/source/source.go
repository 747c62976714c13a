// Package source provides record sources for event materialization: an
// in-memory source for tests and fixtures, an Arrow IPC file source for
// production samples, and a chain that concatenates sources across file
// boundaries with global indexing.
package source

import "errors"

// Sentinel errors returned by sources.
var (
	// ErrOutOfRange is returned when a record index is negative or past
	// the end of the source.
	ErrOutOfRange = errors.New("record index out of range")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("source is closed")
)

// Record is a borrowed handle onto one raw event's columns. A Record is
// valid until the next Read on the source that produced it and must not
// be retained past that point.
type Record interface {
	// Column returns the named column's value for this record: a scalar
	// (bool, int64, float64, string) or a per-entity slice of scalars.
	// The second result is false when no such column exists.
	Column(name string) (any, bool)
}

// Source provides stable random-access indexing over raw event records.
// A Source is driven by exactly one reader at a time; concurrent readers
// must each hold their own instance.
type Source interface {
	// Len returns the number of records in the source.
	Len() int

	// Read returns the record at index i. Indexing is stable: reading
	// the same index of an unmodified source yields the same values.
	Read(i int) (Record, error)
}
