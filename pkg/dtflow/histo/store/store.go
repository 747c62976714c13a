// Package store persists per-partition aggregation snapshots, so a
// long fill's completed partitions survive a crash and interrupted runs
// can be inspected or resumed.
package store

import (
	"errors"
	"time"
)

// Store persists partition snapshots of a fill run.
// Implementations must be safe for concurrent use: parallel workers
// save their partitions as they complete.
type Store interface {
	// Save stores a snapshot for a run's partition. Overwrites if a
	// snapshot for (runID, partition) already exists.
	Save(runID string, partition int, data []byte) error

	// Load retrieves a snapshot.
	// Returns ErrNotFound if the snapshot doesn't exist.
	Load(runID string, partition int) ([]byte, error)

	// List returns all snapshots for a run, ordered by sequence.
	// Returns an empty slice (not an error) if the run has none.
	List(runID string) ([]Info, error)

	// Delete removes a specific snapshot.
	// Returns nil if the snapshot doesn't exist.
	Delete(runID string, partition int) error

	// DeleteRun removes all snapshots for a run.
	// Returns nil if the run has none.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides snapshot metadata without loading the payload.
type Info struct {
	RunID     string
	Partition int
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for snapshot operations.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
