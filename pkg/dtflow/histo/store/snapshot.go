package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current snapshot format version.
// Increment when making breaking changes to the snapshot structure.
const Version = 1

// Snapshot is the persisted result of one completed partition. It
// carries enough metadata to resume or audit a fill without the run's
// configuration at hand.
type Snapshot struct {
	// Metadata
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	Partition int       `json:"partition"`
	Timestamp time.Time `json:"timestamp"`

	// Lo and Hi bound the half-open record range the partition covered.
	Lo int `json:"lo"`
	Hi int `json:"hi"`

	// Result is the partition's serialized histogram storage.
	Result json.RawMessage `json:"result"`
}

// New creates a snapshot for a completed partition. The result must
// already be JSON-serialized.
func New(runID string, partition, lo, hi int, result []byte) *Snapshot {
	return &Snapshot{
		Version:   Version,
		RunID:     runID,
		Partition: partition,
		Timestamp: time.Now().UTC(),
		Lo:        lo,
		Hi:        hi,
		Result:    result,
	}
}

// Marshal serializes a snapshot to JSON.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal deserializes a snapshot from JSON, rejecting versions this
// build does not understand.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Version != Version {
		return nil, fmt.Errorf("snapshot version %d not supported (want %d)", s.Version, Version)
	}
	return &s, nil
}
