package source

import (
	"fmt"
	"sort"
)

// Chain concatenates sources into one contiguous index space, the way a
// multi-file sample reads as a single logical sample. Part boundaries are
// invisible to the reader: index 0 is the first record of the first part,
// and indexes run through every part in order.
type Chain struct {
	parts  []Source
	starts []int
	total  int
}

// NewChain builds a chain over the given parts. Empty parts are allowed
// and contribute no records.
func NewChain(parts ...Source) *Chain {
	c := &Chain{
		parts:  parts,
		starts: make([]int, len(parts)),
	}
	for i, p := range parts {
		c.starts[i] = c.total
		c.total += p.Len()
	}
	return c
}

// Len returns the total record count across all parts.
func (c *Chain) Len() int { return c.total }

// Read locates the part owning global index i and reads from it.
func (c *Chain) Read(i int) (Record, error) {
	if i < 0 || i >= c.total {
		return nil, fmt.Errorf("read %d of %d: %w", i, c.total, ErrOutOfRange)
	}
	// First part starting after i, minus one, owns it.
	p := sort.Search(len(c.starts), func(k int) bool { return c.starts[k] > i }) - 1
	return c.parts[p].Read(i - c.starts[p])
}

// Close closes every part that is closeable, returning the first error.
func (c *Chain) Close() error {
	var first error
	for _, p := range c.parts {
		if closer, ok := p.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
