// Package catalog accumulates records from several catalog views into one
// deduplicated set.
//
// Identity is the (title, price, url, imgUrl) tuple. The first record seen
// for a key is authoritative: later views never overwrite it, even when a
// platform legitimately lists a different price for the same entry under an
// otherwise identical key. Arrival order is preserved.
package catalog

import (
	"github.com/use-agent/gamedeck/models"
)

// Merger is an append-only accumulator owned by a single run. It is not
// safe for concurrent use; views are merged one at a time.
type Merger struct {
	records []models.Record
	seen    map[models.Key]struct{}
}

// NewMerger creates an empty Merger.
func NewMerger() *Merger {
	return &Merger{seen: make(map[models.Key]struct{})}
}

// MergeStats reports what happened to one batch of incoming records.
type MergeStats struct {
	Added      int
	Duplicates int
}

// Merge appends every incoming record whose key has not been seen before,
// in arrival order, and discards the rest.
func (m *Merger) Merge(incoming []models.Record) MergeStats {
	var st MergeStats
	for _, r := range incoming {
		k := r.Key()
		if _, dup := m.seen[k]; dup {
			st.Duplicates++
			continue
		}
		m.seen[k] = struct{}{}
		m.records = append(m.records, r)
		st.Added++
	}
	return st
}

// Len returns the number of distinct records accumulated so far.
func (m *Merger) Len() int {
	return len(m.records)
}

// Records returns a copy of the accumulated set in arrival order. The
// result is never nil so it serialises as an empty JSON array.
func (m *Merger) Records() []models.Record {
	out := make([]models.Record, len(m.records))
	copy(out, m.records)
	return out
}
