// Package scheduler maintains the in-memory time index that lets the tick
// loop find due alarms in O(|due|) rather than scanning the full
// population every second.
package scheduler

import (
	"sync"

	"github.com/volk7/alerting/alarm"
)

const secondsPerDay = 86400

// Projection is the subset of an alarm's fields the index needs to answer
// a due-set query and let the controller re-validate a hit without a
// round trip to the store.
type Projection struct {
	CodeID      string
	Email       string
	IsRecurring bool
	DaysOfWeek  alarm.DaysOfWeek
	Status      alarm.Status
}

type entry struct {
	secondOfDay int
	projection  Projection
}

// Index is the flat second-of-day bucket array described for the
// scheduler: 86400 leaves, one per UTC second-of-day, each holding the
// set of code_ids due at that second, plus a reverse map for O(1)
// removal. A single RWMutex guards both; due-set reads take the read
// lock and never block each other, add/remove take the write lock.
type Index struct {
	mu      sync.RWMutex
	buckets [secondsPerDay]map[string]struct{}
	byID    map[string]entry
}

// NewIndex returns an empty index ready for use.
func NewIndex() *Index {
	return &Index{
		byID: make(map[string]entry),
	}
}

// Add inserts or moves an alarm's projection into the bucket for
// secondOfDay. Re-adding the same code_id with an unchanged second keeps
// its bucket and replaces the stored projection; a changed second is a
// remove-then-add.
func (idx *Index) Add(secondOfDay int, p Projection) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.byID[p.CodeID]; ok {
		if existing.secondOfDay == secondOfDay {
			idx.byID[p.CodeID] = entry{secondOfDay: secondOfDay, projection: p}
			return
		}
		idx.removeLocked(p.CodeID)
	}

	idx.byID[p.CodeID] = entry{secondOfDay: secondOfDay, projection: p}
	if idx.buckets[secondOfDay] == nil {
		idx.buckets[secondOfDay] = make(map[string]struct{})
	}
	idx.buckets[secondOfDay][p.CodeID] = struct{}{}
}

// Remove drops codeID from the index. A no-op if absent.
func (idx *Index) Remove(codeID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(codeID)
}

func (idx *Index) removeLocked(codeID string) {
	existing, ok := idx.byID[codeID]
	if !ok {
		return
	}
	delete(idx.byID, codeID)
	bucket := idx.buckets[existing.secondOfDay]
	if bucket == nil {
		return
	}
	delete(bucket, codeID)
	if len(bucket) == 0 {
		idx.buckets[existing.secondOfDay] = nil
	}
}

// Due returns a snapshot copy of the projections indexed at secondOfDay,
// safe to iterate without holding any lock.
func (idx *Index) Due(secondOfDay int) []Projection {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bucket := idx.buckets[secondOfDay]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]Projection, 0, len(bucket))
	for codeID := range bucket {
		out = append(out, idx.byID[codeID].projection)
	}
	return out
}

// CodeIDs returns a snapshot of every code_id currently indexed, for
// reconciliation scans that need to detect entries the store no longer
// has.
func (idx *Index) CodeIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]string, 0, len(idx.byID))
	for codeID := range idx.byID {
		out = append(out, codeID)
	}
	return out
}

// Contains reports whether codeID currently has a projection indexed.
func (idx *Index) Contains(codeID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.byID[codeID]
	return ok
}

// Len returns the total number of indexed alarms.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// Stats is the shape returned by SnapshotStats: a population count plus a
// per-hour distribution, useful for an observability dashboard.
type Stats struct {
	Total   int
	PerHour [24]int
}

// SnapshotStats walks the index under the read lock and reports counts.
func (idx *Index) SnapshotStats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var s Stats
	s.Total = len(idx.byID)
	for _, e := range idx.byID {
		hour := e.secondOfDay / 3600
		s.PerHour[hour]++
	}
	return s
}
