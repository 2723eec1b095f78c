package suggestion

import (
	"sort"
	"sync"
	"time"
)

// Queue is a bounded priority queue ordered by (reverse priority,
// reverse created_at, id) so Pop always returns the highest-priority,
// most-recent, lexicographically-smallest-id entry. A sorted slice is
// used rather than container/heap: capacity is small (tens of
// suggestions) and the spec's exact tie-break is easier to state and
// test against a sorted-insert slice than a heap's weaker ordering.
type Queue struct {
	mu       sync.Mutex
	capacity int
	items    []Suggestion
}

// NewQueue builds a Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// less reports whether a outranks b under (reverse priority, reverse
// created_at, id): higher priority first, then more recent, then
// smaller id breaks remaining ties.
func less(a, b Suggestion) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Push admits s unconditionally while under capacity. At capacity, s is
// admitted only if it outranks the current lowest-ranked entry, which is
// then evicted; otherwise s is dropped.
func (q *Queue) Push(s Suggestion) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < q.capacity {
		q.items = append(q.items, s)
		q.sortLocked()
		return true
	}

	last := q.items[len(q.items)-1]
	if !less(s, last) {
		return false
	}
	q.items[len(q.items)-1] = s
	q.sortLocked()
	return true
}

func (q *Queue) sortLocked() {
	sort.SliceStable(q.items, func(i, j int) bool { return less(q.items[i], q.items[j]) })
}

// Pop removes and returns the highest-ranked entry, or false if empty.
func (q *Queue) Pop() (Suggestion, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Suggestion{}, false
	}
	s := q.items[0]
	q.items = q.items[1:]
	return s, true
}

// RemoveExpired deletes every entry whose ExpiresAt is in the past
// relative to now, returning how many were removed.
func (q *Queue) RemoveExpired(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, s := range q.items {
		if s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	q.items = kept
	return removed
}

// Len reports the current occupancy.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the queue's current contents, in rank order.
func (q *Queue) Snapshot() []Suggestion {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Suggestion, len(q.items))
	copy(out, q.items)
	return out
}
