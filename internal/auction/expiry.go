package auction

import (
	"container/heap"
	"sync"
	"time"
)

// ExpirySchedule is a time-ordered index of listing deadlines. A sweep
// asks it for due ids instead of scanning the whole listing table. The
// schedule never mutates listings; it tolerates ids that were settled or
// cancelled between being reported due and being processed.
type ExpirySchedule struct {
	mu      sync.Mutex
	heap    deadlineHeap
	dropped map[string]struct{}
}

// NewExpirySchedule returns an empty schedule.
func NewExpirySchedule() *ExpirySchedule {
	return &ExpirySchedule{dropped: make(map[string]struct{})}
}

// Add registers a deadline for the listing id.
func (s *ExpirySchedule) Add(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-adding revokes an earlier Drop of the same id.
	delete(s.dropped, id)
	heap.Push(&s.heap, deadline{id: id, at: at})
}

// Drop deregisters a listing that ended through cancel, buyout or
// settlement. Its pending heap entry is discarded lazily.
func (s *ExpirySchedule) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped[id] = struct{}{}
}

// Due pops and returns every registered id whose deadline is at or before
// now. Dropped ids are skipped.
func (s *ExpirySchedule) Due(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []string
	for s.heap.Len() > 0 && !s.heap[0].at.After(now) {
		d := heap.Pop(&s.heap).(deadline)
		if _, skip := s.dropped[d.id]; skip {
			delete(s.dropped, d.id)
			continue
		}
		due = append(due, d.id)
	}
	return due
}

// Len returns the number of pending heap entries, including entries
// already dropped but not yet popped.
func (s *ExpirySchedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

type deadline struct {
	id string
	at time.Time
}

type deadlineHeap []deadline

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *deadlineHeap) Push(x any)         { *h = append(*h, x.(deadline)) }
func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}
