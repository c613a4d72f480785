package fwatch

import (
	"container/heap"
	"time"
)

// itemKind says what a schedule item does when it comes due.
type itemKind int

const (
	// itemClassifyAppearance classifies a settled appearance.
	itemClassifyAppearance itemKind = iota
	// itemExpireDisappearance turns an unconsumed disappearance into a delete.
	itemExpireDisappearance
)

// scheduleItem is one deferred action. Exactly one of path or seq is
// meaningful, depending on kind.
type scheduleItem struct {
	at   time.Time
	kind itemKind
	path string // itemClassifyAppearance
	seq  uint64 // itemExpireDisappearance

	order uint64 // insertion order, ties broken first-in first-out
}

// schedule is the engine's delay queue. All deferred work lives here
// explicitly instead of in ambient timers, so a test can drive time with a
// stub clock and observe every pending action. Not safe for concurrent
// use; the engine loop is its only caller.
type schedule struct {
	h         scheduleHeap
	nextOrder uint64
}

func newSchedule() *schedule {
	s := &schedule{}
	heap.Init(&s.h)
	return s
}

// Push adds an item to the queue.
func (s *schedule) Push(item *scheduleItem) {
	s.nextOrder++
	item.order = s.nextOrder
	heap.Push(&s.h, item)
}

// PopDue removes and returns the earliest item due at or before now,
// or nil when nothing is due.
func (s *schedule) PopDue(now time.Time) *scheduleItem {
	if len(s.h) == 0 {
		return nil
	}
	if s.h[0].at.After(now) {
		return nil
	}
	return heap.Pop(&s.h).(*scheduleItem)
}

// NextAt returns the deadline of the earliest item.
func (s *schedule) NextAt() (time.Time, bool) {
	if len(s.h) == 0 {
		return time.Time{}, false
	}
	return s.h[0].at, true
}

// Len returns the number of queued items.
func (s *schedule) Len() int { return len(s.h) }

// Clear drops every queued item. Called on shutdown.
func (s *schedule) Clear() {
	s.h = s.h[:0]
}

// scheduleHeap orders items by deadline, then insertion order.
type scheduleHeap []*scheduleItem

func (h scheduleHeap) Len() int { return len(h) }

func (h scheduleHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].order < h[j].order
	}
	return h[i].at.Before(h[j].at)
}

func (h scheduleHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scheduleHeap) Push(x any) { *h = append(*h, x.(*scheduleItem)) }

func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
