package flow

import "container/heap"

// wakeup asks the engine to re-evaluate a node at a given time.
type wakeup struct {
	time  int64
	node  Node
	seqID int64
}

// KindPriority defines ordering for simultaneous wake-ups.
// Lower values are processed first.
var KindPriority = map[NodeKind]int{
	KindHost:        1,
	KindDistributor: 2,
	KindPowerSource: 3,
}

// EventHeap implements a priority queue with deterministic ordering
// Ordering: timestamp → node kind priority → sequence ID
type EventHeap struct {
	events []wakeup
}

// NewEventHeap creates a new event heap
func NewEventHeap() *EventHeap {
	h := &EventHeap{
		events: make([]wakeup, 0),
	}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *EventHeap) Len() int {
	return len(h.events)
}

// Less implements heap.Interface with deterministic ordering
func (h *EventHeap) Less(i, j int) bool {
	ei, ej := h.events[i], h.events[j]

	// Primary: timestamp (lower first)
	if ei.time != ej.time {
		return ei.time < ej.time
	}

	// Secondary: node kind priority (hosts before distributors before sources)
	priI := KindPriority[ei.node.Kind()]
	priJ := KindPriority[ej.node.Kind()]
	if priI != priJ {
		return priI < priJ
	}

	// Tertiary: sequence ID (lower first, deterministic tie-breaker)
	return ei.seqID < ej.seqID
}

// Swap implements heap.Interface
func (h *EventHeap) Swap(i, j int) {
	h.events[i], h.events[j] = h.events[j], h.events[i]
}

// Push implements heap.Interface
func (h *EventHeap) Push(x interface{}) {
	h.events = append(h.events, x.(wakeup))
}

// Pop implements heap.Interface
func (h *EventHeap) Pop() interface{} {
	old := h.events
	n := len(old)
	item := old[n-1]
	h.events = old[0 : n-1]
	return item
}

// Schedule adds a wake-up to the heap
func (h *EventHeap) Schedule(w wakeup) {
	heap.Push(h, w)
}

// PopNext removes and returns the next wake-up. ok is false when the heap is empty.
func (h *EventHeap) PopNext() (w wakeup, ok bool) {
	if h.Len() == 0 {
		return wakeup{}, false
	}
	return heap.Pop(h).(wakeup), true
}

// Peek returns the next wake-up without removing it
func (h *EventHeap) Peek() (w wakeup, ok bool) {
	if h.Len() == 0 {
		return wakeup{}, false
	}
	return h.events[0], true
}
