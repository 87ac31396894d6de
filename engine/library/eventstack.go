package library

import (
	"lodestone/protocol"
)

// WireEvent is a validated event paired with the relay it arrived from.
// Relay is "" for events replayed from local storage.
type WireEvent struct {
	Event *protocol.Event
	Relay RelayURL
}

// NewEventStack returns a new event stack (FIFO) with the given initial size.
func NewEventStack(size int) *Stack {
	return &Stack{
		nodes: make([]*WireEvent, size),
		size:  size,
	}
}

// Stack is a FIFO stack that resizes as needed. The event conductor uses it
// to buffer relay events until the end of the stored-event stream so that a
// burst of history does not interleave with live events mid-drain.
type Stack struct {
	nodes []*WireEvent
	size  int
	head  int
	tail  int
	count int
}

// Push adds an event to the stack.
func (q *Stack) Push(n *WireEvent) {
	if q.head == q.tail && q.count > 0 {
		nodes := make([]*WireEvent, len(q.nodes)+q.size)
		copy(nodes, q.nodes[q.head:])
		copy(nodes[len(q.nodes)-q.head:], q.nodes[:q.head])
		q.head = 0
		q.tail = len(q.nodes)
		q.nodes = nodes
	}
	q.nodes[q.tail] = n
	q.tail = (q.tail + 1) % len(q.nodes)
	q.count++
}

// Pop removes and returns an event from the stack in first to last order.
func (q *Stack) Pop() (*WireEvent, bool) {
	if q.count == 0 {
		return nil, false
	}
	node := q.nodes[q.head]
	q.head = (q.head + 1) % len(q.nodes)
	q.count--
	return node, true
}
