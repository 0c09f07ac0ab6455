package main

import "sync/atomic"

// counter is a small atomic uint64 used for drop/byte counters shared
// between the DSP thread and transport/metrics readers.
type counter struct{ v atomic.Uint64 }

func (c *counter) add(n uint64) { c.v.Add(n) }
func (c *counter) load() uint64 { return c.v.Load() }

// ClientQueue is a bounded, non-blocking output queue of encoded
// FramePackets for one client session. Enqueue never blocks the producer:
// on a full queue it drops the packet and counts it, per spec.md §4.5/§5.
type ClientQueue struct {
	ch      chan FramePacket
	Dropped *counter
}

func NewClientQueue(capacity int) *ClientQueue {
	return &ClientQueue{
		ch:      make(chan FramePacket, capacity),
		Dropped: &counter{},
	}
}

// TryPush attempts to enqueue pkt without blocking. Returns false and
// increments Dropped if the queue is full.
func (q *ClientQueue) TryPush(pkt FramePacket) bool {
	select {
	case q.ch <- pkt:
		return true
	default:
		q.Dropped.add(1)
		return false
	}
}

// Out exposes the receive side for the transport task.
func (q *ClientQueue) Out() <-chan FramePacket {
	return q.ch
}
