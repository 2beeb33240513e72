package audio

import (
	"sync/atomic"
	"time"
)

// DefaultQueueBlocks bounds the capture queue when no capacity is configured.
// At 16kHz with 1024-frame buffers this holds roughly 32 seconds of audio.
const DefaultQueueBlocks = 512

// Queue is the bounded single-producer/single-consumer handoff between the
// capture callback and the session consumer. When full, Push evicts the
// oldest block so the callback never waits.
type Queue struct {
	blocks  chan Block
	dropped atomic.Int64
}

// NewQueue creates a queue holding at most capacity blocks.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueBlocks
	}
	return &Queue{blocks: make(chan Block, capacity)}
}

// Push enqueues a block in bounded time. Only the capture callback calls Push.
func (q *Queue) Push(b Block) {
	select {
	case q.blocks <- b:
		return
	default:
	}

	select {
	case <-q.blocks:
		q.dropped.Add(1)
	default:
	}

	select {
	case q.blocks <- b:
	default:
		q.dropped.Add(1)
	}
}

// PopWithTimeout returns the next block, or false when nothing arrived within d.
func (q *Queue) PopWithTimeout(d time.Duration) (Block, bool) {
	if b, ok := q.TryPop(); ok {
		return b, true
	}
	if d <= 0 {
		return Block{}, false
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case b := <-q.blocks:
		return b, true
	case <-timer.C:
		return Block{}, false
	}
}

// TryPop returns the next block without waiting.
func (q *Queue) TryPop() (Block, bool) {
	select {
	case b := <-q.blocks:
		return b, true
	default:
		return Block{}, false
	}
}

// Len reports the number of queued blocks.
func (q *Queue) Len() int {
	return len(q.blocks)
}

// Cap reports the queue bound.
func (q *Queue) Cap() int {
	return cap(q.blocks)
}

// Dropped reports how many blocks were evicted by overflow.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}
