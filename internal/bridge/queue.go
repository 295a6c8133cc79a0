package bridge

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
)

// DefaultQueueCapacity is the ring size used when Options.QueueCapacity is
// not set. lfq rounds capacities up to the next power of two.
const DefaultQueueCapacity = 256

// minQueueCapacity is the smallest ring lfq accepts.
const minQueueCapacity = 2

// Queue is the submission FIFO between request goroutines and the executor.
//
// Enqueue may be called from any number of goroutines and must never block
// or fail. Dequeue is only called by the executor and reports false when
// the queue is empty.
type Queue interface {
	Enqueue(cmd *Command)
	Dequeue() (*Command, bool)
}

// SubmissionQueue is the default Queue: a bounded lock-free MPSC ring with a
// spill list that takes over while the ring is full, so callers never see
// backpressure.
//
// Once a command has spilled, every later Enqueue also spills until the
// consumer has drained the list. The consumer only touches the spill list
// once every counted ring enqueue has been dequeued. A WouldBlock from the
// ring is not enough: lfq reports it while a claimed slot is still being
// published, and items behind that slot may predate spilled ones.
type SubmissionQueue struct {
	ring lfq.Queue[*Command]
	// inRing counts completed ring enqueues minus ring dequeues. It can dip
	// below zero while an enqueue has published but not yet counted.
	inRing atomix.Int64

	mu      sync.Mutex
	spill   []*Command
	spilled atomix.Int64
}

// NewSubmissionQueue creates a queue whose ring holds capacity commands.
func NewSubmissionQueue(capacity int) *SubmissionQueue {
	if capacity < minQueueCapacity {
		capacity = DefaultQueueCapacity
	}
	return &SubmissionQueue{
		ring: lfq.BuildMPSC[*Command](lfq.New(capacity).SingleConsumer().Compact()),
	}
}

// Enqueue appends cmd to the queue. It never blocks.
func (q *SubmissionQueue) Enqueue(cmd *Command) {
	if q.spilled.Load() == 0 {
		if err := q.ring.Enqueue(&cmd); err == nil {
			q.inRing.Add(1)
			return
		}
	}

	q.mu.Lock()
	q.spill = append(q.spill, cmd)
	q.spilled.Add(1)
	q.mu.Unlock()
}

// Dequeue removes the oldest command. Must only be called by the executor.
func (q *SubmissionQueue) Dequeue() (*Command, bool) {
	cmd, err := q.ring.Dequeue()
	if err == nil {
		q.inRing.Add(-1)
		return cmd, true
	}
	if !lfq.IsWouldBlock(err) || q.spilled.Load() == 0 {
		return nil, false
	}
	// A ring item is still in flight; it goes before anything spilled.
	if q.inRing.Load() > 0 {
		return nil, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.spill) == 0 {
		return nil, false
	}
	cmd = q.spill[0]
	q.spill[0] = nil
	q.spill = q.spill[1:]
	q.spilled.Add(-1)
	return cmd, true
}

// Spilled reports how many commands are waiting in the spill list.
func (q *SubmissionQueue) Spilled() int {
	return int(q.spilled.Load())
}
