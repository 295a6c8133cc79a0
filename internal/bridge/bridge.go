package bridge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode selects how Dispatch runs tasks.
type Mode string

const (
	// ModeDirect runs tasks on the calling goroutine.
	ModeDirect Mode = "direct"

	// ModeBridged relays tasks to the host main loop.
	ModeBridged Mode = "bridged"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDirect, ModeBridged:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("bridge: unknown mode %q", s)
	}
}

// Dispatcher is the facade endpoints use to reach the automation context.
type Dispatcher interface {
	Dispatch(name string, task Task) (any, error)
}

// Options configures a Bridge.
type Options struct {
	// Mode selects direct or bridged execution. Defaults to ModeBridged.
	Mode Mode

	// Queue overrides the submission queue. If nil, a SubmissionQueue with
	// QueueCapacity ring slots is used.
	Queue Queue

	// QueueCapacity sizes the default queue's lock-free ring.
	QueueCapacity int

	// NewID generates request IDs. Defaults to random UUIDs.
	NewID func() string

	// Recorder receives per-command timings (optional).
	Recorder Recorder

	// Logger is optional; the bridge logs nothing if unset.
	Logger Logger

	// Now overrides the clock used for timings.
	Now func() time.Time
}

// Bridge is the dispatch facade. Construct one per process with New.
//
// Thread Safety: Dispatch is safe for concurrent use from multiple
// goroutines.
type Bridge struct {
	mode  Mode
	queue Queue
	store *Store
	exec  *Executor
	stats *counters
	newID func() string
	now   func() time.Time
}

// New creates a Bridge. In bridged mode nothing runs until the executor is
// ticked by the host loop.
func New(opts Options) *Bridge {
	if opts.Mode == "" {
		opts.Mode = ModeBridged
	}
	if opts.Queue == nil {
		opts.Queue = NewSubmissionQueue(opts.QueueCapacity)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	stats := &counters{}
	store := NewStore()

	return &Bridge{
		mode:  opts.Mode,
		queue: opts.Queue,
		store: store,
		stats: stats,
		newID: opts.NewID,
		now:   opts.Now,
		exec: &Executor{
			queue:    opts.Queue,
			store:    store,
			logger:   opts.Logger,
			recorder: opts.Recorder,
			stats:    stats,
			now:      opts.Now,
		},
	}
}

// Mode returns the bridge's execution mode.
func (b *Bridge) Mode() Mode {
	return b.mode
}

// Executor returns the main-loop consumer to register with the host.
func (b *Bridge) Executor() *Executor {
	return b.exec
}

// Dispatch runs task and returns its result or failure.
//
// In direct mode the task runs on the calling goroutine and any completion
// predicate is ignored. In bridged mode the task is queued for the host
// main loop and Dispatch blocks until the executor publishes its outcome.
// There is no timeout: a predicate that never reports completion blocks its
// caller, and every later command, indefinitely.
func (b *Bridge) Dispatch(name string, task Task) (any, error) {
	if b.mode == ModeDirect {
		return b.direct(task)
	}

	cmd := &Command{
		ID:          b.newID(),
		Name:        name,
		Task:        task,
		SubmittedAt: b.now(),
	}

	done := b.store.Expect(cmd.ID)
	if err := b.submit(cmd); err != nil {
		b.store.forget(cmd.ID)
		return nil, err
	}

	<-done
	out, _ := b.store.Take(cmd.ID)
	return out.Value, out.Err
}

// direct runs task in place.
func (b *Bridge) direct(task Task) (any, error) {
	b.stats.submitted.Add(1)
	value, err := task.Execute()
	if err != nil {
		b.stats.failed.Add(1)
	} else {
		b.stats.completed.Add(1)
	}
	return value, err
}

// submit enqueues cmd unless the executor has shut down.
func (b *Bridge) submit(cmd *Command) error {
	b.exec.gate.RLock()
	defer b.exec.gate.RUnlock()

	if b.exec.closed {
		return ErrClosed
	}
	b.stats.submitted.Add(1)
	b.stats.queued.Add(1)
	b.queue.Enqueue(cmd)
	return nil
}

// Stats returns a snapshot of bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Mode:      string(b.mode),
		Submitted: b.stats.submitted.Load(),
		Completed: b.stats.completed.Load(),
		Failed:    b.stats.failed.Load(),
		Queued:    b.stats.queued.Load(),
		InFlight:  b.stats.inFlight.Load(),
		Pending:   b.store.Len(),
	}
}
