package bridge

import (
	"runtime/debug"
	"sync"
	"time"
)

// Logger defines the logging interface used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder receives timing for every resolved command.
//
// wait is the time the command spent queued, run the time from Execute to
// resolution (including ticks spent awaiting completion). err is nil on
// success.
type Recorder interface {
	RecordCommand(name string, wait, run time.Duration, err error)
}

// Executor is the single consumer of the submission queue. Tick is meant to
// be registered as a host pre-tick callback; each call does at most one
// bounded unit of work.
//
// States:
//
//	IDLE      current == nil. Tick dequeues one command. A synchronous command
//	          is executed and resolved in the same tick; a command with a
//	          Completer is executed and moves to AWAITING.
//	AWAITING  current != nil. Tick resolves a failed pending result, otherwise
//	          evaluates the predicate once. Nothing is dequeued until the
//	          command resolves.
//
// Thread Safety: Tick and Shutdown must only be called from the host main
// loop.
type Executor struct {
	queue    Queue
	store    *Store
	logger   Logger
	recorder Recorder
	stats    *counters
	now      func() time.Time

	// Admission gate shared with Bridge.Dispatch. Shutdown takes the write
	// lock so no command can be enqueued after the final drain.
	gate   sync.RWMutex
	closed bool

	// AWAITING state.
	current   *Command
	pending   Outcome
	until     Completer
	waited    time.Duration
	startedAt time.Time
}

// Tick advances the state machine by one step.
func (e *Executor) Tick() {
	if e.current != nil {
		e.poll()
		return
	}

	cmd, ok := e.queue.Dequeue()
	if !ok {
		return
	}
	e.stats.queued.Add(-1)
	e.start(cmd)
}

// start executes a freshly dequeued command.
func (e *Executor) start(cmd *Command) {
	startedAt := e.now()
	waited := startedAt.Sub(cmd.SubmittedAt)

	e.logger.Debug("bridge command started",
		"command", cmd.Name,
		"request_id", cmd.ID,
		"wait_ms", waited.Milliseconds(),
	)

	value, err := e.execute(cmd)

	until := cmd.completer()
	if until == nil {
		e.resolve(cmd, Outcome{Value: value, Err: err}, waited, e.now().Sub(startedAt))
		return
	}

	e.current = cmd
	e.pending = Outcome{Value: value, Err: err}
	e.until = until
	e.waited = waited
	e.startedAt = startedAt
	e.stats.inFlight.Add(1)
}

// poll re-checks the in-flight command's completion predicate.
func (e *Executor) poll() {
	if e.pending.Err != nil {
		e.resolveCurrent(e.pending)
		return
	}

	done, err := e.check()
	switch {
	case err != nil:
		e.resolveCurrent(Outcome{Err: err})
	case done:
		e.resolveCurrent(e.pending)
	}
}

// execute runs the task, converting a panic into a PanicError.
func (e *Executor) execute(cmd *Command) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Command: cmd.Name, Value: r, Stack: debug.Stack()}
		}
	}()
	return cmd.Task.Execute()
}

// check evaluates the completion predicate, converting a panic into a
// PanicError.
func (e *Executor) check() (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done = false
			err = &PanicError{Command: e.current.Name, Value: r, Stack: debug.Stack()}
		}
	}()
	return e.until.IsComplete(e.pending.Value)
}

func (e *Executor) resolveCurrent(out Outcome) {
	cmd := e.current
	run := e.now().Sub(e.startedAt)
	waited := e.waited

	e.current = nil
	e.pending = Outcome{}
	e.until = nil
	e.stats.inFlight.Add(-1)

	e.resolve(cmd, out, waited, run)
}

// resolve publishes the outcome for cmd and records its metrics.
func (e *Executor) resolve(cmd *Command, out Outcome, waited, run time.Duration) {
	if err := e.store.Publish(cmd.ID, out); err != nil {
		e.logger.Error("bridge outcome not published",
			"command", cmd.Name,
			"request_id", cmd.ID,
			"error", err,
		)
		return
	}

	if out.Err != nil {
		e.stats.failed.Add(1)
		e.logger.Debug("bridge command failed",
			"command", cmd.Name,
			"request_id", cmd.ID,
			"run_ms", run.Milliseconds(),
			"error", out.Err,
		)
	} else {
		e.stats.completed.Add(1)
		e.logger.Debug("bridge command completed",
			"command", cmd.Name,
			"request_id", cmd.ID,
			"run_ms", run.Milliseconds(),
		)
	}

	if e.recorder != nil {
		e.recorder.RecordCommand(cmd.Name, waited, run, out.Err)
	}
}

// Shutdown closes the bridge. The in-flight command and everything still
// queued resolve with ErrClosed, and later submissions fail immediately.
// Safe to call more than once.
func (e *Executor) Shutdown() {
	e.gate.Lock()
	alreadyClosed := e.closed
	e.closed = true
	e.gate.Unlock()

	if alreadyClosed {
		return
	}

	drained := 0
	if e.current != nil {
		e.resolveCurrent(Outcome{Err: ErrClosed})
		drained++
	}
	for {
		cmd, ok := e.queue.Dequeue()
		if !ok {
			break
		}
		e.stats.queued.Add(-1)
		e.resolve(cmd, Outcome{Err: ErrClosed}, e.now().Sub(cmd.SubmittedAt), 0)
		drained++
	}

	e.logger.Info("bridge closed", "drained", drained)
}

// Busy reports whether a command is awaiting completion.
func (e *Executor) Busy() bool {
	return e.stats.inFlight.Load() != 0
}
