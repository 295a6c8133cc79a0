package bridge

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// ─── Helpers ───────────────────────────────────────────────────────

// newTestBridge creates a bridged Bridge with sequential request IDs.
func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	n := 0
	return New(Options{
		Mode:          ModeBridged,
		QueueCapacity: 8,
		NewID: func() string {
			n++
			return fmt.Sprintf("req-%d", n)
		},
	})
}

// enqueue submits a command without blocking, returning its ID and the
// channel closed on publish.
func enqueue(t *testing.T, b *Bridge, name string, task Task) (string, <-chan struct{}) {
	t.Helper()
	cmd := &Command{ID: b.newID(), Name: name, Task: task, SubmittedAt: b.now()}
	done := b.store.Expect(cmd.ID)
	if err := b.submit(cmd); err != nil {
		t.Fatalf("submit(%s): %v", name, err)
	}
	return cmd.ID, done
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// progress is a host-side flag that flips after a number of ticks.
type progress struct {
	ticksLeft int
	done      bool
}

func (p *progress) advance() {
	if p.ticksLeft > 0 {
		p.ticksLeft--
	}
	p.done = p.ticksLeft == 0
}

// ─── State Machine ─────────────────────────────────────────────────

func TestExecutor_IdleTickIsNoop(t *testing.T) {
	b := newTestBridge(t)
	b.Executor().Tick()

	if b.Executor().Busy() {
		t.Error("executor busy after ticking an empty queue")
	}
	if b.store.Len() != 0 {
		t.Errorf("store has %d entries, want 0", b.store.Len())
	}
}

func TestExecutor_SynchronousCommand(t *testing.T) {
	b := newTestBridge(t)
	id, done := enqueue(t, b, "answer", Func(func() (any, error) { return 42, nil }))

	b.Executor().Tick()

	if !isDone(done) {
		t.Fatal("synchronous command not resolved after one tick")
	}
	out, ok := b.store.Take(id)
	if !ok {
		t.Fatal("no outcome published")
	}
	if out.Value != 42 || out.Err != nil {
		t.Errorf("outcome = %+v, want 42", out)
	}
}

func TestExecutor_OneCommandPerTick(t *testing.T) {
	b := newTestBridge(t)
	_, first := enqueue(t, b, "first", Func(func() (any, error) { return 1, nil }))
	_, second := enqueue(t, b, "second", Func(func() (any, error) { return 2, nil }))

	b.Executor().Tick()
	if !isDone(first) || isDone(second) {
		t.Fatal("first tick should resolve exactly the first command")
	}

	b.Executor().Tick()
	if !isDone(second) {
		t.Fatal("second tick should resolve the second command")
	}
}

func TestExecutor_PredicatePolling(t *testing.T) {
	const falseTicks = 4

	b := newTestBridge(t)
	executions := 0
	checks := 0
	task := Until(
		func() (any, error) {
			executions++
			return "started", nil
		},
		func(result any) (bool, error) {
			checks++
			return checks > falseTicks, nil
		},
	)
	id, done := enqueue(t, b, "capture", task)

	// Tick 0 executes; ticks 1..K report false.
	b.Executor().Tick()
	for tick := 1; tick <= falseTicks; tick++ {
		b.Executor().Tick()
		if isDone(done) {
			t.Fatalf("resolved after %d predicate checks, want %d", tick, falseTicks+1)
		}
	}

	b.Executor().Tick()
	if !isDone(done) {
		t.Fatal("not resolved after predicate reported true")
	}

	out, _ := b.store.Take(id)
	if out.Value != "started" {
		t.Errorf("value = %v, want the result captured at execution", out.Value)
	}
	if executions != 1 {
		t.Errorf("operation executed %d times, want 1", executions)
	}
}

func TestExecutor_NoDequeueWhileAwaiting(t *testing.T) {
	b := newTestBridge(t)
	flag := &progress{ticksLeft: 3}
	_, capture := enqueue(t, b, "capture", Until(
		func() (any, error) { return flag, nil },
		func(result any) (bool, error) {
			p := result.(*progress)
			p.advance()
			return p.done, nil
		},
	))
	ran := false
	_, next := enqueue(t, b, "next", Func(func() (any, error) {
		ran = true
		return nil, nil
	}))

	for range 3 {
		b.Executor().Tick()
		if ran {
			t.Fatal("second command ran while the first was awaiting")
		}
	}

	b.Executor().Tick()
	if !isDone(capture) {
		t.Fatal("capture not resolved after three progress ticks")
	}
	if ran || isDone(next) {
		t.Fatal("next command must wait for the following tick")
	}

	b.Executor().Tick()
	if !ran || !isDone(next) {
		t.Fatal("next command not run after capture resolved")
	}
}

// ─── Failures ──────────────────────────────────────────────────────

var errHost = errors.New("host: camera not found")

func TestExecutor_OperationFailure(t *testing.T) {
	b := newTestBridge(t)
	id, done := enqueue(t, b, "set_camera", Func(func() (any, error) { return "partial", errHost }))

	b.Executor().Tick()

	if !isDone(done) {
		t.Fatal("failed command not resolved")
	}
	out, _ := b.store.Take(id)
	if !errors.Is(out.Err, errHost) {
		t.Errorf("error = %v, want errHost", out.Err)
	}
	if b.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", b.Stats().Failed)
	}
}

func TestExecutor_AwaitedOperationFailureSkipsPredicate(t *testing.T) {
	b := newTestBridge(t)
	checked := false
	id, done := enqueue(t, b, "capture", Until(
		func() (any, error) { return nil, errHost },
		func(any) (bool, error) {
			checked = true
			return false, nil
		},
	))

	b.Executor().Tick()
	if isDone(done) {
		t.Fatal("awaited failure must be published on the next tick")
	}

	b.Executor().Tick()
	if !isDone(done) {
		t.Fatal("awaited failure not published")
	}
	if checked {
		t.Error("predicate evaluated for a failed operation")
	}
	out, _ := b.store.Take(id)
	if !errors.Is(out.Err, errHost) {
		t.Errorf("error = %v, want errHost", out.Err)
	}
}

func TestExecutor_PredicateFailure(t *testing.T) {
	errProgress := errors.New("host: capture aborted")

	b := newTestBridge(t)
	id, done := enqueue(t, b, "capture", Until(
		func() (any, error) { return "started", nil },
		func(any) (bool, error) { return false, errProgress },
	))

	b.Executor().Tick()
	b.Executor().Tick()

	if !isDone(done) {
		t.Fatal("predicate failure not published")
	}
	out, _ := b.store.Take(id)
	if !errors.Is(out.Err, errProgress) {
		t.Errorf("error = %v, want errProgress", out.Err)
	}
	if out.Value != nil {
		t.Errorf("value = %v, want nil alongside a failure", out.Value)
	}
}

func TestExecutor_Panics(t *testing.T) {
	tests := []struct {
		name string
		task Task
	}{
		{
			name: "operation panics",
			task: Func(func() (any, error) { panic("viewport gone") }),
		},
		{
			name: "predicate panics",
			task: Until(
				func() (any, error) { return 1, nil },
				func(any) (bool, error) { panic("viewport gone") },
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBridge(t)
			id, done := enqueue(t, b, "explode", tt.task)

			for i := 0; i < 2 && !isDone(done); i++ {
				b.Executor().Tick()
			}
			if !isDone(done) {
				t.Fatal("panicking command not resolved")
			}

			out, _ := b.store.Take(id)
			var pe *PanicError
			if !errors.As(out.Err, &pe) {
				t.Fatalf("error = %v, want *PanicError", out.Err)
			}
			if pe.Value != "viewport gone" {
				t.Errorf("panic value = %v", pe.Value)
			}
			if len(pe.Stack) == 0 {
				t.Error("panic stack not captured")
			}
			if b.Executor().Busy() {
				t.Error("executor still busy after panic")
			}
		})
	}
}

// ─── Shutdown ──────────────────────────────────────────────────────

func TestExecutor_ShutdownDrains(t *testing.T) {
	b := newTestBridge(t)
	awaitID, awaiting := enqueue(t, b, "capture", Until(
		func() (any, error) { return nil, nil },
		func(any) (bool, error) { return false, nil },
	))
	queuedID, queued := enqueue(t, b, "get_cameras", Func(func() (any, error) { return nil, nil }))

	b.Executor().Tick() // capture now awaiting
	b.Executor().Shutdown()

	if !isDone(awaiting) || !isDone(queued) {
		t.Fatal("shutdown left commands unresolved")
	}
	for _, id := range []string{awaitID, queuedID} {
		out, _ := b.store.Take(id)
		if !errors.Is(out.Err, ErrClosed) {
			t.Errorf("%s error = %v, want ErrClosed", id, out.Err)
		}
	}

	if _, err := b.Dispatch("late", Func(func() (any, error) { return 1, nil })); !errors.Is(err, ErrClosed) {
		t.Errorf("Dispatch after shutdown error = %v, want ErrClosed", err)
	}
	if len(b.store.waiters) != 0 {
		t.Errorf("rejected dispatch left %d waiters", len(b.store.waiters))
	}

	// Idempotent.
	b.Executor().Shutdown()
}

// ─── Recorder ──────────────────────────────────────────────────────

type recordedCommand struct {
	name string
	wait time.Duration
	run  time.Duration
	err  error
}

type fakeRecorder struct {
	records []recordedCommand
}

func (r *fakeRecorder) RecordCommand(name string, wait, run time.Duration, err error) {
	r.records = append(r.records, recordedCommand{name: name, wait: wait, run: run, err: err})
}

// stepClock advances one second on every reading.
type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestExecutor_RecordsTimings(t *testing.T) {
	rec := &fakeRecorder{}
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(Options{Mode: ModeBridged, Recorder: rec, Now: clock.now})

	enqueue(t, b, "get_cameras", Func(func() (any, error) { return nil, nil }))
	enqueue(t, b, "set_camera", Func(func() (any, error) { return nil, errHost }))
	b.Executor().Tick()
	b.Executor().Tick()

	if len(rec.records) != 2 {
		t.Fatalf("recorded %d commands, want 2", len(rec.records))
	}
	if rec.records[0].name != "get_cameras" || rec.records[0].err != nil {
		t.Errorf("first record = %+v", rec.records[0])
	}
	if rec.records[0].wait <= 0 || rec.records[0].run <= 0 {
		t.Errorf("first record timings = wait %v run %v, want positive", rec.records[0].wait, rec.records[0].run)
	}
	if !errors.Is(rec.records[1].err, errHost) {
		t.Errorf("second record error = %v, want errHost", rec.records[1].err)
	}
}
