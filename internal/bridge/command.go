package bridge

import "time"

// Task is one unit of host work. The bridge never looks inside it.
type Task interface {
	Execute() (any, error)
}

// Completer is implemented by tasks whose Execute only starts an
// asynchronous host action. IsComplete is evaluated once per tick against
// the value Execute returned until it reports true or fails.
type Completer interface {
	IsComplete(result any) (bool, error)
}

// Func adapts a plain function to Task.
type Func func() (any, error)

// Execute implements Task.
func (f Func) Execute() (any, error) { return f() }

// untilTask pairs a Func with a completion predicate.
type untilTask struct {
	fn   Func
	done func(result any) (bool, error)
}

func (t untilTask) Execute() (any, error) { return t.fn() }

func (t untilTask) IsComplete(result any) (bool, error) { return t.done(result) }

// Until returns a Task that runs fn and then waits, one tick at a time,
// until done reports true. A nil done yields a plain synchronous task.
func Until(fn Func, done func(result any) (bool, error)) Task {
	if done == nil {
		return fn
	}
	return untilTask{fn: fn, done: done}
}

// Command is a queued task together with its correlation ID.
//
// The submitting goroutine owns a Command until it is enqueued; from then on
// the executor owns it until the outcome is published.
type Command struct {
	ID          string
	Name        string
	Task        Task
	SubmittedAt time.Time
}

// completer returns the command's completion predicate, or nil when the
// task is synchronous.
func (c *Command) completer() Completer {
	if cp, ok := c.Task.(Completer); ok {
		return cp
	}
	return nil
}
