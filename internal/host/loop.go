package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"code.hybscloud.com/atomix"
)

// DefaultTickInterval is used when Options.Interval is not positive.
const DefaultTickInterval = 16 * time.Millisecond

// ErrAlreadyRunning is returned by Run when the loop is already running or
// has run before.
var ErrAlreadyRunning = errors.New("host: loop already running")

// Logger defines the logging interface used by the loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TickSource delivers tick instants. time.Ticker satisfies it through
// NewTicker; tests inject a manual source.
type TickSource interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

// NewTicker returns a TickSource backed by time.Ticker.
func NewTicker(d time.Duration) TickSource {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Options configures a Loop.
type Options struct {
	// Interval between ticks. Defaults to DefaultTickInterval.
	Interval time.Duration

	// Ticker overrides the tick source. Defaults to NewTicker(Interval).
	Ticker TickSource

	// Logger is optional.
	Logger Logger
}

type callback struct {
	name    string
	fn      func(delta time.Duration)
	removed bool
}

// Loop is the host main loop.
//
// Thread Safety: RegisterPreTick, OnShutdown, Ticks and Running are safe
// for concurrent use. Callbacks themselves always run on the loop goroutine.
type Loop struct {
	interval time.Duration
	ticker   TickSource
	logger   Logger

	mu         sync.Mutex
	callbacks  []*callback
	onShutdown []func()
	started    bool
	running    bool

	ticks atomix.Uint64
}

// New creates a Loop. Nothing runs until Run is called.
func New(opts Options) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Loop{
		interval: opts.Interval,
		ticker:   opts.Ticker,
		logger:   opts.Logger,
	}
}

// RegisterPreTick adds fn to the callbacks run on every tick, after those
// already registered. delta is the time elapsed since the previous tick.
// The returned function unregisters fn; it is safe to call more than once
// and from inside a callback.
func (l *Loop) RegisterPreTick(name string, fn func(delta time.Duration)) (unregister func()) {
	cb := &callback{name: name, fn: fn}

	l.mu.Lock()
	l.callbacks = append(l.callbacks, cb)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cb.removed {
			return
		}
		cb.removed = true
		for i, c := range l.callbacks {
			if c == cb {
				l.callbacks = append(l.callbacks[:i:i], l.callbacks[i+1:]...)
				break
			}
		}
	}
}

// OnShutdown adds fn to the hooks run on the loop goroutine after the last
// tick, in registration order.
func (l *Loop) OnShutdown(fn func()) {
	l.mu.Lock()
	l.onShutdown = append(l.onShutdown, fn)
	l.mu.Unlock()
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Running reports whether Run is currently ticking.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Run ticks until ctx is cancelled, then runs the shutdown hooks and
// returns nil. A Loop runs once; later calls return ErrAlreadyRunning.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.started = true
	l.running = true
	l.mu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := l.ticker
	if ticker == nil {
		ticker = NewTicker(l.interval)
	}
	defer ticker.Stop()

	l.logger.Info("host loop started", "interval", l.interval.String())

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case now := <-ticker.C():
			delta := now.Sub(last)
			last = now
			l.tick(delta)
		}
	}
}

// tick runs one pass over a snapshot of the callbacks.
func (l *Loop) tick(delta time.Duration) {
	l.mu.Lock()
	cbs := make([]*callback, len(l.callbacks))
	copy(cbs, l.callbacks)
	l.mu.Unlock()

	for _, cb := range cbs {
		l.mu.Lock()
		removed := cb.removed
		l.mu.Unlock()
		if removed {
			continue
		}
		l.safeCall(cb.name, func() { cb.fn(delta) })
	}
	l.ticks.Add(1)
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	hooks := make([]func(), len(l.onShutdown))
	copy(hooks, l.onShutdown)
	l.running = false
	l.mu.Unlock()

	for i, fn := range hooks {
		l.safeCall(fmt.Sprintf("shutdown[%d]", i), fn)
	}
	l.logger.Info("host loop stopped", "ticks", l.ticks.Load())
}

// safeCall runs fn, logging instead of propagating a panic.
func (l *Loop) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host callback panicked",
				"callback", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
