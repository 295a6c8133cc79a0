package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"

	"github.com/nerrad567/dccutils-server/internal/host"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
)

// ─── LoopPrinter ───────────────────────────────────────────────────

func TestLoopPrinter_HoldsUntilFlush(t *testing.T) {
	p := &printRecorder{}
	lp := NewLoopPrinter(p, 16)
	logger := NewHostConsole(config.LoggingConfig{Level: "info"}, "1.2.3", lp)

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("request handled", "worker", i)
		}()
	}
	wg.Wait()

	if len(p.lines) != 0 {
		t.Fatalf("printed %d lines before Flush, want 0", len(p.lines))
	}
	if lp.Pending() != 4 {
		t.Fatalf("Pending() = %d, want 4", lp.Pending())
	}

	lp.Flush()

	if len(p.lines) != 4 {
		t.Fatalf("printed %d lines after Flush, want 4: %q", len(p.lines), p.lines)
	}
	for _, line := range p.lines {
		if !strings.Contains(line, `msg="request handled"`) {
			t.Errorf("line %q missing message", line)
		}
	}
	if lp.Pending() != 0 {
		t.Errorf("Pending() = %d after Flush, want 0", lp.Pending())
	}
}

func TestLoopPrinter_KeepsOrder(t *testing.T) {
	p := &printRecorder{}
	lp := NewLoopPrinter(p, 8)

	for i := range 5 {
		lp.SoftwarePrint(fmt.Sprintf("line %d", i))
	}
	lp.Flush()

	for i, line := range p.lines {
		if want := fmt.Sprintf("line %d", i); line != want {
			t.Errorf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestLoopPrinter_DropsPastBacklog(t *testing.T) {
	p := &printRecorder{}
	lp := NewLoopPrinter(p, 2)

	for i := range 5 {
		lp.SoftwarePrint(fmt.Sprintf("line %d", i))
	}
	lp.Flush()

	want := []string{"dccutils: 3 log lines dropped", "line 0", "line 1"}
	if len(p.lines) != len(want) {
		t.Fatalf("lines = %q, want %q", p.lines, want)
	}
	for i := range want {
		if p.lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, p.lines[i], want[i])
		}
	}

	// The drop notice is reported once.
	p.lines = nil
	lp.Flush()
	if len(p.lines) != 0 {
		t.Errorf("second Flush printed %q", p.lines)
	}
}

func TestNewLoopPrinter_DefaultBacklog(t *testing.T) {
	lp := NewLoopPrinter(&printRecorder{}, 0)
	if cap(lp.lines) != DefaultConsoleBacklog {
		t.Errorf("backlog = %d, want %d", cap(lp.lines), DefaultConsoleBacklog)
	}
}

// ─── Host loop ─────────────────────────────────────────────────────

// tickPrinter records whether each print happened inside a loop tick.
type tickPrinter struct {
	inTick *atomix.Bool

	mu      sync.Mutex
	lines   []string
	offLoop int
}

func (p *tickPrinter) SoftwarePrint(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, msg)
	if !p.inTick.Load() {
		p.offLoop++
	}
}

func (p *tickPrinter) snapshot() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lines), p.offLoop
}

func TestLoopPrinter_PrintsOnHostLoop(t *testing.T) {
	var inTick atomix.Bool
	p := &tickPrinter{inTick: &inTick}
	lp := NewLoopPrinter(p, 64)

	loop := host.New(host.Options{Interval: time.Millisecond})
	loop.RegisterPreTick("enter", func(time.Duration) { inTick.Store(true) })
	loop.RegisterPreTick("log.console", func(time.Duration) { lp.Flush() })
	loop.RegisterPreTick("leave", func(time.Duration) { inTick.Store(false) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	logger := NewHostConsole(config.LoggingConfig{Level: "info"}, "1.2.3", lp)

	const writers, perWriter = 4, 10
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range perWriter {
				logger.Info("tick work", "writer", w, "n", n)
			}
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for {
		printed, offLoop := p.snapshot()
		if offLoop != 0 {
			t.Fatalf("%d lines printed outside a loop tick", offLoop)
		}
		if printed == writers*perWriter {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("printed %d lines, want %d", printed, writers*perWriter)
		}
		time.Sleep(time.Millisecond)
	}
}
