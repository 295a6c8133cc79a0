package logging

import (
	"bytes"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"

	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
)

// DefaultConsoleBacklog is how many lines a LoopPrinter holds between
// flushes before it starts dropping.
const DefaultConsoleBacklog = 1024

// Printer is a host application's script console.
type Printer interface {
	SoftwarePrint(msg string)
}

// NewHostConsole creates a Logger that writes plain text lines to the
// host's print surface instead of a terminal. Hosts that embed the server
// often have no usable stdout. cfg.Format and cfg.Output are ignored.
func NewHostConsole(cfg config.LoggingConfig, version string, p Printer) *Logger {
	cfg.Format = "text"
	return NewWithWriter(cfg, version, &consoleWriter{printer: p})
}

// consoleWriter buffers partial writes and hands complete lines to the
// printer without their trailing newline.
type consoleWriter struct {
	mu      sync.Mutex
	printer Printer
	buf     bytes.Buffer
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line; keep it for the next write.
			w.buf.Write(line)
			break
		}
		w.printer.SoftwarePrint(string(bytes.TrimRight(line, "\r\n")))
	}
	return len(p), nil
}

// LoopPrinter defers console output to the goroutine that calls Flush.
//
// Hosts whose print surface belongs to the main thread register Flush as a
// loop callback and hand the LoopPrinter to NewHostConsole. SoftwarePrint
// never blocks: lines past the backlog are counted and dropped, and the
// next Flush reports how many were lost.
type LoopPrinter struct {
	target  Printer
	lines   chan string
	dropped atomix.Int64
}

// NewLoopPrinter creates a LoopPrinter that holds up to backlog lines.
func NewLoopPrinter(target Printer, backlog int) *LoopPrinter {
	if backlog <= 0 {
		backlog = DefaultConsoleBacklog
	}
	return &LoopPrinter{
		target: target,
		lines:  make(chan string, backlog),
	}
}

// SoftwarePrint queues msg. Safe from any goroutine.
func (p *LoopPrinter) SoftwarePrint(msg string) {
	select {
	case p.lines <- msg:
	default:
		p.dropped.Add(1)
	}
}

// Flush prints the queued lines in order. It prints at most one backlog's
// worth per call so busy writers cannot stall the caller.
func (p *LoopPrinter) Flush() {
	if n := p.dropped.Swap(0); n > 0 {
		p.target.SoftwarePrint(fmt.Sprintf("dccutils: %d log lines dropped", n))
	}
	for range cap(p.lines) {
		select {
		case msg := <-p.lines:
			p.target.SoftwarePrint(msg)
		default:
			return
		}
	}
}

// Pending reports how many lines are waiting for Flush.
func (p *LoopPrinter) Pending() int {
	return len(p.lines)
}
