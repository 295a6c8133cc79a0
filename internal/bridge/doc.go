// Package bridge relays automation calls from request goroutines onto the
// host application's main loop.
//
// Some hosts only accept automation calls from their own single-threaded
// tick callback. HTTP handlers run on arbitrary goroutines, so every call
// goes through a Bridge: in direct mode the caller runs the task itself, in
// bridged mode the task is queued, executed by the Executor on the next
// host tick, and the outcome handed back to the waiting caller.
//
// Architecture:
//
//	 handler goroutines            host main loop
//	┌──────────────┐
//	│  Dispatch()  │──┐
//	└──────────────┘  │  ┌───────────┐   Tick()   ┌────────────┐
//	┌──────────────┐  ├─▶│   Queue   │───────────▶│  Executor  │
//	│  Dispatch()  │──┘  │ (lfq MPSC)│            │ IDLE/AWAIT │
//	└──────▲───────┘     └───────────┘            └─────┬──────┘
//	       │             ┌───────────┐   Publish()      │
//	       └─────────────│   Store   │◀─────────────────┘
//	         Take()      └───────────┘
//
// # Key Types
//
//   - Task: a unit of host work (Execute). Tasks that start asynchronous host
//     work also implement Completer; the executor then polls IsComplete once
//     per tick before resolving the command.
//   - Command: a queued Task with its request ID.
//   - Store: request ID to Outcome map, written once, read once.
//   - Executor: the single consumer, run from the host's tick callback.
//   - Bridge: the dispatch facade every endpoint calls.
//
// # Thread Safety
//
// Dispatch is safe for concurrent use. Executor.Tick and Executor.Shutdown
// must only be called from the host main loop.
//
// # Usage
//
//	b := bridge.New(bridge.Options{Mode: bridge.ModeBridged, Logger: log})
//	loop.RegisterPreTick("bridge", func(time.Duration) { b.Executor().Tick() })
//	loop.OnShutdown(b.Executor().Shutdown)
//
//	cams, err := bridge.Call(b, "get_cameras", ctx.Cameras)
package bridge
