// Package host provides the application's main loop: the single thread on
// which every automation context call is made.
//
// A Loop ticks at a fixed interval and runs its pre-tick callbacks in
// registration order on every tick. The command bridge registers its
// executor as one of those callbacks, so commands submitted from HTTP
// goroutines execute here, one step per tick.
//
// Run pins its goroutine to the OS thread for the lifetime of the loop.
// Callers that need the process main thread (GUI toolkits, some DCC
// runtimes) must call Run from main after locking the main goroutine in
// init.
package host
