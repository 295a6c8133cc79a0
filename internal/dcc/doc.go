// Package dcc defines the automation surface of a DCC host (a 3D or
// compositing application) and provides a headless implementation.
//
// The HTTP layer never calls a Context directly. Every call goes through
// the command bridge, which decides whether it runs in place or on the
// host main loop.
//
// # Capabilities
//
// Context is the surface every host provides. Optional capabilities are
// discovered with type assertions:
//
//   - Sequencer: hosts with a sequence editor (cinematics)
//   - MainThreadBound: hosts whose API may only be called from the main loop
//   - CaptureStatus: hosts that report why an asynchronous capture failed
//
// # Headless
//
// Headless keeps an in-memory scene and writes real image files. When
// attached to a host.Loop it behaves like an editor with a frame-driven
// renderer: a capture starts on one tick and the file appears a configured
// number of ticks later, with ScreenshotInProgress or MovieInProgress
// reporting true meanwhile.
package dcc
