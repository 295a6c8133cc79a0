package dcc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for automation context operations.
var (
	ErrUnknownContext     = errors.New("dcc: unknown context")
	ErrUnknownCamera      = errors.New("dcc: unknown camera")
	ErrUnknownRenderer    = errors.New("dcc: unknown renderer")
	ErrUnknownColorSpace  = errors.New("dcc: unknown color space")
	ErrUnknownSequence    = errors.New("dcc: unknown sequence")
	ErrUnknownExtension   = errors.New("dcc: unknown extension")
	ErrCaptureInProgress  = errors.New("dcc: capture already in progress")
	ErrStateStackEmpty    = errors.New("dcc: no saved state to restore")
	ErrNoOutputExtensions = errors.New("dcc: no output extensions")
	ErrOutputPathRequired = errors.New("dcc: output path is required")
)

// Extension is an output format: a file suffix and the host's name for it.
// It is encoded as a two-element JSON array, e.g. [".png","PNG"].
type Extension struct {
	Suffix string
	Name   string
}

// MarshalJSON implements json.Marshaler.
func (e Extension) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Suffix, e.Name})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Extension) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("dcc: extension must have 2 elements, got %d", len(pair))
	}
	e.Suffix, e.Name = pair[0], pair[1]
	return nil
}

// Context is a host application's automation surface.
//
// Capture methods may return before the file is written. Callers that need
// the file wait until ScreenshotInProgress (images) or MovieInProgress
// (animations) reports false.
type Context interface {
	DCCName() (string, error)
	DCCVersion() (string, error)
	CurrentProjectPath() (string, error)

	Cameras() ([]string, error)
	SetCamera(name string) error

	AvailableRenderers() ([]string, error)
	Extensions(isVideo bool) ([]Extension, error)

	CurrentColorSpace() (string, error)
	SetCurrentColorSpace(name string) error

	// PushState saves the camera, color space and sequence. PopState
	// restores the most recently pushed state.
	PushState() error
	PopState() error

	TakeViewportScreenshot(outputPath, extension string) error
	TakeRenderScreenshot(renderer, outputPath, extension string, useColorspace bool) error
	TakeViewportAnimation(outputPath, extension string) error
	TakeRenderAnimation(renderer, outputPath, extension string, useColorspace bool) error

	ScreenshotInProgress() bool
	MovieInProgress() bool

	// SoftwarePrint writes msg to the host's script console.
	SoftwarePrint(msg string)
}

// Sequencer is implemented by hosts with a sequence editor.
type Sequencer interface {
	Sequences() ([]string, error)
	SetSequence(name string) error
}

// MainThreadBound is implemented by hosts that must be driven from their
// main loop.
type MainThreadBound interface {
	RequiresMainThread() bool
}

// CaptureStatus is implemented by hosts that report the failure of the last
// asynchronous capture.
type CaptureStatus interface {
	CaptureError() error
}

// RequiresMainThread reports whether c declares itself main-thread bound.
func RequiresMainThread(c Context) bool {
	if m, ok := c.(MainThreadBound); ok {
		return m.RequiresMainThread()
	}
	return false
}

// LastCaptureError returns c's last asynchronous capture failure, or nil
// when c does not report one.
func LastCaptureError(c Context) error {
	if s, ok := c.(CaptureStatus); ok {
		return s.CaptureError()
	}
	return nil
}
