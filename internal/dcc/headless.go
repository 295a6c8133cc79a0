package dcc

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/dccutils-server/internal/host"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
)

var (
	imageExtensions = []Extension{
		{Suffix: ".png", Name: "PNG"},
		{Suffix: ".jpg", Name: "JPEG"},
	}
	videoExtensions = []Extension{
		{Suffix: ".gif", Name: "GIF"},
	}
)

// sceneState is what PushState saves.
type sceneState struct {
	camera     string
	colorSpace string
	sequence   string
}

// captureJob is a capture waiting for its frames to elapse.
type captureJob struct {
	movie     bool
	ticksLeft int
	render    func() error
}

// Option configures a Headless context.
type Option func(*Headless)

// WithConsole sets where SoftwarePrint writes. Defaults to os.Stdout.
func WithConsole(w io.Writer) Option {
	return func(h *Headless) { h.console = w }
}

// Headless is an in-memory automation context.
//
// Thread Safety: all methods are safe for concurrent use. Scene state is
// guarded by one mutex; captures render while holding it, so a capture
// observes the camera and color space current when it started.
type Headless struct {
	mu sync.Mutex

	name        string
	version     string
	projectPath string
	cameras     []string
	renderers   []string
	colorSpaces []string
	sequences   []string

	width            int
	height           int
	framesPerCapture int
	animationFrames  int

	current sceneState
	stack   []sceneState

	attached   bool
	job        *captureJob
	screenshot bool
	movie      bool
	captureErr error

	consoleMu sync.Mutex
	console   io.Writer
}

// NewHeadless creates a Headless context seeded from cfg. The first
// camera, color space and sequence are current.
func NewHeadless(cfg config.DCCConfig, opts ...Option) *Headless {
	h := &Headless{
		name:             cfg.Name,
		version:          cfg.Version,
		projectPath:      cfg.ProjectPath,
		cameras:          slices.Clone(cfg.Cameras),
		renderers:        slices.Clone(cfg.Renderers),
		colorSpaces:      slices.Clone(cfg.ColorSpaces),
		sequences:        slices.Clone(cfg.Sequences),
		width:            max(cfg.Width, 1),
		height:           max(cfg.Height, 1),
		framesPerCapture: max(cfg.FramesPerCapture, 1),
		animationFrames:  max(cfg.AnimationFrames, 1),
		console:          os.Stdout,
	}
	if len(h.cameras) > 0 {
		h.current.camera = h.cameras[0]
	}
	if len(h.colorSpaces) > 0 {
		h.current.colorSpace = h.colorSpaces[0]
	}
	if len(h.sequences) > 0 {
		h.current.sequence = h.sequences[0]
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach makes captures asynchronous, advanced once per tick of loop, and
// marks the context main-thread bound.
func (h *Headless) Attach(loop *host.Loop) (detach func()) {
	h.mu.Lock()
	h.attached = true
	h.mu.Unlock()

	unregister := loop.RegisterPreTick("dcc.headless", func(time.Duration) { h.Advance() })
	return func() {
		unregister()
		h.mu.Lock()
		h.attached = false
		h.mu.Unlock()
	}
}

// RequiresMainThread implements MainThreadBound.
func (h *Headless) RequiresMainThread() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

// ─── Scene ─────────────────────────────────────────────────────────

// DCCName implements Context.
func (h *Headless) DCCName() (string, error) { return h.name, nil }

// DCCVersion implements Context.
func (h *Headless) DCCVersion() (string, error) { return h.version, nil }

// CurrentProjectPath implements Context.
func (h *Headless) CurrentProjectPath() (string, error) { return h.projectPath, nil }

// Cameras implements Context.
func (h *Headless) Cameras() ([]string, error) {
	return slices.Clone(h.cameras), nil
}

// SetCamera implements Context.
func (h *Headless) SetCamera(name string) error {
	if !slices.Contains(h.cameras, name) {
		return fmt.Errorf("%w: %q", ErrUnknownCamera, name)
	}
	h.mu.Lock()
	h.current.camera = name
	h.mu.Unlock()
	return nil
}

// CurrentCamera returns the active camera.
func (h *Headless) CurrentCamera() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.camera
}

// AvailableRenderers implements Context.
func (h *Headless) AvailableRenderers() ([]string, error) {
	return slices.Clone(h.renderers), nil
}

// Extensions implements Context.
func (h *Headless) Extensions(isVideo bool) ([]Extension, error) {
	if isVideo {
		return slices.Clone(videoExtensions), nil
	}
	return slices.Clone(imageExtensions), nil
}

// CurrentColorSpace implements Context.
func (h *Headless) CurrentColorSpace() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.colorSpace, nil
}

// SetCurrentColorSpace implements Context.
func (h *Headless) SetCurrentColorSpace(name string) error {
	if !slices.Contains(h.colorSpaces, name) {
		return fmt.Errorf("%w: %q", ErrUnknownColorSpace, name)
	}
	h.mu.Lock()
	h.current.colorSpace = name
	h.mu.Unlock()
	return nil
}

// PushState implements Context.
func (h *Headless) PushState() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, h.current)
	return nil
}

// PopState implements Context.
func (h *Headless) PopState() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return ErrStateStackEmpty
	}
	h.current = h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return nil
}

// StackDepth returns the number of saved states.
func (h *Headless) StackDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}

// SoftwarePrint implements Context.
func (h *Headless) SoftwarePrint(msg string) {
	h.consoleMu.Lock()
	defer h.consoleMu.Unlock()
	fmt.Fprintln(h.console, msg)
}

// sequenceList and setSequence back the Sequenced wrapper.
func (h *Headless) sequenceList() []string {
	return slices.Clone(h.sequences)
}

func (h *Headless) setSequence(name string) error {
	if !slices.Contains(h.sequences, name) {
		return fmt.Errorf("%w: %q", ErrUnknownSequence, name)
	}
	h.mu.Lock()
	h.current.sequence = name
	h.mu.Unlock()
	return nil
}

// CurrentSequence returns the active sequence, or "" when none are
// configured.
func (h *Headless) CurrentSequence() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.sequence
}

// ─── Captures ──────────────────────────────────────────────────────

// TakeViewportScreenshot implements Context.
func (h *Headless) TakeViewportScreenshot(outputPath, extension string) error {
	return h.capture(captureRequest{
		outputPath: outputPath,
		extension:  extension,
	})
}

// TakeRenderScreenshot implements Context.
func (h *Headless) TakeRenderScreenshot(renderer, outputPath, extension string, useColorspace bool) error {
	return h.capture(captureRequest{
		render:        true,
		renderer:      renderer,
		outputPath:    outputPath,
		extension:     extension,
		useColorspace: useColorspace,
	})
}

// TakeViewportAnimation implements Context.
func (h *Headless) TakeViewportAnimation(outputPath, extension string) error {
	return h.capture(captureRequest{
		movie:      true,
		outputPath: outputPath,
		extension:  extension,
	})
}

// TakeRenderAnimation implements Context.
func (h *Headless) TakeRenderAnimation(renderer, outputPath, extension string, useColorspace bool) error {
	return h.capture(captureRequest{
		movie:         true,
		render:        true,
		renderer:      renderer,
		outputPath:    outputPath,
		extension:     extension,
		useColorspace: useColorspace,
	})
}

// ScreenshotInProgress implements Context.
func (h *Headless) ScreenshotInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.screenshot
}

// MovieInProgress implements Context.
func (h *Headless) MovieInProgress() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.movie
}

// CaptureError implements CaptureStatus.
func (h *Headless) CaptureError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.captureErr
}

type captureRequest struct {
	movie         bool
	render        bool
	renderer      string
	outputPath    string
	extension     string
	useColorspace bool
}

// capture validates req and either renders it now or schedules it for
// framesPerCapture ticks from now.
func (h *Headless) capture(req captureRequest) error {
	if req.render && req.renderer != "" && !slices.Contains(h.renderers, req.renderer) {
		return fmt.Errorf("%w: %q", ErrUnknownRenderer, req.renderer)
	}
	if req.outputPath == "" {
		return ErrOutputPathRequired
	}

	exts, _ := h.Extensions(req.movie)
	ext, err := pickExtension(exts, req.extension)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.job != nil {
		return ErrCaptureInProgress
	}

	frame := frameSpec{
		width:     h.width,
		height:    h.height,
		camera:    slices.Index(h.cameras, h.current.camera),
		render:    req.render,
		renderer:  slices.Index(h.renderers, req.renderer),
		transform: colorTransform(h.current.colorSpace, req.render && req.useColorspace),
	}
	frames := h.animationFrames
	render := func() error {
		if req.movie {
			return writeAnimation(req.outputPath, frame, frames)
		}
		return writeImage(req.outputPath, ext, frame)
	}

	h.captureErr = nil
	if !h.attached {
		h.captureErr = render()
		return h.captureErr
	}

	h.job = &captureJob{movie: req.movie, ticksLeft: h.framesPerCapture, render: render}
	if req.movie {
		h.movie = true
	} else {
		h.screenshot = true
	}
	return nil
}

// Advance moves an in-progress capture forward by one frame. The capture is
// written, and its in-progress flag cleared, on the frame its countdown
// reaches zero.
func (h *Headless) Advance() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.job == nil {
		return
	}
	h.job.ticksLeft--
	if h.job.ticksLeft > 0 {
		return
	}

	h.captureErr = h.job.render()
	if h.job.movie {
		h.movie = false
	} else {
		h.screenshot = false
	}
	h.job = nil
}

// pickExtension resolves an extension name against the advertised list.
// An empty name selects the first entry.
func pickExtension(exts []Extension, name string) (Extension, error) {
	if len(exts) == 0 {
		return Extension{}, ErrNoOutputExtensions
	}
	if name == "" {
		return exts[0], nil
	}
	for _, e := range exts {
		if e.Name == name {
			return e, nil
		}
	}
	return Extension{}, fmt.Errorf("%w: %q", ErrUnknownExtension, name)
}

// ─── Sequencer ─────────────────────────────────────────────────────

// Sequenced is a Headless context that also exposes its sequences.
type Sequenced struct {
	*Headless
}

// Sequences implements Sequencer.
func (s Sequenced) Sequences() ([]string, error) {
	return s.sequenceList(), nil
}

// SetSequence implements Sequencer.
func (s Sequenced) SetSequence(name string) error {
	return s.setSequence(name)
}

// ─── Selection ─────────────────────────────────────────────────────

// New builds the context named by cfg.Context. When loop is non-nil the
// context is attached to it and becomes main-thread bound.
func New(cfg config.DCCConfig, loop *host.Loop, opts ...Option) (Context, error) {
	switch cfg.Context {
	case "headless":
		h := NewHeadless(cfg, opts...)
		if loop != nil {
			h.Attach(loop)
		}
		if len(cfg.Sequences) > 0 {
			return Sequenced{Headless: h}, nil
		}
		return h, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContext, cfg.Context)
	}
}
