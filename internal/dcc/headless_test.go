package dcc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/dccutils-server/internal/host"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
)

func testConfig() config.DCCConfig {
	return config.DCCConfig{
		Context:          "headless",
		Name:             "Headless",
		Version:          "1.0",
		ProjectPath:      "/projects/shot010",
		Cameras:          []string{"persp", "front"},
		Renderers:        []string{"viewport", "raytrace"},
		ColorSpaces:      []string{"sRGB", "Linear"},
		Width:            16,
		Height:           8,
		FramesPerCapture: 3,
		AnimationFrames:  2,
	}
}

// ─── Extension ─────────────────────────────────────────────────────

func TestExtension_JSON(t *testing.T) {
	data, err := json.Marshal([]Extension{{Suffix: ".png", Name: "PNG"}})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `[[".png","PNG"]]` {
		t.Errorf("Marshal() = %s", data)
	}

	var got Extension
	if err := json.Unmarshal([]byte(`[".jpg","JPEG"]`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got != (Extension{Suffix: ".jpg", Name: "JPEG"}) {
		t.Errorf("Unmarshal() = %+v", got)
	}

	if err := json.Unmarshal([]byte(`[".jpg"]`), &got); err == nil {
		t.Error("Unmarshal() of a one-element array succeeded")
	}
}

// ─── Scene ─────────────────────────────────────────────────────────

func TestHeadless_Scene(t *testing.T) {
	h := NewHeadless(testConfig())

	name, _ := h.DCCName()
	version, _ := h.DCCVersion()
	project, _ := h.CurrentProjectPath()
	if name != "Headless" || version != "1.0" || project != "/projects/shot010" {
		t.Errorf("identity = %q %q %q", name, version, project)
	}

	cameras, _ := h.Cameras()
	if !slices.Equal(cameras, []string{"persp", "front"}) {
		t.Errorf("Cameras() = %v", cameras)
	}
	cameras[0] = "mutated"
	if h.CurrentCamera() != "persp" {
		t.Error("Cameras() result aliases internal state")
	}

	if err := h.SetCamera("front"); err != nil {
		t.Fatalf("SetCamera() error = %v", err)
	}
	if h.CurrentCamera() != "front" {
		t.Errorf("CurrentCamera() = %q", h.CurrentCamera())
	}
	if err := h.SetCamera("missing"); !errors.Is(err, ErrUnknownCamera) {
		t.Errorf("SetCamera(missing) error = %v, want ErrUnknownCamera", err)
	}

	if err := h.SetCurrentColorSpace("Linear"); err != nil {
		t.Fatalf("SetCurrentColorSpace() error = %v", err)
	}
	if cs, _ := h.CurrentColorSpace(); cs != "Linear" {
		t.Errorf("CurrentColorSpace() = %q", cs)
	}
	if err := h.SetCurrentColorSpace("P3"); !errors.Is(err, ErrUnknownColorSpace) {
		t.Errorf("SetCurrentColorSpace(P3) error = %v, want ErrUnknownColorSpace", err)
	}
}

func TestHeadless_Extensions(t *testing.T) {
	h := NewHeadless(testConfig())

	images, _ := h.Extensions(false)
	if len(images) != 2 || images[0].Name != "PNG" {
		t.Errorf("Extensions(false) = %v", images)
	}
	videos, _ := h.Extensions(true)
	if len(videos) != 1 || videos[0].Suffix != ".gif" {
		t.Errorf("Extensions(true) = %v", videos)
	}
}

func TestHeadless_PushPopState(t *testing.T) {
	h := NewHeadless(testConfig())

	if err := h.PushState(); err != nil {
		t.Fatalf("PushState() error = %v", err)
	}
	_ = h.SetCamera("front")
	_ = h.SetCurrentColorSpace("Linear")

	if err := h.PopState(); err != nil {
		t.Fatalf("PopState() error = %v", err)
	}
	if h.CurrentCamera() != "persp" {
		t.Errorf("camera after pop = %q, want persp", h.CurrentCamera())
	}
	if cs, _ := h.CurrentColorSpace(); cs != "sRGB" {
		t.Errorf("color space after pop = %q, want sRGB", cs)
	}

	if err := h.PopState(); !errors.Is(err, ErrStateStackEmpty) {
		t.Errorf("PopState() on empty stack error = %v, want ErrStateStackEmpty", err)
	}
}

func TestHeadless_SoftwarePrint(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeadless(testConfig(), WithConsole(&buf))

	h.SoftwarePrint("Cannot find a free port in the range [10000...10099]")

	if buf.String() != "Cannot find a free port in the range [10000...10099]\n" {
		t.Errorf("console = %q", buf.String())
	}
}

// ─── Captures ──────────────────────────────────────────────────────

func TestHeadless_SynchronousCaptures(t *testing.T) {
	dir := t.TempDir()
	h := NewHeadless(testConfig())

	tests := []struct {
		name    string
		file    string
		capture func(path string) error
		decode  func(f *os.File) error
	}{
		{
			name:    "viewport png",
			file:    "viewport.png",
			capture: func(p string) error { return h.TakeViewportScreenshot(p, "PNG") },
			decode:  func(f *os.File) error { _, err := png.Decode(f); return err },
		},
		{
			name:    "render jpeg",
			file:    "render.jpg",
			capture: func(p string) error { return h.TakeRenderScreenshot("raytrace", p, "JPEG", true) },
			decode:  func(f *os.File) error { _, err := jpeg.Decode(f); return err },
		},
		{
			name:    "viewport animation",
			file:    "anim/viewport.gif",
			capture: func(p string) error { return h.TakeViewportAnimation(p, "GIF") },
			decode: func(f *os.File) error {
				g, err := gif.DecodeAll(f)
				if err == nil && len(g.Image) != 2 {
					return fmt.Errorf("animation has %d frames, want 2", len(g.Image))
				}
				return err
			},
		},
		{
			name:    "render animation default extension",
			file:    "render.gif",
			capture: func(p string) error { return h.TakeRenderAnimation("", p, "", false) },
			decode:  func(f *os.File) error { _, err := gif.DecodeAll(f); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			if err := tt.capture(path); err != nil {
				t.Fatalf("capture error = %v", err)
			}
			if h.ScreenshotInProgress() || h.MovieInProgress() {
				t.Error("detached capture left an in-progress flag set")
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("output not written: %v", err)
			}
			defer f.Close()
			if err := tt.decode(f); err != nil {
				t.Errorf("output does not decode: %v", err)
			}
		})
	}
}

func TestHeadless_CaptureValidation(t *testing.T) {
	dir := t.TempDir()
	h := NewHeadless(testConfig())

	tests := []struct {
		name string
		err  error
		call func() error
	}{
		{
			name: "unknown renderer",
			err:  ErrUnknownRenderer,
			call: func() error { return h.TakeRenderScreenshot("cycles", filepath.Join(dir, "a.png"), "PNG", false) },
		},
		{
			name: "unknown extension",
			err:  ErrUnknownExtension,
			call: func() error { return h.TakeViewportScreenshot(filepath.Join(dir, "a.tif"), "TIFF") },
		},
		{
			name: "video extension for image",
			err:  ErrUnknownExtension,
			call: func() error { return h.TakeViewportScreenshot(filepath.Join(dir, "a.gif"), "GIF") },
		},
		{
			name: "missing output path",
			err:  ErrOutputPathRequired,
			call: func() error { return h.TakeViewportAnimation("", "GIF") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, tt.err) {
				t.Errorf("error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestHeadless_AsynchronousCapture(t *testing.T) {
	cfg := testConfig()
	h := NewHeadless(cfg)
	h.attached = true

	path := filepath.Join(t.TempDir(), "shot.png")
	if err := h.TakeViewportScreenshot(path, "PNG"); err != nil {
		t.Fatalf("TakeViewportScreenshot() error = %v", err)
	}
	if !h.ScreenshotInProgress() {
		t.Fatal("ScreenshotInProgress() = false right after start")
	}
	if err := h.TakeViewportScreenshot(path, "PNG"); !errors.Is(err, ErrCaptureInProgress) {
		t.Errorf("second capture error = %v, want ErrCaptureInProgress", err)
	}

	for i := 1; i < cfg.FramesPerCapture; i++ {
		h.Advance()
		if !h.ScreenshotInProgress() {
			t.Fatalf("capture finished after %d frames, want %d", i, cfg.FramesPerCapture)
		}
		if _, err := os.Stat(path); err == nil {
			t.Fatal("file written before the capture finished")
		}
	}

	h.Advance()
	if h.ScreenshotInProgress() {
		t.Fatal("ScreenshotInProgress() still true after final frame")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}
	if err := h.CaptureError(); err != nil {
		t.Errorf("CaptureError() = %v", err)
	}
}

func TestHeadless_AsynchronousCaptureFailure(t *testing.T) {
	h := NewHeadless(testConfig())
	h.attached = true

	// A directory where the file should be makes the write fail.
	path := t.TempDir()
	if err := h.TakeViewportAnimation(path, "GIF"); err != nil {
		t.Fatalf("TakeViewportAnimation() error = %v", err)
	}
	for range 3 {
		h.Advance()
	}

	if h.MovieInProgress() {
		t.Error("MovieInProgress() still true after a failed capture")
	}
	if LastCaptureError(h) == nil {
		t.Error("LastCaptureError() = nil after a failed write")
	}
}

func TestHeadless_RenderUsesColorSpace(t *testing.T) {
	dir := t.TempDir()
	h := NewHeadless(testConfig())
	_ = h.SetCurrentColorSpace("Linear")

	plain := filepath.Join(dir, "plain.png")
	graded := filepath.Join(dir, "graded.png")
	if err := h.TakeRenderScreenshot("viewport", plain, "PNG", false); err != nil {
		t.Fatal(err)
	}
	if err := h.TakeRenderScreenshot("viewport", graded, "PNG", true); err != nil {
		t.Fatal(err)
	}

	a, _ := os.ReadFile(plain)
	b, _ := os.ReadFile(graded)
	if bytes.Equal(a, b) {
		t.Error("use_colorspace had no effect on the render")
	}
}

// ─── Selection ─────────────────────────────────────────────────────

func TestNew(t *testing.T) {
	cfg := testConfig()

	ctx, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := ctx.(Sequencer); ok {
		t.Error("context without sequences implements Sequencer")
	}
	if RequiresMainThread(ctx) {
		t.Error("detached context reports main-thread bound")
	}

	cfg.Sequences = []string{"seq_010", "seq_020"}
	ctx, err = New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	seq, ok := ctx.(Sequencer)
	if !ok {
		t.Fatal("context with sequences does not implement Sequencer")
	}
	if got, _ := seq.Sequences(); !slices.Equal(got, []string{"seq_010", "seq_020"}) {
		t.Errorf("Sequences() = %v", got)
	}
	if err := seq.SetSequence("seq_020"); err != nil {
		t.Errorf("SetSequence() error = %v", err)
	}
	if err := seq.SetSequence("seq_999"); !errors.Is(err, ErrUnknownSequence) {
		t.Errorf("SetSequence(seq_999) error = %v, want ErrUnknownSequence", err)
	}

	cfg.Context = "maya"
	if _, err := New(cfg, nil); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("New(maya) error = %v, want ErrUnknownContext", err)
	}
}

func TestNew_AttachedToLoop(t *testing.T) {
	loop := host.New(host.Options{Interval: time.Millisecond})
	ctx, err := New(testConfig(), loop)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !RequiresMainThread(ctx) {
		t.Fatal("attached context is not main-thread bound")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	path := filepath.Join(t.TempDir(), "loop.png")
	if err := ctx.TakeViewportScreenshot(path, "PNG"); err != nil {
		t.Fatalf("TakeViewportScreenshot() error = %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for ctx.ScreenshotInProgress() {
		if time.Now().After(deadline) {
			t.Fatal("capture never completed on the loop")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not written: %v", err)
	}
}
