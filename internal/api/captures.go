package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nerrad567/dccutils-server/internal/bridge"
	"github.com/nerrad567/dccutils-server/internal/capture"
	"github.com/nerrad567/dccutils-server/internal/dcc"
)

// outputTimeLayout stamps synthesized output file names.
const outputTimeLayout = "2006-01-02 15-04-05"

// CaptureResponse is returned by the capture endpoints.
type CaptureResponse struct {
	File string `json:"file"`
}

// captureRequest describes one capture endpoint call.
type captureRequest struct {
	kind       capture.Kind
	renderer   string
	extension  string
	outputPath string

	// take starts the capture into the resolved output path.
	take func(outputPath string) error
}

func (s *Server) handleTakeViewportScreenshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	extension := q.Get("extension")

	s.runCapture(w, r, captureRequest{
		kind:       capture.KindViewportScreenshot,
		extension:  extension,
		outputPath: q.Get("output_path"),
		take: func(path string) error {
			return s.dcc.TakeViewportScreenshot(path, extension)
		},
	})
}

func (s *Server) handleTakeRenderScreenshot(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	useColorspace, err := boolParam(q, "use_colorspace", false)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	renderer, extension := q.Get("renderer"), q.Get("extension")

	s.runCapture(w, r, captureRequest{
		kind:       capture.KindRenderScreenshot,
		renderer:   renderer,
		extension:  extension,
		outputPath: q.Get("output_path"),
		take: func(path string) error {
			return s.dcc.TakeRenderScreenshot(renderer, path, extension, useColorspace)
		},
	})
}

func (s *Server) handleTakeViewportAnimation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	extension := q.Get("extension")

	s.runCapture(w, r, captureRequest{
		kind:       capture.KindViewportAnimation,
		extension:  extension,
		outputPath: q.Get("output_path"),
		take: func(path string) error {
			return s.dcc.TakeViewportAnimation(path, extension)
		},
	})
}

func (s *Server) handleTakeRenderAnimation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	useColorspace, err := boolParam(q, "use_colorspace", false)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	renderer, extension := q.Get("renderer"), q.Get("extension")

	s.runCapture(w, r, captureRequest{
		kind:       capture.KindRenderAnimation,
		renderer:   renderer,
		extension:  extension,
		outputPath: q.Get("output_path"),
		take: func(path string) error {
			return s.dcc.TakeRenderAnimation(renderer, path, extension, useColorspace)
		},
	})
}

// runCapture resolves the output path, takes the capture between a state
// push and pop, records the attempt and reports the file.
func (s *Server) runCapture(w http.ResponseWriter, r *http.Request, req captureRequest) {
	path, err := s.resolveOutputPath(req.outputPath, req.extension, req.kind.IsVideo())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	started := s.now()
	err = s.withSavedState(func() error {
		return s.awaitCapture(req.kind, path, req.take)
	})

	entry := &capture.Entry{
		Kind:       req.kind,
		Renderer:   req.renderer,
		Extension:  req.extension,
		File:       path,
		Status:     capture.StatusOK,
		StartedAt:  started,
		DurationMS: s.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		entry.Status = capture.StatusFailed
		entry.Error = err.Error()
	}
	s.recordCapture(r.Context(), entry)

	if err != nil {
		s.emit(EventCaptureFailed, entry)
		s.writeFailure(w, r, err)
		return
	}

	s.emit(EventCaptureCompleted, entry)
	writeJSON(w, http.StatusOK, CaptureResponse{File: path})
}

// withSavedState brackets fn with PushState and PopState. PopState runs
// whenever PushState succeeded, also when fn fails; fn's error takes
// precedence over a failing PopState.
func (s *Server) withSavedState(fn func() error) (err error) {
	if err := bridge.Exec(s.bridge, "push_state", s.dcc.PushState); err != nil {
		return err
	}
	defer func() {
		popErr := bridge.Exec(s.bridge, "pop_state", s.dcc.PopState)
		switch {
		case popErr == nil:
		case err == nil:
			err = popErr
		default:
			s.logger.Warn("restoring host state failed", "error", popErr)
		}
	}()
	return fn()
}

// awaitCapture starts a capture and, when bridged, holds the main loop
// until the host reports it finished.
func (s *Server) awaitCapture(kind capture.Kind, path string, take func(string) error) error {
	inProgress := s.dcc.ScreenshotInProgress
	if kind.IsVideo() {
		inProgress = s.dcc.MovieInProgress
	}

	_, err := bridge.CallUntil(s.bridge, "take_"+string(kind),
		func() (struct{}, error) {
			return struct{}{}, take(path)
		},
		func(struct{}) (bool, error) {
			if inProgress() {
				return false, nil
			}
			return true, dcc.LastCaptureError(s.dcc)
		},
	)
	return err
}

// resolveOutputPath returns outputPath when it names a file. Otherwise it
// builds "<dcc name>-<YYYY-MM-DD HH-MM-SS><suffix>" inside outputPath, or
// inside the system temp directory when outputPath is empty. The suffix is
// the one advertised for extension, else the first advertised suffix.
func (s *Server) resolveOutputPath(outputPath, extension string, isVideo bool) (string, error) {
	if outputPath != "" && !isDir(outputPath) {
		return outputPath, nil
	}

	extensions, err := bridge.Call(s.bridge, "get_extensions", func() ([]dcc.Extension, error) {
		return s.dcc.Extensions(isVideo)
	})
	if err != nil {
		return "", err
	}
	if len(extensions) == 0 {
		return "", dcc.ErrNoOutputExtensions
	}
	suffix := extensions[0].Suffix
	for _, e := range extensions {
		if e.Name == extension {
			suffix = e.Suffix
			break
		}
	}

	name, err := bridge.Call(s.bridge, "get_dcc_name", s.dcc.DCCName)
	if err != nil {
		return "", err
	}

	dir := outputPath
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s%s", name, s.now().Format(outputTimeLayout), suffix)), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// recordCapture stores entry in the capture history, if one is configured.
func (s *Server) recordCapture(ctx context.Context, entry *capture.Entry) {
	if s.captures == nil {
		return
	}
	if err := s.captures.Record(ctx, entry); err != nil {
		s.logger.Warn("recording capture failed", "file", entry.File, "error", err)
	}
}

// handleListCaptures returns capture history, most recent first.
//
// Query parameters: limit (default 50, max 500), kind, status.
func (s *Server) handleListCaptures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := capture.Filter{
		Kind:   capture.Kind(q.Get("kind")),
		Status: capture.Status(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeValidationError(w, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, capture.MaxLimit)
	}

	if s.captures == nil {
		writeJSON(w, http.StatusOK, map[string]any{"captures": []capture.Entry{}, "count": 0})
		return
	}

	entries, err := s.captures.List(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"captures": entries, "count": len(entries)})
}
