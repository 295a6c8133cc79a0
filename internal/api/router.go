package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/dccutils-server/internal/dcc"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)

	// Automation endpoints, GET with query parameters.
	r.Get("/", s.handleHome)
	r.Get("/get-cameras", s.handleGetCameras)
	r.Get("/set-camera", s.handleSetCamera)
	r.Get("/get-renderers", s.handleGetRenderers)
	r.Get("/get-extensions", s.handleGetExtensions)
	r.Get("/get-current-color-space", s.handleGetCurrentColorSpace)
	r.Get("/set-current-color-space", s.handleSetCurrentColorSpace)
	r.Get("/take-viewport-screenshot", s.handleTakeViewportScreenshot)
	r.Get("/take-render-screenshot", s.handleTakeRenderScreenshot)
	r.Get("/take-viewport-animation", s.handleTakeViewportAnimation)
	r.Get("/take-render-animation", s.handleTakeRenderAnimation)

	// Sequence endpoints exist only for hosts with a sequence editor.
	if seq, ok := s.dcc.(dcc.Sequencer); ok {
		r.Get("/get-sequences", s.handleGetSequences(seq))
		r.Get("/set-sequence", s.handleSetSequence(seq))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/captures", s.handleListCaptures)
		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

// wsPath returns the WebSocket route below /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"mode":    string(s.bridge.Mode()),
	})
}
