package api

import (
	"net/http"

	"github.com/nerrad567/dccutils-server/internal/bridge"
	"github.com/nerrad567/dccutils-server/internal/dcc"
)

// HomeResponse identifies the host application.
type HomeResponse struct {
	DCCName        string `json:"dcc_name"`
	DCCVersion     string `json:"dcc_version"`
	CurrentProject string `json:"current_project"`
}

// handleHome returns the host name, version and open project.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	name, err := bridge.Call(s.bridge, "get_dcc_name", s.dcc.DCCName)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	version, err := bridge.Call(s.bridge, "get_dcc_version", s.dcc.DCCVersion)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	project, err := bridge.Call(s.bridge, "get_current_project_path", s.dcc.CurrentProjectPath)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HomeResponse{
		DCCName:        name,
		DCCVersion:     version,
		CurrentProject: project,
	})
}

func (s *Server) handleGetCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := bridge.Call(s.bridge, "get_cameras", s.dcc.Cameras)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cameras))
}

func (s *Server) handleSetCamera(w http.ResponseWriter, r *http.Request) {
	camera, err := requiredParam(r.URL.Query(), "camera")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := bridge.Exec(s.bridge, "set_camera", func() error {
		return s.dcc.SetCamera(camera)
	}); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	s.emit(EventCameraChanged, map[string]string{"camera": camera})
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetRenderers(w http.ResponseWriter, r *http.Request) {
	renderers, err := bridge.Call(s.bridge, "get_available_renderers", s.dcc.AvailableRenderers)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(renderers))
}

func (s *Server) handleGetExtensions(w http.ResponseWriter, r *http.Request) {
	isVideo, err := boolParam(r.URL.Query(), "is_video", false)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	extensions, err := bridge.Call(s.bridge, "get_extensions", func() ([]dcc.Extension, error) {
		return s.dcc.Extensions(isVideo)
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(extensions))
}

func (s *Server) handleGetCurrentColorSpace(w http.ResponseWriter, r *http.Request) {
	colorSpace, err := bridge.Call(s.bridge, "get_current_color_space", s.dcc.CurrentColorSpace)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, colorSpace)
}

func (s *Server) handleSetCurrentColorSpace(w http.ResponseWriter, r *http.Request) {
	colorSpace, err := requiredParam(r.URL.Query(), "color_space")
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := bridge.Exec(s.bridge, "set_current_color_space", func() error {
		return s.dcc.SetCurrentColorSpace(colorSpace)
	}); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	s.emit(EventColorSpaceChanged, map[string]string{"color_space": colorSpace})
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleGetSequences(seq dcc.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sequences, err := bridge.Call(s.bridge, "get_sequences", seq.Sequences)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(sequences))
	}
}

func (s *Server) handleSetSequence(seq dcc.Sequencer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sequence, err := requiredParam(r.URL.Query(), "sequence")
		if err != nil {
			writeValidationError(w, err.Error())
			return
		}

		if err := bridge.Exec(s.bridge, "set_sequence", func() error {
			return seq.SetSequence(sequence)
		}); err != nil {
			s.writeFailure(w, r, err)
			return
		}

		s.emit(EventSequenceChanged, map[string]string{"sequence": sequence})
		writeJSON(w, http.StatusOK, nil)
	}
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
