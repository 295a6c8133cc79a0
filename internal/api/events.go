package api

// Event kinds broadcast to WebSocket subscribers and published to MQTT.
const (
	EventCaptureCompleted  = "capture.completed"
	EventCaptureFailed     = "capture.failed"
	EventCameraChanged     = "camera.changed"
	EventColorSpaceChanged = "color_space.changed"
	EventSequenceChanged   = "sequence.changed"
)

// eventKinds are the channels a WebSocket client may subscribe to.
var eventKinds = map[string]struct{}{
	EventCaptureCompleted:  {},
	EventCaptureFailed:     {},
	EventCameraChanged:     {},
	EventColorSpaceChanged: {},
	EventSequenceChanged:   {},
}

// emit fans an event out to the WebSocket hub and, when configured, the
// event bus. Bus failures are logged and never fail the request.
func (s *Server) emit(kind string, payload any) {
	s.hub.Broadcast(kind, payload)

	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(kind, payload); err != nil {
		s.logger.Warn("publishing event failed", "event", kind, "error", err)
	}
}
