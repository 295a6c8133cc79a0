package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/logging"
)

// WebSocket frame types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	// subscriberBuffer is the number of frames queued per subscriber before
	// further events for it are dropped.
	subscriberBuffer = 256

	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 10 * time.Second
)

// WSMessage is the envelope of every frame sent to a client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload of subscribe and unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is a frame received from a client.
type wsRequest struct {
	Type    string             `json:"type"`
	ID      string             `json:"id"`
	Payload WSSubscribePayload `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is the CORS middleware's job.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans server events out to WebSocket subscribers.
type Hub struct {
	logger *logging.Logger

	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// Subscriber is one client connection and the event kinds it follows.
//
// Frames are queued on out and written by the connection's writer
// goroutine. out is never closed; done signals that the subscriber left.
type Subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte

	done     chan struct{}
	doneOnce sync.Once

	mu    sync.RWMutex
	kinds map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// newSubscriber creates a subscriber following kinds. conn may be nil in
// tests that only inspect queued frames.
func (h *Hub) newSubscriber(conn *websocket.Conn, kinds ...string) *Subscriber {
	s := &Subscriber{
		hub:   h,
		conn:  conn,
		out:   make(chan []byte, subscriberBuffer),
		done:  make(chan struct{}),
		kinds: make(map[string]struct{}, len(kinds)),
	}
	for _, k := range kinds {
		s.kinds[k] = struct{}{}
	}
	return s
}

// Run blocks until ctx is cancelled, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.leave()
	}
}

// Register adds s to the hub.
func (h *Hub) Register(s *Subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes s from the hub. Calling it twice is harmless.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	delete(h.subscribers, s)
	n := len(h.subscribers)
	h.mu.Unlock()

	s.leave()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast queues an event frame for every subscriber following kind.
// Subscribers whose buffer is full miss the event.
func (h *Hub) Broadcast(kind string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "event", kind, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		if s.follows(kind) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(data)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// handleWebSocket upgrades the request to an event stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sub := s.hub.newSubscriber(conn)
	s.hub.Register(sub)

	pingInterval, pongWait := wsTimings(s.wsCfg)
	go sub.writeLoop(pingInterval, pongWait)
	go sub.readLoop(int64(s.wsCfg.MaxMessageSize), pingInterval+pongWait)
}

// readLoop handles client frames until the connection fails. Any frame,
// not only a pong, extends the read deadline.
func (s *Subscriber) readLoop(limit int64, idle time.Duration) {
	defer s.hub.Unregister(s)

	if limit > 0 {
		s.conn.SetReadLimit(limit)
	}
	extend := func() error { return s.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend() //nolint:errcheck // Best-effort deadline
	s.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		extend() //nolint:errcheck // Best-effort deadline
		s.handle(data)
	}
}

// writeLoop writes queued frames and keepalive pings until the subscriber
// leaves or a write fails.
func (s *Subscriber) writeLoop(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // Write error reported below
		return s.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case data := <-s.out:
			if write(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if write(websocket.PingMessage, nil) != nil {
				return
			}
		case <-s.done:
			write(websocket.CloseMessage, nil) //nolint:errcheck // Best-effort close frame
			return
		}
	}
}

// wsTimings returns the configured ping interval and pong timeout, with
// 30s and 10s for unset values.
func wsTimings(cfg config.WebSocketConfig) (pingInterval, pongWait time.Duration) {
	pingInterval = time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pongWait = time.Duration(cfg.PongTimeout) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	return pingInterval, pongWait
}

// handle answers one client frame.
func (s *Subscriber) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		for _, ch := range req.Payload.Channels {
			if _, ok := eventKinds[ch]; !ok {
				s.reply(req.ID, WSTypeError, map[string]string{"message": "unknown channel: " + ch})
				return
			}
		}
		s.setKinds(req.Payload.Channels, true)
		s.hub.logger.Debug("websocket client subscribed", "channels", req.Payload.Channels)
		s.reply(req.ID, WSTypeResponse, map[string]any{"subscribed": req.Payload.Channels})
	case WSTypeUnsubscribe:
		s.setKinds(req.Payload.Channels, false)
		s.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": req.Payload.Channels})
	case WSTypePing:
		s.reply(req.ID, WSTypePong, nil)
	default:
		s.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type: " + req.Type})
	}
}

func (s *Subscriber) setKinds(kinds []string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range kinds {
		if on {
			s.kinds[k] = struct{}{}
		} else {
			delete(s.kinds, k)
		}
	}
}

func (s *Subscriber) follows(kind string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.kinds[kind]
	return ok
}

// reply queues a response frame.
func (s *Subscriber) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	s.deliver(data)
}

// deliver queues data unless the subscriber left or its buffer is full.
func (s *Subscriber) deliver(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- data:
	default:
	}
}

// leave marks the subscriber gone; its writer sends a close frame and
// exits.
func (s *Subscriber) leave() {
	s.doneOnce.Do(func() { close(s.done) })
}
