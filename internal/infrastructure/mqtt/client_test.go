package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration. Only the integration
// tests need a broker listening on it.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "dccutils-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// ─── Topics ─────────────────────────────────────────────────────────

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", Topics{}.Status("ws12"), "dccutils/ws12/status"},
		{"event", Topics{}.Event("ws12", "capture.completed"), "dccutils/ws12/event/capture.completed"},
		{"all events", Topics{}.AllEvents("ws12"), "dccutils/ws12/event/#"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// ─── Options ────────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "artist", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "dccutils-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "artist" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || !opts.CleanSession {
		t.Error("expected auto-reconnect and clean session")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig set without TLS enabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
		t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS config with minimum version TLS 1.2")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "dccutils-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("expected retained last will")
	}
	if opts.WillTopic != "dccutils/dccutils-test/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "unexpected_disconnect" {
		t.Errorf("will payload = %v", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	var online, offline map[string]string
	if err := json.Unmarshal([]byte(buildOnlinePayload("ws12")), &online); err != nil {
		t.Fatalf("online payload: %v", err)
	}
	if err := json.Unmarshal([]byte(buildOfflinePayload("ws12")), &offline); err != nil {
		t.Fatalf("offline payload: %v", err)
	}

	if online["status"] != "online" || online["client_id"] != "ws12" {
		t.Errorf("online = %v", online)
	}
	if _, ok := online["reason"]; ok {
		t.Error("online payload should not carry a reason")
	}
	if offline["status"] != "offline" || offline["reason"] != "graceful_shutdown" {
		t.Errorf("offline = %v", offline)
	}
	if _, err := time.Parse(time.RFC3339, online["timestamp"]); err != nil {
		t.Errorf("timestamp %q: %v", online["timestamp"], err)
	}
}

// ─── Publish validation ─────────────────────────────────────────────

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "dccutils/t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "dccutils/t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "dccutils/t", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishEvent_EncodingError(t *testing.T) {
	c := &Client{cfg: testConfig()}

	err := c.PublishEvent("bad", map[string]any{"ch": make(chan int)})
	if !errors.Is(err, ErrPublishFailed) {
		t.Fatalf("PublishEvent() error = %v, want ErrPublishFailed", err)
	}
	if !strings.Contains(err.Error(), "bad event") {
		t.Errorf("error %q does not name the event kind", err)
	}
}

func TestPublishEvent_NotConnected(t *testing.T) {
	c := &Client{cfg: testConfig()}

	if err := c.PublishEvent("camera.changed", map[string]string{"camera": "persp"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishEvent() error = %v, want ErrNotConnected", err)
	}
}

// ─── Lifecycle without a broker ─────────────────────────────────────

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := &Client{cfg: testConfig()}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestCallbacks(t *testing.T) {
	c := &Client{cfg: testConfig()}

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })

	boom := errors.New("connection reset")
	c.handleDisconnect(boom)

	if lost != boom {
		t.Errorf("disconnect callback got %v, want %v", lost, boom)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
}
