package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps message payloads at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to an arbitrary topic. Server code goes through
// PublishEvent; Publish is the raw path it builds on. Payloads over 1MB and
// QoS above 2 are rejected before touching the broker.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishEvent publishes v as JSON on the event topic for kind, using the
// configured QoS. Events are never retained.
//
// Example:
//
//	err := client.PublishEvent("camera.changed", map[string]string{"camera": "persp"})
func (c *Client) PublishEvent(kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding %s event: %w", ErrPublishFailed, kind, err)
	}
	return c.Publish(Topics{}.Event(c.cfg.Broker.ClientID, kind), payload, byte(c.cfg.QoS), false)
}
