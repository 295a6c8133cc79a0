package mqtt

import "fmt"

// TopicPrefix is the root of every topic the server publishes.
const TopicPrefix = "dccutils"

// Topics provides builders for dccutils MQTT topics. Every topic is scoped
// by the client ID so several hosts can share a broker.
//
//	mqtt.Topics{}.Event("maya-ws12", "capture.completed")
//	// Returns: "dccutils/maya-ws12/event/capture.completed"
type Topics struct{}

// Status returns the retained online/offline status topic.
//
// Example: dccutils/maya-ws12/status
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, clientID)
}

// Event returns the topic for one event kind.
//
// Example: dccutils/maya-ws12/event/camera.changed
func (Topics) Event(clientID, kind string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefix, clientID, kind)
}

// AllEvents returns a wildcard matching every event of one server.
//
// Example: dccutils/maya-ws12/event/#
func (Topics) AllEvents(clientID string) string {
	return fmt.Sprintf("%s/%s/event/#", TopicPrefix, clientID)
}
