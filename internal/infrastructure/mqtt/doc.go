// Package mqtt publishes dccutils server events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Event publishing (camera, color space and sequence changes, captures)
//   - Retained online/offline status with a Last Will and Testament
//
// # Topics
//
//	dccutils/{client_id}/status         retained, {"status":"online"|"offline",...}
//	dccutils/{client_id}/event/{kind}   JSON event payloads, not retained
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishEvent("capture.completed", entry)
package mqtt
