// Package influxdb records bridge command timings in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. *Client
// implements bridge.Recorder: every resolved command becomes one point
//
//	bridge_command,command=<name>,status=ok|failed wait_ms=<f>,run_ms=<f>
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	b := bridge.New(bridge.Options{Recorder: client})
//
// # Error Handling
//
// Writes are asynchronous; batch failures are delivered to the SetOnError
// callback. Connection and health check errors are returned directly.
package influxdb
