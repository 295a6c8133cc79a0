package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	// CommandMeasurement holds one point per resolved bridge command.
	CommandMeasurement = "bridge_command"
)

// Command status tag values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// RecordCommand writes a bridge_command point for a resolved command.
//
// It satisfies bridge.Recorder and is called on the host main thread, so it
// never blocks: the point is queued on the batched write API.
//
// Parameters:
//   - name: Automation operation name (e.g., "take_render_screenshot")
//   - wait: Time the command spent queued
//   - run: Time from execution start to resolution
//   - err: Operation or predicate failure, nil on success
func (c *Client) RecordCommand(name string, wait, run time.Duration, err error) {
	if !c.IsConnected() {
		return
	}
	c.writes.WritePoint(commandPoint(name, wait, run, err, time.Now()))
}

// commandPoint builds the bridge_command point.
//
//	bridge_command,command=get_cameras,status=ok wait_ms=0.4,run_ms=1.2
func commandPoint(name string, wait, run time.Duration, err error, at time.Time) *write.Point {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}

	return write.NewPoint(
		CommandMeasurement,
		map[string]string{
			"command": name,
			"status":  status,
		},
		map[string]interface{}{
			"wait_ms": durationMS(wait),
			"run_ms":  durationMS(run),
		},
		at,
	)
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
