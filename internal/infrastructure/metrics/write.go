package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteCommit records one frame commit for a display.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - displayID: The display that was committed to
//   - renderTime: How long rendering the frame took
//   - commitErr: nil for a successful commit
func (c *Client) WriteCommit(displayID string, renderTime time.Duration, commitErr error) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"frame_commit",
		map[string]string{
			"display": displayID,
		},
		map[string]interface{}{
			"render_ms": float64(renderTime.Microseconds()) / 1000.0,
			"success":   commitErr == nil,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConfigApplied records a hardware configuration change.
//
// Parameters:
//   - displayID: The display whose option changed
//   - key: The configuration option name
//   - applyErr: nil if the hardware accepted the change
func (c *Client) WriteConfigApplied(displayID, key string, applyErr error) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"config_applied",
		map[string]string{
			"display": displayID,
			"option":  key,
		},
		map[string]interface{}{
			"success": applyErr == nil,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteTick records the duration of one control loop pass.
//
// A tick consistently approaching the loop interval means the serial bus
// or a renderer is too slow for the configured display count.
func (c *Client) WriteTick(took time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scheduler_tick",
		nil,
		map[string]interface{}{
			"duration_ms": float64(took.Microseconds()) / 1000.0,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
