// Package metrics provides InfluxDB connectivity for the flipdot server.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// This package handles time-series data for:
//   - Per-frame render duration and commit outcome per display
//   - Control loop tick duration
//
// # Usage
//
//	client, err := metrics.Connect(cfg.Metrics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteCommit("front", 3*time.Millisecond, nil)
//
// Writes are batched and flushed asynchronously; a slow or absent InfluxDB
// never blocks the control loop.
package metrics
