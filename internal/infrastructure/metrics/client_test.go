package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mezgrman/flipdot/internal/infrastructure/config"
	"github.com/Mezgrman/flipdot/internal/infrastructure/metrics"
)

// fakeInflux serves the two endpoints the client touches: ping and write.
func fakeInflux(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var writes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			writes.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, &writes
}

func testConfig(url string) config.MetricsConfig {
	return config.MetricsConfig{
		Enabled:       true,
		URL:           url,
		Token:         "flipdot-dev-token",
		Org:           "flipdot",
		Bucket:        "metrics",
		BatchSize:     1, // flush every point for test feedback
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := metrics.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should return error when disabled")
	}
	if !errors.Is(err, metrics.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_InvalidURL(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:59999") // Non-existent port

	_, err := metrics.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should fail for unreachable server")
	}
	if !errors.Is(err, metrics.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndWrite(t *testing.T) {
	srv, writes := fakeInflux(t)

	client, err := metrics.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	client.WriteCommit("front", 3*time.Millisecond, nil)
	client.WriteConfigApplied("front", "backlight", nil)
	client.WriteTick(12 * time.Millisecond)
	client.Flush()

	if writes.Load() == 0 {
		t.Error("no write requests reached the server")
	}
}

func TestHealthCheck(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := metrics.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteAfterCloseIsSilent(t *testing.T) {
	srv, _ := fakeInflux(t)

	client, err := metrics.Connect(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Writes after close must be dropped, not panic.
	client.WriteTick(time.Millisecond)
	client.Flush()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, metrics.ErrNotConnected) {
		t.Errorf("HealthCheck() after close = %v, want ErrNotConnected", err)
	}
}
