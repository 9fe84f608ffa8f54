package mqtt

import (
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Mezgrman/flipdot/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "flipdot-test",
			TLS:      false,
		},
		QoS: 1,
	}
}

// disconnectedClient returns a Client that was never connected.
func disconnectedClient() *Client {
	return &Client{
		client: pahomqtt.NewClient(pahomqtt.NewClientOptions()),
		cfg:    testConfig(),
	}
}

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain broker URL", func(t *testing.T) {
		opts := buildClientOptions(testConfig())
		if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
			t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
		}
		if opts.ClientID != "flipdot-test" {
			t.Errorf("ClientID = %q, want flipdot-test", opts.ClientID)
		}
	})

	t.Run("tls broker URL", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		opts := buildClientOptions(cfg)
		if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:1883" {
			t.Errorf("broker URL = %q, want ssl://127.0.0.1:1883", got)
		}
	})

	t.Run("credentials applied", func(t *testing.T) {
		cfg := testConfig()
		cfg.Auth.Username = "signs"
		cfg.Auth.Password = "hunter2"
		opts := buildClientOptions(cfg)
		if opts.Username != "signs" || opts.Password != "hunter2" {
			t.Errorf("credentials = %q/%q, want signs/hunter2", opts.Username, opts.Password)
		}
	})
}

func TestConfigureLWT(t *testing.T) {
	opts := pahomqtt.NewClientOptions()
	configureLWT(opts, "flipdot-test")

	if opts.WillTopic != "flipdot/system/status" {
		t.Errorf("WillTopic = %q, want flipdot/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
	if !strings.Contains(string(opts.WillPayload), `"status":"offline"`) {
		t.Errorf("WillPayload = %s, want offline status", opts.WillPayload)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("flipdot-test")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "flipdot-test") {
		t.Errorf("online payload = %s", online)
	}

	offline := buildOfflinePayload("flipdot-test")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}

	if err := c.Publish("flipdot/x", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad QoS error = %v, want ErrInvalidQoS", err)
	}

	oversized := make([]byte, maxPayloadSize+1)
	if err := c.Publish("flipdot/x", oversized, 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized payload error = %v, want ErrPublishFailed", err)
	}

	if err := c.Publish("flipdot/x", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish error = %v, want ErrNotConnected", err)
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	if got := topics.DisplayState("front"); got != "flipdot/display/front/state" {
		t.Errorf("DisplayState = %q", got)
	}
	if got := topics.DisplayCommit("front"); got != "flipdot/display/front/commit" {
		t.Errorf("DisplayCommit = %q", got)
	}
	if got := topics.SystemStatus(); got != "flipdot/system/status" {
		t.Errorf("SystemStatus = %q", got)
	}
}

func TestCloseNeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
