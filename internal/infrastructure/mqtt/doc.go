// Package mqtt provides MQTT client connectivity for the flipdot server.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The server publishes display state and system status so dashboards and
// home-automation setups can observe the signs without speaking the TCP
// protocol. The client is publish-only; nothing on the broker drives the
// displays.
//
//	flipdot server → MQTT Broker → observers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DisplayState("front")
//	client.PublishRetained(topic, payload)
package mqtt
