// Package mqtt provides MQTT client connectivity for the panel service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The service publishes retained panel state and availability to the
// broker and accepts LED/power commands from it, so dashboards and
// automations integrate without talking SICP themselves.
//
//	SICP panels ↔ sicpd ↔ MQTT Broker ↔ consumers
//
// # Security Considerations
//
//   - TLS should be enabled for production deployments (cfg.Broker.TLS)
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
//	// Subscribe to panel commands
//	err = client.Subscribe(client.Topics().AllPanelCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish state
//	client.PublishRetained(client.Topics().PanelState("lobby"), payload)
package mqtt
