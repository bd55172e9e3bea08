// Package mqtt provides MQTT client connectivity for Minihub Core.
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
// Minihub uses MQTT to talk to external devices: discovery announcements
// and state reports flow in, commands flow out. The broker decouples the
// hub from device firmware.
//
//	Minihub Core ↔ MQTT Broker ↔ Devices
//
// # Security Considerations
//
//   - TLS is recommended for non-local deployments (cfg.Broker.TLS=true)
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
//	// Subscribe to all device state reports
//	err = client.Subscribe(mqtt.Topics{}.AllEntityStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.EntityCommand("light.kitchen")
//	client.Publish(topic, []byte(`{"service":"turn_on"}`), 1, false)
package mqtt
