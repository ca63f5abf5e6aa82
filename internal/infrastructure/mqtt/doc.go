// Package mqtt provides broker connectivity for the Interfono bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored automatically on reconnect
//   - Last Will and Testament (LWT) pointed at the device availability topic
//
// The device lifecycle (internal/doorbell) owns what gets published where;
// this package only guarantees transport: ordered publish and delivery
// within one connection, and a callback on every (re)connect so broker-held
// retained state can be reasserted.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Will{
//	    Topic:   "home/doorbell/availability",
//	    Payload: "offline",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("home/doorbell/door_button/command", 1,
//	    func(topic string, payload []byte) error {
//	        return device.HandleMessage(topic, payload)
//	    })
package mqtt
