// Package mqtt provides the broker connection used by the doorduino gateway.
//
// This package manages:
//   - A single broker session per Client (no built-in reconnect)
//   - Message publishing with QoS and retain flags
//   - Topic subscriptions with wildcard validation
//   - Retained online/offline availability with Last Will and Testament
//
// # Reconnection
//
// paho's automatic reconnect is disabled. When a session ends, Done is
// closed and the gateway's bridge loop dials a fresh Client under its own
// backoff policy, then re-subscribes. This gives the gateway a definite
// point at which it gives up and lets the process supervisor restart it.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Topics.Status)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe("bitlair/state/+", 1, func(topic string, payload []byte) error {
//	    return nil
//	})
//
//	<-client.Done()
package mqtt
