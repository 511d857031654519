// Package mqtt provides MQTT client connectivity for agent2mqtt.
//
// This package manages:
//   - Single-attempt connections with a clean session and bounded keep-alive
//   - Topic subscriptions delivered as one ordered message stream
//   - Connection-loss notification for caller-driven reconnection
//   - Fire-and-forget publishing
//
// # Architecture
//
// The bridge sits between a remote MQTT broker and the local miio agent:
//
//	remote clients ↔ MQTT broker ↔ agent2mqtt ↔ miio_agent socket
//
// paho's automatic reconnect is disabled. The broker manager in
// internal/broker watches ConnectionLost and drives Connect/Subscribe itself
// so that a reconnected session is never left without its subscription.
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	if err := client.Subscribe(ctx, mqtt.TopicCommand, mqtt.QoSAtMostOnce); err != nil {
//	    return err
//	}
//	for msg := range client.Messages() {
//	    fmt.Println(msg.Topic, string(msg.Payload))
//	}
package mqtt
