// Package spacestate derives the hackerspace's open/closed state from a
// set of MQTT topics and keeps the door controller informed of it.
//
// The space is open if any tracked topic's last value is "open"; any other
// value, including one never received, counts as closed. Values are
// trimmed of surrounding whitespace before they are stored.
//
// # Pushing
//
// Aggregator pushes the derived state as a "spacestate open" or
// "spacestate closed" command on every inbound message, changed or not,
// and after every controller restart, because the controller loses the
// state on reset. At most one push is in flight; triggers arriving during
// a push collapse into one follow-up push that re-reads the state. A
// failed push is logged and counted in Stats, then left for the next
// trigger.
//
// # Thread Safety
//
// TopicState is safe for concurrent use. Aggregator's Observe, HandleEvent
// and Notify may be called from any goroutine and never block on the
// device; pushes run on a goroutine the aggregator owns. SetLogger and
// SetRecorder must be called before the first trigger.
//
// Example usage:
//
//	state := spacestate.NewTopicState()
//	agg := spacestate.NewAggregator(state, device)
//	agg.SetLogger(logger)
//
//	// From the MQTT subscription callback:
//	agg.Observe(ctx, "bitlair/state", "open")
//
//	// From the serial monitor's event hook:
//	agg.HandleEvent(ctx, ev)
//
//	// On shutdown, let the last push finish:
//	agg.Wait()
package spacestate
