// Package gateway connects the door controller to the MQTT broker.
//
// Bridge owns the broker session. It subscribes to the space state topics
// and the optional sync trigger topic, forwards what it receives, and
// reconnects with a doubling delay (1s up to 60s by default). A session
// that drops within the initial delay counts as a failed attempt. After
// the configured number of consecutive failed attempts Run returns
// ErrBrokerUnavailable and leaves the restart decision to its supervisor.
//
// EventRouter maps controller events to outbound messages:
//
//	Horn activated      -> doorbell  "1", then "0" after the pulse hold
//	Solenoid activated  -> dooropen  "1", then "0" after the pulse hold
//	opening lock        -> lockstate "open"   (retained)
//	closing lock        -> lockstate "closed" (retained)
//
// Outbound messages go through a Publisher: either the Bridge's own
// session or CommandPublisher, which runs an external publish tool once
// per message.
package gateway
