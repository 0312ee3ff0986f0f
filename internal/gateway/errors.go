package gateway

import "errors"

var (
	// ErrBrokerUnavailable is returned by Bridge.Run after the reconnect
	// policy is exhausted. The supervisor restarts the bridge from scratch.
	ErrBrokerUnavailable = errors.New("gateway: mqtt broker unavailable")

	// ErrNotConnected is returned by Bridge.Publish while no broker session is up.
	ErrNotConnected = errors.New("gateway: no broker session")
)
