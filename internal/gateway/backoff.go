package gateway

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bitlair/doorduino-gateway/internal/infrastructure/config"
)

// ReconnectPolicy describes broker reconnection: the delay starts at
// Initial, doubles after each failed attempt up to Max, and the bridge
// gives up after Attempts consecutive failures.
type ReconnectPolicy struct {
	Initial  time.Duration
	Max      time.Duration
	Attempts int
}

// NewReconnectPolicy builds a policy from the mqtt.reconnect section.
func NewReconnectPolicy(cfg config.MQTTReconnectConfig) ReconnectPolicy {
	return ReconnectPolicy{
		Initial:  time.Duration(cfg.InitialDelay) * time.Second,
		Max:      time.Duration(cfg.MaxDelay) * time.Second,
		Attempts: cfg.MaxAttempts,
	}
}

// BackOff returns a fresh delay sequence. It yields Attempts-1 delays,
// one between each pair of attempts, then backoff.Stop.
func (p ReconnectPolicy) BackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	exp.MaxInterval = p.Max
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(retries)) //nolint:gosec // clamped above
}
