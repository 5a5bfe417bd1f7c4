package announcer

import (
	"usd/internal/metrics"
	"usd/internal/transport"
)

type Option func(*Announcer)

// WithTransport replaces the multicast transport, tests use an in-memory hub
func WithTransport(t transport.Transport) Option {
	return func(a *Announcer) {
		a.transport = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Announcer) {
		a.metrics = m
	}
}
