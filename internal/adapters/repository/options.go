package repository

import "time"

// DefaultIdleTimeout closes sessions after 12 hours without a drink.
const DefaultIdleTimeout = 12 * time.Hour

// Options configures Store implementations.
type Options struct {
	IdleTimeout time.Duration
}

// Option applies a configuration option to a Store.
type Option func(*Options)

// WithIdleTimeout sets how long an open session may go without activity.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.IdleTimeout = d
		}
	}
}

// ApplyOptions resolves opts over the defaults.
func ApplyOptions(opts ...Option) Options {
	o := Options{IdleTimeout: DefaultIdleTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IdleClosedAt is when an idle session is considered finished.
func (o Options) IdleClosedAt(last time.Time) time.Time {
	return last.Add(o.IdleTimeout)
}
