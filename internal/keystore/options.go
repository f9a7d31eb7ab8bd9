package keystore

import (
	"time"

	"go.uber.org/zap"
)

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type saveOptions struct {
	expiry *time.Time
	ttl    time.Duration
}

type SaveOption func(*saveOptions)

// WithExpiry sets an absolute expiry on the entry.
func WithExpiry(t time.Time) SaveOption {
	return func(o *saveOptions) { o.expiry = &t }
}

// WithTTL sets the expiry relative to the time of the save.
func WithTTL(d time.Duration) SaveOption {
	return func(o *saveOptions) { o.ttl = d }
}
