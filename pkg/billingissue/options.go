package billingissue

import (
	"log/slog"
	"time"
)

// Option configures optional Detector settings.
type Option func(*Detector)

// WithClock overrides the time source. Intended for tests that need a fixed "now".
func WithClock(clock func() time.Time) Option {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}
