package renewal

import (
	"log/slog"
	"time"
)

// Option configures optional Processor settings.
type Option func(*Processor)

// WithClock overrides the time source. Intended for tests that need a fixed "now".
func WithClock(clock func() time.Time) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}
