package subscription

import (
	"log/slog"
	"time"
)

// ServiceOption configures optional Service settings.
type ServiceOption func(*Service)

// WithClock overrides the time source. Intended for tests that need a fixed "now".
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
