package renewal

import "time"

// Config holds the renewal processor's tunables.
//
// RetryBackoff defaults to 24 hours (retry next day) and schedules the next
// charge attempt after a failed renewal.
type Config struct {
	Concurrency     int           `env:"RENEWAL_CONCURRENCY" envDefault:"4"`
	ChargeTimeout   time.Duration `env:"RENEWAL_CHARGE_TIMEOUT" envDefault:"30s"`
	RetryBackoff    time.Duration `env:"RENEWAL_RETRY_BACKOFF" envDefault:"24h"`
	ConflictRetries int           `env:"RENEWAL_CONFLICT_RETRIES" envDefault:"3"`
}

// withDefaults fills zero values so a zero Config is usable.
func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.ChargeTimeout <= 0 {
		c.ChargeTimeout = 30 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 24 * time.Hour
	}
	if c.ConflictRetries <= 0 {
		c.ConflictRetries = 3
	}
	return c
}
