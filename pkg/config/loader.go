package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when Load receives a nil target.
	ErrNilPointer = errors.New("config: nil pointer provided")
	// ErrFailedToParse wraps env parsing failures.
	ErrFailedToParse = errors.New("config: failed to parse environment variables")

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into the provided configuration struct
// based on `env` field tags. A .env file in the working directory is loaded
// once per process before the first parse; its absence is not an error.
//
// Example:
//
//	type RenewalConfig struct {
//		Concurrency   int           `env:"RENEWAL_CONCURRENCY" envDefault:"4"`
//		ChargeTimeout time.Duration `env:"RENEWAL_CHARGE_TIMEOUT" envDefault:"30s"`
//	}
//
//	var cfg RenewalConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file might not exist and that's ok.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrFailedToParse, err)
	}
	return nil
}
