package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the cron expressions for the two background jobs.
type Config struct {
	RenewalCron string `env:"SCHEDULE_RENEWAL_CRON" envDefault:"0 2 * * *"`
	IssueCron   string `env:"SCHEDULE_ISSUE_CRON" envDefault:"@hourly"`
}

// JobFunc is a background job entry point invoked with the tick time.
// Errors are logged by the runner and never propagated to the scheduler.
type JobFunc func(ctx context.Context, asOf time.Time) error

// Runner drives the engine's background jobs on fixed schedules. Each trigger
// is a task boundary: nothing in any request path waits on a job, and a
// failing run only logs; the next tick fires regardless.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// Option configures optional Runner settings.
type Option func(*Runner)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New builds a runner with the renewal batch and issue detection jobs
// registered on their configured schedules.
func New(renewalJob, issueJob JobFunc, cfg Config, opts ...Option) (*Runner, error) {
	r := &Runner{
		cron:   cron.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if renewalJob != nil {
		if _, err := r.cron.AddFunc(cfg.RenewalCron, r.wrap("renewal_batch", renewalJob)); err != nil {
			return nil, err
		}
	}
	if issueJob != nil {
		if _, err := r.cron.AddFunc(cfg.IssueCron, r.wrap("issue_detection", issueJob)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Runner) wrap(name string, job JobFunc) func() {
	return func() {
		asOf := time.Now().UTC()
		r.logger.Info("scheduled job started", slog.String("job", name), slog.Time("as_of", asOf))
		if err := job(context.Background(), asOf); err != nil {
			r.logger.Error("scheduled job failed",
				slog.String("job", name),
				slog.String("error", err.Error()))
			return
		}
		r.logger.Info("scheduled job finished", slog.String("job", name))
	}
}

// Start begins firing jobs on their schedules. Non-blocking.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish or the context
// to expire, whichever comes first.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
