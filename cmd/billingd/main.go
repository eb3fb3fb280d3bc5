// Command billingd runs the subscription lifecycle engine as a daemon: it
// schedules the renewal batch and billing issue detection jobs and keeps
// running until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/billingissue"
	"github.com/dmitrymomot/billingkit/pkg/catalog"
	"github.com/dmitrymomot/billingkit/pkg/config"
	"github.com/dmitrymomot/billingkit/pkg/gateway"
	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/pkg/renewal"
	"github.com/dmitrymomot/billingkit/pkg/schedule"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

type appConfig struct {
	Logger   logger.Config
	Renewal  renewal.Config
	Issues   billingissue.Config
	Schedule schedule.Config

	// StorageDriver selects the persistence backend: "postgres" or "memory".
	// Memory is for local development only; it loses state on restart.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.FromConfig(cfg.Logger, logger.WithAttr(slog.String("app", "billingd")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, cleanup, err := openStores(ctx, cfg.StorageDriver, log)
	if err != nil {
		return err
	}
	defer cleanup()

	cat, err := catalog.New(ctx, catalog.NewInMemSource(defaultPlans()...))
	if err != nil {
		return fmt.Errorf("failed to build plan catalog: %w", err)
	}
	log.InfoContext(ctx, "plan catalog loaded", "plans", len(cat.List()))

	gw := gateway.NewSandbox()
	processor := renewal.NewProcessor(stores.subs, stores.txs, gw, cfg.Renewal, renewal.WithLogger(log))
	detector := billingissue.NewDetector(stores.subs, stores.issues, cfg.Issues, billingissue.WithLogger(log))

	runner, err := schedule.New(
		func(ctx context.Context, asOf time.Time) error {
			_, err := processor.RunRenewalBatch(ctx, asOf)
			return err
		},
		func(ctx context.Context, asOf time.Time) error {
			_, err := detector.RunIssueDetection(ctx, asOf)
			return err
		},
		cfg.Schedule,
		schedule.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to build job runner: %w", err)
	}

	runner.Start()
	log.InfoContext(ctx, "billingd started",
		"storage", cfg.StorageDriver,
		"renewal_cron", cfg.Schedule.RenewalCron,
		"issue_cron", cfg.Schedule.IssueCron)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	runner.Stop(shutdownCtx)

	return nil
}

type storeSet struct {
	subs   subscription.Store
	txs    subscription.TransactionStore
	issues billingissue.Store
}

func openStores(ctx context.Context, driver string, log *slog.Logger) (storeSet, func(), error) {
	switch driver {
	case "memory":
		return storeSet{
			subs:   subscription.NewMemoryStore(),
			txs:    subscription.NewMemoryTransactionStore(),
			issues: billingissue.NewMemoryStore(),
		}, func() {}, nil
	case "postgres":
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return storeSet{}, nil, fmt.Errorf("failed to load postgres config: %w", err)
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return storeSet{}, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
			pool.Close()
			return storeSet{}, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return storeSet{
			subs:   subscription.NewPostgresStore(pool),
			txs:    subscription.NewPostgresTransactionStore(pool),
			issues: billingissue.NewPostgresStore(pool),
		}, pool.Close, nil
	default:
		return storeSet{}, nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// defaultPlans is the built-in catalog. Prices are in cents.
func defaultPlans() []catalog.Plan {
	return []catalog.Plan{
		{
			ID:          "free",
			Name:        "Free",
			Description: "For trying things out",
			Tier:        catalog.TierFree,
			Pricing: []catalog.Pricing{
				{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: 0, Currency: "USD"}},
				{Cycle: catalog.BillingCycleYearly, Price: catalog.Money{Amount: 0, Currency: "USD"}},
			},
			Limits: map[catalog.Resource]int64{
				catalog.ResourceProjects: 1,
				catalog.ResourceUsers:    1,
				catalog.ResourceAPIKeys:  1,
				catalog.ResourceStorage:  1,
			},
			Public: true,
		},
		{
			ID:          "basic",
			Name:        "Basic",
			Description: "For small teams",
			Tier:        catalog.TierBasic,
			Pricing: []catalog.Pricing{
				{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: 1900, Currency: "USD"}},
				{Cycle: catalog.BillingCycleYearly, Price: catalog.Money{Amount: 19000, Currency: "USD"}},
			},
			TrialDays: 14,
			Limits: map[catalog.Resource]int64{
				catalog.ResourceProjects: 10,
				catalog.ResourceUsers:    5,
				catalog.ResourceAPIKeys:  5,
				catalog.ResourceStorage:  50,
			},
			Features: []catalog.Feature{catalog.FeatureAPI},
			Public:   true,
		},
		{
			ID:          "pro",
			Name:        "Pro",
			Description: "For growing companies",
			Tier:        catalog.TierPro,
			Pricing: []catalog.Pricing{
				{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: 4900, Currency: "USD"}},
				{Cycle: catalog.BillingCycleYearly, Price: catalog.Money{Amount: 49000, Currency: "USD"}},
			},
			TrialDays: 14,
			Limits: map[catalog.Resource]int64{
				catalog.ResourceProjects: 100,
				catalog.ResourceUsers:    25,
				catalog.ResourceAPIKeys:  25,
				catalog.ResourceStorage:  500,
			},
			Features: []catalog.Feature{
				catalog.FeatureAPI,
				catalog.FeatureAnalytics,
				catalog.FeaturePrioritySupport,
			},
			Public: true,
		},
		{
			ID:          "enterprise",
			Name:        "Enterprise",
			Description: "For large organizations",
			Tier:        catalog.TierEnterprise,
			Pricing: []catalog.Pricing{
				{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: 19900, Currency: "USD"}},
				{Cycle: catalog.BillingCycleYearly, Price: catalog.Money{Amount: 199000, Currency: "USD"}},
			},
			Limits: map[catalog.Resource]int64{
				catalog.ResourceProjects:  catalog.Unlimited,
				catalog.ResourceUsers:     catalog.Unlimited,
				catalog.ResourceAPIKeys:   catalog.Unlimited,
				catalog.ResourceStorage:   catalog.Unlimited,
				catalog.ResourceBandwidth: catalog.Unlimited,
			},
			Features: []catalog.Feature{
				catalog.FeatureAPI,
				catalog.FeatureAnalytics,
				catalog.FeaturePrioritySupport,
				catalog.FeatureSSO,
				catalog.FeatureAuditLog,
			},
			Public: false,
		},
	}
}
