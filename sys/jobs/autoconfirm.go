// Package jobs runs the periodic background work of the dispatch service
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"cleanbuddy-dispatch/sys/billing"

	"github.com/robfig/cron/v3"
)

const DefaultAutoConfirmSchedule = "@hourly"

// Sweeper completes the appointments of one tenant left awaiting confirmation
type Sweeper interface {
	Sweep(ctx context.Context, tenantID string, cutoff time.Duration) (*billing.SweepResult, error)
}

// TenantLister names the tenants that currently have appointments waiting for confirmation
type TenantLister interface {
	ListAwaitingTenantIDs(ctx context.Context) ([]string, error)
}

type Config struct {
	Logger  *log.Logger
	Tenants TenantLister
	Sweeper Sweeper

	// Standard cron spec or descriptor, defaults to hourly
	Schedule string

	// Bounds one run over all tenants
	Timeout time.Duration
}

// AutoConfirmRunner triggers the auto-confirm sweep for every tenant on a cron schedule.
// A run still in progress when the next one is due makes the next one skip.
type AutoConfirmRunner struct {
	logger  *log.Logger
	tenants TenantLister
	sweeper Sweeper
	timeout time.Duration
	cron    *cron.Cron
}

func NewAutoConfirmRunner(cfg *Config) (*AutoConfirmRunner, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultAutoConfirmSchedule
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	cronLogger := cron.PrintfLogger(cfg.Logger)
	r := &AutoConfirmRunner{
		logger:  cfg.Logger,
		tenants: cfg.Tenants,
		sweeper: cfg.Sweeper,
		timeout: timeout,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid auto-confirm schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *AutoConfirmRunner) Start() {
	r.cron.Start()
}

// Stop prevents new runs and returns a context done once the running one has finished
func (r *AutoConfirmRunner) Stop() context.Context {
	return r.cron.Stop()
}

func (r *AutoConfirmRunner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Printf("Error running auto-confirm: %s", err)
	}
}

// RunOnce sweeps every tenant with the tenant's own cutoff. A failing tenant is logged and
// does not stop the others.
func (r *AutoConfirmRunner) RunOnce(ctx context.Context) ([]*billing.SweepResult, error) {
	tenantIDs, err := r.tenants.ListAwaitingTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	results := make([]*billing.SweepResult, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		result, err := r.sweeper.Sweep(ctx, tenantID, 0)
		if err != nil {
			r.logger.Printf("Error sweeping tenant %s: %s", tenantID, err)
			continue
		}
		if result.Processed > 0 || result.Failed > 0 {
			r.logger.Printf("Auto-confirm for tenant %s: %d completed, %d failed", tenantID, result.Processed, result.Failed)
		}
		results = append(results, result)
	}
	return results, nil
}
