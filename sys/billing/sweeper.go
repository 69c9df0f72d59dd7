package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/res/store/loader"
)

const sweepLockTTL = 10 * time.Minute

type SweepResult struct {
	TenantID  string
	Cutoff    time.Duration
	Processed int
	Failed    int

	// Skipped is set when another sweep of the tenant holds the lock
	Skipped bool
}

// Sweep completes every AWAITING_CONFIRMATION appointment of the tenant whose cleaner
// confirmation is older than the cutoff. A zero cutoff falls back to the tenant setting,
// then to the service default. Failures are logged per appointment and never retried here.
func (s *Service) Sweep(ctx context.Context, tenantID string, cutoff time.Duration) (*SweepResult, error) {
	result := &SweepResult{TenantID: tenantID}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "sweep:"+tenantID, sweepLockTTL)
		if err != nil {
			// Correctness does not depend on the lock
			s.logger.Printf("Error acquiring sweep lock for tenant %s: %s", tenantID, err)
		} else if !ok {
			result.Skipped = true
			return result, nil
		} else {
			defer func() {
				if err := release(context.Background()); err != nil {
					s.logger.Printf("Error releasing sweep lock for tenant %s: %s", tenantID, err)
				}
			}()
		}
	}

	cutoff, err := s.resolveCutoff(ctx, tenantID, cutoff)
	if err != nil {
		return nil, err
	}
	result.Cutoff = cutoff

	due, err := s.store.Appointments().ListAwaitingConfirmation(ctx, tenantID, s.now().Add(-cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments awaiting confirmation: %w", err)
	}
	if len(due) == 0 {
		return result, nil
	}

	customers := loader.NewCustomerLoader(s.store.Customers())
	customerIDs := make([]string, 0, len(due))
	for _, appointment := range due {
		customerIDs = append(customerIDs, appointment.CustomerID)
	}
	customers.Prime(ctx, customerIDs)

	for _, appointment := range due {
		outcome, err := s.Complete(ctx, CompleteRequest{AppointmentID: appointment.ID, Customers: customers})
		if err != nil {
			s.logger.Printf("Error auto-confirming appointment %s: %s", appointment.ID, err)
			result.Failed++
			continue
		}
		if outcome.Transitioned {
			result.Processed++
		}
	}

	s.metrics.ObserveSweep(result.Processed, result.Failed)

	if result.Failed > 0 && s.notifications != nil {
		if err := s.notifications.NotifySweepSummary(ctx, tenantID, result.Processed, result.Failed); err != nil {
			s.logger.Printf("Error sending sweep summary for tenant %s: %s", tenantID, err)
		}
	}

	return result, nil
}

func (s *Service) resolveCutoff(ctx context.Context, tenantID string, cutoff time.Duration) (time.Duration, error) {
	if cutoff > 0 {
		return cutoff, nil
	}

	config, err := s.store.SchedulingConfigs().Get(ctx, tenantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.defaultCutoff, nil
	case err != nil:
		return 0, fmt.Errorf("failed to get scheduling config of tenant %s: %w", tenantID, err)
	case config.AutoConfirmAfterHours != nil && *config.AutoConfirmAfterHours > 0:
		return config.AutoConfirmAfter(), nil
	default:
		return s.defaultCutoff, nil
	}
}
