package notification

import "context"

// NotificationService defines the operator notifications sent by the dispatch engine
type NotificationService interface {
	// NotifySweepSummary reports an auto-confirm sweep that left failed appointments behind
	NotifySweepSummary(ctx context.Context, tenantID string, processed, failed int) error
	// NotifyLateCancellationAttempt reports a customer trying to cancel inside the window
	NotifyLateCancellationAttempt(ctx context.Context, tenantID, appointmentID string, hoursRemaining float64) error
}
