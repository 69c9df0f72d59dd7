package billing

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"cleanbuddy-dispatch/res/mail"
	"cleanbuddy-dispatch/res/store"
	"cleanbuddy-dispatch/res/store/memory"
	"cleanbuddy-dispatch/sys/scheduling"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

type fakeMail struct {
	mu       sync.Mutex
	receipts []mail.InvoiceReceipt
}

func (f *fakeMail) SendInvoiceReceipt(ctx context.Context, email, displayName string, receipt mail.InvoiceReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = append(f.receipts, receipt)
	return nil
}

func (f *fakeMail) SendCancellationNotice(ctx context.Context, email, displayName, appointmentID string, startTime time.Time) error {
	return nil
}

type fakeNotifier struct {
	processed, failed int
	calls             int
}

func (f *fakeNotifier) NotifySweepSummary(ctx context.Context, tenantID string, processed, failed int) error {
	f.calls++
	f.processed, f.failed = processed, failed
	return nil
}

func (f *fakeNotifier) NotifyLateCancellationAttempt(ctx context.Context, tenantID, appointmentID string, hoursRemaining float64) error {
	return nil
}

type fakeLocker struct {
	held bool
}

func (f *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if f.held {
		return nil, false, nil
	}
	return func(context.Context) error { return nil }, true, nil
}

type fixture struct {
	store    *memory.Store
	service  *Service
	mail     *fakeMail
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s := memory.New(memory.WithClock(func() time.Time { return now }))
	require.NoError(t, s.Customers().Create(ctx, &store.Customer{ID: "one-time", TenantID: "tenant-1", DisplayName: "Ana", Email: "ana@example.com", Frequency: store.BillingFrequencyOneTime}))
	require.NoError(t, s.Customers().Create(ctx, &store.Customer{ID: "weekly", TenantID: "tenant-1", DisplayName: "Ben", Email: "ben@example.com", Frequency: store.BillingFrequencyWeekly, BillingDay: 1}))

	f := &fixture{store: s, mail: &fakeMail{}, notifier: &fakeNotifier{}}
	f.service = New(&Config{
		Logger:              log.New(io.Discard, "", 0),
		Store:               s,
		MailService:         f.mail,
		NotificationService: f.notifier,
		Now:                 func() time.Time { return now },
	})
	return f
}

// awaiting seeds an appointment the cleaner finished `ago` before now
func (f *fixture) awaiting(t *testing.T, id, customerID string, ago time.Duration) {
	t.Helper()
	confirmedAt := now.Add(-ago)
	require.NoError(t, f.store.Appointments().Create(context.Background(), &store.Appointment{
		ID:                      id,
		TenantID:                "tenant-1",
		CustomerID:              customerID,
		ServiceID:               "svc-1",
		StartTime:               confirmedAt.Add(-2 * time.Hour),
		EndTime:                 confirmedAt,
		Status:                  store.AppointmentStatusAwaitingConfirmation,
		Price:                   decimal.RequireFromString("120.50"),
		CleanerConfirmationDate: &confirmedAt,
	}))
}

func TestComplete_OneTimeCustomerGetsPaidInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "appt-1", "one-time", time.Hour)

	rating := 5
	outcome, err := f.service.Complete(ctx, CompleteRequest{AppointmentID: "appt-1", Rating: &rating})
	require.NoError(t, err)

	assert.True(t, outcome.Transitioned)
	assert.Equal(t, store.AppointmentStatusCompleted, outcome.Appointment.Status)
	require.NotNil(t, outcome.Appointment.ClientConfirmationDate)
	assert.True(t, outcome.Appointment.ClientConfirmationDate.Equal(now))
	require.NotNil(t, outcome.Appointment.Rating)
	assert.Equal(t, 5, *outcome.Appointment.Rating)

	require.NotNil(t, outcome.Invoice)
	assert.Equal(t, store.InvoiceStatusPaid, outcome.Invoice.Status)
	assert.True(t, outcome.Invoice.Amount.Equal(decimal.RequireFromString("120.50")))
	require.NotNil(t, outcome.Invoice.PaidAt)
	assert.True(t, outcome.Invoice.PaidAt.Equal(now))
	assert.Equal(t, []string{"appt-1"}, outcome.Invoice.AppointmentIDs())

	require.Len(t, f.mail.receipts, 1)
	assert.Equal(t, "120.50", f.mail.receipts[0].Amount)
}

func TestComplete_RecurringCustomerIsNotInvoiced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "appt-1", "weekly", time.Hour)

	outcome, err := f.service.Complete(ctx, CompleteRequest{AppointmentID: "appt-1"})
	require.NoError(t, err)

	assert.Equal(t, store.AppointmentStatusCompleted, outcome.Appointment.Status)
	assert.Nil(t, outcome.Invoice)

	_, err = f.store.Invoices().GetByAppointment(ctx, "appt-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.mail.receipts)
}

func TestOnAppointmentConfirmed_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "appt-1", "one-time", time.Hour)

	first, err := f.service.OnAppointmentConfirmed(ctx, "appt-1")
	require.NoError(t, err)
	second, err := f.service.OnAppointmentConfirmed(ctx, "appt-1")
	require.NoError(t, err)

	assert.True(t, first.Transitioned)
	assert.False(t, second.Transitioned)
	assert.Nil(t, second.Invoice)
	assert.Equal(t, store.AppointmentStatusCompleted, second.Appointment.Status)

	invoices, err := f.store.Invoices().ListByCustomer(ctx, "one-time")
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestOnAppointmentConfirmed_CompletedWithoutInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "appt-1", "one-time", time.Hour)

	// An administrative override skips billing
	changed, err := f.store.Appointments().TransitionStatus(ctx, "appt-1", store.StatusTransition{
		From: store.AppointmentStatusAwaitingConfirmation,
		To:   store.AppointmentStatusCompleted,
	})
	require.NoError(t, err)
	require.True(t, changed)

	outcome, err := f.service.OnAppointmentConfirmed(ctx, "appt-1")
	require.NoError(t, err)

	require.NotNil(t, outcome.Appointment.ClientConfirmationDate)
	require.NotNil(t, outcome.Invoice)
}

func TestComplete_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "appt-1", "one-time", time.Hour)

	rating := 6
	_, err := f.service.Complete(ctx, CompleteRequest{AppointmentID: "appt-1", Rating: &rating})
	assert.Equal(t, scheduling.KindValidation, scheduling.KindOf(err))

	_, err = f.service.Complete(ctx, CompleteRequest{AppointmentID: "missing"})
	assert.Equal(t, scheduling.KindNotFound, scheduling.KindOf(err))

	require.NoError(t, f.store.Appointments().Create(ctx, &store.Appointment{
		ID: "appt-2", TenantID: "tenant-1", CustomerID: "one-time", ServiceID: "svc-1",
		StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
		Status: store.AppointmentStatusConfirmed, Price: decimal.NewFromInt(80),
	}))
	_, err = f.service.Complete(ctx, CompleteRequest{AppointmentID: "appt-2"})

	var policy *scheduling.PolicyViolation
	require.True(t, errors.As(err, &policy))
	assert.Equal(t, scheduling.PolicyWrongStatus, policy.Code)
}

func TestSweep_Threshold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "recent", "one-time", 2*time.Hour+59*time.Minute)
	f.awaiting(t, "due", "one-time", 3*time.Hour+time.Minute)

	result, err := f.service.Sweep(ctx, "tenant-1", 3*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)

	recent, err := f.store.Appointments().Get(ctx, "recent")
	require.NoError(t, err)
	assert.Equal(t, store.AppointmentStatusAwaitingConfirmation, recent.Status)

	due, err := f.store.Appointments().Get(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, store.AppointmentStatusCompleted, due.Status)

	invoice, err := f.store.Invoices().GetByAppointment(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, store.InvoiceStatusPaid, invoice.Status)
	assert.Zero(t, f.notifier.calls)
}

func TestSweep_CutoffResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("platform default", func(t *testing.T) {
		f := newFixture(t)
		f.awaiting(t, "appt-1", "weekly", 2*time.Hour)

		result, err := f.service.Sweep(ctx, "tenant-1", 0)
		require.NoError(t, err)
		assert.Equal(t, 3*time.Hour, result.Cutoff)
		assert.Zero(t, result.Processed)
	})

	t.Run("tenant setting", func(t *testing.T) {
		f := newFixture(t)
		f.awaiting(t, "appt-1", "weekly", 2*time.Hour)

		config := store.DefaultSchedulingConfig("tenant-1")
		hours := 1
		config.AutoConfirmAfterHours = &hours
		require.NoError(t, f.store.SchedulingConfigs().Upsert(ctx, config))

		result, err := f.service.Sweep(ctx, "tenant-1", 0)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, result.Cutoff)
		assert.Equal(t, 1, result.Processed)
	})
}

func TestSweep_ContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "orphan", "deleted-customer", 4*time.Hour)
	f.awaiting(t, "ok-1", "one-time", 5*time.Hour)
	f.awaiting(t, "ok-2", "weekly", 6*time.Hour)

	result, err := f.service.Sweep(ctx, "tenant-1", 3*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, f.notifier.calls)
	assert.Equal(t, 1, f.notifier.failed)

	orphan, err := f.store.Appointments().Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, store.AppointmentStatusAwaitingConfirmation, orphan.Status)
}

func TestSweep_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "due", "one-time", 4*time.Hour)
	f.service.locker = &fakeLocker{held: true}

	result, err := f.service.Sweep(ctx, "tenant-1", 3*time.Hour)
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	due, err := f.store.Appointments().Get(ctx, "due")
	require.NoError(t, err)
	assert.Equal(t, store.AppointmentStatusAwaitingConfirmation, due.Status)
}

func TestConfirmAndSweepRace_SingleInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.awaiting(t, "appt-1", "one-time", 4*time.Hour)

	var wg sync.WaitGroup
	transitions := make(chan bool, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			outcome, err := f.service.Complete(ctx, CompleteRequest{AppointmentID: "appt-1"})
			if assert.NoError(t, err) {
				transitions <- outcome.Transitioned
			}
		}()
		go func() {
			defer wg.Done()
			result, err := f.service.Sweep(ctx, "tenant-1", 3*time.Hour)
			if assert.NoError(t, err) {
				transitions <- result.Processed == 1
			}
		}()
	}
	wg.Wait()
	close(transitions)

	won := 0
	for transitioned := range transitions {
		if transitioned {
			won++
		}
	}
	assert.Equal(t, 1, won)

	invoices, err := f.store.Invoices().ListByCustomer(ctx, "one-time")
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestNewInvoiceNumber(t *testing.T) {
	a, b := NewInvoiceNumber(), NewInvoiceNumber()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^INV-[0-9A-V]{20}$`, a)
}
