package postgresql

import (
	"context"
	"fmt"
	"time"

	"cleanbuddy-dispatch/res/store"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type appointmentStore struct {
	*storeImpl
}

func NewAppointmentStore(rootStore *storeImpl) *appointmentStore {
	return &appointmentStore{storeImpl: rootStore}
}

// MUTATIONS

func (as *appointmentStore) Create(ctx context.Context, appointment *store.Appointment) error {
	result := as.db.WithContext(ctx).Create(appointment)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create appointment")
	}
	return nil
}

func (as *appointmentStore) LockEmployee(ctx context.Context, employeeID string) error {
	return translateError(as.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", employeeID).Error)
}

func (as *appointmentStore) UpdateSchedule(ctx context.Context, id string, start, end time.Time, employeeID *string) error {
	result := as.db.WithContext(ctx).Model(&store.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"start_time":  start,
			"end_time":    end,
			"employee_id": employeeID,
		})

	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: appointment %s", store.ErrNotFound, id)
	}
	return nil
}

func (as *appointmentStore) Update(ctx context.Context, appointment *store.Appointment) error {
	result := as.db.WithContext(ctx).Save(appointment)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("%w: appointment %s", store.ErrNotFound, appointment.ID)
	}
	return nil
}

func (as *appointmentStore) TransitionStatus(ctx context.Context, id string, t store.StatusTransition) (bool, error) {
	updates := map[string]interface{}{"status": t.To}

	if t.ActualStartTime != nil {
		updates["actual_start_time"] = gorm.Expr("COALESCE(actual_start_time, ?)", *t.ActualStartTime)
	}
	if t.ActualEndTime != nil {
		updates["actual_end_time"] = gorm.Expr("COALESCE(actual_end_time, ?)", *t.ActualEndTime)
	}
	if t.ClientConfirmationDate != nil {
		updates["client_confirmation_date"] = gorm.Expr("COALESCE(client_confirmation_date, ?)", *t.ClientConfirmationDate)
	}
	if t.CleanerConfirmationDate != nil {
		updates["cleaner_confirmation_date"] = *t.CleanerConfirmationDate
	}
	if t.CancelledAt != nil {
		updates["cancelled_at"] = *t.CancelledAt
	}
	if t.CancelledByID != nil {
		updates["cancelled_by_id"] = *t.CancelledByID
	}
	if t.Rating != nil {
		updates["rating"] = *t.Rating
	}
	if t.RatingComment != nil {
		updates["rating_comment"] = *t.RatingComment
	}

	result := as.db.WithContext(ctx).Model(&store.Appointment{}).
		Where("id = ? AND status = ?", id, t.From).
		Updates(updates)

	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected == 1, nil
}

// QUERIES

func (as *appointmentStore) Get(ctx context.Context, id string) (*store.Appointment, error) {
	var appointment store.Appointment
	result := as.db.WithContext(ctx).Where("id = ?", id).First(&appointment)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &appointment, nil
}

func (as *appointmentStore) GetForUpdate(ctx context.Context, id string) (*store.Appointment, error) {
	var appointment store.Appointment
	result := as.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&appointment)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &appointment, nil
}

func (as *appointmentStore) List(ctx context.Context, tenantID string, filters store.AppointmentFilters) ([]*store.Appointment, error) {
	query := as.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	query = as.applyFilters(query, filters)

	var appointments []*store.Appointment
	if err := query.Find(&appointments).Error; err != nil {
		return nil, translateError(err)
	}
	return appointments, nil
}

func (as *appointmentStore) ListAwaitingConfirmation(ctx context.Context, tenantID string, cleanerConfirmedBefore time.Time) ([]*store.Appointment, error) {
	var appointments []*store.Appointment

	err := as.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("status = ?", store.AppointmentStatusAwaitingConfirmation).
		Where("cleaner_confirmation_date < ?", cleanerConfirmedBefore).
		Order("cleaner_confirmation_date ASC").
		Find(&appointments).Error

	if err != nil {
		return nil, translateError(err)
	}
	return appointments, nil
}

func (as *appointmentStore) ListAwaitingTenantIDs(ctx context.Context) ([]string, error) {
	var tenantIDs []string
	err := as.db.WithContext(ctx).
		Model(&store.Appointment{}).
		Distinct("tenant_id").
		Where("status = ?", store.AppointmentStatusAwaitingConfirmation).
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenantIDs).Error
	if err != nil {
		return nil, translateError(err)
	}
	return tenantIDs, nil
}

// Helper method to apply filters
func (as *appointmentStore) applyFilters(query *gorm.DB, filters store.AppointmentFilters) *gorm.DB {
	if filters.EmployeeID != nil {
		query = query.Where("employee_id = ?", *filters.EmployeeID)
	}
	if filters.CustomerID != nil {
		query = query.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.From != nil {
		query = query.Where("end_time > ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("start_time < ?", *filters.To)
	}
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if len(filters.ExcludeStatuses) > 0 {
		query = query.Where("status NOT IN ?", filters.ExcludeStatuses)
	}

	query = query.Order("start_time ASC, id ASC")

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	return query
}
