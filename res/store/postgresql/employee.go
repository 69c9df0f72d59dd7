package postgresql

import (
	"context"
	"fmt"

	"cleanbuddy-dispatch/res/store"
)

type employeeStore struct {
	*storeImpl
}

func NewEmployeeStore(rootStore *storeImpl) *employeeStore {
	return &employeeStore{storeImpl: rootStore}
}

func (es *employeeStore) Create(ctx context.Context, employee *store.Employee) error {
	result := es.db.WithContext(ctx).Create(employee)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create employee")
	}
	return nil
}

func (es *employeeStore) Get(ctx context.Context, id string) (*store.Employee, error) {
	var employee store.Employee
	result := es.db.WithContext(ctx).Where("id = ?", id).First(&employee)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &employee, nil
}

func (es *employeeStore) List(ctx context.Context, tenantID string, filters store.EmployeeFilters) ([]*store.Employee, error) {
	query := es.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filters.Region != nil && *filters.Region != "" {
		query = query.Where(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(served_areas) AS area WHERE lower(area) = lower(?))",
			*filters.Region,
		)
	}

	var employees []*store.Employee
	if err := query.Order("display_name ASC, id ASC").Find(&employees).Error; err != nil {
		return nil, translateError(err)
	}
	return employees, nil
}
