package postgresql

import (
	"context"
	"fmt"

	"cleanbuddy-dispatch/res/store"
)

type serviceStore struct {
	*storeImpl
}

func NewServiceStore(rootStore *storeImpl) *serviceStore {
	return &serviceStore{storeImpl: rootStore}
}

func (ss *serviceStore) Get(ctx context.Context, id string) (*store.Service, error) {
	var service store.Service
	result := ss.db.WithContext(ctx).Where("id = ?", id).First(&service)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &service, nil
}

func (ss *serviceStore) Create(ctx context.Context, service *store.Service) error {
	if service.DurationMin <= 0 {
		return fmt.Errorf("%w: service duration (%d)", store.ErrInvalidInput, service.DurationMin)
	}

	result := ss.db.WithContext(ctx).Create(service)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create service")
	}
	return nil
}
