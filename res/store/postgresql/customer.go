package postgresql

import (
	"context"
	"fmt"

	"cleanbuddy-dispatch/res/store"
)

type customerStore struct {
	*storeImpl
}

func NewCustomerStore(rootStore *storeImpl) *customerStore {
	return &customerStore{storeImpl: rootStore}
}

func (cs *customerStore) Create(ctx context.Context, customer *store.Customer) error {
	if !customer.Frequency.IsValid() {
		return fmt.Errorf("%w: billing frequency (%s)", store.ErrInvalidInput, customer.Frequency)
	}

	result := cs.db.WithContext(ctx).Create(customer)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create customer")
	}
	return nil
}

func (cs *customerStore) Get(ctx context.Context, id string) (*store.Customer, error) {
	var customer store.Customer
	result := cs.db.WithContext(ctx).Where("id = ?", id).First(&customer)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &customer, nil
}

func (cs *customerStore) GetMany(ctx context.Context, ids []string) ([]*store.Customer, error) {
	var customers []*store.Customer
	if len(ids) == 0 {
		return customers, nil
	}

	if err := cs.db.WithContext(ctx).Where("id IN ?", ids).Find(&customers).Error; err != nil {
		return nil, translateError(err)
	}
	return customers, nil
}
