package postgresql

import (
	"context"

	"cleanbuddy-dispatch/res/store"

	"gorm.io/gorm/clause"
)

type schedulingConfigStore struct {
	*storeImpl
}

func NewSchedulingConfigStore(rootStore *storeImpl) *schedulingConfigStore {
	return &schedulingConfigStore{storeImpl: rootStore}
}

func (scs *schedulingConfigStore) Get(ctx context.Context, tenantID string) (*store.SchedulingConfig, error) {
	var config store.SchedulingConfig
	result := scs.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&config)
	if result.Error != nil {
		return nil, translateError(result.Error)
	}
	return &config, nil
}

func (scs *schedulingConfigStore) Upsert(ctx context.Context, config *store.SchedulingConfig) error {
	result := scs.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(config)
	return translateError(result.Error)
}
