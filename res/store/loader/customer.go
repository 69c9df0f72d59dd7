// Package loader batches and caches store reads for the lifetime of one request or sweep.
package loader

import (
	"context"
	"fmt"

	"cleanbuddy-dispatch/res/store"

	"github.com/graph-gophers/dataloader"
)

// CustomerLoader coalesces concurrent customer lookups into one GetMany call
// and remembers the results. Create one per request or sweep; it never expires entries.
type CustomerLoader struct {
	loader *dataloader.Loader
}

func NewCustomerLoader(customers store.CustomerStore, opts ...dataloader.Option) *CustomerLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		found, err := customers.GetMany(ctx, keys.Keys())
		if err != nil {
			return decorateBatchedQueriesWithError(err, keys)
		}

		byID := make(map[string]*store.Customer, len(found))
		for _, customer := range found {
			byID[customer.ID] = customer
		}

		// Results must line up with keys
		results := make([]*dataloader.Result, len(keys))
		for i, key := range keys {
			if customer, ok := byID[key.String()]; ok {
				results[i] = &dataloader.Result{Data: customer}
			} else {
				results[i] = &dataloader.Result{Error: fmt.Errorf("%w: customer %s", store.ErrNotFound, key.String())}
			}
		}
		return results
	}

	return &CustomerLoader{loader: dataloader.NewBatchedLoader(batchFn, opts...)}
}

func (cl *CustomerLoader) Load(ctx context.Context, id string) (*store.Customer, error) {
	data, err := cl.loader.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, err
	}
	return data.(*store.Customer), nil
}

// Prime fetches every id in one batch so later Load calls are served from the cache.
// Missing customers are not an error here; Load reports them individually.
func (cl *CustomerLoader) Prime(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	cl.loader.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
}

func decorateBatchedQueriesWithError(err error, keys dataloader.Keys) []*dataloader.Result {
	var results []*dataloader.Result

	for i := 0; i < len(keys); i++ {
		results = append(results, &dataloader.Result{Data: nil, Error: err})
	}

	return results
}
