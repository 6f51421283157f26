package entityloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/scenekit/internal/domain"
	"github.com/rpattn/scenekit/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// EntityLoader batches per-request entity fetches so handlers that
// resolve many placements hit the store once per id set.
type EntityLoader struct {
	Loader *dataloader.Loader
}

func NewEntityLoader(repo repository.EntityRepository) *EntityLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				return []*dataloader.Result{{Error: fmt.Errorf("invalid UUID: %w", err)}}
			}
			ids[i] = id
		}

		entities, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Map UUID -> entity for ordering
		entityMap := make(map[uuid.UUID]domain.Entity)
		for _, e := range entities {
			entityMap[e.ID] = e
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if e, ok := entityMap[id]; ok {
				results[i] = &dataloader.Result{Data: e}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))

	return &EntityLoader{Loader: loader}
}

// LoadMany fetches a set of entities through one batch, keyed by id.
// Ids that resolve to nothing are simply absent from the result.
func (l *EntityLoader) LoadMany(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]domain.Entity {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}

	values, _ := l.Loader.LoadMany(ctx, keys)()
	resolved := make(map[uuid.UUID]domain.Entity, len(values))
	for i, value := range values {
		if i >= len(ids) {
			break
		}
		if entity, ok := value.(domain.Entity); ok {
			resolved[ids[i]] = entity
		}
	}
	return resolved
}
