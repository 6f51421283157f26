package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/rpattn/scenekit/internal/domain"
)

// EntityRepository defines the interface for entity storage.
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Entity, error)
	GetByName(ctx context.Context, name string) (domain.Entity, error)
	UpdateProperties(ctx context.Context, id uuid.UUID, properties map[string]any) (domain.Entity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlacementRepository defines the interface for presentation surfaces
// on scenes, including the spatial occupancy query used by spawn
// placement.
type PlacementRepository interface {
	Create(ctx context.Context, placement domain.Placement) (domain.Placement, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Placement, error)
	ListByScene(ctx context.Context, sceneID uuid.UUID) ([]domain.Placement, error)
	OccupiedRectangles(ctx context.Context, scene domain.Scene) ([]domain.Rect, error)
	UpdateAttributes(ctx context.Context, id uuid.UUID, attributes map[string]any) (domain.Placement, error)
	DeleteBatch(ctx context.Context, sceneID uuid.UUID, ids []uuid.UUID) error
}

// EmbeddedRepository defines the interface for entity-owned child
// records grouped into named collections.
type EmbeddedRepository interface {
	Get(ctx context.Context, entityID uuid.UUID, collection, childID string) (domain.EmbeddedRecord, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID, collection string) ([]domain.EmbeddedRecord, error)
	CreateBatch(ctx context.Context, entityID uuid.UUID, collection string, records []map[string]any) ([]domain.EmbeddedRecord, error)
	UpdateBatch(ctx context.Context, entityID uuid.UUID, collection string, records map[string]map[string]any) error
	DeleteBatch(ctx context.Context, entityID uuid.UUID, collection string, childIDs []string) error
}

// AnnotationRepository is a keyed flag store scoped by entity id and
// namespace. Get reports presence separately from errors so callers
// can distinguish "no value" from a storage fault.
type AnnotationRepository interface {
	Get(ctx context.Context, entityID uuid.UUID, namespace, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, entityID uuid.UUID, namespace, key string, value json.RawMessage) error
	Delete(ctx context.Context, entityID uuid.UUID, namespace, key string) error
}

// SceneRepository defines the interface for scene storage.
type SceneRepository interface {
	Create(ctx context.Context, scene domain.Scene) (domain.Scene, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Scene, error)
	List(ctx context.Context) ([]domain.Scene, error)
}

// CompendiumRepository is the external keyed-lookup service searched
// when an entity key resolves neither by id nor by name. Search
// reports absence separately from errors.
type CompendiumRepository interface {
	Search(ctx context.Context, term string) (domain.Entity, bool, error)
}
