package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddedRecord is a child record owned by an entity inside a named
// collection (items, effects, and the like).
type EmbeddedRecord struct {
	ID         uuid.UUID      `json:"id"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Collection string         `json:"collection"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewEmbeddedRecord creates an embedded record with copied properties.
func NewEmbeddedRecord(entityID uuid.UUID, collection string, properties map[string]any) EmbeddedRecord {
	now := time.Now()
	return EmbeddedRecord{
		ID:         uuid.New(),
		EntityID:   entityID,
		Collection: collection,
		Properties: CloneTree(properties),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
