package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
)

// Entity represents a persistent game-world object (an actor) whose
// attribute tree is addressed by dotted paths.
type Entity struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Properties map[string]any `json:"properties"`
	// Prototype holds the default on-scene placement attributes used
	// when instancing this entity onto a scene.
	Prototype map[string]any `json:"prototype"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewEntity creates a new entity with copied attribute trees.
func NewEntity(name, kind string, properties, prototype map[string]any) Entity {
	now := time.Now()
	return Entity{
		ID:         uuid.New(),
		Name:       name,
		Kind:       kind,
		Properties: CloneTree(properties),
		Prototype:  CloneTree(prototype),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// PropertiesJSON marshals the attribute tree for JSONB storage.
func (e *Entity) PropertiesJSON() (json.RawMessage, error) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	return json.Marshal(e.Properties)
}

// TreeFromJSON builds an attribute tree from a JSONB column.
func TreeFromJSON(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	if tree == nil {
		tree = map[string]any{}
	}
	return tree, nil
}

// CloneTree deep-copies an attribute tree so callers can mutate the
// result without aliasing nested maps.
func CloneTree(tree map[string]any) map[string]any {
	if tree == nil {
		return map[string]any{}
	}
	return deepcopy.Copy(tree).(map[string]any)
}
