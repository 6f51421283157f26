package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Attribute keys understood by the placement accessors. X and Y are
// world units; Width and Height are grid cells.
const (
	AttrX      = "x"
	AttrY      = "y"
	AttrWidth  = "width"
	AttrHeight = "height"
	AttrScaleX = "scaleX"
	AttrScaleY = "scaleY"
	AttrTint   = "tint"
	AttrAlpha  = "alpha"
	AttrHidden = "hidden"
	AttrLinked = "linked"

	// AttrScale is the legacy single-axis alias accepted on input and
	// expanded to AttrScaleX/AttrScaleY during normalization.
	AttrScale = "scale"
)

// Placement is the presentation surface of an entity on a scene: the
// on-screen instance with position, footprint and visual attributes,
// distinct from the entity's persisted field data.
type Placement struct {
	ID         uuid.UUID      `json:"id"`
	SceneID    uuid.UUID      `json:"scene_id"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewPlacement creates a placement for an entity with copied attributes.
func NewPlacement(sceneID, entityID uuid.UUID, name string, attributes map[string]any) Placement {
	now := time.Now()
	return Placement{
		ID:         uuid.New(),
		SceneID:    sceneID,
		EntityID:   entityID,
		Name:       name,
		Attributes: CloneTree(attributes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AttributesJSON marshals the attribute tree for JSONB storage.
func (p *Placement) AttributesJSON() (json.RawMessage, error) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]any)
	}
	return json.Marshal(p.Attributes)
}

// X returns the placement's world-space x coordinate.
func (p Placement) X() float64 { return p.number(AttrX, 0) }

// Y returns the placement's world-space y coordinate.
func (p Placement) Y() float64 { return p.number(AttrY, 0) }

// FootprintWidth returns the occupied width in grid cells.
func (p Placement) FootprintWidth() float64 { return p.number(AttrWidth, 1) }

// FootprintHeight returns the occupied height in grid cells.
func (p Placement) FootprintHeight() float64 { return p.number(AttrHeight, 1) }

// Linked reports whether the placement shares state with its source
// entity. Spawned instances are unlinked.
func (p Placement) Linked() bool {
	v, ok := p.Attributes[AttrLinked].(bool)
	return ok && v
}

// Rect returns the world-space bounding rectangle given the scene's
// grid size.
func (p Placement) Rect(gridSize float64) Rect {
	if gridSize <= 0 {
		gridSize = 1
	}
	return Rect{
		X:      p.X(),
		Y:      p.Y(),
		Width:  p.FootprintWidth() * gridSize,
		Height: p.FootprintHeight() * gridSize,
	}
}

func (p Placement) number(key string, fallback float64) float64 {
	switch v := p.Attributes[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}
