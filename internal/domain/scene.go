package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Scene is a 2-D playing surface. GridSize is the width of one grid
// cell in world units; a GridSize of zero means the scene is gridless.
type Scene struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	GridSize  float64   `json:"grid_size"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasGrid reports whether the scene carries a usable grid.
func (s Scene) HasGrid() bool {
	return s.GridSize > 0
}

// Snap returns the given world coordinate snapped to the nearest grid
// intersection. Gridless scenes return the coordinate unchanged.
func (s Scene) Snap(x, y float64) (float64, float64) {
	if !s.HasGrid() {
		return x, y
	}
	return math.Round(x/s.GridSize) * s.GridSize, math.Round(y/s.GridSize) * s.GridSize
}
