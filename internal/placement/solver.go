// Package placement computes collision-free candidate positions for
// new scene placements using an expanding-square ring search.
package placement

import "github.com/rpattn/scenekit/internal/domain"

// DefaultRingCap bounds the outward search. Past this many rings the
// search gives up and returns the origin unchanged; in dense scenes
// collision avoidance is best-effort, not guaranteed.
const DefaultRingCap = 10

// Candidate is a proposed world-space position for a footprint.
type Candidate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Footprint is the occupied size of the placement in grid cells.
type Footprint struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FindFreePosition searches outward from origin for the first position
// whose footprint-sized rectangle intersects none of the occupied
// rectangles. Cells are examined ring by ring at increasing Chebyshev
// distance, each ring scanned in a fixed order: increasing x, then
// increasing y, boundary cells only. Offsets are one grid cell wide.
func FindFreePosition(origin Candidate, footprint Footprint, gridSize float64, occupied []domain.Rect) Candidate {
	return findFreePosition(origin, footprint, gridSize, occupied, DefaultRingCap)
}

func findFreePosition(origin Candidate, footprint Footprint, gridSize float64, occupied []domain.Rect, ringCap int) Candidate {
	if gridSize <= 0 {
		gridSize = 1
	}

	if isFree(origin, footprint, gridSize, occupied) {
		return origin
	}

	for r := 1; r <= ringCap; r++ {
		for dx := -r; dx <= r; dx++ {
			for dy := -r; dy <= r; dy++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				candidate := Candidate{
					X: origin.X + float64(dx)*gridSize,
					Y: origin.Y + float64(dy)*gridSize,
				}
				if isFree(candidate, footprint, gridSize, occupied) {
					return candidate
				}
			}
		}
	}

	return origin
}

func isFree(candidate Candidate, footprint Footprint, gridSize float64, occupied []domain.Rect) bool {
	bounds := domain.Rect{
		X:      candidate.X,
		Y:      candidate.Y,
		Width:  footprint.Width * gridSize,
		Height: footprint.Height * gridSize,
	}
	for _, rect := range occupied {
		if bounds.Intersects(rect) {
			return false
		}
	}
	return true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
