package placement

import (
	"testing"

	"github.com/rpattn/scenekit/internal/domain"
)

const grid = 100.0

func TestFindFreePositionEmptySceneReturnsOrigin(t *testing.T) {
	origin := Candidate{X: 500, Y: 500}
	got := FindFreePosition(origin, Footprint{Width: 1, Height: 1}, grid, nil)
	if got != origin {
		t.Fatalf("expected origin unchanged, got %+v", got)
	}
}

func TestFindFreePositionAvoidsOccupant(t *testing.T) {
	origin := Candidate{X: 500, Y: 500}
	occupied := []domain.Rect{{X: 500, Y: 500, Width: grid, Height: grid}}

	got := FindFreePosition(origin, Footprint{Width: 1, Height: 1}, grid, occupied)

	if got == origin {
		t.Fatalf("expected a displaced candidate")
	}
	bounds := domain.Rect{X: got.X, Y: got.Y, Width: grid, Height: grid}
	if bounds.Intersects(occupied[0]) {
		t.Fatalf("candidate %+v still intersects occupant", got)
	}

	dx := int((got.X - origin.X) / grid)
	dy := int((got.Y - origin.Y) / grid)
	if abs(dx) > 1 || abs(dy) > 1 {
		t.Fatalf("expected a ring-1 candidate, got offset (%d,%d)", dx, dy)
	}
}

func TestFindFreePositionScanOrderIsDeterministic(t *testing.T) {
	origin := Candidate{X: 0, Y: 0}
	occupied := []domain.Rect{{X: 0, Y: 0, Width: grid, Height: grid}}

	// Ring 1 scans increasing x then increasing y, so the first free
	// cell is the top-left neighbour.
	got := FindFreePosition(origin, Footprint{Width: 1, Height: 1}, grid, occupied)
	want := Candidate{X: -grid, Y: -grid}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestFindFreePositionExpandsRings(t *testing.T) {
	origin := Candidate{X: 0, Y: 0}

	// Occupy the origin cell plus the full ring-1 square so the first
	// free cell sits at Chebyshev distance 2.
	occupied := []domain.Rect{{X: -grid, Y: -grid, Width: 3 * grid, Height: 3 * grid}}

	got := FindFreePosition(origin, Footprint{Width: 1, Height: 1}, grid, occupied)
	want := Candidate{X: -2 * grid, Y: -2 * grid}
	if got != want {
		t.Fatalf("expected ring-2 candidate %+v, got %+v", want, got)
	}
}

func TestFindFreePositionRespectsFootprint(t *testing.T) {
	origin := Candidate{X: 0, Y: 0}
	occupied := []domain.Rect{
		{X: 0, Y: 0, Width: grid, Height: grid},
		// Blocks a wide footprint anchored at (-grid,-grid) but not a
		// 1x1 one.
		{X: 0, Y: -grid, Width: grid, Height: grid},
	}

	got := FindFreePosition(origin, Footprint{Width: 2, Height: 1}, grid, occupied)
	bounds := domain.Rect{X: got.X, Y: got.Y, Width: 2 * grid, Height: grid}
	for _, rect := range occupied {
		if bounds.Intersects(rect) {
			t.Fatalf("footprint at %+v intersects %+v", got, rect)
		}
	}
}

func TestFindFreePositionGivesUpAtRingCap(t *testing.T) {
	origin := Candidate{X: 0, Y: 0}
	// One huge rectangle covers every cell the capped search can reach.
	occupied := []domain.Rect{{X: -1e6, Y: -1e6, Width: 2e6, Height: 2e6}}

	got := findFreePosition(origin, Footprint{Width: 1, Height: 1}, grid, occupied, 3)
	if got != origin {
		t.Fatalf("expected origin back when the search gives up, got %+v", got)
	}
}
