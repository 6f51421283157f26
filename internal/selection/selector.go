// Package selection implements the interactive, cancellable pointer
// loop used to pick a position on a scene.
package selection

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/scenekit/internal/domain"
)

// PointerEventKind identifies one class of pointer activity.
type PointerEventKind string

const (
	PointerMove           PointerEventKind = "move"
	PointerPrimaryPress   PointerEventKind = "press"
	PointerSecondaryPress PointerEventKind = "contextmenu"
)

// PointerEvent is a pointer action at a scene-space coordinate.
type PointerEvent struct {
	Kind PointerEventKind `json:"kind"`
	X    float64          `json:"x"`
	Y    float64          `json:"y"`
}

// PointerSource delivers pointer events. Subscribe returns the event
// stream and a deregistration function; a closed stream is treated as
// a cancellation.
type PointerSource interface {
	Subscribe() (<-chan PointerEvent, func())
}

// Renderer owns the visual marker that tracks the pointer while the
// selector is active.
type Renderer interface {
	ShowMarker(x, y float64)
	MoveMarker(x, y float64)
	DestroyMarker()
}

// ControlledSet exposes the set of placements the operator currently
// controls, so a selection run can restore it afterwards.
type ControlledSet interface {
	Controlled() []uuid.UUID
	Restore(ids []uuid.UUID)
}

// Result is the outcome of one selection run. Cancelled results carry
// no meaningful coordinates.
type Result struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Cancelled bool    `json:"cancelled"`
}

// Config adjusts one selection run.
type Config struct {
	Scene domain.Scene
	// StartX/StartY position the marker before the first move event.
	StartX float64
	StartY float64
	// LockPosition disables grid snapping of streamed and resolved
	// positions.
	LockPosition bool
	// RememberControlled restores the pre-activation controlled set
	// after cleanup.
	RememberControlled bool
}

type state int

const (
	stateIdle state = iota
	stateActive
	stateResolved
	stateCancelled
)

// Selector runs single-shot modal position picks against a pointer
// source and a marker renderer.
type Selector struct {
	source     PointerSource
	renderer   Renderer
	controlled ControlledSet
}

// NewSelector creates a selector. controlled may be nil when no
// controlled-set collaborator exists.
func NewSelector(source PointerSource, renderer Renderer, controlled ControlledSet) *Selector {
	return &Selector{source: source, renderer: renderer, controlled: controlled}
}

// Show activates the selector and blocks until a primary press
// resolves a position, a secondary press cancels, or ctx is done
// (also a cancellation). Listener deregistration and marker
// destruction happen exactly once, before any controlled-set restore.
func (s *Selector) Show(ctx context.Context, cfg Config) Result {
	events, unsubscribe := s.source.Subscribe()

	var remembered []uuid.UUID
	if cfg.RememberControlled && s.controlled != nil {
		remembered = s.controlled.Controlled()
	}

	current := stateActive
	cleanedUp := false
	finish := func(next state) {
		current = next
		if cleanedUp {
			return
		}
		cleanedUp = true
		unsubscribe()
		s.renderer.DestroyMarker()
		if cfg.RememberControlled && s.controlled != nil {
			s.controlled.Restore(remembered)
		}
	}

	startX, startY := s.snap(cfg, cfg.StartX, cfg.StartY)
	s.renderer.ShowMarker(startX, startY)

	for current == stateActive {
		select {
		case <-ctx.Done():
			finish(stateCancelled)
			return Result{Cancelled: true}
		case event, ok := <-events:
			if !ok {
				finish(stateCancelled)
				return Result{Cancelled: true}
			}
			switch event.Kind {
			case PointerMove:
				x, y := s.snap(cfg, event.X, event.Y)
				s.renderer.MoveMarker(x, y)
			case PointerPrimaryPress:
				x, y := s.snap(cfg, event.X, event.Y)
				finish(stateResolved)
				return Result{X: x, Y: y}
			case PointerSecondaryPress:
				finish(stateCancelled)
				return Result{Cancelled: true}
			}
		}
	}

	finish(stateCancelled)
	return Result{Cancelled: true}
}

func (s *Selector) snap(cfg Config, x, y float64) (float64, float64) {
	if cfg.LockPosition {
		return x, y
	}
	return cfg.Scene.Snap(x, y)
}
