package selection

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/scenekit/internal/domain"
)

type scriptedSource struct {
	events       chan PointerEvent
	unsubscribed int
}

func newScriptedSource(events ...PointerEvent) *scriptedSource {
	ch := make(chan PointerEvent, len(events))
	for _, event := range events {
		ch <- event
	}
	return &scriptedSource{events: ch}
}

func (s *scriptedSource) Subscribe() (<-chan PointerEvent, func()) {
	return s.events, func() { s.unsubscribed++ }
}

type recordingRenderer struct {
	shown     []Result
	moves     [][2]float64
	destroyed int
}

func (r *recordingRenderer) ShowMarker(x, y float64) {
	r.shown = append(r.shown, Result{X: x, Y: y})
}

func (r *recordingRenderer) MoveMarker(x, y float64) {
	r.moves = append(r.moves, [2]float64{x, y})
}

func (r *recordingRenderer) DestroyMarker() { r.destroyed++ }

type stubControlled struct {
	current  []uuid.UUID
	restored [][]uuid.UUID
}

func (c *stubControlled) Controlled() []uuid.UUID { return append([]uuid.UUID(nil), c.current...) }

func (c *stubControlled) Restore(ids []uuid.UUID) { c.restored = append(c.restored, ids) }

func gridScene() domain.Scene {
	return domain.Scene{ID: uuid.New(), GridSize: 100}
}

func TestShowResolvesOnPrimaryPress(t *testing.T) {
	source := newScriptedSource(
		PointerEvent{Kind: PointerMove, X: 130, Y: 110},
		PointerEvent{Kind: PointerMove, X: 260, Y: 240},
		PointerEvent{Kind: PointerPrimaryPress, X: 260, Y: 240},
	)
	renderer := &recordingRenderer{}
	selector := NewSelector(source, renderer, nil)

	result := selector.Show(context.Background(), Config{Scene: gridScene()})

	if result.Cancelled {
		t.Fatalf("expected resolved result")
	}
	if result.X != 300 || result.Y != 200 {
		t.Fatalf("expected snapped (300,200), got (%v,%v)", result.X, result.Y)
	}

	wantMoves := [][2]float64{{100, 100}, {300, 200}}
	if !reflect.DeepEqual(renderer.moves, wantMoves) {
		t.Fatalf("unexpected marker moves: %v", renderer.moves)
	}
	if renderer.destroyed != 1 {
		t.Fatalf("expected marker destroyed exactly once, got %d", renderer.destroyed)
	}
	if source.unsubscribed != 1 {
		t.Fatalf("expected one unsubscribe, got %d", source.unsubscribed)
	}
}

func TestShowCancelsOnSecondaryPress(t *testing.T) {
	source := newScriptedSource(
		PointerEvent{Kind: PointerMove, X: 50, Y: 50},
		PointerEvent{Kind: PointerSecondaryPress, X: 50, Y: 50},
	)
	renderer := &recordingRenderer{}
	selector := NewSelector(source, renderer, nil)

	result := selector.Show(context.Background(), Config{Scene: gridScene()})

	if !result.Cancelled {
		t.Fatalf("expected cancelled result")
	}
	if result.X != 0 || result.Y != 0 {
		t.Fatalf("expected unset coordinates on cancel, got (%v,%v)", result.X, result.Y)
	}
	if renderer.destroyed != 1 {
		t.Fatalf("expected marker destroyed exactly once, got %d", renderer.destroyed)
	}
}

func TestShowCancelsWhenContextEnds(t *testing.T) {
	source := &scriptedSource{events: make(chan PointerEvent)}
	renderer := &recordingRenderer{}
	selector := NewSelector(source, renderer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := selector.Show(ctx, Config{Scene: gridScene()})
	if !result.Cancelled {
		t.Fatalf("expected cancellation when context ends")
	}
	if renderer.destroyed != 1 || source.unsubscribed != 1 {
		t.Fatalf("expected cleanup to run once (destroyed=%d unsubscribed=%d)", renderer.destroyed, source.unsubscribed)
	}
}

func TestShowLockPositionSkipsSnapping(t *testing.T) {
	source := newScriptedSource(PointerEvent{Kind: PointerPrimaryPress, X: 123, Y: 456})
	selector := NewSelector(source, &recordingRenderer{}, nil)

	result := selector.Show(context.Background(), Config{Scene: gridScene(), LockPosition: true})
	if result.X != 123 || result.Y != 456 {
		t.Fatalf("expected raw coordinates with lockPosition, got (%v,%v)", result.X, result.Y)
	}
}

func TestShowGridlessSceneSkipsSnapping(t *testing.T) {
	source := newScriptedSource(PointerEvent{Kind: PointerPrimaryPress, X: 123, Y: 456})
	selector := NewSelector(source, &recordingRenderer{}, nil)

	result := selector.Show(context.Background(), Config{Scene: domain.Scene{}})
	if result.X != 123 || result.Y != 456 {
		t.Fatalf("expected raw coordinates on gridless scene, got (%v,%v)", result.X, result.Y)
	}
}

func TestShowRestoresControlledSetAfterCleanup(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	controlled := &stubControlled{current: ids}
	source := newScriptedSource(PointerEvent{Kind: PointerSecondaryPress})
	selector := NewSelector(source, &recordingRenderer{}, controlled)

	selector.Show(context.Background(), Config{Scene: gridScene(), RememberControlled: true})

	if len(controlled.restored) != 1 || !reflect.DeepEqual(controlled.restored[0], ids) {
		t.Fatalf("expected pre-activation set restored once, got %v", controlled.restored)
	}
}

func TestShowClosedStreamCancels(t *testing.T) {
	events := make(chan PointerEvent)
	close(events)
	source := &scriptedSource{events: events}
	renderer := &recordingRenderer{}
	selector := NewSelector(source, renderer, nil)

	result := selector.Show(context.Background(), Config{Scene: gridScene()})
	if !result.Cancelled {
		t.Fatalf("expected cancellation on closed stream")
	}
	if renderer.destroyed != 1 {
		t.Fatalf("expected marker destroyed exactly once, got %d", renderer.destroyed)
	}
}
