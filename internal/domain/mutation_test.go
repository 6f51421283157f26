package domain

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestMutationStackPreservesInsertionOrder(t *testing.T) {
	stack := NewMutationStack()
	for _, name := range []string{"giant", "tiny", "ghostly"} {
		stack.Set(MutationRecord{Name: name, CreatedAt: time.Now()})
	}

	if got := stack.Names(); !reflect.DeepEqual(got, []string{"giant", "tiny", "ghostly"}) {
		t.Fatalf("unexpected order: %v", got)
	}

	if !stack.Delete("tiny") {
		t.Fatalf("expected delete to succeed")
	}
	if stack.Delete("tiny") {
		t.Fatalf("expected second delete to fail")
	}
	if got := stack.Names(); !reflect.DeepEqual(got, []string{"giant", "ghostly"}) {
		t.Fatalf("unexpected order after delete: %v", got)
	}
}

func TestMutationStackReplaceKeepsPosition(t *testing.T) {
	stack := NewMutationStack()
	stack.Set(MutationRecord{Name: "first"})
	stack.Set(MutationRecord{Name: "second"})
	stack.Set(MutationRecord{Name: "first", Updates: UpdateRequest{EntityFields: map[string]any{"hp.max": float64(1)}}})

	if got := stack.Names(); !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Fatalf("expected replace to keep position, got %v", got)
	}
	record, _ := stack.Get("first")
	if record.Updates.EntityFields["hp.max"] != float64(1) {
		t.Fatalf("expected record to be replaced")
	}
}

func TestMutationStackJSONRoundTripKeepsOrder(t *testing.T) {
	stack := NewMutationStack()
	stack.Set(MutationRecord{
		Name:     "giant",
		Original: UpdateRequest{EntityFields: map[string]any{"hp.max": float64(100)}},
		Updates:  UpdateRequest{EntityFields: map[string]any{"hp.max": float64(150)}},
	})
	stack.Set(MutationRecord{Name: "tiny"})
	stack.Set(MutationRecord{Name: "aaa"})

	data, err := json.Marshal(stack)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	decoded := NewMutationStack()
	if err := json.Unmarshal(data, decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if got := decoded.Names(); !reflect.DeepEqual(got, []string{"giant", "tiny", "aaa"}) {
		t.Fatalf("expected insertion order to survive round trip, got %v", got)
	}
	record, ok := decoded.Get("giant")
	if !ok {
		t.Fatalf("expected giant record to survive round trip")
	}
	if record.Original.EntityFields["hp.max"] != float64(100) {
		t.Fatalf("unexpected original snapshot: %+v", record.Original)
	}
}

func TestRectIntersectsHalfOpen(t *testing.T) {
	base := Rect{X: 0, Y: 0, Width: 100, Height: 100}

	cases := []struct {
		name  string
		other Rect
		want  bool
	}{
		{"overlapping", Rect{X: 50, Y: 50, Width: 100, Height: 100}, true},
		{"contained", Rect{X: 10, Y: 10, Width: 10, Height: 10}, true},
		{"edge touching right", Rect{X: 100, Y: 0, Width: 50, Height: 50}, false},
		{"edge touching bottom", Rect{X: 0, Y: 100, Width: 50, Height: 50}, false},
		{"disjoint", Rect{X: 500, Y: 500, Width: 10, Height: 10}, false},
	}

	for _, tc := range cases {
		if got := base.Intersects(tc.other); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
		if got := tc.other.Intersects(base); got != tc.want {
			t.Errorf("%s (reversed): expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
