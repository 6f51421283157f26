package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/scenekit/internal/domain"
	"github.com/rpattn/scenekit/internal/mutation"
)

var errNotFound = errors.New("not found")

type stubStore struct {
	scene       domain.Scene
	entities    map[uuid.UUID]domain.Entity
	placements  []domain.Placement
	annotations map[string]json.RawMessage
}

func (s *stubStore) Create(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	s.entities[entity.ID] = entity
	return entity, nil
}

func (s *stubStore) GetByID(_ context.Context, id uuid.UUID) (domain.Entity, error) {
	entity, ok := s.entities[id]
	if !ok {
		return domain.Entity{}, errNotFound
	}
	return entity, nil
}

func (s *stubStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	var out []domain.Entity
	for _, id := range ids {
		if entity, ok := s.entities[id]; ok {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (s *stubStore) GetByName(_ context.Context, name string) (domain.Entity, error) {
	for _, entity := range s.entities {
		if entity.Name == name {
			return entity, nil
		}
	}
	return domain.Entity{}, errNotFound
}

func (s *stubStore) UpdateProperties(_ context.Context, id uuid.UUID, properties map[string]any) (domain.Entity, error) {
	entity, ok := s.entities[id]
	if !ok {
		return domain.Entity{}, errNotFound
	}
	entity.Properties = domain.CloneTree(properties)
	s.entities[id] = entity
	return entity, nil
}

func (s *stubStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.entities, id)
	return nil
}

type stubScenes struct{ store *stubStore }

func (s stubScenes) Create(_ context.Context, scene domain.Scene) (domain.Scene, error) {
	return scene, nil
}

func (s stubScenes) GetByID(_ context.Context, id uuid.UUID) (domain.Scene, error) {
	if id != s.store.scene.ID {
		return domain.Scene{}, errNotFound
	}
	return s.store.scene, nil
}

func (s stubScenes) List(_ context.Context) ([]domain.Scene, error) {
	return []domain.Scene{s.store.scene}, nil
}

type stubPlacements struct{ store *stubStore }

func (p stubPlacements) Create(_ context.Context, instance domain.Placement) (domain.Placement, error) {
	p.store.placements = append(p.store.placements, instance)
	return instance, nil
}

func (p stubPlacements) GetByID(_ context.Context, id uuid.UUID) (domain.Placement, error) {
	for _, instance := range p.store.placements {
		if instance.ID == id {
			return instance, nil
		}
	}
	return domain.Placement{}, errNotFound
}

func (p stubPlacements) ListByScene(_ context.Context, sceneID uuid.UUID) ([]domain.Placement, error) {
	var out []domain.Placement
	for _, instance := range p.store.placements {
		if instance.SceneID == sceneID {
			out = append(out, instance)
		}
	}
	return out, nil
}

func (p stubPlacements) OccupiedRectangles(ctx context.Context, scene domain.Scene) ([]domain.Rect, error) {
	placements, err := p.ListByScene(ctx, scene.ID)
	if err != nil {
		return nil, err
	}
	rects := make([]domain.Rect, 0, len(placements))
	for _, instance := range placements {
		rects = append(rects, instance.Rect(scene.GridSize))
	}
	return rects, nil
}

func (p stubPlacements) UpdateAttributes(_ context.Context, id uuid.UUID, attributes map[string]any) (domain.Placement, error) {
	for i, instance := range p.store.placements {
		if instance.ID == id {
			instance.Attributes = domain.CloneTree(attributes)
			p.store.placements[i] = instance
			return instance, nil
		}
	}
	return domain.Placement{}, errNotFound
}

func (p stubPlacements) DeleteBatch(_ context.Context, _ uuid.UUID, _ []uuid.UUID) error {
	return nil
}

type stubEmbedded struct{}

func (stubEmbedded) Get(_ context.Context, _ uuid.UUID, _, _ string) (domain.EmbeddedRecord, error) {
	return domain.EmbeddedRecord{}, errNotFound
}

func (stubEmbedded) ListByEntity(_ context.Context, _ uuid.UUID, _ string) ([]domain.EmbeddedRecord, error) {
	return nil, nil
}

func (stubEmbedded) CreateBatch(_ context.Context, _ uuid.UUID, _ string, _ []map[string]any) ([]domain.EmbeddedRecord, error) {
	return nil, nil
}

func (stubEmbedded) UpdateBatch(_ context.Context, _ uuid.UUID, _ string, _ map[string]map[string]any) error {
	return nil
}

func (stubEmbedded) DeleteBatch(_ context.Context, _ uuid.UUID, _ string, _ []string) error {
	return nil
}

type stubAnnotations struct{ store *stubStore }

func (a stubAnnotations) Get(_ context.Context, entityID uuid.UUID, namespace, key string) (json.RawMessage, bool, error) {
	value, ok := a.store.annotations[entityID.String()+"/"+namespace+"/"+key]
	return value, ok, nil
}

func (a stubAnnotations) Set(_ context.Context, entityID uuid.UUID, namespace, key string, value json.RawMessage) error {
	a.store.annotations[entityID.String()+"/"+namespace+"/"+key] = value
	return nil
}

func (a stubAnnotations) Delete(_ context.Context, entityID uuid.UUID, namespace, key string) error {
	delete(a.store.annotations, entityID.String()+"/"+namespace+"/"+key)
	return nil
}

func TestBuildWorkbookListsPlacementsAndMutations(t *testing.T) {
	ctx := context.Background()
	store := &stubStore{
		scene:       domain.Scene{ID: uuid.New(), Name: "Cave", GridSize: 100},
		entities:    map[uuid.UUID]domain.Entity{},
		annotations: map[string]json.RawMessage{},
	}
	entity := domain.NewEntity("Goblin", "actor", map[string]any{
		"hp": map[string]any{"value": float64(7)},
	}, nil)
	store.entities[entity.ID] = entity
	store.placements = append(store.placements, domain.NewPlacement(store.scene.ID, entity.ID, "Goblin", map[string]any{
		domain.AttrX:     float64(500),
		domain.AttrY:     float64(300),
		domain.AttrWidth: float64(2),
	}))

	engine := mutation.NewEngine(store, stubPlacements{store}, stubEmbedded{}, stubAnnotations{store})
	if record := engine.Apply(ctx, mutation.TargetEntity(entity.ID), map[string]any{"hp.value": float64(21)}, mutation.ApplyCallbacks{}, mutation.Options{Name: "enrage"}); record == nil {
		t.Fatal("expected mutation to apply")
	}

	service := NewService(stubScenes{store}, stubPlacements{store}, store, engine)
	workbook, err := service.BuildWorkbook(ctx, store.scene.ID)
	if err != nil {
		t.Fatalf("BuildWorkbook: %v", err)
	}
	defer workbook.Close()

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	reread, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer reread.Close()

	placementRows, err := reread.GetRows(placementsSheet)
	if err != nil {
		t.Fatalf("read placement rows: %v", err)
	}
	if len(placementRows) != 2 {
		t.Fatalf("expected header plus one placement row, got %d", len(placementRows))
	}
	if placementRows[1][2] != "Goblin" {
		t.Fatalf("expected placement name Goblin, got %q", placementRows[1][2])
	}

	mutationRows, err := reread.GetRows(mutationsSheet)
	if err != nil {
		t.Fatalf("read mutation rows: %v", err)
	}
	if len(mutationRows) != 2 {
		t.Fatalf("expected header plus one mutation row, got %d", len(mutationRows))
	}
	if mutationRows[1][2] != "enrage" {
		t.Fatalf("expected mutation name enrage, got %q", mutationRows[1][2])
	}
	if mutationRows[1][4] != "actor.hp.value" {
		t.Fatalf("expected touched path actor.hp.value, got %q", mutationRows[1][4])
	}
}

func TestBuildWorkbookUnknownScene(t *testing.T) {
	store := &stubStore{
		scene:       domain.Scene{ID: uuid.New()},
		entities:    map[uuid.UUID]domain.Entity{},
		annotations: map[string]json.RawMessage{},
	}
	engine := mutation.NewEngine(store, stubPlacements{store}, stubEmbedded{}, stubAnnotations{store})
	service := NewService(stubScenes{store}, stubPlacements{store}, store, engine)

	if _, err := service.BuildWorkbook(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown scene")
	}
}
