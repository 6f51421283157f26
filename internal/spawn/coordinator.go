// Package spawn orchestrates placing new entity instances onto a
// scene: source lookup, position acquisition, collision-aware batch
// duplication and batched dismissal.
package spawn

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/rpattn/scenekit/internal/domain"
	"github.com/rpattn/scenekit/internal/placement"
	"github.com/rpattn/scenekit/internal/repository"
	"github.com/rpattn/scenekit/internal/selection"
	"github.com/rpattn/scenekit/pkg/dotpath"
)

// Selector is the interactive position picker used when a spawn
// request carries no explicit coordinates.
type Selector interface {
	Show(ctx context.Context, cfg selection.Config) selection.Result
}

// Callbacks hook the batch. Pre runs once before any instance is
// created; returning false aborts the whole batch. Post runs once
// after the batch, only when at least one instance was created.
type Callbacks struct {
	Pre  func(ctx context.Context, origin placement.Candidate, payload *domain.Placement) bool
	Post func(ctx context.Context, origin placement.Candidate, created []domain.Placement)
}

// Options adjusts one spawn batch.
type Options struct {
	SceneID uuid.UUID
	// Duplicates is the number of instances to create; values below 1
	// mean 1.
	Duplicates int
	// DisableCollision turns off per-duplicate collision avoidance.
	DisableCollision bool
	// Selection configures the interactive picker when no explicit
	// position is supplied. Its scene is set by the coordinator.
	Selection selection.Config
}

// Coordinator wires entity lookup, position acquisition, placement
// solving and the placement store into the spawn and dismiss
// operations.
type Coordinator struct {
	entities   repository.EntityRepository
	compendium repository.CompendiumRepository
	scenes     repository.SceneRepository
	placements repository.PlacementRepository
	selector   Selector
}

// NewCoordinator creates a coordinator. selector may be nil when no
// interactive picking surface exists; spawns then require explicit
// coordinates.
func NewCoordinator(
	entities repository.EntityRepository,
	compendium repository.CompendiumRepository,
	scenes repository.SceneRepository,
	placements repository.PlacementRepository,
	selector Selector,
) *Coordinator {
	return &Coordinator{
		entities:   entities,
		compendium: compendium,
		scenes:     scenes,
		placements: placements,
		selector:   selector,
	}
}

// Spawn creates one or more unlinked instances of the entity named by
// entityKey on the scene. The raw update is normalized once; explicit
// presentation x/y skip the interactive picker. Each duplicate after
// the first re-resolves its position against everything occupying the
// scene at that moment, including duplicates created earlier in the
// same batch. Failed duplicates are skipped, not fatal. Returns the
// created placements in creation order; empty on lookup failure,
// cancellation or pre-callback abort.
func (c *Coordinator) Spawn(ctx context.Context, entityKey string, raw map[string]any, cb Callbacks, opts Options) []domain.Placement {
	entity, ok := c.lookup(ctx, entityKey)
	if !ok {
		log.Printf("[SPAWN] no entity found for %q", entityKey)
		return nil
	}

	scene, err := c.scenes.GetByID(ctx, opts.SceneID)
	if err != nil {
		log.Printf("[SPAWN] resolve scene %s: %v", opts.SceneID, err)
		return nil
	}

	update := domain.NormalizeUpdate(raw)

	origin, ok := c.acquireOrigin(ctx, scene, update, opts)
	if !ok {
		return nil
	}

	payload := c.buildPayload(scene, entity, update, origin)

	if cb.Pre != nil && !cb.Pre(ctx, origin, &payload) {
		return nil
	}

	duplicates := opts.Duplicates
	if duplicates < 1 {
		duplicates = 1
	}
	footprint := placement.Footprint{
		Width:  payload.FootprintWidth(),
		Height: payload.FootprintHeight(),
	}

	created := make([]domain.Placement, 0, duplicates)
	for i := 0; i < duplicates; i++ {
		position := origin
		if i > 0 && !opts.DisableCollision {
			occupied, err := c.placements.OccupiedRectangles(ctx, scene)
			if err != nil {
				log.Printf("[SPAWN] occupancy query on scene %s: %v", scene.ID, err)
			} else {
				position = placement.FindFreePosition(origin, footprint, scene.GridSize, occupied)
			}
		}

		attributes := domain.CloneTree(payload.Attributes)
		attributes[domain.AttrX] = position.X
		attributes[domain.AttrY] = position.Y

		instance, err := c.placements.Create(ctx, domain.NewPlacement(scene.ID, entity.ID, entity.Name, attributes))
		if err != nil {
			log.Printf("[SPAWN] create instance %d of %q: %v", i+1, entity.Name, err)
			continue
		}
		created = append(created, instance)
	}

	if len(created) > 0 && cb.Post != nil {
		cb.Post(ctx, origin, created)
	}
	return created
}

// Dismiss removes the given placements from a scene with one batched
// deletion. It is a no-op when no identifiers remain.
func (c *Coordinator) Dismiss(ctx context.Context, sceneID uuid.UUID, placements ...domain.Placement) {
	ids := make([]uuid.UUID, 0, len(placements))
	for _, instance := range placements {
		if instance.ID == uuid.Nil {
			continue
		}
		ids = append(ids, instance.ID)
	}
	if len(ids) == 0 {
		return
	}
	if err := c.placements.DeleteBatch(ctx, sceneID, ids); err != nil {
		log.Printf("[SPAWN] dismiss %d placements on scene %s: %v", len(ids), sceneID, err)
	}
}

// lookup resolves an entity key by id, then exact name, then the
// compendium search.
func (c *Coordinator) lookup(ctx context.Context, entityKey string) (domain.Entity, bool) {
	if id, err := uuid.Parse(entityKey); err == nil {
		if entity, err := c.entities.GetByID(ctx, id); err == nil {
			return entity, true
		}
	}
	if entity, err := c.entities.GetByName(ctx, entityKey); err == nil {
		return entity, true
	}
	if c.compendium != nil {
		entity, found, err := c.compendium.Search(ctx, entityKey)
		if err != nil {
			log.Printf("[SPAWN] compendium search %q: %v", entityKey, err)
		} else if found {
			// Catalogue hits are imported into the entity store so the
			// placements created below reference a resolvable entity.
			imported, err := c.entities.Create(ctx, entity)
			if err != nil {
				log.Printf("[SPAWN] import compendium entry %q: %v", entityKey, err)
				return domain.Entity{}, false
			}
			return imported, true
		}
	}
	return domain.Entity{}, false
}

func (c *Coordinator) acquireOrigin(ctx context.Context, scene domain.Scene, update domain.UpdateRequest, opts Options) (placement.Candidate, bool) {
	if x, y, ok := update.Position(); ok {
		return placement.Candidate{X: x, Y: y}, true
	}
	if c.selector == nil {
		log.Printf("[SPAWN] no position supplied and no selector available on scene %s", scene.ID)
		return placement.Candidate{}, false
	}

	cfg := opts.Selection
	cfg.Scene = scene
	result := c.selector.Show(ctx, cfg)
	if result.Cancelled {
		log.Printf("[SPAWN] position selection cancelled on scene %s", scene.ID)
		return placement.Candidate{}, false
	}
	return placement.Candidate{X: result.X, Y: result.Y}, true
}

// buildPayload merges the source entity's prototype with the caller's
// presentation fields, pins the origin and unlinks the instance from
// its source.
func (c *Coordinator) buildPayload(scene domain.Scene, entity domain.Entity, update domain.UpdateRequest, origin placement.Candidate) domain.Placement {
	attributes := domain.CloneTree(entity.Prototype)
	for path, value := range update.PresentationFields {
		if value == nil {
			dotpath.Delete(attributes, path)
			continue
		}
		dotpath.Set(attributes, path, value)
	}
	attributes[domain.AttrX] = origin.X
	attributes[domain.AttrY] = origin.Y
	attributes[domain.AttrLinked] = false
	return domain.NewPlacement(scene.ID, entity.ID, entity.Name, attributes)
}
