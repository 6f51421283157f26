// Package mutation implements named, reversible, stacked field
// mutations against entities and their presentation surfaces.
package mutation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/scenekit/internal/domain"
	"github.com/rpattn/scenekit/internal/repository"
	"github.com/rpattn/scenekit/pkg/dotpath"
)

// Namespace scopes all annotations written by this engine.
const Namespace = "scenekit"

// stackKey is the annotation key holding an entity's mutation stack.
const stackKey = "mutate"

// Target addresses what a mutation applies to: an entity directly, or
// a placement standing in for its entity. Presentation fields only
// apply when the target carries a placement.
type Target struct {
	EntityID    uuid.UUID
	PlacementID uuid.UUID
}

// TargetEntity addresses an entity with no presentation surface bound.
func TargetEntity(id uuid.UUID) Target { return Target{EntityID: id} }

// TargetPlacement addresses a placement; the engine resolves its
// owning entity.
func TargetPlacement(id uuid.UUID) Target { return Target{PlacementID: id} }

// Options adjusts one Apply call.
type Options struct {
	// Name keys the mutation record. Empty means the engine generates
	// one.
	Name string
	// Permanent skips record capture entirely; the change cannot be
	// reverted by this engine.
	Permanent bool
}

// ApplyCallbacks hook the apply flow. A nil field means no hook. Pre
// returning false aborts before any state is touched; Pre may adjust
// the prepared update in place. Both hooks may block on further
// asynchronous work; the engine waits for them.
type ApplyCallbacks struct {
	Pre  func(ctx context.Context, update *domain.UpdateRequest, entity domain.Entity) bool
	Post func(ctx context.Context, record *domain.MutationRecord, entity domain.Entity)
}

// RevertCallbacks hook the revert flow with the same sentinel
// semantics as ApplyCallbacks.
type RevertCallbacks struct {
	Pre  func(ctx context.Context, record domain.MutationRecord, entity domain.Entity) bool
	Post func(ctx context.Context, record domain.MutationRecord, entity domain.Entity)
}

// Engine owns the stacked-diff model: it normalizes raw updates,
// snapshots the live values an update touches, applies the update,
// and reverts by name or in bulk.
//
// The engine holds no internal locks. Callers must not run Apply and
// Revert concurrently against the same entity; a concurrent snapshot
// read racing a commit can record a stale original.
type Engine struct {
	entities    repository.EntityRepository
	placements  repository.PlacementRepository
	embedded    repository.EmbeddedRepository
	annotations repository.AnnotationRepository
}

// NewEngine creates a mutation engine over the given stores.
func NewEngine(
	entities repository.EntityRepository,
	placements repository.PlacementRepository,
	embedded repository.EmbeddedRepository,
	annotations repository.AnnotationRepository,
) *Engine {
	return &Engine{
		entities:    entities,
		placements:  placements,
		embedded:    embedded,
		annotations: annotations,
	}
}

// Apply normalizes raw into an UpdateRequest, captures a revert record
// (unless opts.Permanent), persists it, and applies the update to the
// entity's fields, its presentation surface and its embedded
// collections. Each sub-operation is best-effort: a storage fault is
// reported and does not stop the siblings.
//
// Resolution failure and a Pre returning false both resolve to a nil
// record with no state touched.
func (e *Engine) Apply(ctx context.Context, target Target, raw map[string]any, cb ApplyCallbacks, opts Options) *domain.MutationRecord {
	entity, placement, ok := e.resolve(ctx, target)
	if !ok {
		return nil
	}

	update := domain.NormalizeUpdate(raw)
	if cb.Pre != nil && !cb.Pre(ctx, &update, entity) {
		return nil
	}

	var record *domain.MutationRecord
	if !opts.Permanent {
		name := opts.Name
		if name == "" {
			name = uuid.NewString()
		}
		record = &domain.MutationRecord{
			Name:      name,
			Original:  e.snapshot(ctx, entity, placement, update),
			Updates:   update,
			CreatedAt: time.Now(),
		}
		if err := e.storeRecord(ctx, entity.ID, *record); err != nil {
			log.Printf("[MUTATE] persist record %q for entity %s: %v", name, entity.ID, err)
		}
	}

	created := e.applyUpdate(ctx, entity, placement, update)
	if record != nil && len(created) > 0 {
		// Children created by this mutation are deleted again on
		// revert; their ids only exist after the creates land.
		for collection, ids := range created {
			entry := record.Original.Embedded[collection]
			entry.Deletes = append(entry.Deletes, ids...)
			record.Original.Embedded[collection] = entry
		}
		if err := e.storeRecord(ctx, entity.ID, *record); err != nil {
			log.Printf("[MUTATE] persist created-ids for record %q on entity %s: %v", record.Name, entity.ID, err)
		}
	}

	if cb.Post != nil {
		cb.Post(ctx, record, entity)
	}
	return record
}

// Revert undoes the named mutation, restoring the snapshotted values
// and deleting the record. An empty name reverts every stored record
// oldest-insertion-order first; each revert is independent and
// best-effort. It reports whether the named record was reverted (or,
// for bulk revert, that processing completed).
func (e *Engine) Revert(ctx context.Context, target Target, name string, cb RevertCallbacks) bool {
	entity, placement, ok := e.resolve(ctx, target)
	if !ok {
		return false
	}

	var placementID uuid.UUID
	if placement != nil {
		placementID = placement.ID
	}

	if name != "" {
		return e.revertNamed(ctx, entity.ID, placementID, name, cb)
	}

	stack, err := e.loadStack(ctx, entity.ID)
	if err != nil {
		log.Printf("[MUTATE] load stack for entity %s: %v", entity.ID, err)
		return false
	}
	// The name list is fixed up front; each record is re-read at its
	// own turn so hooks that touch the stack mid-loop see consistent
	// state. Names gone by then are skipped.
	for _, recorded := range stack.Names() {
		e.revertNamed(ctx, entity.ID, placementID, recorded, cb)
	}
	return true
}

// HasMutation reports whether the named record exists, or whether any
// record exists when name is empty. It fails closed on resolution or
// storage errors.
func (e *Engine) HasMutation(ctx context.Context, target Target, name string) bool {
	entity, _, ok := e.resolve(ctx, target)
	if !ok {
		return false
	}
	stack, err := e.loadStack(ctx, entity.ID)
	if err != nil {
		log.Printf("[MUTATE] load stack for entity %s: %v", entity.ID, err)
		return false
	}
	if name == "" {
		return stack.Len() > 0
	}
	_, present := stack.Get(name)
	return present
}

// GetMutations returns the stored records keyed by name, or an empty
// map when the target does not resolve.
func (e *Engine) GetMutations(ctx context.Context, target Target) map[string]domain.MutationRecord {
	entity, _, ok := e.resolve(ctx, target)
	if !ok {
		return map[string]domain.MutationRecord{}
	}
	stack, err := e.loadStack(ctx, entity.ID)
	if err != nil {
		log.Printf("[MUTATE] load stack for entity %s: %v", entity.ID, err)
		return map[string]domain.MutationRecord{}
	}
	return stack.Records()
}

func (e *Engine) revertNamed(ctx context.Context, entityID, placementID uuid.UUID, name string, cb RevertCallbacks) bool {
	// Fresh reads: an earlier revert in a bulk run (or its post hook)
	// may already have rewritten the entity and the stack.
	entity, err := e.entities.GetByID(ctx, entityID)
	if err != nil {
		log.Printf("[MUTATE] revert %q: reload entity %s: %v", name, entityID, err)
		return false
	}
	var placement *domain.Placement
	if placementID != uuid.Nil {
		current, err := e.placements.GetByID(ctx, placementID)
		if err != nil {
			log.Printf("[MUTATE] revert %q: reload placement %s: %v", name, placementID, err)
		} else {
			placement = &current
		}
	}

	stack, err := e.loadStack(ctx, entityID)
	if err != nil {
		log.Printf("[MUTATE] revert %q: load stack for entity %s: %v", name, entityID, err)
		return false
	}
	record, present := stack.Get(name)
	if !present {
		log.Printf("[MUTATE] no mutation named %q on entity %s", name, entityID)
		return false
	}

	if cb.Pre != nil && !cb.Pre(ctx, record, entity) {
		return false
	}

	e.applyUpdate(ctx, entity, placement, record.Original)

	stack.Delete(name)
	if err := e.saveStack(ctx, entityID, stack); err != nil {
		log.Printf("[MUTATE] revert %q: save stack for entity %s: %v", name, entityID, err)
	}

	if cb.Post != nil {
		cb.Post(ctx, record, entity)
	}
	return true
}

func (e *Engine) resolve(ctx context.Context, target Target) (domain.Entity, *domain.Placement, bool) {
	var placement *domain.Placement
	entityID := target.EntityID

	if target.PlacementID != uuid.Nil {
		current, err := e.placements.GetByID(ctx, target.PlacementID)
		if err != nil {
			log.Printf("[MUTATE] resolve placement %s: %v", target.PlacementID, err)
			return domain.Entity{}, nil, false
		}
		placement = &current
		entityID = current.EntityID
	}

	if entityID == uuid.Nil {
		log.Printf("[MUTATE] target carries no entity")
		return domain.Entity{}, nil, false
	}

	entity, err := e.entities.GetByID(ctx, entityID)
	if err != nil {
		log.Printf("[MUTATE] resolve entity %s: %v", entityID, err)
		return domain.Entity{}, nil, false
	}
	return entity, placement, true
}

// snapshot reads the live value of every key the update touches. A nil
// value marks a key absent before the mutation; applying the snapshot
// deletes it again.
func (e *Engine) snapshot(ctx context.Context, entity domain.Entity, placement *domain.Placement, update domain.UpdateRequest) domain.UpdateRequest {
	original := domain.UpdateRequest{
		EntityFields:       map[string]any{},
		PresentationFields: map[string]any{},
		Embedded:           map[string]domain.EmbeddedUpdate{},
	}

	for key := range update.EntityFields {
		value, present := dotpath.Get(entity.Properties, key)
		if !present {
			value = nil
		}
		original.EntityFields[key] = value
	}

	if placement != nil {
		for key := range update.PresentationFields {
			value, present := dotpath.Get(placement.Attributes, key)
			if !present {
				value = nil
			}
			original.PresentationFields[key] = value
		}
	}

	for collection, entry := range update.Embedded {
		if len(entry.Updates) == 0 {
			continue
		}
		snap := domain.EmbeddedUpdate{Updates: map[string]map[string]any{}}
		for childID, fields := range entry.Updates {
			child, err := e.embedded.Get(ctx, entity.ID, collection, childID)
			if err != nil {
				log.Printf("[MUTATE] snapshot embedded %s/%s on entity %s: %v", collection, childID, entity.ID, err)
				continue
			}
			prior := make(map[string]any, len(fields))
			for key := range fields {
				value, present := dotpath.Get(child.Properties, key)
				if !present {
					value = nil
				}
				prior[key] = value
			}
			snap.Updates[childID] = prior
		}
		if len(snap.Updates) > 0 {
			original.Embedded[collection] = snap
		}
	}

	return original
}

// applyUpdate writes an UpdateRequest to storage. Sub-operations run
// sequentially and independently; faults are reported and skipped. It
// returns the ids of embedded records created, per collection.
func (e *Engine) applyUpdate(ctx context.Context, entity domain.Entity, placement *domain.Placement, update domain.UpdateRequest) map[string][]string {
	if len(update.EntityFields) > 0 {
		properties := domain.CloneTree(entity.Properties)
		applyFields(properties, update.EntityFields)
		if _, err := e.entities.UpdateProperties(ctx, entity.ID, properties); err != nil {
			log.Printf("[MUTATE] update entity fields for %s: %v", entity.ID, err)
		}
	}

	if placement != nil && len(update.PresentationFields) > 0 {
		attributes := domain.CloneTree(placement.Attributes)
		applyFields(attributes, update.PresentationFields)
		if _, err := e.placements.UpdateAttributes(ctx, placement.ID, attributes); err != nil {
			log.Printf("[MUTATE] update presentation for placement %s: %v", placement.ID, err)
		}
	}

	created := map[string][]string{}
	for collection, entry := range update.Embedded {
		if len(entry.Creates) > 0 {
			records, err := e.embedded.CreateBatch(ctx, entity.ID, collection, entry.Creates)
			if err != nil {
				log.Printf("[MUTATE] create embedded %s on entity %s: %v", collection, entity.ID, err)
			} else {
				for _, record := range records {
					created[collection] = append(created[collection], record.ID.String())
				}
			}
		}
		if len(entry.Updates) > 0 {
			rewritten := make(map[string]map[string]any, len(entry.Updates))
			for childID, fields := range entry.Updates {
				child, err := e.embedded.Get(ctx, entity.ID, collection, childID)
				if err != nil {
					log.Printf("[MUTATE] update embedded %s/%s on entity %s: %v", collection, childID, entity.ID, err)
					continue
				}
				properties := domain.CloneTree(child.Properties)
				applyFields(properties, fields)
				rewritten[childID] = properties
			}
			if len(rewritten) > 0 {
				if err := e.embedded.UpdateBatch(ctx, entity.ID, collection, rewritten); err != nil {
					log.Printf("[MUTATE] update embedded %s on entity %s: %v", collection, entity.ID, err)
				}
			}
		}
		if len(entry.Deletes) > 0 {
			if err := e.embedded.DeleteBatch(ctx, entity.ID, collection, entry.Deletes); err != nil {
				log.Printf("[MUTATE] delete embedded %s on entity %s: %v", collection, entity.ID, err)
			}
		}
	}
	return created
}

func applyFields(tree map[string]any, fields map[string]any) {
	for path, value := range fields {
		if value == nil {
			dotpath.Delete(tree, path)
			continue
		}
		dotpath.Set(tree, path, value)
	}
}

func (e *Engine) loadStack(ctx context.Context, entityID uuid.UUID) (*domain.MutationStack, error) {
	raw, present, err := e.annotations.Get(ctx, entityID, Namespace, stackKey)
	if err != nil {
		return nil, fmt.Errorf("read mutation stack: %w", err)
	}
	stack := domain.NewMutationStack()
	if !present {
		return stack, nil
	}
	if err := json.Unmarshal(raw, stack); err != nil {
		return nil, fmt.Errorf("decode mutation stack: %w", err)
	}
	return stack, nil
}

func (e *Engine) saveStack(ctx context.Context, entityID uuid.UUID, stack *domain.MutationStack) error {
	if stack.Len() == 0 {
		return e.annotations.Delete(ctx, entityID, Namespace, stackKey)
	}
	raw, err := json.Marshal(stack)
	if err != nil {
		return fmt.Errorf("encode mutation stack: %w", err)
	}
	return e.annotations.Set(ctx, entityID, Namespace, stackKey, raw)
}

func (e *Engine) storeRecord(ctx context.Context, entityID uuid.UUID, record domain.MutationRecord) error {
	stack, err := e.loadStack(ctx, entityID)
	if err != nil {
		return err
	}
	stack.Set(record)
	return e.saveStack(ctx, entityID, stack)
}
