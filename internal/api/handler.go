// Package api exposes the scene orchestration operations over JSON
// HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/scenekit/internal/config"
	"github.com/rpattn/scenekit/internal/domain"
	"github.com/rpattn/scenekit/internal/hub"
	"github.com/rpattn/scenekit/internal/middleware"
	"github.com/rpattn/scenekit/internal/mutation"
	"github.com/rpattn/scenekit/internal/repository"
	"github.com/rpattn/scenekit/internal/selection"
	"github.com/rpattn/scenekit/internal/spawn"
)

type Handler struct {
	entities   repository.EntityRepository
	compendium repository.CompendiumRepository
	scenes     repository.SceneRepository
	placements repository.PlacementRepository
	engine     *mutation.Engine
	sessions   *hub.Hub
	defaults   config.Scenes
}

func NewHTTPHandler(
	entities repository.EntityRepository,
	compendium repository.CompendiumRepository,
	scenes repository.SceneRepository,
	placements repository.PlacementRepository,
	engine *mutation.Engine,
	sessions *hub.Hub,
	defaults config.Scenes,
) http.Handler {
	return &Handler{
		entities:   entities,
		compendium: compendium,
		scenes:     scenes,
		placements: placements,
		engine:     engine,
		sessions:   sessions,
		defaults:   defaults,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/spawn"):
		h.handleSpawn(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/dismiss"):
		h.handleDismiss(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/mutate"):
		h.handleMutate(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/revert"):
		h.handleRevert(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/mutations"):
		h.handleListMutations(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/placements"):
		h.handleListPlacements(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/select"):
		h.handleSelect(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/scenes"):
		h.handleCreateScene(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/scenes"):
		h.handleListScenes(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/entities"):
		h.handleCreateEntity(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type spawnPayload struct {
	Entity           string         `json:"entity"`
	SceneID          string         `json:"sceneId"`
	ClientID         string         `json:"clientId"`
	Update           map[string]any `json:"update"`
	Duplicates       int            `json:"duplicates"`
	DisableCollision bool           `json:"disableCollision"`
	LockPosition     bool           `json:"lockPosition"`
}

func (h *Handler) handleSpawn(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload spawnPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Entity) == "" {
		http.Error(w, "entity is required", http.StatusBadRequest)
		return
	}
	sceneID, err := uuid.Parse(strings.TrimSpace(payload.SceneID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sceneId: %v", err), http.StatusBadRequest)
		return
	}

	coordinator := spawn.NewCoordinator(
		h.entities, h.compendium, h.scenes, h.placements,
		h.selectorFor(payload.ClientID),
	)
	created := coordinator.Spawn(r.Context(), payload.Entity, payload.Update, spawn.Callbacks{}, spawn.Options{
		SceneID:          sceneID,
		Duplicates:       payload.Duplicates,
		DisableCollision: payload.DisableCollision,
		Selection: selection.Config{
			LockPosition:       payload.LockPosition,
			RememberControlled: true,
		},
	})
	if created == nil {
		created = []domain.Placement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"placements": created})
}

type dismissPayload struct {
	SceneID      string   `json:"sceneId"`
	PlacementIDs []string `json:"placementIds"`
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload dismissPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	sceneID, err := uuid.Parse(strings.TrimSpace(payload.SceneID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sceneId: %v", err), http.StatusBadRequest)
		return
	}

	placements := make([]domain.Placement, 0, len(payload.PlacementIDs))
	for _, raw := range payload.PlacementIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid placement id %q: %v", raw, err), http.StatusBadRequest)
			return
		}
		placements = append(placements, domain.Placement{ID: id})
	}

	coordinator := spawn.NewCoordinator(h.entities, h.compendium, h.scenes, h.placements, nil)
	coordinator.Dismiss(r.Context(), sceneID, placements...)
	writeJSON(w, http.StatusOK, map[string]any{"dismissed": len(placements)})
}

type mutatePayload struct {
	EntityID    string         `json:"entityId"`
	PlacementID string         `json:"placementId"`
	Name        string         `json:"name"`
	Permanent   bool           `json:"permanent"`
	Update      map[string]any `json:"update"`
}

func (h *Handler) handleMutate(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload mutatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	target, err := parseTarget(payload.EntityID, payload.PlacementID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record := h.engine.Apply(r.Context(), target, payload.Update, mutation.ApplyCallbacks{}, mutation.Options{
		Name:      payload.Name,
		Permanent: payload.Permanent,
	})
	writeJSON(w, http.StatusOK, map[string]any{"record": record})
}

type revertPayload struct {
	EntityID    string `json:"entityId"`
	PlacementID string `json:"placementId"`
	// Name selects one mutation; empty reverts the whole stack.
	Name string `json:"name"`
}

func (h *Handler) handleRevert(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload revertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	target, err := parseTarget(payload.EntityID, payload.PlacementID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reverted := h.engine.Revert(r.Context(), target, payload.Name, mutation.RevertCallbacks{})
	writeJSON(w, http.StatusOK, map[string]any{"reverted": reverted})
}

func (h *Handler) handleListMutations(w http.ResponseWriter, r *http.Request) {
	target, err := parseTarget(r.URL.Query().Get("entityId"), r.URL.Query().Get("placementId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records := h.engine.GetMutations(r.Context(), target)
	writeJSON(w, http.StatusOK, map[string]any{"mutations": records})
}

type placementView struct {
	Placement domain.Placement `json:"placement"`
	Entity    *domain.Entity   `json:"entity,omitempty"`
}

func (h *Handler) handleListPlacements(w http.ResponseWriter, r *http.Request) {
	sceneID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("sceneId")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sceneId: %v", err), http.StatusBadRequest)
		return
	}

	placements, err := h.placements.ListByScene(r.Context(), sceneID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ids := make([]uuid.UUID, 0, len(placements))
	seen := make(map[uuid.UUID]bool, len(placements))
	for _, instance := range placements {
		if !seen[instance.EntityID] {
			seen[instance.EntityID] = true
			ids = append(ids, instance.EntityID)
		}
	}
	entities := h.resolveEntities(r.Context(), ids)

	views := make([]placementView, 0, len(placements))
	for _, instance := range placements {
		view := placementView{Placement: instance}
		if entity, ok := entities[instance.EntityID]; ok {
			view.Entity = &entity
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"placements": views})
}

// resolveEntities fetches a set of entities in one round trip, through
// the per-request loader when the middleware attached one.
func (h *Handler) resolveEntities(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]domain.Entity {
	if len(ids) == 0 {
		return nil
	}
	if loader := middleware.EntityLoaderFromContext(ctx); loader != nil {
		return loader.LoadMany(ctx, ids)
	}

	fetched, err := h.entities.GetByIDs(ctx, ids)
	if err != nil {
		return nil
	}
	resolved := make(map[uuid.UUID]domain.Entity, len(fetched))
	for _, entity := range fetched {
		resolved[entity.ID] = entity
	}
	return resolved
}

type selectPayload struct {
	ClientID     string  `json:"clientId"`
	SceneID      string  `json:"sceneId"`
	StartX       float64 `json:"startX"`
	StartY       float64 `json:"startY"`
	LockPosition bool    `json:"lockPosition"`
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload selectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	sceneID, err := uuid.Parse(strings.TrimSpace(payload.SceneID))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sceneId: %v", err), http.StatusBadRequest)
		return
	}
	scene, err := h.scenes.GetByID(r.Context(), sceneID)
	if err != nil {
		http.Error(w, fmt.Sprintf("unknown scene: %v", err), http.StatusNotFound)
		return
	}

	client, ok := h.sessions.Client(payload.ClientID)
	if !ok {
		http.Error(w, fmt.Sprintf("no connected client %q", payload.ClientID), http.StatusConflict)
		return
	}

	selector := selection.NewSelector(client, client, client)
	result := selector.Show(r.Context(), selection.Config{
		Scene:              scene,
		StartX:             payload.StartX,
		StartY:             payload.StartY,
		LockPosition:       payload.LockPosition,
		RememberControlled: true,
	})
	writeJSON(w, http.StatusOK, result)
}

type createScenePayload struct {
	Name     string   `json:"name"`
	GridSize *float64 `json:"gridSize"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
}

func (h *Handler) handleCreateScene(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createScenePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	scene := domain.Scene{
		ID:       uuid.New(),
		Name:     payload.Name,
		GridSize: h.defaults.GridSize,
		Width:    h.defaults.Width,
		Height:   h.defaults.Height,
	}
	if payload.GridSize != nil {
		scene.GridSize = *payload.GridSize
	}
	if payload.Width != nil {
		scene.Width = *payload.Width
	}
	if payload.Height != nil {
		scene.Height = *payload.Height
	}

	created, err := h.scenes.Create(r.Context(), scene)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleListScenes(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.scenes.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if scenes == nil {
		scenes = []domain.Scene{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenes": scenes})
}

type createEntityPayload struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Properties map[string]any `json:"properties"`
	Prototype  map[string]any `json:"prototype"`
}

func (h *Handler) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload createEntityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	kind := payload.Kind
	if kind == "" {
		kind = "actor"
	}

	created, err := h.entities.Create(r.Context(), domain.NewEntity(payload.Name, kind, payload.Properties, payload.Prototype))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// selectorFor binds the interactive picker to one connected session.
// Spawns with explicit coordinates never reach the selector, so a
// missing or unknown client id only matters for pick-driven spawns.
func (h *Handler) selectorFor(clientID string) spawn.Selector {
	if clientID == "" {
		return nil
	}
	client, ok := h.sessions.Client(clientID)
	if !ok {
		return nil
	}
	return selection.NewSelector(client, client, client)
}

func parseTarget(entityID, placementID string) (mutation.Target, error) {
	if raw := strings.TrimSpace(placementID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return mutation.Target{}, fmt.Errorf("invalid placementId: %v", err)
		}
		return mutation.TargetPlacement(id), nil
	}
	if raw := strings.TrimSpace(entityID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return mutation.Target{}, fmt.Errorf("invalid entityId: %v", err)
		}
		return mutation.TargetEntity(id), nil
	}
	return mutation.Target{}, fmt.Errorf("entityId or placementId is required")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
