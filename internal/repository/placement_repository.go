package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/scenekit/internal/domain"
)

// placementRepository implements PlacementRepository on Postgres.
type placementRepository struct {
	pool *pgxpool.Pool
}

// NewPlacementRepository creates a new placement repository.
func NewPlacementRepository(pool *pgxpool.Pool) PlacementRepository {
	return &placementRepository{pool: pool}
}

const placementColumns = "id, scene_id, entity_id, name, attributes, created_at, updated_at"

// Create creates a new placement on a scene.
func (r *placementRepository) Create(ctx context.Context, placement domain.Placement) (domain.Placement, error) {
	attributesJSON, err := json.Marshal(domain.CloneTree(placement.Attributes))
	if err != nil {
		return domain.Placement{}, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO placements (id, scene_id, entity_id, name, attributes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+placementColumns,
		placement.ID, placement.SceneID, placement.EntityID, placement.Name, attributesJSON,
	)
	created, err := scanPlacement(row)
	if err != nil {
		return domain.Placement{}, fmt.Errorf("failed to create placement: %w", err)
	}
	return created, nil
}

// GetByID retrieves a placement by ID.
func (r *placementRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Placement, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+placementColumns+` FROM placements WHERE id = $1`, id)
	placement, err := scanPlacement(row)
	if err != nil {
		return domain.Placement{}, fmt.Errorf("failed to get placement: %w", err)
	}
	return placement, nil
}

// ListByScene retrieves all placements on a scene in creation order.
func (r *placementRepository) ListByScene(ctx context.Context, sceneID uuid.UUID) ([]domain.Placement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+placementColumns+` FROM placements WHERE scene_id = $1 ORDER BY created_at`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	var placements []domain.Placement
	for rows.Next() {
		placement, err := scanPlacement(rows)
		if err != nil {
			return nil, err
		}
		placements = append(placements, placement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read placement rows: %w", err)
	}
	return placements, nil
}

// OccupiedRectangles returns the world-space bounding rectangle of
// every placement on the scene.
func (r *placementRepository) OccupiedRectangles(ctx context.Context, scene domain.Scene) ([]domain.Rect, error) {
	placements, err := r.ListByScene(ctx, scene.ID)
	if err != nil {
		return nil, err
	}

	rects := make([]domain.Rect, 0, len(placements))
	for _, placement := range placements {
		rects = append(rects, placement.Rect(scene.GridSize))
	}
	return rects, nil
}

// UpdateAttributes replaces the placement's attribute tree.
func (r *placementRepository) UpdateAttributes(ctx context.Context, id uuid.UUID, attributes map[string]any) (domain.Placement, error) {
	attributesJSON, err := json.Marshal(domain.CloneTree(attributes))
	if err != nil {
		return domain.Placement{}, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE placements SET attributes = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+placementColumns,
		id, attributesJSON,
	)
	placement, err := scanPlacement(row)
	if err != nil {
		return domain.Placement{}, fmt.Errorf("failed to update placement attributes: %w", err)
	}
	return placement, nil
}

// DeleteBatch removes the given placements from a scene in one
// statement. Ids on other scenes are left untouched.
func (r *placementRepository) DeleteBatch(ctx context.Context, sceneID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM placements WHERE scene_id = $1 AND id = ANY($2)`, sceneID, ids); err != nil {
		return fmt.Errorf("failed to delete placements: %w", err)
	}
	return nil
}

func scanPlacement(row pgx.Row) (domain.Placement, error) {
	var (
		placement      domain.Placement
		attributesJSON json.RawMessage
	)
	if err := row.Scan(
		&placement.ID, &placement.SceneID, &placement.EntityID, &placement.Name,
		&attributesJSON,
		&placement.CreatedAt, &placement.UpdatedAt,
	); err != nil {
		return domain.Placement{}, err
	}

	attributes, err := domain.TreeFromJSON(attributesJSON)
	if err != nil {
		return domain.Placement{}, fmt.Errorf("failed to decode attributes: %w", err)
	}
	placement.Attributes = attributes
	return placement, nil
}
