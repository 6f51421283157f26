package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/scenekit/internal/domain"
)

// sceneRepository implements SceneRepository on Postgres.
type sceneRepository struct {
	pool *pgxpool.Pool
}

// NewSceneRepository creates a new scene repository.
func NewSceneRepository(pool *pgxpool.Pool) SceneRepository {
	return &sceneRepository{pool: pool}
}

const sceneColumns = "id, name, grid_size, width, height, created_at, updated_at"

// Create creates a new scene.
func (r *sceneRepository) Create(ctx context.Context, scene domain.Scene) (domain.Scene, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO scenes (id, name, grid_size, width, height)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+sceneColumns,
		scene.ID, scene.Name, scene.GridSize, scene.Width, scene.Height,
	)
	created, err := scanScene(row)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("failed to create scene: %w", err)
	}
	return created, nil
}

// GetByID retrieves a scene by ID.
func (r *sceneRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Scene, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sceneColumns+` FROM scenes WHERE id = $1`, id)
	scene, err := scanScene(row)
	if err != nil {
		return domain.Scene{}, fmt.Errorf("failed to get scene: %w", err)
	}
	return scene, nil
}

// List retrieves all scenes in creation order.
func (r *sceneRepository) List(ctx context.Context) ([]domain.Scene, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sceneColumns+` FROM scenes ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []domain.Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scene rows: %w", err)
	}
	return scenes, nil
}

func scanScene(row pgx.Row) (domain.Scene, error) {
	var scene domain.Scene
	if err := row.Scan(
		&scene.ID, &scene.Name, &scene.GridSize, &scene.Width, &scene.Height,
		&scene.CreatedAt, &scene.UpdatedAt,
	); err != nil {
		return domain.Scene{}, err
	}
	return scene, nil
}
