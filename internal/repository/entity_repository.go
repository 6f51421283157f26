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

// entityRepository implements EntityRepository on Postgres.
type entityRepository struct {
	pool *pgxpool.Pool
}

// NewEntityRepository creates a new entity repository.
func NewEntityRepository(pool *pgxpool.Pool) EntityRepository {
	return &entityRepository{pool: pool}
}

const entityColumns = "id, name, kind, properties, prototype, created_at, updated_at"

// Create creates a new entity.
func (r *entityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	propertiesJSON, err := entity.PropertiesJSON()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}
	prototypeJSON, err := json.Marshal(domain.CloneTree(entity.Prototype))
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal prototype: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO entities (id, name, kind, properties, prototype)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+entityColumns,
		entity.ID, entity.Name, entity.Kind, propertiesJSON, prototypeJSON,
	)
	created, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to create entity: %w", err)
	}
	return created, nil
}

// GetByID retrieves an entity by ID.
func (r *entityRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Entity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	entity, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to get entity: %w", err)
	}
	return entity, nil
}

// GetByIDs retrieves multiple entities by their IDs.
func (r *entityRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	if len(ids) == 0 {
		return []domain.Entity{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get entities by IDs: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// GetByName retrieves an entity by its exact name.
func (r *entityRepository) GetByName(ctx context.Context, name string) (domain.Entity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name = $1 ORDER BY created_at LIMIT 1`, name)
	entity, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to get entity by name: %w", err)
	}
	return entity, nil
}

// UpdateProperties replaces the entity's attribute tree.
func (r *entityRepository) UpdateProperties(ctx context.Context, id uuid.UUID, properties map[string]any) (domain.Entity, error) {
	propertiesJSON, err := json.Marshal(domain.CloneTree(properties))
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE entities SET properties = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+entityColumns,
		id, propertiesJSON,
	)
	entity, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to update entity properties: %w", err)
	}
	return entity, nil
}

// Delete deletes an entity.
func (r *entityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}

func scanEntity(row pgx.Row) (domain.Entity, error) {
	var (
		entity         domain.Entity
		propertiesJSON json.RawMessage
		prototypeJSON  json.RawMessage
	)
	if err := row.Scan(
		&entity.ID, &entity.Name, &entity.Kind,
		&propertiesJSON, &prototypeJSON,
		&entity.CreatedAt, &entity.UpdatedAt,
	); err != nil {
		return domain.Entity{}, err
	}

	properties, err := domain.TreeFromJSON(propertiesJSON)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode properties: %w", err)
	}
	prototype, err := domain.TreeFromJSON(prototypeJSON)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode prototype: %w", err)
	}
	entity.Properties = properties
	entity.Prototype = prototype
	return entity, nil
}

func collectEntities(rows pgx.Rows) ([]domain.Entity, error) {
	var entities []domain.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entity rows: %w", err)
	}
	return entities, nil
}
