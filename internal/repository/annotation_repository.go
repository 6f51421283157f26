package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// annotationRepository implements AnnotationRepository on Postgres.
// Annotations are keyed JSON documents hung off an entity, scoped by
// namespace so unrelated subsystems never collide.
type annotationRepository struct {
	pool *pgxpool.Pool
}

// NewAnnotationRepository creates a new annotation repository.
func NewAnnotationRepository(pool *pgxpool.Pool) AnnotationRepository {
	return &annotationRepository{pool: pool}
}

// Get retrieves an annotation value. The boolean reports presence;
// a missing row is not an error.
func (r *annotationRepository) Get(ctx context.Context, entityID uuid.UUID, namespace, key string) (json.RawMessage, bool, error) {
	var value json.RawMessage
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM annotations
		 WHERE entity_id = $1 AND namespace = $2 AND key = $3`,
		entityID, namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get annotation: %w", err)
	}
	return value, true, nil
}

// Set upserts an annotation value.
func (r *annotationRepository) Set(ctx context.Context, entityID uuid.UUID, namespace, key string, value json.RawMessage) error {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO annotations (entity_id, namespace, key, value)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (entity_id, namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		entityID, namespace, key, value); err != nil {
		return fmt.Errorf("failed to set annotation: %w", err)
	}
	return nil
}

// Delete removes an annotation. Deleting an absent key is a no-op.
func (r *annotationRepository) Delete(ctx context.Context, entityID uuid.UUID, namespace, key string) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM annotations
		 WHERE entity_id = $1 AND namespace = $2 AND key = $3`,
		entityID, namespace, key); err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	return nil
}
