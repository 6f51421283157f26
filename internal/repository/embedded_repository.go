package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/scenekit/internal/db"
	"github.com/rpattn/scenekit/internal/domain"
)

// embeddedRepository implements EmbeddedRepository on Postgres. Batch
// writes run inside a transaction so a collection update lands whole
// or not at all.
type embeddedRepository struct {
	conn *db.Connection
}

// NewEmbeddedRepository creates a new embedded record repository.
func NewEmbeddedRepository(conn *db.Connection) EmbeddedRepository {
	return &embeddedRepository{conn: conn}
}

const embeddedColumns = "id, entity_id, collection, properties, created_at, updated_at"

// Get retrieves one child record of an entity's collection by its id.
func (r *embeddedRepository) Get(ctx context.Context, entityID uuid.UUID, collection, childID string) (domain.EmbeddedRecord, error) {
	id, err := uuid.Parse(childID)
	if err != nil {
		return domain.EmbeddedRecord{}, fmt.Errorf("invalid embedded record id %q: %w", childID, err)
	}

	row := r.conn.Pool.QueryRow(ctx,
		`SELECT `+embeddedColumns+` FROM embedded_records
		 WHERE id = $1 AND entity_id = $2 AND collection = $3`,
		id, entityID, collection,
	)
	record, err := scanEmbedded(row)
	if err != nil {
		return domain.EmbeddedRecord{}, fmt.Errorf("failed to get embedded record: %w", err)
	}
	return record, nil
}

// ListByEntity retrieves all child records of an entity's collection.
func (r *embeddedRepository) ListByEntity(ctx context.Context, entityID uuid.UUID, collection string) ([]domain.EmbeddedRecord, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT `+embeddedColumns+` FROM embedded_records
		 WHERE entity_id = $1 AND collection = $2 ORDER BY created_at`,
		entityID, collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded records: %w", err)
	}
	defer rows.Close()

	var records []domain.EmbeddedRecord
	for rows.Next() {
		record, err := scanEmbedded(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read embedded record rows: %w", err)
	}
	return records, nil
}

// CreateBatch inserts child records into an entity's collection and
// returns them with their assigned ids.
func (r *embeddedRepository) CreateBatch(ctx context.Context, entityID uuid.UUID, collection string, records []map[string]any) ([]domain.EmbeddedRecord, error) {
	if len(records) == 0 {
		return []domain.EmbeddedRecord{}, nil
	}

	created := make([]domain.EmbeddedRecord, 0, len(records))
	batch := &pgx.Batch{}
	for _, properties := range records {
		record := domain.NewEmbeddedRecord(entityID, collection, properties)
		propertiesJSON, err := json.Marshal(record.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embedded properties: %w", err)
		}
		batch.Queue(
			`INSERT INTO embedded_records (id, entity_id, collection, properties)
			 VALUES ($1, $2, $3, $4)`,
			record.ID, record.EntityID, record.Collection, propertiesJSON,
		)
		created = append(created, record)
	}

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range created {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to create embedded records: %w", err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateBatch replaces the properties of the given child records,
// keyed by record id.
func (r *embeddedRepository) UpdateBatch(ctx context.Context, entityID uuid.UUID, collection string, records map[string]map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for childID, properties := range records {
		id, err := uuid.Parse(childID)
		if err != nil {
			return fmt.Errorf("invalid embedded record id %q: %w", childID, err)
		}
		propertiesJSON, err := json.Marshal(domain.CloneTree(properties))
		if err != nil {
			return fmt.Errorf("failed to marshal embedded properties: %w", err)
		}
		batch.Queue(
			`UPDATE embedded_records SET properties = $4, updated_at = NOW()
			 WHERE id = $1 AND entity_id = $2 AND collection = $3`,
			id, entityID, collection, propertiesJSON,
		)
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < len(records); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to update embedded records: %w", err)
			}
		}
		return results.Close()
	})
}

// DeleteBatch removes child records from an entity's collection.
func (r *embeddedRepository) DeleteBatch(ctx context.Context, entityID uuid.UUID, collection string, childIDs []string) error {
	if len(childIDs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(childIDs))
	for _, childID := range childIDs {
		id, err := uuid.Parse(childID)
		if err != nil {
			return fmt.Errorf("invalid embedded record id %q: %w", childID, err)
		}
		ids = append(ids, id)
	}

	if _, err := r.conn.Pool.Exec(ctx,
		`DELETE FROM embedded_records
		 WHERE entity_id = $1 AND collection = $2 AND id = ANY($3)`,
		entityID, collection, ids); err != nil {
		return fmt.Errorf("failed to delete embedded records: %w", err)
	}
	return nil
}

func scanEmbedded(row pgx.Row) (domain.EmbeddedRecord, error) {
	var (
		record         domain.EmbeddedRecord
		propertiesJSON json.RawMessage
	)
	if err := row.Scan(
		&record.ID, &record.EntityID, &record.Collection,
		&propertiesJSON,
		&record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return domain.EmbeddedRecord{}, err
	}

	properties, err := domain.TreeFromJSON(propertiesJSON)
	if err != nil {
		return domain.EmbeddedRecord{}, fmt.Errorf("failed to decode embedded properties: %w", err)
	}
	record.Properties = properties
	return record, nil
}
