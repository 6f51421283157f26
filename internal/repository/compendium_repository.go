package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/scenekit/internal/domain"
)

// compendiumRepository implements CompendiumRepository on Postgres.
// Entries are reference material; Search materialises a fresh entity
// from the matched row and never mutates the catalogue. The caller
// persists the result before referencing its id.
type compendiumRepository struct {
	pool *pgxpool.Pool
}

// NewCompendiumRepository creates a new compendium repository.
func NewCompendiumRepository(pool *pgxpool.Pool) CompendiumRepository {
	return &compendiumRepository{pool: pool}
}

// Search looks up the best catalogue match for a term. Exact name
// matches win; otherwise the first case-insensitive prefix match in
// name order is returned. The boolean reports whether a match was
// found.
func (r *compendiumRepository) Search(ctx context.Context, term string) (domain.Entity, bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT name, kind, properties, prototype FROM compendium_entries
		 WHERE name = $1 OR lower(name) LIKE lower($1) || '%'
		 ORDER BY (name = $1) DESC, name
		 LIMIT 1`,
		term,
	)

	var (
		name, kind     string
		propertiesJSON json.RawMessage
		prototypeJSON  json.RawMessage
	)
	if err := row.Scan(&name, &kind, &propertiesJSON, &prototypeJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Entity{}, false, nil
		}
		return domain.Entity{}, false, fmt.Errorf("failed to search compendium: %w", err)
	}

	properties, err := domain.TreeFromJSON(propertiesJSON)
	if err != nil {
		return domain.Entity{}, false, fmt.Errorf("failed to decode compendium properties: %w", err)
	}
	prototype, err := domain.TreeFromJSON(prototypeJSON)
	if err != nil {
		return domain.Entity{}, false, fmt.Errorf("failed to decode compendium prototype: %w", err)
	}

	return domain.NewEntity(name, kind, properties, prototype), true, nil
}
