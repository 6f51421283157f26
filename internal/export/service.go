// Package export renders scene audit workbooks: every placement on a
// scene plus the pending mutation stack of each placed entity.
package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/scenekit/internal/domain"
	"github.com/rpattn/scenekit/internal/mutation"
	"github.com/rpattn/scenekit/internal/repository"
)

// Service builds workbooks from the live stores.
type Service struct {
	scenes     repository.SceneRepository
	placements repository.PlacementRepository
	entities   repository.EntityRepository
	engine     *mutation.Engine
}

// NewService creates an export service.
func NewService(
	scenes repository.SceneRepository,
	placements repository.PlacementRepository,
	entities repository.EntityRepository,
	engine *mutation.Engine,
) *Service {
	return &Service{
		scenes:     scenes,
		placements: placements,
		entities:   entities,
		engine:     engine,
	}
}

const (
	placementsSheet = "Placements"
	mutationsSheet  = "Mutations"
)

// BuildWorkbook renders the audit workbook for one scene. The caller
// owns the returned file and must close it.
func (s *Service) BuildWorkbook(ctx context.Context, sceneID uuid.UUID) (*excelize.File, error) {
	scene, err := s.scenes.GetByID(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}

	placements, err := s.placements.ListByScene(ctx, scene.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load placements: %w", err)
	}

	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), placementsSheet)
	if _, err := f.NewSheet(mutationsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add mutations sheet: %w", err)
	}

	if err := s.writePlacements(f, scene, placements); err != nil {
		f.Close()
		return nil, err
	}
	if err := s.writeMutations(ctx, f, placements); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (s *Service) writePlacements(f *excelize.File, scene domain.Scene, placements []domain.Placement) error {
	headers := []any{"ID", "Entity ID", "Name", "X", "Y", "Width", "Height", "Hidden"}
	if err := f.SetSheetRow(placementsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write placement headers: %w", err)
	}

	for i, placement := range placements {
		rect := placement.Rect(scene.GridSize)
		hidden, _ := placement.Attributes[domain.AttrHidden].(bool)
		row := []any{
			placement.ID.String(),
			placement.EntityID.String(),
			placement.Name,
			placement.X(),
			placement.Y(),
			rect.Width,
			rect.Height,
			hidden,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(placementsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write placement row %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Service) writeMutations(ctx context.Context, f *excelize.File, placements []domain.Placement) error {
	headers := []any{"Entity ID", "Entity Name", "Mutation", "Created At", "Paths"}
	if err := f.SetSheetRow(mutationsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write mutation headers: %w", err)
	}

	seen := make(map[uuid.UUID]bool)
	rowIndex := 2
	for _, placement := range placements {
		if seen[placement.EntityID] {
			continue
		}
		seen[placement.EntityID] = true

		records := s.engine.GetMutations(ctx, mutation.TargetEntity(placement.EntityID))
		names := make([]string, 0, len(records))
		for name := range records {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			record := records[name]
			row := []any{
				placement.EntityID.String(),
				placement.Name,
				name,
				record.CreatedAt.Format("2006-01-02 15:04:05"),
				strings.Join(touchedPaths(record), ", "),
			}
			cell := fmt.Sprintf("A%d", rowIndex)
			if err := f.SetSheetRow(mutationsSheet, cell, &row); err != nil {
				return fmt.Errorf("failed to write mutation row %d: %w", rowIndex-1, err)
			}
			rowIndex++
		}
	}
	return nil
}

// touchedPaths lists the dotted paths a record's update changed, in
// stable order.
func touchedPaths(record domain.MutationRecord) []string {
	unique := make(map[string]bool)
	for path := range record.Updates.EntityFields {
		unique["actor."+path] = true
	}
	for path := range record.Updates.PresentationFields {
		unique["token."+path] = true
	}
	for collection := range record.Updates.Embedded {
		unique["embedded."+collection] = true
	}

	paths := make([]string, 0, len(unique))
	for path := range unique {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
