package repository

import (
	"context"

	"acao/pkg/plan/types"
)

// ScenarioRepository keeps the append-only scenario history.
type ScenarioRepository interface {
	Create(ctx context.Context, s *types.Scenario) error
	FindByID(ctx context.Context, id string) (*types.Scenario, error)
	// LatestBaseline returns the newest baseline of a season, or of any season when seasonID is empty.
	LatestBaseline(ctx context.Context, seasonID string) (*types.Scenario, error)
	ListByBaseline(ctx context.Context, baselineID string) ([]types.Scenario, error)
}
