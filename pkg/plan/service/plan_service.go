package service

import (
	"context"

	"acao/pkg/plan/types"
)

// PlanBRequest is what changed since a baseline. Constraints nil keeps the baseline's
// set; PriceShocks multiplies the price of each listed crop.
type PlanBRequest struct {
	WaterQuotaM3  *float64            `json:"water_quota_m3,omitempty" validate:"omitempty,gte=0"`
	Constraints   types.ConstraintSet `json:"constraints,omitempty"`
	PriceShocks   map[string]float64  `json:"price_shocks,omitempty" validate:"omitempty,dive,gt=0"`
	TriggerReason string              `json:"trigger_reason" validate:"required"`
}

type PlanService interface {
	GetFieldRecommendations(ctx context.Context, fieldID string) (types.FieldRecommendation, error)
	RunOptimization(ctx context.Context, waterQuotaM3 float64, constraints types.ConstraintSet, label types.ScenarioLabel) (types.Scenario, error)
	TriggerPlanB(ctx context.Context, baselineID string, req PlanBRequest) (types.Scenario, error)
	GetNationalSupply(ctx context.Context, scenarioID string) (types.NationalSupply, error)
	// ListPlanB returns the plan B scenarios derived from a baseline, oldest first.
	ListPlanB(ctx context.Context, baselineID string) ([]types.Scenario, error)
}
