package types

import "time"

type ScenarioLabel string

const (
	LabelBaseline ScenarioLabel = "baseline"
	LabelPlanB    ScenarioLabel = "plan_b"
)

// Scenario is an immutable snapshot of one optimization. A plan_b scenario points
// at its baseline through BaselineID and never modifies it.
type Scenario struct {
	ID            string          `json:"id"`
	Label         ScenarioLabel   `json:"label"`
	BaselineID    string          `json:"baseline_id,omitempty"`
	TriggerReason string          `json:"trigger_reason,omitempty"`
	SeasonID      string          `json:"season_id"`
	Constraints   ConstraintSet   `json:"constraints"`
	Plan          *AllocationPlan `json:"plan"`
	Diff          *PlanDiff       `json:"diff,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type RiskDirection string

const (
	RiskLower     RiskDirection = "lower"
	RiskUnchanged RiskDirection = "unchanged"
	RiskHigher    RiskDirection = "higher"
)

type AreaDelta struct {
	FieldID    string  `json:"field_id"`
	CropID     string  `json:"crop_id"`
	BaselineHa float64 `json:"baseline_ha"`
	PlanBHa    float64 `json:"plan_b_ha"`
	DeltaHa    float64 `json:"delta_ha"`
}

type CropAreaDelta struct {
	CropID     string  `json:"crop_id"`
	BaselineHa float64 `json:"baseline_ha"`
	PlanBHa    float64 `json:"plan_b_ha"`
	DeltaHa    float64 `json:"delta_ha"`
}

type PlanDiff struct {
	BaselineID        string          `json:"baseline_id"`
	AreaDeltas        []AreaDelta     `json:"area_deltas"`
	CropDeltas        []CropAreaDelta `json:"crop_deltas"`
	ProfitDifference  *float64        `json:"profit_difference"`
	WaterDifferenceM3 float64         `json:"water_difference_m3"`
	BaselineRisk      float64         `json:"baseline_risk"`
	PlanBRisk         float64         `json:"plan_b_risk"`
	RiskShift         float64         `json:"risk_shift"`
	RiskDelta         RiskDirection   `json:"risk_delta"`
}

// CropDelta returns the area delta of one crop, zero if the crop is not in the diff.
func (d *PlanDiff) CropDelta(cropID string) float64 {
	for _, c := range d.CropDeltas {
		if c.CropID == cropID {
			return c.DeltaHa
		}
	}
	return 0
}

type CropRecommendation struct {
	Rank              int     `json:"rank"`
	CropID            string  `json:"crop_id"`
	CropName          string  `json:"crop_name"`
	Closeness         float64 `json:"closeness"`
	DominantCriterion string  `json:"dominant_criterion"`
	AllocatedHa       float64 `json:"allocated_ha"`
	Rationale         string  `json:"rationale"`
}

type FieldRecommendation struct {
	FieldID         string               `json:"field_id"`
	Recommendations []CropRecommendation `json:"recommendations"`
	ScenarioID      string               `json:"scenario_id,omitempty"`
	NoEligibleCrop  bool                 `json:"no_eligible_crop"`
}

type NationalSupply struct {
	ScenarioID string       `json:"scenario_id"`
	Status     PlanStatus   `json:"status"`
	Crops      []CropSupply `json:"crops"`
	TotalHa    float64      `json:"total_ha"`
}
