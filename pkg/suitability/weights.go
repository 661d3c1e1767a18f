package suitability

import (
	"math"

	"acao/pkg/plan/types"
)

// Weights are the criterion weights of the TOPSIS ranking. They must be non-negative
// and sum to one.
type Weights struct {
	WaterFit      float64 `json:"water_fit" yaml:"water_fit"`
	SoilFit       float64 `json:"soil_fit" yaml:"soil_fit"`
	Profitability float64 `json:"profitability" yaml:"profitability"`
	Risk          float64 `json:"risk" yaml:"risk"`
}

func DefaultWeights() Weights {
	return Weights{WaterFit: 0.3, SoilFit: 0.2, Profitability: 0.3, Risk: 0.2}
}

const weightSumTolerance = 1e-9

func (w Weights) Validate() error {
	v := w.Vector()
	sum := 0.0
	for _, c := range types.Criteria {
		x := v[c]
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return types.NewValidationError("weights."+c.String(), "must be a non-negative number, got %v", x)
		}
		sum += x
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return types.NewValidationError("weights", "must sum to 1, got %.12g", sum)
	}
	return nil
}

func (w Weights) Vector() types.CriteriaVector {
	return types.CriteriaVector{
		types.WaterFit:      w.WaterFit,
		types.SoilFit:       w.SoilFit,
		types.Profitability: w.Profitability,
		types.Risk:          w.Risk,
	}
}
