// Package suitability ranks candidate crops per field with a fuzzy TOPSIS over water
// fit, soil fit, profitability and risk.
package suitability

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"acao/entities"
	"acao/pkg/plan/types"
)

// Candidate is one crop considered for a field, with its water budget on that field
// and its yield and price estimate.
type Candidate struct {
	Crop     entities.Crop
	Budget   types.WaterBudget
	Estimate types.YieldPriceEstimate
}

type Input struct {
	Field      entities.Field
	Candidates []Candidate
	// QuotaShareM3 is the part of the water quota attributed to this field.
	QuotaShareM3 float64
	Weights      Weights
}

var riskClassFactor = map[string]float64{
	entities.RiskLow:    1,
	entities.RiskMedium: 1.25,
	entities.RiskHigh:   1.5,
}

func riskFactor(class string) float64 {
	if f, ok := riskClassFactor[class]; ok {
		return f
	}
	return riskClassFactor[entities.RiskHigh]
}

// minDepthMM keeps the water ratio finite for crops with no net requirement.
const minDepthMM = 1.0

// Score ranks the eligible candidates of one field. A field with no eligible crop
// yields an empty slice and no error.
func Score(in Input) ([]types.SuitabilityScore, error) {
	if err := in.Weights.Validate(); err != nil {
		return nil, err
	}
	if in.Field.AreaHa <= 0 {
		return nil, types.NewDataError("field", in.Field.FieldID, "area must be positive, got %v", in.Field.AreaHa)
	}

	var cands []Candidate
	for _, c := range in.Candidates {
		if ok, _ := Eligible(in.Field, c.Crop); ok {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return []types.SuitabilityScore{}, nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].Crop.CropID < cands[j].Crop.CropID })

	shareDepth := math.Max(in.QuotaShareM3/(in.Field.AreaHa*types.M3PerHaMM), minDepthMM)
	matrix := make([][4]TFN, len(cands))
	for i, c := range cands {
		if err := checkEstimate(c); err != nil {
			return nil, err
		}
		rev := c.Estimate.Revenue()
		matrix[i][types.WaterFit] = Crisp(math.Max(c.Budget.NetRequirementMM, minDepthMM) / shareDepth).Invert()
		matrix[i][types.SoilFit] = Crisp(SoilFit(in.Field, c.Crop))
		matrix[i][types.Profitability] = Sorted(rev.P10, rev.P50, rev.P90)
		matrix[i][types.Risk] = riskCost(c.Crop.RiskClass, rev).Invert()
	}

	weights := in.Weights.Vector()
	values := make([]types.CriteriaVector, len(cands))
	for _, crit := range types.Criteria {
		norm := 0.0
		for i := range matrix {
			norm += matrix[i][crit].H * matrix[i][crit].H
		}
		norm = math.Sqrt(norm)
		for i := range matrix {
			if norm == 0 {
				continue
			}
			values[i][crit] = matrix[i][crit].Scale(weights[crit] / norm).Centroid()
		}
	}

	var best, worst types.CriteriaVector
	for _, crit := range types.Criteria {
		best[crit], worst[crit] = values[0][crit], values[0][crit]
		for i := range values {
			best[crit] = math.Max(best[crit], values[i][crit])
			worst[crit] = math.Min(worst[crit], values[i][crit])
		}
	}

	out := make([]types.SuitabilityScore, len(cands))
	for i, c := range cands {
		var dPlus, dMinus float64
		for _, crit := range types.Criteria {
			dPlus += sq(values[i][crit] - best[crit])
			dMinus += sq(values[i][crit] - worst[crit])
		}
		dPlus, dMinus = math.Sqrt(dPlus), math.Sqrt(dMinus)
		cc := 1.0
		if dPlus+dMinus > 0 {
			cc = dMinus / (dPlus + dMinus)
		}
		out[i] = types.SuitabilityScore{
			FieldID:          in.Field.FieldID,
			CropID:           c.Crop.CropID,
			CropName:         c.Crop.Name,
			Criteria:         values[i],
			Closeness:        cc,
			NetRequirementMM: c.Budget.NetRequirementMM,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Closeness != b.Closeness {
			return a.Closeness > b.Closeness
		}
		if a.NetRequirementMM != b.NetRequirementMM {
			return a.NetRequirementMM < b.NetRequirementMM
		}
		return a.CropID < b.CropID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// riskCost is the risk cell before inversion: the class factor times one plus the
// relative revenue spread. The downside and upside halves of the band bound the cell,
// so a symmetric band yields a crisp value.
func riskCost(class string, rev types.Band) TFN {
	f := riskFactor(class)
	if rev.P50 <= 0 {
		return Crisp(f)
	}
	down := math.Max(0, rev.P50-rev.P10) / rev.P50
	up := math.Max(0, rev.P90-rev.P50) / rev.P50
	return Sorted(f*(1+2*math.Min(down, up)), f*(1+down+up), f*(1+2*math.Max(down, up)))
}

func sq(x float64) float64 { return x * x }

func checkEstimate(c Candidate) error {
	e := c.Estimate
	for _, v := range []float64{e.ExpectedYield, e.ExpectedPrice, e.YieldBand.P10, e.YieldBand.P50, e.YieldBand.P90,
		e.PriceBand.P10, e.PriceBand.P50, e.PriceBand.P90} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return types.NewDataError("estimate", c.Crop.CropID, "invalid yield or price value %v", v)
		}
	}
	if math.IsNaN(c.Budget.NetRequirementMM) || c.Budget.NetRequirementMM < 0 {
		return types.NewDataError("water budget", c.Crop.CropID, "invalid net requirement %v", c.Budget.NetRequirementMM)
	}
	return nil
}

// ScoreAll scores independent fields concurrently. Results keep the order of inputs.
func ScoreAll(ctx context.Context, inputs []Input) ([][]types.SuitabilityScore, error) {
	out := make([][]types.SuitabilityScore, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range inputs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			scores, err := Score(inputs[i])
			if err != nil {
				return err
			}
			out[i] = scores
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
