// Package replan recomputes an allocation when quotas or prices change mid-season
// and describes how it differs from the baseline.
package replan

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"acao/pkg/optimizer"
	"acao/pkg/plan/types"
)

// Update describes what changed since the baseline. Nil Constraints keep the
// baseline's; WaterQuotaM3, when set, replaces the quota of whichever set is used.
type Update struct {
	Constraints   types.ConstraintSet `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	WaterQuotaM3  *float64            `json:"water_quota_m3,omitempty" yaml:"water_quota_m3,omitempty"`
	TriggerReason string              `json:"trigger_reason" yaml:"trigger_reason"`
}

type Replanner struct {
	opt *optimizer.Optimizer
	now func() time.Time
}

func New(opt *optimizer.Optimizer) *Replanner {
	return &Replanner{opt: opt, now: time.Now}
}

// Replan re-runs the optimizer on in with the updated constraints and returns a new
// plan_b scenario linked to baseline. Infeasible and timed-out runs still produce a
// scenario; the typed error is returned next to it.
func (r *Replanner) Replan(ctx context.Context, baseline types.Scenario, in optimizer.Input, u Update) (types.Scenario, error) {
	if baseline.ID == "" || baseline.Plan == nil {
		return types.Scenario{}, types.NewDataError("scenario", baseline.ID, "baseline has no plan")
	}
	cs := u.Constraints.Clone()
	if cs == nil {
		cs = baseline.Constraints.Clone()
	}
	if u.WaterQuotaM3 != nil {
		cs = cs.WithWaterQuota(*u.WaterQuotaM3)
	}
	in.Constraints = cs

	plan, err := r.opt.Optimize(ctx, in)
	if err != nil && plan == nil {
		return types.Scenario{}, err
	}
	var ie *types.InfeasibleError
	var te *types.SolverTimeoutError
	if err != nil && !errors.As(err, &ie) && !errors.As(err, &te) {
		return types.Scenario{}, err
	}

	sc := types.Scenario{
		ID:            uuid.NewString(),
		Label:         types.LabelPlanB,
		BaselineID:    baseline.ID,
		TriggerReason: u.TriggerReason,
		SeasonID:      baseline.SeasonID,
		Constraints:   cs,
		Plan:          plan,
		Diff:          Diff(baseline.ID, baseline.Plan, plan),
		CreatedAt:     r.now().UTC(),
	}
	return sc, err
}

// riskBand is the relative change under which the risk exposure counts as unchanged.
const riskBand = 0.05

// Diff compares two plans. ProfitDifference is nil when either plan is infeasible.
func Diff(baselineID string, base, next *types.AllocationPlan) *types.PlanDiff {
	d := &types.PlanDiff{BaselineID: baselineID, AreaDeltas: []types.AreaDelta{}, CropDeltas: []types.CropAreaDelta{}}

	pairs := map[types.PairKey]*types.AreaDelta{}
	crops := map[string]*types.CropAreaDelta{}
	add := func(a types.Allocation, baseSide bool) {
		k := types.Pair(a.FieldID, a.CropID)
		pd, ok := pairs[k]
		if !ok {
			pd = &types.AreaDelta{FieldID: a.FieldID, CropID: a.CropID}
			pairs[k] = pd
		}
		cd, ok := crops[a.CropID]
		if !ok {
			cd = &types.CropAreaDelta{CropID: a.CropID}
			crops[a.CropID] = cd
		}
		if baseSide {
			pd.BaselineHa += a.AllocatedHa
			cd.BaselineHa += a.AllocatedHa
		} else {
			pd.PlanBHa += a.AllocatedHa
			cd.PlanBHa += a.AllocatedHa
		}
	}
	for _, a := range base.Allocations {
		add(a, true)
	}
	for _, a := range next.Allocations {
		add(a, false)
	}
	for _, pd := range pairs {
		pd.DeltaHa = round2(pd.PlanBHa - pd.BaselineHa)
		d.AreaDeltas = append(d.AreaDeltas, *pd)
	}
	sort.Slice(d.AreaDeltas, func(i, j int) bool {
		a, b := d.AreaDeltas[i], d.AreaDeltas[j]
		if a.FieldID != b.FieldID {
			return a.FieldID < b.FieldID
		}
		return a.CropID < b.CropID
	})
	for _, cd := range crops {
		cd.DeltaHa = round2(cd.PlanBHa - cd.BaselineHa)
		d.CropDeltas = append(d.CropDeltas, *cd)
	}
	sort.Slice(d.CropDeltas, func(i, j int) bool { return d.CropDeltas[i].CropID < d.CropDeltas[j].CropID })

	if base.Status != types.StatusInfeasible && next.Status != types.StatusInfeasible {
		diff := next.ObjectiveValue - base.ObjectiveValue
		d.ProfitDifference = &diff
	}
	d.WaterDifferenceM3 = next.TotalWaterUsageM3 - base.TotalWaterUsageM3

	d.BaselineRisk, d.PlanBRisk = weightedRisk(base), weightedRisk(next)
	d.RiskShift = d.PlanBRisk - d.BaselineRisk
	switch {
	case math.Abs(d.RiskShift) <= riskBand*math.Abs(d.BaselineRisk):
		d.RiskDelta = types.RiskUnchanged
	case d.RiskShift > 0:
		d.RiskDelta = types.RiskHigher
	default:
		d.RiskDelta = types.RiskLower
	}
	return d
}

// weightedRisk is the area-weighted mean per-hectare risk score of a plan.
func weightedRisk(p *types.AllocationPlan) float64 {
	var area, sum float64
	for _, a := range p.Allocations {
		area += a.AllocatedHa
		sum += a.AllocatedHa * a.RiskScore
	}
	if area == 0 {
		return 0
	}
	return sum / area
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
