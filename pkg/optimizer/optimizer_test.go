package optimizer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acao/entities"
	"acao/pkg/plan/types"
	"acao/pkg/solver"
)

type cropSpec struct {
	id     string
	netMM  float64
	yield  float64
	price  float64
	risk   string
	costHa float64
}

func buildInput(fields []entities.Field, crops []cropSpec, cs ...types.Constraint) Input {
	in := Input{Fields: fields, SeasonIndex: 5, Constraints: cs}
	for _, c := range crops {
		risk := c.risk
		if risk == "" {
			risk = entities.RiskLow
		}
		in.Crops = append(in.Crops, entities.Crop{CropID: c.id, Name: c.id, RiskClass: risk, ProductionCostPerHa: c.costHa})
		for _, f := range fields {
			in.Scores = append(in.Scores, types.SuitabilityScore{FieldID: f.FieldID, CropID: c.id, Closeness: 0.5})
			in.Budgets = append(in.Budgets, types.WaterBudget{FieldID: f.FieldID, CropID: c.id, NetRequirementMM: c.netMM})
			in.Estimates = append(in.Estimates, types.YieldPriceEstimate{FieldID: f.FieldID, CropID: c.id, ExpectedYield: c.yield, ExpectedPrice: c.price})
		}
	}
	return in
}

var (
	tenHa = []entities.Field{{FieldID: "F", AreaHa: 10}}
	xy    = []cropSpec{{id: "X", netMM: 500, yield: 3, price: 200}, {id: "Y", netMM: 300, yield: 4, price: 150}}
)

func newOptimizer(t *testing.T, opts ...Option) *Optimizer {
	t.Helper()
	o, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	return o
}

func TestOptimizeReferenceTenHectares(t *testing.T) {
	in := buildInput(tenHa, xy, types.WaterQuota(4000))
	plan, err := newOptimizer(t).Optimize(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, types.StatusOptimal, plan.Status)
	assert.InDelta(t, 800, plan.ObjectiveValue, 1e-6)
	assert.InDelta(t, 798, plan.AllocatedProfit, 1e-6, "profit of the floored 1.33 ha")
	assert.InDelta(t, 1.33, plan.Allocated("F", "Y"), 1e-9)
	assert.Zero(t, plan.Allocated("F", "X"))
	assert.InDelta(t, 3990, plan.TotalWaterUsageM3, 1e-6)
	assert.LessOrEqual(t, plan.TotalWaterUsageM3, 4000.0)
	assert.Nil(t, plan.Relaxation)
	assert.Equal(t, "lp-simplex", plan.Backend)
}

func TestOptimizeZeroQuotaIsInfeasible(t *testing.T) {
	in := buildInput(tenHa, xy, types.WaterQuota(0))
	plan, err := newOptimizer(t).Optimize(context.Background(), in)

	var ie *types.InfeasibleError
	require.True(t, errors.As(err, &ie), "got %v", err)
	require.NotNil(t, plan)
	assert.Equal(t, types.StatusInfeasible, plan.Status)
	require.Len(t, plan.Violations, 1)
	assert.Equal(t, types.KindWaterQuota, plan.Violations[0].Kind)
	assert.Zero(t, plan.Violations[0].Limit)
	assert.InDelta(t, 30000, plan.Violations[0].Amount, 1e-6, "water for 10 ha of Y")
	assert.Equal(t, plan.Violations, ie.Violations)
	assert.Empty(t, plan.Allocations)
	assert.Zero(t, plan.ObjectiveValue)
	assert.Contains(t, err.Error(), "water_quota")
	assert.Equal(t, DefaultConfig().RelaxationBudget, ie.Relaxation.Steps)
}

func TestOptimizeSmallQuotaPlantsFraction(t *testing.T) {
	o := newOptimizer(t)
	below, err := o.Optimize(context.Background(), buildInput(tenHa, xy, types.WaterQuota(29)))
	require.NoError(t, err)
	at, err := o.Optimize(context.Background(), buildInput(tenHa, xy, types.WaterQuota(30)))
	require.NoError(t, err)

	assert.Equal(t, types.StatusOptimal, below.Status)
	assert.Nil(t, below.Relaxation)
	assert.InDelta(t, 5.8, below.ObjectiveValue, 1e-6)
	assert.Empty(t, below.Allocations, "0.0097 ha floors to nothing")
	assert.Zero(t, below.AllocatedProfit)

	assert.Nil(t, at.Relaxation)
	assert.InDelta(t, 6, at.ObjectiveValue, 1e-6)
	assert.InDelta(t, 0.01, at.Allocated("F", "Y"), 1e-9)
	assert.LessOrEqual(t, below.ObjectiveValue, at.ObjectiveValue)
}

func TestOptimizeLeavesLossMakingCropUnplanted(t *testing.T) {
	loss := []cropSpec{{id: "L", netMM: 200, yield: 1, price: 100, costHa: 500}}
	for _, quota := range []float64{1e6, 0} {
		plan, err := newOptimizer(t).Optimize(context.Background(), buildInput(tenHa, loss, types.WaterQuota(quota)))
		require.NoError(t, err, "quota %v", quota)
		assert.Equal(t, types.StatusOptimal, plan.Status)
		assert.Empty(t, plan.Allocations)
		assert.Zero(t, plan.ObjectiveValue)
		assert.Nil(t, plan.Relaxation)
	}
}

func TestOptimizeRequiresExactlyOneQuota(t *testing.T) {
	o := newOptimizer(t)
	var ve *types.ValidationError

	_, err := o.Optimize(context.Background(), buildInput(tenHa, xy))
	require.True(t, errors.As(err, &ve))

	_, err = o.Optimize(context.Background(), buildInput(tenHa, xy, types.WaterQuota(1), types.WaterQuota(2)))
	require.True(t, errors.As(err, &ve))

	_, err = o.Optimize(context.Background(), buildInput(tenHa, xy, types.WaterQuota(1), types.MinArea("X", -1)))
	require.True(t, errors.As(err, &ve))
}

func TestOptimizeMissingDataIsDataError(t *testing.T) {
	in := buildInput(tenHa, xy, types.WaterQuota(4000))
	in.Budgets = in.Budgets[:1]
	_, err := newOptimizer(t).Optimize(context.Background(), in)
	var de *types.DataError
	require.True(t, errors.As(err, &de), "got %v", err)
}

func TestOptimizeRelaxesMinimumArea(t *testing.T) {
	in := buildInput(tenHa, xy, types.WaterQuota(4000), types.MinArea("X", 5))
	plan, err := newOptimizer(t).Optimize(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, plan.Relaxation)
	assert.Equal(t, 9, plan.Relaxation.Steps)
	assert.InDelta(t, 0.1, plan.Relaxation.MinAreaScale, 1e-9)
	assert.Equal(t, 1.0, plan.Relaxation.WaterQuotaScale)
	assert.InDelta(t, 0.5, plan.Allocated("F", "X"), 1e-9)
	assert.InDelta(t, 0.5, plan.Allocated("F", "Y"), 1e-9)
	assert.InDelta(t, 600, plan.ObjectiveValue, 1e-6)
	assert.LessOrEqual(t, plan.TotalWaterUsageM3, 4000.0)
}

func TestOptimizeRotationRule(t *testing.T) {
	in := buildInput(tenHa, xy, types.WaterQuota(4000), types.RotationRule("Y", 1))
	in.History = []entities.PlantingRecord{{FieldID: "F", CropID: "Y", SeasonIndex: 4}}

	plan, err := newOptimizer(t).Optimize(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, plan.Allocated("F", "Y"))
	assert.InDelta(t, 0.8, plan.Allocated("F", "X"), 1e-9)
	assert.InDelta(t, 480, plan.ObjectiveValue, 1e-6)

	in.History[0].SeasonIndex = 3
	plan, err = newOptimizer(t).Optimize(context.Background(), in)
	require.NoError(t, err)
	assert.InDelta(t, 1.33, plan.Allocated("F", "Y"), 1e-9, "cooldown has passed")
}

func TestOptimizeDropsRotationRuleFirst(t *testing.T) {
	in := buildInput(tenHa, xy, types.WaterQuota(4000), types.RotationRule("Y", 2), types.MinArea("Y", 1))
	in.History = []entities.PlantingRecord{{FieldID: "F", CropID: "Y", SeasonIndex: 4}}

	plan, err := newOptimizer(t).Optimize(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, plan.Relaxation)
	assert.Equal(t, 1, plan.Relaxation.Steps)
	assert.Equal(t, []string{"Y"}, plan.Relaxation.DroppedRotationRules)
	assert.Equal(t, 1.0, plan.Relaxation.MinAreaScale)
	assert.InDelta(t, 1.33, plan.Allocated("F", "Y"), 1e-9)
}

func TestOptimizeMaxRiskLevel(t *testing.T) {
	crops := []cropSpec{xy[0], xy[1]}
	crops[1].risk = entities.RiskHigh
	in := buildInput(tenHa, crops, types.WaterQuota(4000), types.MaxRiskLevel(entities.RiskMedium))

	plan, err := newOptimizer(t).Optimize(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, plan.Allocated("F", "Y"))
	assert.InDelta(t, 0.8, plan.Allocated("F", "X"), 1e-9)
}

func TestOptimizeNoSplitUsesMIP(t *testing.T) {
	crops := []cropSpec{
		{id: "X", netMM: 500, yield: 5, price: 200},
		{id: "Y", netMM: 300, yield: 7, price: 100},
	}
	lpPlan, err := newOptimizer(t).Optimize(context.Background(), buildInput(tenHa, crops, types.WaterQuota(40000)))
	require.NoError(t, err)
	assert.InDelta(t, 8500, lpPlan.ObjectiveValue, 1e-6)
	assert.Len(t, lpPlan.Allocations, 2)

	plan, err := newOptimizer(t).Optimize(context.Background(), buildInput(tenHa, crops, types.WaterQuota(40000), types.NoSplit(1)))
	require.NoError(t, err)
	assert.Equal(t, "mip-branch-and-bound", plan.Backend)
	assert.Equal(t, types.StatusOptimal, plan.Status)
	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "X", plan.Allocations[0].CropID)
	assert.InDelta(t, 8, plan.Allocations[0].AllocatedHa, 1e-9)
	assert.InDelta(t, 8000, plan.ObjectiveValue, 1e-6)
}

type slowSolver struct{}

func (slowSolver) Name() string { return "slow" }

func (slowSolver) Solve(ctx context.Context, m *solver.Model) (solver.Result, error) {
	<-ctx.Done()
	x := make([]float64, len(m.Vars))
	x[0] = 0.5
	return solver.Result{Status: solver.StatusFeasible, X: x, Objective: m.Objective(x), TimedOut: true}, ctx.Err()
}

func TestOptimizeTimeoutReturnsIncumbent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	o, err := New(cfg, WithSolver(slowSolver{}))
	require.NoError(t, err)

	plan, err := o.Optimize(context.Background(), buildInput(tenHa, xy, types.WaterQuota(4000)))
	var te *types.SolverTimeoutError
	require.True(t, errors.As(err, &te), "got %v", err)
	require.NotNil(t, plan)
	assert.Same(t, plan, te.Plan)
	assert.True(t, plan.TimedOut)
	assert.Equal(t, types.StatusFeasible, plan.Status)
	assert.InDelta(t, 0.5, plan.Allocated("F", "X"), 1e-9)
	assert.InDelta(t, 300, plan.ObjectiveValue, 1e-9)
}

func multiFieldInput(quota float64) Input {
	fields := []entities.Field{{FieldID: "A", AreaHa: 4}, {FieldID: "B", AreaHa: 7.5}, {FieldID: "C", AreaHa: 2.25}}
	crops := []cropSpec{
		{id: "maize", netMM: 420, yield: 6, price: 180, costHa: 300},
		{id: "rice", netMM: 900, yield: 5, price: 320, costHa: 500, risk: entities.RiskMedium},
		{id: "soy", netMM: 350, yield: 2.5, price: 400, costHa: 200},
	}
	return buildInput(fields, crops, types.WaterQuota(quota))
}

func TestOptimizeBoundsHold(t *testing.T) {
	o := newOptimizer(t)
	for _, quota := range []float64{500, 10000, 35000, 80000, 1e6} {
		t.Run(fmt.Sprint(quota), func(t *testing.T) {
			in := multiFieldInput(quota)
			plan, err := o.Optimize(context.Background(), in)
			require.NoError(t, err)
			for _, f := range in.Fields {
				assert.LessOrEqual(t, plan.FieldArea(f.FieldID), f.AreaHa+1e-9)
			}
			assert.LessOrEqual(t, plan.TotalWaterUsageM3, quota+1e-6)
		})
	}
}

func TestOptimizeQuotaMonotonic(t *testing.T) {
	o := newOptimizer(t)
	prev := -1.0
	for _, quota := range []float64{1, 20, 29, 30, 31, 500, 2000, 10000, 35000, 80000, 1e6} {
		plan, err := o.Optimize(context.Background(), multiFieldInput(quota))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, plan.ObjectiveValue, prev-1e-6, "quota %v", quota)
		prev = plan.ObjectiveValue
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	o := newOptimizer(t)
	a, err := o.Optimize(context.Background(), multiFieldInput(35000))
	require.NoError(t, err)
	b, err := o.Optimize(context.Background(), multiFieldInput(35000))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.RelaxationStep = 0
	_, err := New(cfg)
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestFloorArea(t *testing.T) {
	assert.Equal(t, 1.33, floorArea(4.0/3))
	assert.Equal(t, 3.0, floorArea(2.9999999))
	assert.Equal(t, 0.0, floorArea(0.004))
}
