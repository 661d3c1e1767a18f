package serviceImp

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acao/database"
	"acao/entities"
	cropRepoImp "acao/pkg/crop/repositoryImp"
	fieldRepoImp "acao/pkg/field/repositoryImp"
	"acao/pkg/market"
	"acao/pkg/optimizer"
	planRepoImp "acao/pkg/plan/repositoryImp"
	"acao/pkg/plan/service"
	"acao/pkg/plan/types"
	weatherRepoImp "acao/pkg/weather/repositoryImp"
)

var seasonStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// newService seeds one 10 ha field and two crops over 100 days of 4 mm ETo and no
// rain: X needs 400 mm and earns 1000/ha, Y needs 500 mm and earns 100/ha.
func newService(t *testing.T, opts Options) *PlanSvc {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "acao.db"))
	require.NoError(t, err)
	ctx := context.Background()

	fr, cr, wr := fieldRepoImp.New(db), cropRepoImp.New(db), weatherRepoImp.New(db)
	require.NoError(t, fr.Save(ctx, &entities.Field{FieldID: "F", SchemeID: "S1", AreaHa: 10, SoilPH: 6.5, SoilTexture: "loam", LandUse: entities.LandUseUpland}))
	for _, c := range []struct {
		id string
		kc float64
	}{{"X", 1}, {"Y", 1.25}} {
		require.NoError(t, cr.Save(ctx, &entities.Crop{
			CropID: c.id, Name: "Crop " + c.id, RiskClass: entities.RiskLow,
			SoilTextures: []string{"loam"}, PHMin: 5.5, PHMax: 7.5,
			Stages: []entities.CropStage{{Ord: 1, Name: "season", Days: 100, KcStart: c.kc, KcEnd: c.kc}},
		}))
	}
	require.NoError(t, wr.SaveSeason(ctx, &entities.Season{SeasonID: "2026-dry", Index: 3, StartDate: seasonStart, EndDate: seasonStart.AddDate(0, 0, 119)}))
	var days []entities.WeatherDay
	for i := 0; i < 120; i++ {
		days = append(days, entities.WeatherDay{ScenarioID: "p50", Date: seasonStart.AddDate(0, 0, i), EToMM: 4})
	}
	require.NoError(t, wr.SaveDays(ctx, days))
	require.NoError(t, wr.SaveEstimates(ctx, []entities.PriceEstimate{
		{CropID: "X", ExpectedYield: 5, ExpectedPrice: 200},
		{CropID: "Y", ExpectedYield: 1, ExpectedPrice: 100},
	}))
	require.NoError(t, wr.SaveQuota(ctx, &entities.WaterQuota{SchemeID: "S1", SeasonID: "2026-dry", VolumeM3: 24000}))

	opt, err := optimizer.New(optimizer.DefaultConfig())
	require.NoError(t, err)
	if opts.WeatherScenario == "" {
		opts.WeatherScenario = "p50"
	}
	svc := NewPlanService(fr, cr, wr, planRepoImp.New(db), opt, opts, nil)
	svc.now = func() time.Time { return seasonStart.AddDate(0, 1, 0) }
	return svc
}

func TestRunOptimizationPersistsBaseline(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()

	sc, err := svc.RunOptimization(ctx, 24000, nil, "")
	require.NoError(t, err)
	assert.Equal(t, types.LabelBaseline, sc.Label)
	assert.Equal(t, "2026-dry", sc.SeasonID)
	require.NotNil(t, sc.Plan)
	assert.Equal(t, types.StatusOptimal, sc.Plan.Status)
	assert.InDelta(t, 6, sc.Plan.Allocated("F", "X"), 1e-9)
	assert.InDelta(t, 6000, sc.Plan.ObjectiveValue, 1e-6)
	q, ok := sc.Constraints.WaterQuota()
	require.True(t, ok)
	assert.Equal(t, 24000.0, q)

	stored, err := svc.scenarios.FindByID(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, sc.Plan.Allocations, stored.Plan.Allocations)
}

func TestRunOptimizationZeroQuotaIsStoredInfeasible(t *testing.T) {
	svc := newService(t, Options{})
	sc, err := svc.RunOptimization(context.Background(), 0, nil, types.LabelBaseline)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInfeasible, sc.Plan.Status)
	require.NotEmpty(t, sc.Plan.Violations)
	assert.Equal(t, types.KindWaterQuota, sc.Plan.Violations[0].Kind)
}

func TestRunOptimizationRejectsBadInput(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()
	var ve *types.ValidationError

	_, err := svc.RunOptimization(ctx, -1, nil, "")
	require.True(t, errors.As(err, &ve))
	_, err = svc.RunOptimization(ctx, 100, nil, "scratch")
	require.True(t, errors.As(err, &ve))
	_, err = svc.RunOptimization(ctx, 100, types.ConstraintSet{types.MaxRiskLevel("extreme")}, "")
	require.True(t, errors.As(err, &ve))
}

func TestRunOptimizationMissingWeatherIsDataError(t *testing.T) {
	svc := newService(t, Options{WeatherScenario: "p90"})
	_, err := svc.RunOptimization(context.Background(), 24000, nil, "")
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "weather", de.Entity)
}

func TestTriggerPlanBHalvedQuota(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()
	base, err := svc.RunOptimization(ctx, 24000, nil, "")
	require.NoError(t, err)

	half := 12000.0
	pb, err := svc.TriggerPlanB(ctx, base.ID, service.PlanBRequest{WaterQuotaM3: &half, TriggerReason: "water_quota_reduced"})
	require.NoError(t, err)
	assert.Equal(t, types.LabelPlanB, pb.Label)
	assert.Equal(t, base.ID, pb.BaselineID)
	assert.Equal(t, "water_quota_reduced", pb.TriggerReason)
	require.NotNil(t, pb.Diff)
	assert.InDelta(t, -3, pb.Diff.CropDelta("X"), 1e-9)
	require.NotNil(t, pb.Diff.ProfitDifference)
	assert.InDelta(t, -3000, *pb.Diff.ProfitDifference, 1e-6)

	kids, err := svc.ListPlanB(ctx, base.ID)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, pb.ID, kids[0].ID)

	again, err := svc.scenarios.FindByID(ctx, base.ID)
	require.NoError(t, err)
	assert.InDelta(t, 6, again.Plan.Allocated("F", "X"), 1e-9)
}

func TestTriggerPlanBPriceShock(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()
	base, err := svc.RunOptimization(ctx, 24000, nil, "")
	require.NoError(t, err)

	// X at a tenth of its price earns 100/ha on 400 mm; Y still earns 100/ha on
	// 500 mm, so X keeps the quota but profit drops by 5400.
	pb, err := svc.TriggerPlanB(ctx, base.ID, service.PlanBRequest{
		PriceShocks:   map[string]float64{"X": 0.1},
		TriggerReason: "price_shock:X",
	})
	require.NoError(t, err)
	assert.InDelta(t, 6, pb.Plan.Allocated("F", "X"), 1e-9)
	require.NotNil(t, pb.Diff.ProfitDifference)
	assert.InDelta(t, -5400, *pb.Diff.ProfitDifference, 1e-6)
}

func TestTriggerPlanBUnknownBaseline(t *testing.T) {
	svc := newService(t, Options{})
	_, err := svc.TriggerPlanB(context.Background(), "nope", service.PlanBRequest{TriggerReason: "x"})
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.IsNotFound())
}

func TestListPlanB(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()
	base, err := svc.RunOptimization(ctx, 24000, nil, "")
	require.NoError(t, err)

	kids, err := svc.ListPlanB(ctx, base.ID)
	require.NoError(t, err)
	assert.NotNil(t, kids)
	assert.Empty(t, kids)

	half, quarter := 12000.0, 6000.0
	first, err := svc.TriggerPlanB(ctx, base.ID, service.PlanBRequest{WaterQuotaM3: &half, TriggerReason: "water_quota_reduced"})
	require.NoError(t, err)
	second, err := svc.TriggerPlanB(ctx, base.ID, service.PlanBRequest{WaterQuotaM3: &quarter, TriggerReason: "water_quota_reduced"})
	require.NoError(t, err)

	kids, err = svc.ListPlanB(ctx, base.ID)
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, first.ID, kids[0].ID)
	assert.Equal(t, second.ID, kids[1].ID)
	for _, k := range kids {
		assert.Equal(t, base.ID, k.BaselineID)
	}

	_, err = svc.ListPlanB(ctx, "nope")
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.IsNotFound())
}

func TestGetNationalSupply(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()
	base, err := svc.RunOptimization(ctx, 24000, nil, "")
	require.NoError(t, err)

	sup, err := svc.GetNationalSupply(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, base.ID, sup.ScenarioID)
	assert.Equal(t, types.StatusOptimal, sup.Status)
	require.Len(t, sup.Crops, 1)
	assert.Equal(t, "X", sup.Crops[0].CropID)
	assert.InDelta(t, 30, sup.Crops[0].ExpectedYieldT, 1e-9)
	assert.InDelta(t, 6, sup.TotalHa, 1e-9)
}

func TestGetFieldRecommendations(t *testing.T) {
	svc := newService(t, Options{})
	ctx := context.Background()

	rec, err := svc.GetFieldRecommendations(ctx, "F")
	require.NoError(t, err)
	assert.Empty(t, rec.ScenarioID)
	require.Len(t, rec.Recommendations, 2)
	assert.Equal(t, "X", rec.Recommendations[0].CropID)
	assert.Zero(t, rec.Recommendations[0].AllocatedHa)

	base, err := svc.RunOptimization(ctx, 24000, nil, "")
	require.NoError(t, err)
	rec, err = svc.GetFieldRecommendations(ctx, "F")
	require.NoError(t, err)
	assert.Equal(t, base.ID, rec.ScenarioID)
	assert.InDelta(t, 6, rec.Recommendations[0].AllocatedHa, 1e-9)
	assert.Contains(t, rec.Recommendations[0].Rationale, "6.00 ha")

	_, err = svc.GetFieldRecommendations(ctx, "G")
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.True(t, de.IsNotFound())
}

func TestBulletinOverridesStoredPrices(t *testing.T) {
	// Y at 5000/t beats X on profit per m3.
	svc := newService(t, Options{Prices: market.Bulletin{"Y": {P10: 5000, P50: 5000, P90: 5000}}})
	sc, err := svc.RunOptimization(context.Background(), 24000, nil, "")
	require.NoError(t, err)
	assert.InDelta(t, 4.8, sc.Plan.Allocated("F", "Y"), 1e-9)
	assert.Zero(t, sc.Plan.Allocated("F", "X"))
}
