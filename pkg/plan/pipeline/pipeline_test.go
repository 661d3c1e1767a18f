package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acao/entities"
	"acao/pkg/market"
	"acao/pkg/plan/types"
	"acao/pkg/suitability"
)

func dataset() Dataset {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	season := types.Season{ID: "2026-dry", Index: 3, Start: start}
	w := types.SeasonWeather{Season: season, ScenarioID: "p50", Start: start}
	for i := 0; i < 60; i++ {
		w.ETo = append(w.ETo, 5)
		w.Rain = append(w.Rain, 0)
	}
	stage := func(kc float64) []entities.CropStage {
		return []entities.CropStage{{Ord: 1, Days: 50, KcStart: kc, KcEnd: kc}}
	}
	return Dataset{
		Season:  season,
		Weather: w,
		Fields: []entities.Field{
			{FieldID: "A", AreaHa: 6, SoilPH: 6.5, SoilTexture: "loam", LandUse: entities.LandUseUpland},
			{FieldID: "B", AreaHa: 4, SoilPH: 6.5, SoilTexture: "clay", LandUse: entities.LandUsePaddy},
		},
		Crops: []entities.Crop{
			{CropID: "maize", RiskClass: entities.RiskMedium, SoilTextures: []string{"loam"}, PHMin: 5.5, PHMax: 7.5, Stages: stage(1)},
			{CropID: "rice", IsPaddy: true, RiskClass: entities.RiskLow, SoilTextures: []string{"clay"}, PHMin: 5, PHMax: 7, Stages: stage(1.2)},
		},
	}
}

// rice has no estimate for field A; it is ineligible there and must not be asked for.
var estimates = []entities.PriceEstimate{
	{CropID: "maize", ExpectedYield: 5, ExpectedPrice: 200},
	{FieldID: "B", CropID: "rice", ExpectedYield: 4, ExpectedPrice: 300},
}

func TestPrepare(t *testing.T) {
	p := New(suitability.DefaultWeights(), market.NewTableEstimator(estimates))
	prep, err := p.Prepare(context.Background(), dataset(), 10000)
	require.NoError(t, err)

	in := prep.Input
	assert.Equal(t, 3, in.SeasonIndex)
	assert.Empty(t, in.Constraints)
	require.Len(t, in.Budgets, 3)
	require.Len(t, in.Estimates, 3)
	for _, b := range in.Budgets {
		if b.CropID == "rice" {
			assert.InDelta(t, 300, b.NetRequirementMM, 1e-9)
			assert.Equal(t, "B", b.FieldID)
		} else {
			assert.InDelta(t, 250, b.NetRequirementMM, 1e-9)
		}
	}
	require.Len(t, prep.Scores["A"], 1)
	assert.Equal(t, "maize", prep.Scores["A"][0].CropID)
	require.Len(t, prep.Scores["B"], 2)
	assert.Len(t, in.Scores, 3)
	assert.Equal(t, 3, p.budgets.Len())
	assert.Equal(t, 2, p.scores.Len())

	again, err := p.Prepare(context.Background(), dataset(), 10000)
	require.NoError(t, err)
	assert.Equal(t, prep.Input.Scores, again.Input.Scores)
	assert.Equal(t, 3, p.budgets.Len())
	assert.Equal(t, 2, p.scores.Len())

	// a new quota changes the water fit criterion, so scores are recomputed
	_, err = p.Prepare(context.Background(), dataset(), 2000)
	require.NoError(t, err)
	assert.Equal(t, 3, p.budgets.Len())
	assert.Equal(t, 4, p.scores.Len())
}

func TestPrepareMissingEstimate(t *testing.T) {
	p := New(suitability.DefaultWeights(), market.NewTableEstimator(estimates[:1]))
	_, err := p.Prepare(context.Background(), dataset(), 10000)
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "estimate", de.Entity)
}

func TestPrepareShortWeather(t *testing.T) {
	ds := dataset()
	ds.Weather.ETo = ds.Weather.ETo[:30]
	p := New(suitability.DefaultWeights(), market.NewTableEstimator(estimates))
	_, err := p.Prepare(context.Background(), ds, 10000)
	var de *types.DataError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "weather", de.Entity)
}

func TestRankAndWithEstimator(t *testing.T) {
	ds := dataset()
	p := New(suitability.DefaultWeights(), market.NewTableEstimator(estimates))
	b, _ := ds.Field("B")
	scores, err := p.Rank(context.Background(), ds, b, 4000)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, 1, scores[0].Rank)

	shocked := p.WithEstimator(market.Shocked{Base: p.Estimator, Factors: map[string]float64{"rice": 0.01}})
	after, err := shocked.Rank(context.Background(), ds, b, 4000)
	require.NoError(t, err)
	assert.Equal(t, "maize", after[0].CropID)
	assert.Equal(t, 2, p.budgets.Len(), "budgets are shared across estimators")

	_, ok := ds.Field("Z")
	assert.False(t, ok)
}
