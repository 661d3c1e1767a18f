package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acao/entities"
	"acao/pkg/plan/types"
)

const bulletinHTML = `<html><body>
<table><tr><th>Region</th><th>Notes</th></tr><tr><td>north</td><td>-</td></tr></table>
<table>
  <thead><tr><th>Crop</th><th>Low</th><th>Price (P50)</th><th>High</th></tr></thead>
  <tbody>
    <tr><td>maize</td><td>170</td><td>1,820</td><td>2,000</td></tr>
    <tr><td>soy</td><td></td><td>410</td><td></td></tr>
    <tr><td></td><td>1</td><td>2</td><td>3</td></tr>
    <tr><td>rice</td><td>n/a</td><td>n/a</td><td>n/a</td></tr>
  </tbody>
</table></body></html>`

func TestParseBulletin(t *testing.T) {
	b, err := ParseBulletin(strings.NewReader(bulletinHTML))
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, types.Band{P10: 170, P50: 1820, P90: 2000}, b["maize"])
	assert.Equal(t, types.Band{P10: 410, P50: 410, P90: 410}, b["soy"])

	_, err = ParseBulletin(strings.NewReader("<p>no prices today</p>"))
	require.Error(t, err)
}

func TestFetchBulletin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(bulletinHTML))
	}))
	defer srv.Close()

	b, err := FetchBulletin(context.Background(), srv.URL, 1<<20)
	require.NoError(t, err)
	assert.Contains(t, b, "maize")

	_, err = FetchBulletin(context.Background(), srv.URL, 10)
	require.Error(t, err)
}

func TestTableEstimator(t *testing.T) {
	est := NewTableEstimator([]entities.PriceEstimate{
		{CropID: "maize", ExpectedYield: 6, ExpectedPrice: 180},
		{FieldID: "F1", CropID: "maize", ExpectedYield: 7, ExpectedPrice: 180, YieldP10: 5, YieldP50: 7, YieldP90: 8},
	})
	ctx := context.Background()

	e, err := est.Estimate(ctx, entities.Field{FieldID: "F1"}, entities.Crop{CropID: "maize"}, types.Season{})
	require.NoError(t, err)
	assert.Equal(t, 7.0, e.ExpectedYield)
	assert.Equal(t, types.Band{P10: 5, P50: 7, P90: 8}, e.YieldBand)

	e, err = est.Estimate(ctx, entities.Field{FieldID: "F2"}, entities.Crop{CropID: "maize"}, types.Season{})
	require.NoError(t, err)
	assert.Equal(t, "F2", e.FieldID)
	assert.Equal(t, 6.0, e.ExpectedYield)

	_, err = est.Estimate(ctx, entities.Field{FieldID: "F1"}, entities.Crop{CropID: "soy"}, types.Season{})
	var de *types.DataError
	require.True(t, errors.As(err, &de))
}

func TestEstimatorDecorators(t *testing.T) {
	base := NewTableEstimator([]entities.PriceEstimate{
		{CropID: "maize", ExpectedYield: 6, ExpectedPrice: 200, PriceP10: 150, PriceP50: 200, PriceP90: 260},
	})
	field, crop := entities.Field{FieldID: "F1"}, entities.Crop{CropID: "maize"}

	e, err := Shocked{Base: base, Factors: map[string]float64{"maize": 0.5}}.Estimate(context.Background(), field, crop, types.Season{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, e.ExpectedPrice)
	assert.Equal(t, types.Band{P10: 75, P50: 100, P90: 130}, e.PriceBand)

	e, err = BulletinEstimator{Base: base, Prices: Bulletin{"maize": {P10: 1, P50: 2, P90: 3}}}.Estimate(context.Background(), field, crop, types.Season{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, e.ExpectedPrice)
	assert.Equal(t, 6.0, e.ExpectedYield)
}
