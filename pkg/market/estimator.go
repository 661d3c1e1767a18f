// Package market provides yield and price estimates for (field, crop) pairs.
package market

import (
	"context"

	"acao/entities"
	"acao/pkg/plan/types"
)

// Estimator predicts yield and price for a crop on a field. Implementations may be
// backed by models or services outside this module.
type Estimator interface {
	Estimate(ctx context.Context, field entities.Field, crop entities.Crop, season types.Season) (types.YieldPriceEstimate, error)
}

// TableEstimator serves stored estimates. A row with an empty FieldID applies to
// every field without a specific row.
type TableEstimator struct {
	rows map[types.PairKey]entities.PriceEstimate
}

func NewTableEstimator(rows []entities.PriceEstimate) *TableEstimator {
	t := &TableEstimator{rows: make(map[types.PairKey]entities.PriceEstimate, len(rows))}
	for _, r := range rows {
		t.rows[types.Pair(r.FieldID, r.CropID)] = r
	}
	return t
}

func (t *TableEstimator) Estimate(_ context.Context, field entities.Field, crop entities.Crop, _ types.Season) (types.YieldPriceEstimate, error) {
	r, ok := t.rows[types.Pair(field.FieldID, crop.CropID)]
	if !ok {
		r, ok = t.rows[types.Pair("", crop.CropID)]
	}
	if !ok {
		return types.YieldPriceEstimate{}, types.NewDataError("estimate", field.FieldID+"/"+crop.CropID, "no yield or price estimate")
	}
	return types.YieldPriceEstimate{
		FieldID:       field.FieldID,
		CropID:        crop.CropID,
		ExpectedYield: r.ExpectedYield,
		YieldBand:     types.Band{P10: r.YieldP10, P50: r.YieldP50, P90: r.YieldP90},
		ExpectedPrice: r.ExpectedPrice,
		PriceBand:     types.Band{P10: r.PriceP10, P50: r.PriceP50, P90: r.PriceP90},
	}, nil
}

// Shocked scales the prices of Base per crop, for replanning after a price move.
// Crops without a factor keep their price.
type Shocked struct {
	Base    Estimator
	Factors map[string]float64
}

func (s Shocked) Estimate(ctx context.Context, field entities.Field, crop entities.Crop, season types.Season) (types.YieldPriceEstimate, error) {
	e, err := s.Base.Estimate(ctx, field, crop, season)
	if err != nil {
		return e, err
	}
	if f, ok := s.Factors[crop.CropID]; ok {
		e.ExpectedPrice *= f
		e.PriceBand = types.Band{P10: e.PriceBand.P10 * f, P50: e.PriceBand.P50 * f, P90: e.PriceBand.P90 * f}
	}
	return e, nil
}
