// Package waterbudget computes the seasonal net irrigation requirement of a crop on a
// field from its Kc curve and a daily ETo and rainfall forecast.
package waterbudget

import (
	"math"
	"time"

	"acao/entities"
	"acao/pkg/climate"
	"acao/pkg/plan/types"
)

// EffectiveRain applies the dependable-rain rule to one period of days inside the window.
// The monthly constants are scaled by days/30.
func EffectiveRain(rainMM float64, days int) float64 {
	s := float64(days) / 30
	if rainMM <= 70*s {
		return math.Max(0, 0.6*rainMM-10*s)
	}
	return 0.8*rainMM - 24*s
}

// Build returns the water budget of crop on field under one weather scenario.
func Build(field entities.Field, crop entities.Crop, w types.SeasonWeather) (types.WaterBudget, error) {
	if field.AreaHa <= 0 || math.IsNaN(field.AreaHa) {
		return types.WaterBudget{}, types.NewDataError("field", field.FieldID, "area must be positive, got %v", field.AreaHa)
	}
	curve, err := climate.NewKcCurve(crop.Stages)
	if err != nil {
		return types.WaterBudget{}, types.NewDataError("crop", crop.CropID, "%v", err)
	}

	seriesStart := w.Start
	if seriesStart.IsZero() {
		seriesStart = w.Season.Start
	}
	windowStart := w.Season.Start.AddDate(0, 0, crop.SowingOffsetDays)
	offset := daysBetween(seriesStart, windowStart)
	n := curve.Days()
	if offset < 0 || offset+n > len(w.ETo) {
		return types.WaterBudget{}, types.NewDataError("weather", w.ScenarioID,
			"ETo series covers %d days from %s, crop %s needs days %d..%d", len(w.ETo), seriesStart.Format("2006-01-02"), crop.CropID, offset, offset+n-1)
	}
	if offset+n > len(w.Rain) {
		return types.WaterBudget{}, types.NewDataError("weather", w.ScenarioID,
			"rainfall series covers %d days, crop %s needs %d", len(w.Rain), crop.CropID, offset+n)
	}

	b := types.WaterBudget{
		FieldID:         field.FieldID,
		CropID:          crop.CropID,
		SeasonID:        w.Season.ID,
		WeatherScenario: w.ScenarioID,
	}
	var cur *types.PeriodBudget
	var curYear int
	for d := 0; d < n; d++ {
		eto, rain := w.ETo[offset+d], w.Rain[offset+d]
		if bad(eto) || bad(rain) {
			return types.WaterBudget{}, types.NewDataError("weather", w.ScenarioID,
				"invalid value on %s (eto=%v rain=%v)", windowStart.AddDate(0, 0, d).Format("2006-01-02"), eto, rain)
		}
		day := windowStart.AddDate(0, 0, d)
		if cur == nil || day.Month() != cur.Month || day.Year() != curYear {
			b.Periods = append(b.Periods, types.PeriodBudget{Month: day.Month()})
			cur = &b.Periods[len(b.Periods)-1]
			curYear = day.Year()
		}
		cur.Days++
		cur.ETcMM += eto * curve.At(d)
		cur.RainMM += rain
	}
	for i := range b.Periods {
		p := &b.Periods[i]
		p.EffectiveRainMM = EffectiveRain(p.RainMM, p.Days)
		b.ETcMM += p.ETcMM
		b.EffectiveRainMM += p.EffectiveRainMM
	}
	b.NetRequirementMM = math.Max(0, b.ETcMM-b.EffectiveRainMM)
	b.NetRequirementM3 = b.NetRequirementMM * types.M3PerHaMM * field.AreaHa
	return b, nil
}

func bad(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) || v < 0 }

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(math.Round(b.Sub(a).Hours() / 24))
}
