// Package weather turns stored forecast rows into the daily series the water budget
// builder consumes.
package weather

import (
	"sort"
	"time"

	"acao/entities"
	"acao/pkg/plan/types"
)

func Season(s entities.Season) types.Season {
	return types.Season{ID: s.SeasonID, Index: s.Index, Start: s.StartDate}
}

// Series assembles the ETo and rainfall series of one weather scenario. Days must be
// contiguous from the first row on; a gap is a DataError rather than a zero day.
func Series(season entities.Season, scenarioID string, days []entities.WeatherDay) (types.SeasonWeather, error) {
	w := types.SeasonWeather{Season: Season(season), ScenarioID: scenarioID}
	if len(days) == 0 {
		return w, types.NewDataError("weather", scenarioID, "no forecast days for season %s", season.SeasonID)
	}
	rows := make([]entities.WeatherDay, len(days))
	copy(rows, days)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	w.Start = day(rows[0].Date)
	w.ETo = make([]float64, 0, len(rows))
	w.Rain = make([]float64, 0, len(rows))
	for i, r := range rows {
		want := w.Start.AddDate(0, 0, i)
		if !day(r.Date).Equal(want) {
			return w, types.NewDataError("weather", scenarioID, "missing day %s", want.Format("2006-01-02"))
		}
		w.ETo = append(w.ETo, r.EToMM)
		w.Rain = append(w.Rain, r.RainMM)
	}
	return w, nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
