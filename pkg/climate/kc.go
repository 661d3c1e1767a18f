package climate

import (
	"fmt"
	"math"
	"sort"

	"acao/entities"
)

// KcCurve is a crop coefficient curve over the growing window, linear inside each stage.
type KcCurve struct {
	stages []entities.CropStage
	total  int
}

func NewKcCurve(stages []entities.CropStage) (KcCurve, error) {
	if len(stages) == 0 {
		return KcCurve{}, fmt.Errorf("kc curve: no stages")
	}
	st := append([]entities.CropStage(nil), stages...)
	sort.SliceStable(st, func(i, j int) bool { return st[i].Ord < st[j].Ord })
	total := 0
	for _, s := range st {
		if s.Days <= 0 {
			return KcCurve{}, fmt.Errorf("kc curve: stage %q has %d days", s.Name, s.Days)
		}
		for _, kc := range []float64{s.KcStart, s.KcEnd} {
			if math.IsNaN(kc) || math.IsInf(kc, 0) || kc < 0 {
				return KcCurve{}, fmt.Errorf("kc curve: stage %q has invalid kc %v", s.Name, kc)
			}
		}
		total += s.Days
	}
	return KcCurve{stages: st, total: total}, nil
}

// Days is the length of the growing window.
func (k KcCurve) Days() int { return k.total }

// At returns Kc on day d of the window (0-based), evaluated at the day midpoint.
func (k KcCurve) At(d int) float64 {
	if d < 0 || d >= k.total {
		return 0
	}
	for _, s := range k.stages {
		if d < s.Days {
			frac := (float64(d) + 0.5) / float64(s.Days)
			return s.KcStart + (s.KcEnd-s.KcStart)*frac
		}
		d -= s.Days
	}
	return 0
}

// Stage returns the name of the stage covering day d.
func (k KcCurve) Stage(d int) string {
	for _, s := range k.stages {
		if d < s.Days {
			return s.Name
		}
		d -= s.Days
	}
	return ""
}
