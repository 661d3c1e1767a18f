package suitability

import "sort"

// TFN is a triangular fuzzy number with lower, modal and upper values.
type TFN struct {
	L, M, H float64
}

func Crisp(v float64) TFN { return TFN{v, v, v} }

// Sorted builds a TFN from three values in any order.
func Sorted(a, b, c float64) TFN {
	v := []float64{a, b, c}
	sort.Float64s(v)
	return TFN{v[0], v[1], v[2]}
}

// Invert maps a cost criterion onto a benefit scale. Zero bounds stay zero.
func (t TFN) Invert() TFN {
	inv := func(x float64) float64 {
		if x == 0 {
			return 0
		}
		return 1 / x
	}
	return TFN{inv(t.H), inv(t.M), inv(t.L)}
}

func (t TFN) Scale(k float64) TFN { return TFN{t.L * k, t.M * k, t.H * k} }

func (t TFN) Centroid() float64 { return (t.L + t.M + t.H) / 3 }
