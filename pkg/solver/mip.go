package solver

import (
	"context"
	"math"
)

// MIP is a depth-first branch and bound over the LP relaxation. It branches on the
// most fractional integer variable and stops at the node limit, the gap tolerance
// or ctx expiry.
type MIP struct {
	opts Options
	lp   *LP
}

func NewMIP(opts Options) *MIP {
	opts = opts.withDefaults()
	return &MIP{opts: opts, lp: NewLP(opts)}
}

func (s *MIP) Name() string { return "mip-branch-and-bound" }

type bnbNode struct {
	lower, upper []float64
	bound        float64
}

func (s *MIP) Solve(ctx context.Context, m *Model) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	root := bnbNode{lower: make([]float64, len(m.Vars)), upper: make([]float64, len(m.Vars)), bound: math.Inf(1)}
	for j, v := range m.Vars {
		root.lower[j], root.upper[j] = v.Lower, v.Upper
		if v.Integer {
			root.lower[j], root.upper[j] = math.Ceil(v.Lower-s.opts.Tolerance), math.Floor(v.Upper+s.opts.Tolerance)
		}
	}

	best := Result{Status: StatusNoSolution, Objective: math.Inf(-1)}
	stack := []bnbNode{root}
	nodes := 0
	sawUnbounded := false
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return s.stop(best, stack, nodes, true), err
		}
		if nodes >= s.opts.NodeLimit {
			return s.stop(best, stack, nodes, false), nil
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if best.X != nil && !s.improves(n.bound, best.Objective) {
			continue
		}
		nodes++

		sub := m.Clone()
		for j := range sub.Vars {
			sub.Vars[j].Lower, sub.Vars[j].Upper = n.lower[j], n.upper[j]
			if sub.Vars[j].Upper < sub.Vars[j].Lower {
				sub = nil
				break
			}
		}
		if sub == nil {
			continue
		}
		res, err := s.lp.Solve(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return s.stop(best, stack, nodes, true), ctx.Err()
			}
			return Result{}, err
		}
		switch res.Status {
		case StatusInfeasible:
			continue
		case StatusUnbounded:
			sawUnbounded = true
			continue
		}
		if best.X != nil && !s.improves(res.Objective, best.Objective) {
			continue
		}

		branch, frac := -1, 0.0
		for j, v := range m.Vars {
			if !v.Integer {
				continue
			}
			f := res.X[j] - math.Floor(res.X[j])
			d := math.Min(f, 1-f)
			if d > s.opts.Tolerance && d > frac {
				branch, frac = j, d
			}
		}
		if branch == -1 {
			x := append([]float64(nil), res.X...)
			for j, v := range m.Vars {
				if v.Integer {
					x[j] = math.Round(x[j])
				}
			}
			best = Result{Status: StatusFeasible, Objective: m.Objective(x), X: x}
			continue
		}

		v := res.X[branch]
		down := bnbNode{lower: append([]float64(nil), n.lower...), upper: append([]float64(nil), n.upper...), bound: res.Objective}
		down.upper[branch] = math.Floor(v)
		up := bnbNode{lower: append([]float64(nil), n.lower...), upper: append([]float64(nil), n.upper...), bound: res.Objective}
		up.lower[branch] = math.Ceil(v)
		// The child on the rounding side is explored first.
		if v-math.Floor(v) >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if best.X == nil {
		if sawUnbounded {
			return Result{Status: StatusUnbounded, Nodes: nodes}, nil
		}
		return Result{Status: StatusInfeasible, Nodes: nodes}, nil
	}
	best.Status = StatusOptimal
	best.Nodes = nodes
	return best, nil
}

// improves reports whether a relaxation bound can still beat the incumbent by more
// than the gap tolerance.
func (s *MIP) improves(bound, incumbent float64) bool {
	return bound > incumbent+s.opts.GapTolerance*math.Max(1, math.Abs(incumbent))
}

func (s *MIP) stop(best Result, open []bnbNode, nodes int, timedOut bool) Result {
	best.Nodes = nodes
	best.TimedOut = timedOut
	if best.X == nil {
		best.Status = StatusNoSolution
		best.Objective = 0
		return best
	}
	bound := best.Objective
	for _, n := range open {
		bound = math.Max(bound, n.bound)
	}
	best.Gap = (bound - best.Objective) / math.Max(1, math.Abs(best.Objective))
	best.Status = StatusFeasible
	if !timedOut && best.Gap <= s.opts.GapTolerance {
		best.Status = StatusOptimal
	}
	return best
}
