package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const simplexTol = 1e-10

// LP solves continuous models with the gonum simplex. Integer flags are ignored,
// which makes it the relaxation oracle of the MIP backend.
type LP struct {
	opts Options
}

func NewLP(opts Options) *LP { return &LP{opts: opts.withDefaults()} }

func (s *LP) Name() string { return "lp-simplex" }

type lpOutcome struct {
	res Result
	err error
}

func (s *LP) Solve(ctx context.Context, m *Model) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusNoSolution, TimedOut: true}, err
	}
	done := make(chan lpOutcome, 1)
	go func() {
		res, err := s.solve(m)
		done <- lpOutcome{res, err}
	}()
	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return Result{Status: StatusNoSolution, TimedOut: true}, ctx.Err()
	}
}

// standardForm is min cᵀx s.t. Ax = b, x >= 0 over the shifted active variables
// followed by one slack column per row.
type standardForm struct {
	c    []float64
	a    *mat.Dense
	b    []float64
	cols []int // model var of each structural column
}

func (s *LP) solve(m *Model) (Result, error) {
	x := make([]float64, len(m.Vars))
	for j, v := range m.Vars {
		x[j] = v.Lower
	}

	for _, r := range m.Rows {
		if emptyRow(r) && !rowHolds(r.Sense, 0, r.RHS, 0) {
			return Result{Status: StatusInfeasible}, nil
		}
	}

	// A variable that no row touches sits at its lower bound, unless it improves
	// the objective without limit.
	touched := make([]bool, len(m.Vars))
	for _, r := range m.Rows {
		for _, t := range r.Terms {
			if t.Coef != 0 {
				touched[t.Var] = true
			}
		}
	}
	var active []int
	for j, v := range m.Vars {
		bounded := !math.IsInf(v.Upper, 1)
		switch {
		case touched[j] || bounded:
			active = append(active, j)
		case v.Obj > 0:
			return Result{Status: StatusUnbounded}, nil
		}
	}

	sf := buildStandardForm(m, active)
	if sf == nil {
		return Result{Status: StatusOptimal, Objective: m.Objective(x), X: x}, nil
	}
	_, opt, err := lp.Simplex(sf.c, sf.a, sf.b, simplexTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return Result{Status: StatusInfeasible}, nil
	case errors.Is(err, lp.ErrUnbounded):
		return Result{Status: StatusUnbounded}, nil
	case err != nil:
		return Result{}, fmt.Errorf("simplex: %w", err)
	}
	for k, j := range sf.cols {
		v := math.Max(0, opt[k]) + m.Vars[j].Lower
		if v > m.Vars[j].Upper {
			v = m.Vars[j].Upper
		}
		x[j] = v
	}
	if err := s.check(m, x); err != nil {
		return Result{}, err
	}
	return Result{Status: StatusOptimal, Objective: m.Objective(x), X: x}, nil
}

func buildStandardForm(m *Model, active []int) *standardForm {
	colOf := make(map[int]int, len(active))
	for k, j := range active {
		colOf[j] = k
	}
	type srow struct {
		coef  map[int]float64
		slack float64
		rhs   float64
	}
	var rows []srow
	addRow := func(terms []Term, sense Sense, rhs float64) {
		r := srow{coef: map[int]float64{}, rhs: rhs}
		for _, t := range terms {
			if t.Coef == 0 {
				continue
			}
			r.coef[colOf[t.Var]] += t.Coef
			r.rhs -= t.Coef * m.Vars[t.Var].Lower
		}
		if sense == LE {
			r.slack = 1
		} else {
			r.slack = -1
		}
		rows = append(rows, r)
	}
	for _, r := range m.Rows {
		if emptyRow(r) {
			continue
		}
		switch r.Sense {
		case EQ:
			addRow(r.Terms, LE, r.RHS)
			addRow(r.Terms, GE, r.RHS)
		default:
			addRow(r.Terms, r.Sense, r.RHS)
		}
	}
	for _, j := range active {
		if v := m.Vars[j]; !math.IsInf(v.Upper, 1) {
			addRow([]Term{{Var: j, Coef: 1}}, LE, v.Upper)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	nRows, nCols := len(rows), len(active)+len(rows)
	sf := &standardForm{
		c:    make([]float64, nCols),
		a:    mat.NewDense(nRows, nCols, nil),
		b:    make([]float64, nRows),
		cols: active,
	}
	for k, j := range active {
		sf.c[k] = -m.Vars[j].Obj
	}
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		scale := math.Abs(r.slack)
		for _, v := range r.coef {
			scale = math.Max(scale, math.Abs(v))
		}
		f := sign / scale
		for k, v := range r.coef {
			sf.a.Set(i, k, v*f)
		}
		sf.a.Set(i, len(active)+i, r.slack*f)
		sf.b[i] = r.rhs * f
	}
	return sf
}

// check rejects solutions the simplex reports as optimal but that break a row by
// more than the tolerance, which happens on badly conditioned inputs.
func (s *LP) check(m *Model, x []float64) error {
	for i, r := range m.Rows {
		act := m.Activity(i, x)
		tol := s.opts.Tolerance * math.Max(1, math.Abs(r.RHS))
		if !rowHolds(r.Sense, act, r.RHS, tol) {
			return fmt.Errorf("simplex: row %s violated (%v %s %v)", r.Name, act, r.Sense, r.RHS)
		}
	}
	return nil
}

func emptyRow(r Row) bool {
	for _, t := range r.Terms {
		if t.Coef != 0 {
			return false
		}
	}
	return true
}

func rowHolds(sense Sense, act, rhs, tol float64) bool {
	switch sense {
	case LE:
		return act <= rhs+tol
	case GE:
		return act >= rhs-tol
	}
	return math.Abs(act-rhs) <= tol
}
