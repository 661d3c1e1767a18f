// Package solver holds a small linear model representation and the LP and MIP
// backends the optimizer runs it through.
package solver

import (
	"context"
	"fmt"
	"math"
)

type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	}
	return "?"
}

// Var is a decision variable. Upper may be +Inf; Lower must be finite.
type Var struct {
	Name    string
	Obj     float64
	Lower   float64
	Upper   float64
	Integer bool
}

type Term struct {
	Var  int
	Coef float64
}

type Row struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a maximization problem over Vars subject to Rows.
type Model struct {
	Vars []Var
	Rows []Row
}

// AddVar appends a variable and returns its index.
func (m *Model) AddVar(v Var) int {
	m.Vars = append(m.Vars, v)
	return len(m.Vars) - 1
}

func (m *Model) AddRow(r Row) int {
	m.Rows = append(m.Rows, r)
	return len(m.Rows) - 1
}

// HasIntegers reports whether any variable is integer constrained.
func (m *Model) HasIntegers() bool {
	for _, v := range m.Vars {
		if v.Integer {
			return true
		}
	}
	return false
}

// Clone deep-copies the model so branch nodes can tighten bounds independently.
func (m *Model) Clone() *Model {
	out := &Model{Vars: append([]Var(nil), m.Vars...), Rows: make([]Row, len(m.Rows))}
	for i, r := range m.Rows {
		r.Terms = append([]Term(nil), r.Terms...)
		out.Rows[i] = r
	}
	return out
}

// Objective evaluates the objective at x.
func (m *Model) Objective(x []float64) float64 {
	var sum float64
	for j, v := range m.Vars {
		sum += v.Obj * x[j]
	}
	return sum
}

// Activity evaluates the left-hand side of row i at x.
func (m *Model) Activity(i int, x []float64) float64 {
	var sum float64
	for _, t := range m.Rows[i].Terms {
		sum += t.Coef * x[t.Var]
	}
	return sum
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func (m *Model) Validate() error {
	for j, v := range m.Vars {
		if !finite(v.Obj) || !finite(v.Lower) || math.IsNaN(v.Upper) || math.IsInf(v.Upper, -1) {
			return fmt.Errorf("var %d (%s): invalid objective or bounds", j, v.Name)
		}
		if v.Upper < v.Lower {
			return fmt.Errorf("var %d (%s): upper %v below lower %v", j, v.Name, v.Upper, v.Lower)
		}
	}
	for i, r := range m.Rows {
		if !finite(r.RHS) {
			return fmt.Errorf("row %d (%s): invalid rhs %v", i, r.Name, r.RHS)
		}
		for _, t := range r.Terms {
			if t.Var < 0 || t.Var >= len(m.Vars) {
				return fmt.Errorf("row %d (%s): unknown var %d", i, r.Name, t.Var)
			}
			if !finite(t.Coef) {
				return fmt.Errorf("row %d (%s): invalid coefficient %v", i, r.Name, t.Coef)
			}
		}
	}
	return nil
}

type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusInfeasible
	StatusUnbounded
	// StatusNoSolution means the search stopped before finding any feasible point.
	StatusNoSolution
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNoSolution:
		return "no_solution"
	}
	return "unknown"
}

type Result struct {
	Status    Status
	Objective float64
	X         []float64
	TimedOut  bool
	Nodes     int
	Gap       float64
}

// HasSolution reports whether X holds a feasible point.
func (r Result) HasSolution() bool {
	return (r.Status == StatusOptimal || r.Status == StatusFeasible) && r.X != nil
}

// Solver runs a model to completion or until ctx is done. On ctx expiry a solver
// returns its best incumbent, if any, with TimedOut set and the context error.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model) (Result, error)
}

type Options struct {
	// Tolerance is the feasibility and integrality tolerance.
	Tolerance float64 `yaml:"tolerance"`
	// GapTolerance is the relative optimality gap under which a MIP stops branching.
	GapTolerance float64 `yaml:"gap_tolerance"`
	NodeLimit    int     `yaml:"node_limit"`
}

func DefaultOptions() Options {
	return Options{Tolerance: 1e-6, GapTolerance: 1e-6, NodeLimit: 10000}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.GapTolerance <= 0 {
		o.GapTolerance = d.GapTolerance
	}
	if o.NodeLimit <= 0 {
		o.NodeLimit = d.NodeLimit
	}
	return o
}

// For returns the MIP backend when the model has integer variables, the LP backend
// otherwise.
func For(m *Model, opts Options) Solver {
	if m.HasIntegers() {
		return NewMIP(opts)
	}
	return NewLP(opts)
}
