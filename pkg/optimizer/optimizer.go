// Package optimizer allocates hectares per crop per field to maximize expected profit
// under the water quota and policy constraints, loosening constraints step by step
// when the model is infeasible.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"acao/pkg/logger"
	"acao/pkg/plan/types"
	"acao/pkg/solver"
)

type Optimizer struct {
	cfg    Config
	log    *logger.Logger
	solver func(*solver.Model) solver.Solver
}

type Option func(*Optimizer)

func WithLogger(l *logger.Logger) Option {
	return func(o *Optimizer) { o.log = l }
}

// WithSolver pins the backend instead of choosing LP or MIP from the model.
func WithSolver(s solver.Solver) Option {
	return func(o *Optimizer) { o.solver = func(*solver.Model) solver.Solver { return s } }
}

func New(cfg Config, opts ...Option) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Optimizer{cfg: cfg, log: logger.Nop()}
	o.solver = func(m *solver.Model) solver.Solver { return solver.For(m, cfg.Solver) }
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Optimizer) Config() Config { return o.cfg }

// Optimize solves one allocation. Besides plain errors it may return a plan together
// with *types.InfeasibleError (relaxation budget spent) or *types.SolverTimeoutError
// (deadline hit); callers should keep the plan in both cases.
func (o *Optimizer) Optimize(ctx context.Context, in Input) (*types.AllocationPlan, error) {
	p, err := newProblem(in, o.cfg)
	if err != nil {
		return nil, err
	}
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}
	log := o.log.With("pairs", len(p.pairs), "fields", len(p.fields), "quota_m3", p.quota)

	st := initialState()
	for {
		b := p.build(st, true)
		s := o.solver(b.model)
		res, err := s.Solve(ctx, b.model)
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("optimize with %s: %w", s.Name(), err)
		}
		if res.TimedOut || err != nil {
			return o.timedOut(p, b, st, s.Name(), res, log)
		}

		if res.Status == solver.StatusUnbounded {
			return nil, fmt.Errorf("optimize with %s: model is unbounded", s.Name())
		}
		solved := res.Status == solver.StatusOptimal || res.Status == solver.StatusFeasible
		starved := solved && p.starved(b, st, res.X, o.cfg.tolerance())
		if solved && !starved {
			plan := o.plan(p, b, st, res.X, res.Objective)
			plan.Backend = s.Name()
			plan.Status = types.StatusOptimal
			if res.Status == solver.StatusFeasible {
				plan.Status = types.StatusFeasible
			}
			log.Debug("solved", "status", plan.Status, "objective", plan.ObjectiveValue, "relaxation_steps", st.steps)
			return plan, nil
		}

		if st.steps >= o.cfg.RelaxationBudget {
			log.Warn("relaxation budget exhausted", "steps", st.steps, "starved", starved)
			return o.diagnose(ctx, p, st, starved)
		}
		st = p.next(st, o.cfg.RelaxationStep)
		log.Debug("relaxing", "step", st.steps, "dropped_rotation_rules", st.dropped,
			"min_area_scale", st.minScale, "water_quota_scale", st.quotaScale)
	}
}

func (o *Optimizer) timedOut(p *problem, b *built, st state, backend string, res solver.Result, log *logger.Logger) (*types.AllocationPlan, error) {
	if res.HasSolution() {
		plan := o.plan(p, b, st, res.X, res.Objective)
		plan.Status = types.StatusFeasible
		plan.TimedOut = true
		plan.Backend = backend
		log.Warn("solver timed out, returning incumbent", "objective", plan.ObjectiveValue)
		return plan, &types.SolverTimeoutError{Plan: plan}
	}
	log.Warn("solver timed out without an incumbent")
	plan := &types.AllocationPlan{
		Status:       types.StatusInfeasible,
		Allocations:  []types.Allocation{},
		WaterQuotaM3: p.quota,
		TimedOut:     true,
		Backend:      backend,
		Relaxation:   relaxationIfApplied(p, st),
	}
	return plan, &types.SolverTimeoutError{}
}

func relaxationIfApplied(p *problem, st state) *types.Relaxation {
	if st.steps == 0 {
		return nil
	}
	return p.relaxation(st)
}

// floorArea truncates to 0.01 ha so rounding never breaks an upper bound.
func floorArea(v float64) float64 {
	return math.Floor(v*100+1e-6) / 100
}

func (o *Optimizer) plan(p *problem, b *built, st state, x []float64, objective float64) *types.AllocationPlan {
	plan := &types.AllocationPlan{
		ObjectiveValue: objective,
		Allocations:    []types.Allocation{},
		WaterQuotaM3:   p.quota,
		Relaxation:     relaxationIfApplied(p, st),
	}
	for i, pr := range b.pairs {
		ha := floorArea(x[b.xVar[i]])
		if ha <= 0 {
			continue
		}
		a := types.Allocation{
			FieldID:        pr.key.FieldID,
			CropID:         pr.key.CropID,
			AllocatedHa:    ha,
			WaterM3:        ha * pr.volPerHa,
			ExpectedYieldT: ha * pr.yieldPerHa,
			ExpectedProfit: ha * pr.profitPerHa,
			RiskScore:      pr.riskScore,
		}
		plan.Allocations = append(plan.Allocations, a)
		plan.TotalWaterUsageM3 += a.WaterM3
		plan.AllocatedProfit += a.ExpectedProfit
	}
	return plan
}

// diagnose solves an elastic copy of the unrelaxed model where the water and minimum
// area rows may be broken at a cost, and reports by how much. A starved model prices
// water low enough to plant its unconstrained optimum, and its plan stays empty.
func (o *Optimizer) diagnose(ctx context.Context, p *problem, last state, starved bool) (*types.AllocationPlan, error) {
	b := p.build(initialState(), false)
	deficits := map[int]int{}
	for i := range b.model.Rows {
		row := &b.model.Rows[i]
		var coef float64
		cost := 1 / math.Max(row.RHS, 1)
		switch {
		case i == b.waterRow:
			coef = -1
			if starved {
				cost = p.shortfallPrice()
			}
		case b.minRows[i].Kind == types.KindMinArea:
			coef = 1
		default:
			continue
		}
		d := b.model.AddVar(solver.Var{Name: "deficit[" + row.Name + "]", Obj: -cost, Upper: math.Inf(1)})
		row.Terms = append(row.Terms, solver.Term{Var: d, Coef: coef})
		deficits[i] = d
	}

	lp := solver.NewLP(o.cfg.Solver)
	res, err := lp.Solve(ctx, b.model)
	infeasible := &types.InfeasibleError{Relaxation: p.relaxation(last)}
	if err != nil || !res.HasSolution() {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("diagnose infeasibility: %w", err)
		}
		plan := &types.AllocationPlan{
			Status:       types.StatusInfeasible,
			Allocations:  []types.Allocation{},
			WaterQuotaM3: p.quota,
			Backend:      lp.Name(),
			Relaxation:   infeasible.Relaxation,
			TimedOut:     res.TimedOut,
		}
		return plan, infeasible
	}

	var objective float64
	for i, pr := range b.pairs {
		objective += pr.obj * res.X[b.xVar[i]]
	}
	plan := o.plan(p, b, last, res.X, objective)
	if starved {
		plan = o.plan(p, b, last, make([]float64, len(res.X)), 0)
	}
	plan.Status = types.StatusInfeasible
	plan.Backend = lp.Name()
	plan.Relaxation = infeasible.Relaxation
	for row := 0; row < len(b.model.Rows); row++ {
		d, ok := deficits[row]
		if !ok || res.X[d] <= o.cfg.tolerance() {
			continue
		}
		v := types.Violation{Kind: types.KindWaterQuota, Limit: p.quota, Amount: res.X[d]}
		if c, ok := b.minRows[row]; ok {
			v = types.Violation{Kind: types.KindMinArea, CropID: c.CropID, Limit: c.MinimumHa, Amount: res.X[d]}
		}
		plan.Violations = append(plan.Violations, v)
	}
	infeasible.Violations = plan.Violations
	return plan, infeasible
}
