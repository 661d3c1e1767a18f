package optimizer

import (
	"fmt"
	"math"
	"sort"

	"acao/entities"
	"acao/pkg/plan/types"
	"acao/pkg/solver"
)

// Input is everything one solve needs. All slices are read-only.
type Input struct {
	Fields      []entities.Field
	Crops       []entities.Crop
	Scores      []types.SuitabilityScore
	Budgets     []types.WaterBudget
	Estimates   []types.YieldPriceEstimate
	History     []entities.PlantingRecord
	SeasonIndex int
	Constraints types.ConstraintSet
}

type pair struct {
	key         types.PairKey
	areaHa      float64
	volPerHa    float64
	yieldPerHa  float64
	profitPerHa float64
	riskScore   float64
	obj         float64
}

type rotationRule struct {
	idx    int
	cropID string
	// blocked lists the candidate pairs the rule excludes while active.
	blocked map[types.PairKey]bool
}

// problem is the validated, indexed form of an Input.
type problem struct {
	fields   []entities.Field
	pairs    []pair
	quota    float64
	minAreas []types.Constraint
	noSplit  int
	rules    []rotationRule
}

func newProblem(in Input, cfg Config) (*problem, error) {
	if err := in.Constraints.Validate(); err != nil {
		return nil, err
	}
	quotas := in.Constraints.OfKind(types.KindWaterQuota)
	if len(quotas) != 1 {
		return nil, types.NewValidationError("constraints", "exactly one water_quota is required, got %d", len(quotas))
	}

	p := &problem{
		quota:    quotas[0].VolumeM3,
		minAreas: in.Constraints.OfKind(types.KindMinArea),
	}
	p.noSplit, _ = in.Constraints.NoSplit()

	fields := map[string]entities.Field{}
	for _, f := range in.Fields {
		if f.AreaHa <= 0 || math.IsNaN(f.AreaHa) {
			return nil, types.NewDataError("field", f.FieldID, "area must be positive, got %v", f.AreaHa)
		}
		fields[f.FieldID] = f
	}
	p.fields = append(p.fields, in.Fields...)
	sort.Slice(p.fields, func(i, j int) bool { return p.fields[i].FieldID < p.fields[j].FieldID })

	crops := map[string]entities.Crop{}
	for _, c := range in.Crops {
		crops[c.CropID] = c
	}
	budgets := map[types.PairKey]types.WaterBudget{}
	for _, b := range in.Budgets {
		budgets[types.Pair(b.FieldID, b.CropID)] = b
	}
	estimates := map[types.PairKey]types.YieldPriceEstimate{}
	for _, e := range in.Estimates {
		estimates[types.Pair(e.FieldID, e.CropID)] = e
	}

	riskCaps := in.Constraints.OfKind(types.KindMaxRiskLevel)
	seen := map[types.PairKey]bool{}
	for _, s := range in.Scores {
		key := types.Pair(s.FieldID, s.CropID)
		if seen[key] {
			return nil, types.NewDataError("score", fmt.Sprintf("%s/%s", s.FieldID, s.CropID), "duplicate suitability score")
		}
		seen[key] = true
		if s.Closeness < cfg.EligibilityFloor {
			continue
		}
		f, ok := fields[s.FieldID]
		if !ok {
			return nil, types.NewDataError("field", s.FieldID, "scored but not in the field set")
		}
		c, ok := crops[s.CropID]
		if !ok {
			return nil, types.NewDataError("crop", s.CropID, "scored but not in the crop set")
		}
		if exceedsRisk(c, riskCaps) {
			continue
		}
		b, ok := budgets[key]
		if !ok {
			return nil, types.NewDataError("water budget", key.FieldID+"/"+key.CropID, "missing")
		}
		e, ok := estimates[key]
		if !ok {
			return nil, types.NewDataError("estimate", key.FieldID+"/"+key.CropID, "missing")
		}
		if math.IsNaN(b.NetRequirementMM) || b.NetRequirementMM < 0 {
			return nil, types.NewDataError("water budget", key.FieldID+"/"+key.CropID, "invalid net requirement %v", b.NetRequirementMM)
		}
		profit := e.ExpectedYield*e.ExpectedPrice - c.ProductionCostPerHa
		risk := e.RiskScore()
		p.pairs = append(p.pairs, pair{
			key:         key,
			areaHa:      f.AreaHa,
			volPerHa:    b.VolumePerHa(),
			yieldPerHa:  e.ExpectedYield,
			profitPerHa: profit,
			riskScore:   risk,
			obj:         profit - cfg.RiskPenalty*risk,
		})
	}
	sort.Slice(p.pairs, func(i, j int) bool {
		a, b := p.pairs[i].key, p.pairs[j].key
		if a.FieldID != b.FieldID {
			return a.FieldID < b.FieldID
		}
		return a.CropID < b.CropID
	})

	for i, r := range in.Constraints {
		if r.Kind != types.KindRotationRule {
			continue
		}
		rule := rotationRule{idx: i, cropID: r.CropID, blocked: map[types.PairKey]bool{}}
		for _, h := range in.History {
			if h.CropID != r.CropID || h.SeasonIndex > in.SeasonIndex {
				continue
			}
			if in.SeasonIndex-h.SeasonIndex <= r.CooldownSeasons {
				rule.blocked[types.Pair(h.FieldID, h.CropID)] = true
			}
		}
		if p.blocksAny(rule) {
			p.rules = append(p.rules, rule)
		}
	}
	sort.SliceStable(p.rules, func(i, j int) bool { return p.rules[i].cropID < p.rules[j].cropID })
	return p, nil
}

func exceedsRisk(c entities.Crop, caps []types.Constraint) bool {
	for _, limit := range caps {
		if types.RiskRank(c.RiskClass) > types.RiskRank(limit.Level) {
			return true
		}
	}
	return false
}

func (p *problem) blocksAny(r rotationRule) bool {
	for _, pr := range p.pairs {
		if r.blocked[pr.key] {
			return true
		}
	}
	return false
}

// starved reports whether the water row alone keeps a solution empty: nothing is
// planted, the effective quota is zero and some pair would earn a profit with water.
// Such a plan is the optimum but it hides an infeasible demand, so it is relaxed and
// diagnosed like an infeasible model.
func (p *problem) starved(b *built, s state, x []float64, tol float64) bool {
	if p.quota*s.quotaScale > tol {
		return false
	}
	for i := range b.pairs {
		if x[b.xVar[i]] > tol {
			return false
		}
	}
	for _, pr := range b.pairs {
		if pr.obj > tol && pr.volPerHa > 0 {
			return true
		}
	}
	return false
}

// shortfallPrice is the per-m3 cost of elastic water when diagnosing a starved model.
// It keeps every profitable pair profitable and breaks profit ties toward less water.
func (p *problem) shortfallPrice() float64 {
	best := math.Inf(1)
	for _, pr := range p.pairs {
		if pr.obj > 0 && pr.volPerHa > 0 {
			best = math.Min(best, pr.obj/pr.volPerHa)
		}
	}
	if math.IsInf(best, 1) {
		return 1
	}
	return best * 1e-3
}

// state is one point of the relaxation search.
type state struct {
	steps      int
	dropped    int // rotation rules dropped, in p.rules order
	minSteps   int
	quotaSteps int
	minScale   float64
	quotaScale float64
}

func initialState() state { return state{minScale: 1, quotaScale: 1} }

func (p *problem) hasMinArea() bool {
	for _, c := range p.minAreas {
		if c.MinimumHa > 0 {
			return true
		}
	}
	return false
}

// next loosens one more notch: rotation rules first, then minimum areas, then the quota.
func (p *problem) next(s state, step float64) state {
	s.steps++
	switch {
	case s.dropped < len(p.rules):
		s.dropped++
	case p.hasMinArea() && s.minScale > 0:
		s.minSteps++
		s.minScale = math.Max(0, 1-float64(s.minSteps)*step)
	default:
		s.quotaSteps++
		s.quotaScale = 1 + float64(s.quotaSteps)*step
	}
	return s
}

func (p *problem) relaxation(s state) *types.Relaxation {
	r := &types.Relaxation{
		Steps:                 s.steps,
		MinAreaScale:          s.minScale,
		WaterQuotaScale:       s.quotaScale,
		EffectiveWaterQuotaM3: p.quota * s.quotaScale,
	}
	for _, rule := range p.rules[:s.dropped] {
		r.DroppedRotationRules = append(r.DroppedRotationRules, rule.cropID)
	}
	return r
}

// built is a solver model plus the bookkeeping to read a solution back.
type built struct {
	model    *solver.Model
	pairs    []pair
	xVar     []int
	waterRow int
	minRows  map[int]types.Constraint
}

func (p *problem) build(s state, integral bool) *built {
	blocked := map[types.PairKey]bool{}
	for _, rule := range p.rules[s.dropped:] {
		for k := range rule.blocked {
			blocked[k] = true
		}
	}
	b := &built{model: &solver.Model{}, waterRow: -1, minRows: map[int]types.Constraint{}}
	for _, pr := range p.pairs {
		if blocked[pr.key] {
			continue
		}
		b.pairs = append(b.pairs, pr)
		b.xVar = append(b.xVar, b.model.AddVar(solver.Var{
			Name:  "x[" + pr.key.FieldID + "," + pr.key.CropID + "]",
			Obj:   pr.obj,
			Upper: pr.areaHa,
		}))
	}

	byField := map[string][]int{}
	for i, pr := range b.pairs {
		byField[pr.key.FieldID] = append(byField[pr.key.FieldID], i)
	}
	for _, f := range p.fields {
		idx := byField[f.FieldID]
		if len(idx) == 0 {
			continue
		}
		terms := make([]solver.Term, 0, len(idx))
		for _, i := range idx {
			terms = append(terms, solver.Term{Var: b.xVar[i], Coef: 1})
		}
		b.model.AddRow(solver.Row{Name: "area[" + f.FieldID + "]", Terms: terms, Sense: solver.LE, RHS: f.AreaHa})
	}

	water := make([]solver.Term, 0, len(b.pairs))
	for i, pr := range b.pairs {
		if pr.volPerHa != 0 {
			water = append(water, solver.Term{Var: b.xVar[i], Coef: pr.volPerHa})
		}
	}
	b.waterRow = b.model.AddRow(solver.Row{Name: "water_quota", Terms: water, Sense: solver.LE, RHS: p.quota * s.quotaScale})

	for _, c := range p.minAreas {
		rhs := c.MinimumHa * s.minScale
		if rhs <= 0 {
			continue
		}
		var terms []solver.Term
		for i, pr := range b.pairs {
			if pr.key.CropID == c.CropID {
				terms = append(terms, solver.Term{Var: b.xVar[i], Coef: 1})
			}
		}
		row := b.model.AddRow(solver.Row{Name: "min_area[" + c.CropID + "]", Terms: terms, Sense: solver.GE, RHS: rhs})
		b.minRows[row] = c
	}

	if p.noSplit > 0 {
		for _, f := range p.fields {
			idx := byField[f.FieldID]
			if len(idx) == 0 {
				continue
			}
			count := make([]solver.Term, 0, len(idx))
			for _, i := range idx {
				y := b.model.AddVar(solver.Var{
					Name:    "y[" + f.FieldID + "," + b.pairs[i].key.CropID + "]",
					Upper:   1,
					Integer: integral,
				})
				b.model.AddRow(solver.Row{
					Name:  "link[" + f.FieldID + "," + b.pairs[i].key.CropID + "]",
					Terms: []solver.Term{{Var: b.xVar[i], Coef: 1}, {Var: y, Coef: -f.AreaHa}},
					Sense: solver.LE,
				})
				count = append(count, solver.Term{Var: y, Coef: 1})
			}
			b.model.AddRow(solver.Row{Name: "no_split[" + f.FieldID + "]", Terms: count, Sense: solver.LE, RHS: float64(p.noSplit)})
		}
	}
	return b
}
