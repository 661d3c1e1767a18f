// Package pipeline assembles an optimizer input from reference data: water budgets,
// yield and price estimates and suitability scores for every field and crop.
package pipeline

import (
	"context"
	"fmt"

	"acao/entities"
	"acao/pkg/cache"
	"acao/pkg/market"
	"acao/pkg/optimizer"
	"acao/pkg/plan/types"
	"acao/pkg/suitability"
	"acao/pkg/waterbudget"
)

// Dataset is the reference data of one planning cycle.
type Dataset struct {
	Season  types.Season
	Weather types.SeasonWeather
	Fields  []entities.Field
	Crops   []entities.Crop
	History []entities.PlantingRecord
}

func (d Dataset) Field(id string) (entities.Field, bool) {
	for _, f := range d.Fields {
		if f.FieldID == id {
			return f, true
		}
	}
	return entities.Field{}, false
}

// Prepared is a Dataset with everything derived for one quota.
type Prepared struct {
	Input  optimizer.Input
	Scores map[string][]types.SuitabilityScore
}

// Cache capacities. A budget is kept per field, crop, season and weather scenario;
// a score list per field and estimate set.
const (
	budgetEntries = 1 << 15
	scoreEntries  = 1 << 12
)

type Pipeline struct {
	Weights   suitability.Weights
	Estimator market.Estimator

	budgets *cache.Store[types.WaterBudget]
	scores  *cache.Store[[]types.SuitabilityScore]
}

func New(w suitability.Weights, est market.Estimator) *Pipeline {
	return &Pipeline{
		Weights:   w,
		Estimator: est,
		budgets:   cache.New[types.WaterBudget]("water_budget", budgetEntries),
		scores:    cache.New[[]types.SuitabilityScore]("suitability", scoreEntries),
	}
}

// WithEstimator returns a pipeline sharing the caches of p but estimating with est.
// Budgets stay valid; scores are keyed by their estimates and never collide.
func (p *Pipeline) WithEstimator(est market.Estimator) *Pipeline {
	cp := *p
	cp.Estimator = est
	return &cp
}

// Prepare derives budgets, estimates and scores and returns the optimizer input with
// no constraints set. quotaM3 apportions the water fit criterion by field area.
func (p *Pipeline) Prepare(ctx context.Context, ds Dataset, quotaM3 float64) (*Prepared, error) {
	if len(ds.Fields) == 0 {
		return nil, types.NewDataError("fields", "", "no fields to plan")
	}
	var totalHa float64
	for _, f := range ds.Fields {
		totalHa += f.AreaHa
	}
	weatherFP, err := cache.Fingerprint(ds.Weather)
	if err != nil {
		return nil, fmt.Errorf("fingerprint weather: %w", err)
	}

	in := optimizer.Input{
		Fields:      ds.Fields,
		Crops:       ds.Crops,
		History:     ds.History,
		SeasonIndex: ds.Season.Index,
	}
	inputs := make([]suitability.Input, 0, len(ds.Fields))
	for _, f := range ds.Fields {
		var share float64
		if totalHa > 0 {
			share = quotaM3 * f.AreaHa / totalHa
		}
		si, err := p.input(ctx, ds, f, share, weatherFP)
		if err != nil {
			return nil, err
		}
		for _, c := range si.Candidates {
			in.Budgets = append(in.Budgets, c.Budget)
			in.Estimates = append(in.Estimates, c.Estimate)
		}
		inputs = append(inputs, si)
	}

	scored, err := p.scoreAll(ctx, ds, inputs)
	if err != nil {
		return nil, err
	}
	out := &Prepared{Scores: make(map[string][]types.SuitabilityScore, len(scored))}
	for i, s := range scored {
		out.Scores[inputs[i].Field.FieldID] = s
		in.Scores = append(in.Scores, s...)
	}
	out.Input = in
	return out, nil
}

// Rank scores the candidate crops of one field given its share of the quota.
func (p *Pipeline) Rank(ctx context.Context, ds Dataset, f entities.Field, shareM3 float64) ([]types.SuitabilityScore, error) {
	weatherFP, err := cache.Fingerprint(ds.Weather)
	if err != nil {
		return nil, fmt.Errorf("fingerprint weather: %w", err)
	}
	si, err := p.input(ctx, ds, f, shareM3, weatherFP)
	if err != nil {
		return nil, err
	}
	scored, err := p.scoreAll(ctx, ds, []suitability.Input{si})
	if err != nil {
		return nil, err
	}
	return scored[0], nil
}

// input gathers the eligible candidates of a field. Ineligible crops need neither a
// budget nor an estimate.
func (p *Pipeline) input(ctx context.Context, ds Dataset, f entities.Field, shareM3 float64, weatherFP uint64) (suitability.Input, error) {
	si := suitability.Input{Field: f, QuotaShareM3: shareM3, Weights: p.Weights}
	for _, c := range ds.Crops {
		if ok, _ := suitability.Eligible(f, c); !ok {
			continue
		}
		b, err := p.budget(f, c, ds, weatherFP)
		if err != nil {
			return si, err
		}
		e, err := p.Estimator.Estimate(ctx, f, c, ds.Season)
		if err != nil {
			return si, fmt.Errorf("estimate %s on %s: %w", c.CropID, f.FieldID, err)
		}
		e.FieldID, e.CropID = f.FieldID, c.CropID
		si.Candidates = append(si.Candidates, suitability.Candidate{Crop: c, Budget: b, Estimate: e})
	}
	return si, nil
}

func (p *Pipeline) budget(f entities.Field, c entities.Crop, ds Dataset, weatherFP uint64) (types.WaterBudget, error) {
	fp, err := cache.Fingerprint(f, c, weatherFP)
	if err != nil {
		return types.WaterBudget{}, fmt.Errorf("fingerprint budget: %w", err)
	}
	k := cache.Key{FieldID: f.FieldID, CropID: c.CropID, SeasonID: ds.Season.ID, Scenario: ds.Weather.ScenarioID, Fingerprint: fp}
	return p.budgets.GetOrCompute(k, func() (types.WaterBudget, error) {
		return waterbudget.Build(f, c, ds.Weather)
	})
}

// scoreAll serves cached field rankings and scores the rest in parallel.
func (p *Pipeline) scoreAll(ctx context.Context, ds Dataset, inputs []suitability.Input) ([][]types.SuitabilityScore, error) {
	out := make([][]types.SuitabilityScore, len(inputs))
	keys := make([]cache.Key, len(inputs))
	var missing []int
	for i, in := range inputs {
		fp, err := cache.Fingerprint(in)
		if err != nil {
			return nil, fmt.Errorf("fingerprint scores: %w", err)
		}
		keys[i] = cache.Key{FieldID: in.Field.FieldID, SeasonID: ds.Season.ID, Scenario: ds.Weather.ScenarioID, Fingerprint: fp}
		if s, ok := p.scores.Get(keys[i]); ok {
			out[i] = s
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	batch := make([]suitability.Input, len(missing))
	for j, i := range missing {
		batch[j] = inputs[i]
	}
	scored, err := suitability.ScoreAll(ctx, batch)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		s := scored[j]
		out[i], _ = p.scores.GetOrCompute(keys[i], func() ([]types.SuitabilityScore, error) { return s, nil })
	}
	return out, nil
}
