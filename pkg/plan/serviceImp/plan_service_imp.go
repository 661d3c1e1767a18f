package serviceImp

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"acao/entities"
	croprepo "acao/pkg/crop/repository"
	fieldrepo "acao/pkg/field/repository"
	"acao/pkg/logger"
	"acao/pkg/market"
	"acao/pkg/metrics"
	"acao/pkg/optimizer"
	"acao/pkg/plan/pipeline"
	planrepo "acao/pkg/plan/repository"
	"acao/pkg/plan/service"
	"acao/pkg/plan/types"
	"acao/pkg/recommend"
	"acao/pkg/replan"
	"acao/pkg/suitability"
	"acao/pkg/weather"
	weatherrepo "acao/pkg/weather/repository"
)

type Options struct {
	// WeatherScenario selects the forecast rows budgets are built from.
	WeatherScenario string
	Weights         suitability.Weights
	// Prices, when set, overrides stored prices for the crops it lists.
	Prices market.Bulletin
}

type PlanSvc struct {
	fields    fieldrepo.FieldRepository
	crops     croprepo.CropRepository
	weather   weatherrepo.WeatherRepository
	scenarios planrepo.ScenarioRepository
	opt       *optimizer.Optimizer
	replanner *replan.Replanner
	pipe      *pipeline.Pipeline
	opts      Options
	log       *logger.Logger
	now       func() time.Time
}

var _ service.PlanService = (*PlanSvc)(nil)

func NewPlanService(fr fieldrepo.FieldRepository, cr croprepo.CropRepository, wr weatherrepo.WeatherRepository,
	sr planrepo.ScenarioRepository, opt *optimizer.Optimizer, opts Options, log *logger.Logger) *PlanSvc {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Weights == (suitability.Weights{}) {
		opts.Weights = suitability.DefaultWeights()
	}
	return &PlanSvc{
		fields: fr, crops: cr, weather: wr, scenarios: sr,
		opt:       opt,
		replanner: replan.New(opt),
		pipe:      pipeline.New(opts.Weights, nil),
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

func (s *PlanSvc) GetFieldRecommendations(ctx context.Context, fieldID string) (types.FieldRecommendation, error) {
	f, err := s.fields.FindByID(ctx, fieldID)
	if err != nil {
		return types.FieldRecommendation{}, err
	}
	ds, err := s.load(ctx, "", false)
	if err != nil {
		return types.FieldRecommendation{}, err
	}

	base, err := s.scenarios.LatestBaseline(ctx, ds.Season.ID)
	var de *types.DataError
	if err != nil && !(errors.As(err, &de) && de.IsNotFound()) {
		return types.FieldRecommendation{}, err
	}
	quota, err := s.quotaFor(ctx, *f, ds.Season.ID, base)
	if err != nil {
		return types.FieldRecommendation{}, err
	}
	share, err := s.share(ctx, *f, quota)
	if err != nil {
		return types.FieldRecommendation{}, err
	}

	pipe, err := s.pipeline(ctx, nil)
	if err != nil {
		return types.FieldRecommendation{}, err
	}
	scores, err := pipe.Rank(ctx, ds, *f, share)
	if err != nil {
		return types.FieldRecommendation{}, err
	}
	var plan *types.AllocationPlan
	if base != nil {
		plan = base.Plan
	}
	rec := recommend.Aggregate(*f, scores, plan)
	if base != nil {
		rec.ScenarioID = base.ID
	}
	return rec, nil
}

// RunOptimization plans every field of the current season under the given quota.
// Infeasible and timed-out runs are persisted with their status and returned
// without an error.
func (s *PlanSvc) RunOptimization(ctx context.Context, waterQuotaM3 float64, constraints types.ConstraintSet, label types.ScenarioLabel) (types.Scenario, error) {
	if label == "" {
		label = types.LabelBaseline
	}
	if label != types.LabelBaseline && label != types.LabelPlanB {
		return types.Scenario{}, types.NewValidationError("label", "must be baseline or plan_b, got %q", label)
	}
	if math.IsNaN(waterQuotaM3) || math.IsInf(waterQuotaM3, 0) || waterQuotaM3 < 0 {
		return types.Scenario{}, types.NewValidationError("water_quota_m3", "must be >= 0, got %v", waterQuotaM3)
	}
	cs := constraints.WithWaterQuota(waterQuotaM3)
	if err := cs.Validate(); err != nil {
		return types.Scenario{}, err
	}

	ds, err := s.load(ctx, "", true)
	if err != nil {
		return types.Scenario{}, err
	}
	pipe, err := s.pipeline(ctx, nil)
	if err != nil {
		return types.Scenario{}, err
	}
	prep, err := pipe.Prepare(ctx, ds, waterQuotaM3)
	if err != nil {
		return types.Scenario{}, err
	}
	in := prep.Input
	in.Constraints = cs

	start := s.now()
	plan, err := s.opt.Optimize(ctx, in)
	s.observe(plan, start)
	if err := s.tolerate(plan, err); err != nil {
		return types.Scenario{}, err
	}

	sc := types.Scenario{
		ID:          uuid.NewString(),
		Label:       label,
		SeasonID:    ds.Season.ID,
		Constraints: cs,
		Plan:        plan,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.persist(ctx, &sc); err != nil {
		return types.Scenario{}, err
	}
	s.log.Info("optimization stored", "scenario_id", sc.ID, "label", sc.Label, "status", plan.Status,
		"objective", plan.ObjectiveValue, "water_m3", plan.TotalWaterUsageM3)
	return sc, nil
}

func (s *PlanSvc) TriggerPlanB(ctx context.Context, baselineID string, req service.PlanBRequest) (types.Scenario, error) {
	if req.Constraints != nil {
		if err := req.Constraints.Validate(); err != nil {
			return types.Scenario{}, err
		}
	}
	if req.WaterQuotaM3 != nil && (math.IsNaN(*req.WaterQuotaM3) || *req.WaterQuotaM3 < 0) {
		return types.Scenario{}, types.NewValidationError("water_quota_m3", "must be >= 0, got %v", *req.WaterQuotaM3)
	}
	for crop, f := range req.PriceShocks {
		if !(f > 0) || math.IsInf(f, 0) {
			return types.Scenario{}, types.NewValidationError("price_shocks."+crop, "must be positive, got %v", f)
		}
	}
	base, err := s.scenarios.FindByID(ctx, baselineID)
	if err != nil {
		return types.Scenario{}, err
	}

	ds, err := s.load(ctx, base.SeasonID, true)
	if err != nil {
		return types.Scenario{}, err
	}
	quota, _ := base.Constraints.WaterQuota()
	if req.Constraints != nil {
		if q, ok := req.Constraints.WaterQuota(); ok {
			quota = q
		}
	}
	if req.WaterQuotaM3 != nil {
		quota = *req.WaterQuotaM3
	}
	pipe, err := s.pipeline(ctx, req.PriceShocks)
	if err != nil {
		return types.Scenario{}, err
	}
	prep, err := pipe.Prepare(ctx, ds, quota)
	if err != nil {
		return types.Scenario{}, err
	}

	start := s.now()
	sc, err := s.replanner.Replan(ctx, *base, prep.Input, replan.Update{
		Constraints:   req.Constraints,
		WaterQuotaM3:  req.WaterQuotaM3,
		TriggerReason: req.TriggerReason,
	})
	s.observe(sc.Plan, start)
	if err := s.tolerate(sc.Plan, err); err != nil {
		return types.Scenario{}, err
	}
	if err := s.persist(ctx, &sc); err != nil {
		return types.Scenario{}, err
	}
	s.log.Info("plan b stored", "scenario_id", sc.ID, "baseline_id", base.ID, "trigger", sc.TriggerReason,
		"status", sc.Plan.Status)
	return sc, nil
}

func (s *PlanSvc) GetNationalSupply(ctx context.Context, scenarioID string) (types.NationalSupply, error) {
	sc, err := s.scenarios.FindByID(ctx, scenarioID)
	if err != nil {
		return types.NationalSupply{}, err
	}
	if sc.Plan == nil {
		return types.NationalSupply{}, types.NewDataError("scenario", scenarioID, "has no plan")
	}
	out := types.NationalSupply{ScenarioID: sc.ID, Status: sc.Plan.Status, Crops: sc.Plan.SupplyByCrop()}
	if out.Crops == nil {
		out.Crops = []types.CropSupply{}
	}
	for _, c := range out.Crops {
		out.TotalHa += c.AreaHa
	}
	return out, nil
}

func (s *PlanSvc) ListPlanB(ctx context.Context, baselineID string) ([]types.Scenario, error) {
	if _, err := s.scenarios.FindByID(ctx, baselineID); err != nil {
		return nil, err
	}
	out, err := s.scenarios.ListByBaseline(ctx, baselineID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.Scenario{}
	}
	return out, nil
}

// load reads the reference data of a season, the current one when seasonID is empty.
// History is only needed by solves.
func (s *PlanSvc) load(ctx context.Context, seasonID string, withHistory bool) (pipeline.Dataset, error) {
	var season *entities.Season
	var err error
	if seasonID == "" {
		season, err = s.weather.CurrentSeason(ctx, s.now())
	} else {
		season, err = s.weather.FindSeason(ctx, seasonID)
	}
	if err != nil {
		return pipeline.Dataset{}, err
	}
	fields, err := s.fields.List(ctx)
	if err != nil {
		return pipeline.Dataset{}, err
	}
	crops, err := s.crops.List(ctx)
	if err != nil {
		return pipeline.Dataset{}, err
	}
	to := season.EndDate
	if to.IsZero() {
		to = season.StartDate.AddDate(1, 0, 0)
	}
	days, err := s.weather.Days(ctx, s.opts.WeatherScenario, season.StartDate, to)
	if err != nil {
		return pipeline.Dataset{}, err
	}
	w, err := weather.Series(*season, s.opts.WeatherScenario, days)
	if err != nil {
		return pipeline.Dataset{}, err
	}
	ds := pipeline.Dataset{Season: w.Season, Weather: w, Fields: fields, Crops: crops}
	if withHistory {
		ids := make([]string, len(fields))
		for i, f := range fields {
			ids[i] = f.FieldID
		}
		if ds.History, err = s.fields.History(ctx, ids); err != nil {
			return pipeline.Dataset{}, err
		}
	}
	return ds, nil
}

// pipeline returns the shared pipeline bound to the stored estimates, with bulletin
// prices and price shocks layered on top.
func (s *PlanSvc) pipeline(ctx context.Context, shocks map[string]float64) (*pipeline.Pipeline, error) {
	rows, err := s.weather.Estimates(ctx)
	if err != nil {
		return nil, err
	}
	var est market.Estimator = market.NewTableEstimator(rows)
	if len(s.opts.Prices) > 0 {
		est = market.BulletinEstimator{Base: est, Prices: s.opts.Prices}
	}
	if len(shocks) > 0 {
		est = market.Shocked{Base: est, Factors: shocks}
	}
	return s.pipe.WithEstimator(est), nil
}

// quotaFor picks the quota a recommendation is scored against: the latest baseline's,
// else the active quota of the field's scheme.
func (s *PlanSvc) quotaFor(ctx context.Context, f entities.Field, seasonID string, base *types.Scenario) (float64, error) {
	if base != nil {
		if q, ok := base.Constraints.WaterQuota(); ok {
			return q, nil
		}
	}
	q, err := s.weather.ActiveQuota(ctx, f.SchemeID, seasonID)
	if err != nil {
		return 0, err
	}
	return q.VolumeM3, nil
}

// share apportions quota to f by its area within the scheme.
func (s *PlanSvc) share(ctx context.Context, f entities.Field, quota float64) (float64, error) {
	peers, err := s.fields.ListByScheme(ctx, f.SchemeID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, p := range peers {
		total += p.AreaHa
	}
	if total <= 0 {
		return quota, nil
	}
	return quota * f.AreaHa / total, nil
}

// tolerate keeps infeasible and timed-out plans, which carry their own status.
func (s *PlanSvc) tolerate(plan *types.AllocationPlan, err error) error {
	if err == nil {
		return nil
	}
	var ie *types.InfeasibleError
	var te *types.SolverTimeoutError
	switch {
	case plan != nil && errors.As(err, &ie):
		s.log.Warn("plan infeasible after relaxation", "error", err)
		return nil
	case plan != nil && errors.As(err, &te):
		s.log.Warn("solver timed out", "error", err)
		return nil
	}
	return err
}

func (s *PlanSvc) observe(plan *types.AllocationPlan, start time.Time) {
	if plan == nil {
		return
	}
	steps := 0
	if plan.Relaxation != nil {
		steps = plan.Relaxation.Steps
	}
	metrics.ObserveSolve(plan.Backend, string(plan.Status), s.now().Sub(start), steps, plan.TimedOut)
}

func (s *PlanSvc) persist(ctx context.Context, sc *types.Scenario) error {
	if err := s.scenarios.Create(ctx, sc); err != nil {
		return err
	}
	metrics.ScenarioCreated(string(sc.Label))
	return nil
}
