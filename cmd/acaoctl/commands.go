package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"acao/config"
	"acao/database"
	"acao/entities"
	"acao/pkg/logger"
	"acao/pkg/market"
	"acao/pkg/optimizer"
	"acao/pkg/plan/pipeline"
	"acao/pkg/plan/types"
	"acao/pkg/recommend"
	"acao/pkg/replan"

	cropRepoImp "acao/pkg/crop/repositoryImp"
	fieldRepoImp "acao/pkg/field/repositoryImp"
	weatherRepoImp "acao/pkg/weather/repositoryImp"
)

var (
	solveCmd = &cobra.Command{
		Use:   "solve",
		Short: "Solve the baseline allocation of a dataset",
		Args:  cobra.NoArgs,
		RunE:  runSolve,
	}
	planbCmd = &cobra.Command{
		Use:   "planb",
		Short: "Solve the baseline, then replan after a quota or price change",
		Args:  cobra.NoArgs,
		RunE:  runPlanB,
	}
	recommendCmd = &cobra.Command{
		Use:   "recommend [field_id]",
		Short: "Print the top crops for one field",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecommend,
	}
	seedCmd = &cobra.Command{
		Use:   "seed [db_path]",
		Short: "Write a dataset into the service database",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}

	planbQuota  float64
	planbShocks map[string]string
	planbReason string
	seedWeather string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&datasetPath, "file", "f", "dataset.yaml", "YAML dataset")
	rootCmd.PersistentFlags().StringVar(&enginePath, "engine", "", "engine YAML (weights, optimizer)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug|info|warn|error")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(planbCmd)
	planbCmd.Flags().Float64Var(&planbQuota, "quota", -1, "new water quota in m3 (negative keeps the baseline quota)")
	planbCmd.Flags().StringToStringVar(&planbShocks, "shock", nil, "price factor per crop, e.g. --shock maize=0.7")
	planbCmd.Flags().StringVar(&planbReason, "reason", "manual", "trigger reason recorded on the scenario")
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedWeather, "weather-scenario", "", "scenario id for the weather rows (default: the dataset's)")
}

type session struct {
	data   *datasetFile
	engine config.Engine
	log    *logger.Logger
	pipe   *pipeline.Pipeline
	opt    *optimizer.Optimizer
}

func openSession() (*session, error) {
	d, err := loadDataset(datasetPath)
	if err != nil {
		return nil, err
	}
	eng, err := config.LoadEngine(enginePath)
	if err != nil {
		return nil, err
	}
	lg, err := logger.New("dev", logLevel)
	if err != nil {
		return nil, err
	}
	est, err := d.estimator()
	if err != nil {
		return nil, err
	}
	opt, err := optimizer.New(eng.Optimizer, optimizer.WithLogger(lg))
	if err != nil {
		return nil, err
	}
	return &session{data: d, engine: eng, log: lg, pipe: pipeline.New(eng.Weights, est), opt: opt}, nil
}

// baseline solves the dataset as given. Infeasible and timed-out plans are kept.
func (s *session) baseline(ctx context.Context) (types.Scenario, optimizer.Input, error) {
	prep, err := s.pipe.Prepare(ctx, s.data.dataset(), s.data.WaterQuotaM3)
	if err != nil {
		return types.Scenario{}, optimizer.Input{}, err
	}
	in := prep.Input
	in.Constraints = s.data.Constraints.WithWaterQuota(s.data.WaterQuotaM3)
	plan, err := s.opt.Optimize(ctx, in)
	if err := keep(plan, err); err != nil {
		return types.Scenario{}, in, err
	}
	return types.Scenario{
		ID:          uuid.NewString(),
		Label:       types.LabelBaseline,
		SeasonID:    s.data.Season.ID,
		Constraints: in.Constraints,
		Plan:        plan,
		CreatedAt:   time.Now().UTC(),
	}, in, nil
}

func keep(plan *types.AllocationPlan, err error) error {
	var ie *types.InfeasibleError
	var te *types.SolverTimeoutError
	if err == nil || (plan != nil && (errors.As(err, &ie) || errors.As(err, &te))) {
		return nil
	}
	return err
}

func runSolve(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.log.Sync()
	sc, _, err := s.baseline(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(sc)
}

func runPlanB(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.log.Sync()
	ctx := cmd.Context()
	base, _, err := s.baseline(ctx)
	if err != nil {
		return err
	}

	factors := make(map[string]float64, len(planbShocks))
	for crop, v := range planbShocks {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("--shock %s=%s: want a positive factor", crop, v)
		}
		factors[crop] = f
	}
	u := replan.Update{TriggerReason: planbReason}
	quota := s.data.WaterQuotaM3
	if planbQuota >= 0 {
		u.WaterQuotaM3 = &planbQuota
		quota = planbQuota
	}
	pipe := s.pipe
	if len(factors) > 0 {
		pipe = pipe.WithEstimator(market.Shocked{Base: pipe.Estimator, Factors: factors})
	}
	prep, err := pipe.Prepare(ctx, s.data.dataset(), quota)
	if err != nil {
		return err
	}
	sc, err := replan.New(s.opt).Replan(ctx, base, prep.Input, u)
	if err := keep(sc.Plan, err); err != nil {
		return err
	}
	return printJSON(map[string]any{"baseline": base, "plan_b": sc})
}

func runRecommend(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.log.Sync()
	ctx := cmd.Context()
	ds := s.data.dataset()
	f, ok := ds.Field(args[0])
	if !ok {
		return types.NotFound("field", args[0])
	}
	base, _, err := s.baseline(ctx)
	if err != nil {
		return err
	}
	var total float64
	for _, x := range ds.Fields {
		total += x.AreaHa
	}
	share := s.data.WaterQuotaM3
	if total > 0 {
		share = share * f.AreaHa / total
	}
	scores, err := s.pipe.Rank(ctx, ds, f, share)
	if err != nil {
		return err
	}
	rec := recommend.Aggregate(f, scores, base.Plan)
	rec.ScenarioID = base.ID
	return printJSON(rec)
}

func runSeed(cmd *cobra.Command, args []string) error {
	d, err := loadDataset(datasetPath)
	if err != nil {
		return err
	}
	db, err := database.Open(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	fields, crops, weather := fieldRepoImp.New(db), cropRepoImp.New(db), weatherRepoImp.New(db)

	season := entities.Season{SeasonID: d.Season.ID, Index: d.Season.Index, StartDate: d.Season.Start}
	if n := len(d.Weather.ETo); n > 0 {
		season.EndDate = weatherStart(d).AddDate(0, 0, n-1)
	}
	if err := weather.SaveSeason(ctx, &season); err != nil {
		return err
	}
	for i := range d.Fields {
		if err := fields.Save(ctx, &d.Fields[i]); err != nil {
			return err
		}
	}
	for i := range d.Crops {
		if err := crops.Save(ctx, &d.Crops[i]); err != nil {
			return err
		}
	}
	for i := range d.History {
		if err := fields.AddPlanting(ctx, &d.History[i]); err != nil {
			return err
		}
	}
	scenario := seedWeather
	if scenario == "" {
		scenario = d.Weather.ScenarioID
	}
	days := make([]entities.WeatherDay, 0, len(d.Weather.ETo))
	start := weatherStart(d)
	for i := range d.Weather.ETo {
		day := entities.WeatherDay{ScenarioID: scenario, Date: start.AddDate(0, 0, i), EToMM: d.Weather.ETo[i]}
		if i < len(d.Weather.Rain) {
			day.RainMM = d.Weather.Rain[i]
		}
		days = append(days, day)
	}
	if err := weather.SaveDays(ctx, days); err != nil {
		return err
	}
	if err := weather.SaveEstimates(ctx, d.Estimates); err != nil {
		return err
	}
	// The dataset quota covers every field; each scheme gets its area share.
	schemeHa := map[string]float64{}
	var totalHa float64
	for _, f := range d.Fields {
		schemeHa[f.SchemeID] += f.AreaHa
		totalHa += f.AreaHa
	}
	for scheme, ha := range schemeHa {
		q := entities.WaterQuota{SchemeID: scheme, SeasonID: season.SeasonID, VolumeM3: d.WaterQuotaM3 * ha / totalHa,
			ValidFrom: season.StartDate, ValidTo: season.EndDate}
		if err := weather.SaveQuota(ctx, &q); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "seeded %d fields, %d crops, %d weather days into %s\n", len(d.Fields), len(d.Crops), len(days), args[0])
	return nil
}

func weatherStart(d *datasetFile) time.Time {
	if d.Weather.Start.IsZero() {
		return d.Season.Start
	}
	return d.Weather.Start
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
