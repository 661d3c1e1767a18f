package main

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"acao/config"
	"acao/database"
	"acao/pkg/logger"
	"acao/pkg/market"
	"acao/pkg/optimizer"
	"acao/pkg/solver"
	"acao/router"

	// Field / crop / weather
	cropRepoImp "acao/pkg/crop/repositoryImp"
	fieldCtrlImp "acao/pkg/field/controllerImp"
	fieldRepoImp "acao/pkg/field/repositoryImp"
	fieldSvcImp "acao/pkg/field/serviceImp"
	weatherRepoImp "acao/pkg/weather/repositoryImp"

	// Plan
	planCtrlImp "acao/pkg/plan/controllerImp"
	planRepoImp "acao/pkg/plan/repositoryImp"
	planSvc "acao/pkg/plan/serviceImp"

	// Health
	healthCtrlImp "acao/pkg/health/controllerImp"
)

func main() {
	// 1) Config
	cfg := config.Load()
	engine, err := config.LoadEngine(cfg.EnginePath)
	if err != nil {
		log.Fatalf("engine config: %v", err)
	}

	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	// 2) DB (sqlite) + automigrate
	db := database.OpenSQLite(cfg.DBPath)

	// 3) Optional price bulletin
	var prices market.Bulletin
	if cfg.BulletinURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		prices, err = market.FetchBulletin(ctx, cfg.BulletinURL, cfg.BulletinMaxBytes)
		cancel()
		if err != nil {
			lg.Warn("price bulletin unavailable, using stored prices", "url", cfg.BulletinURL, "error", err)
		} else {
			lg.Info("price bulletin loaded", "crops", len(prices))
		}
	}

	// 4) Optimizer
	opt, err := optimizer.New(engine.Optimizer, optimizer.WithLogger(lg.With("component", "optimizer")))
	if err != nil {
		lg.Fatal("optimizer config", "error", err)
	}

	// 5) Repos/Services/Controllers
	fRepo := fieldRepoImp.New(db)
	cRepo := cropRepoImp.New(db)
	wRepo := weatherRepoImp.New(db)
	sRepo := planRepoImp.New(db)

	fCtrl := fieldCtrlImp.New(fieldSvcImp.NewFieldService(fRepo))
	pSvc := planSvc.NewPlanService(fRepo, cRepo, wRepo, sRepo, opt, planSvc.Options{
		WeatherScenario: cfg.WeatherScenario,
		Weights:         engine.Weights,
		Prices:          prices,
	}, lg.With("component", "plan"))
	plCtrl := planCtrlImp.NewPlanCtrl(pSvc)
	hCtrl := healthCtrlImp.NewHealthCtrl(db, solver.NewLP(engine.Optimizer.Solver), solver.NewMIP(engine.Optimizer.Solver))

	// 6) Echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMiddleware.Recover())
	r := router.New(e, lg, fCtrl, plCtrl, hCtrl)

	// 7) Start
	lg.Info("listening", "port", cfg.Port)
	if err := r.Start(":" + cfg.Port); err != nil {
		lg.Fatal("server stopped", "error", err)
	}
}
