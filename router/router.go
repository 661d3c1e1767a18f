package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"acao/pkg/logger"
	"acao/pkg/middleware"
)

func New(
	e *echo.Echo,
	log *logger.Logger,
	fieldCtrl interface {
		Create(echo.Context) error
		Get(echo.Context) error
		AddPlanting(echo.Context) error
	},
	planCtrl interface {
		Recommendations(echo.Context) error
		Optimize(echo.Context) error
		PlanB(echo.Context) error
		ListPlanB(echo.Context) error
		Supply(echo.Context) error
	},
	healthCtrl interface{ Health(echo.Context) error },
) *echo.Echo {
	e.Validator = middleware.NewValidator()
	e.Use(middleware.RequestLog(log))

	e.GET("/health", healthCtrl.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("")
	api.POST("/fields", fieldCtrl.Create)
	api.GET("/fields/:id", fieldCtrl.Get)
	api.POST("/fields/:id/plantings", fieldCtrl.AddPlanting)
	api.GET("/fields/:id/recommendations", planCtrl.Recommendations)

	api.POST("/optimizations", planCtrl.Optimize)
	api.POST("/scenarios/:id/planb", planCtrl.PlanB)
	api.GET("/scenarios/:id/planb", planCtrl.ListPlanB)
	api.GET("/scenarios/:id/supply", planCtrl.Supply)
	return e
}
