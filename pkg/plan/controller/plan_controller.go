package controller

import "github.com/labstack/echo/v4"

type PlanController interface {
	Recommendations(c echo.Context) error
	Optimize(c echo.Context) error
	PlanB(c echo.Context) error
	ListPlanB(c echo.Context) error
	Supply(c echo.Context) error
}
