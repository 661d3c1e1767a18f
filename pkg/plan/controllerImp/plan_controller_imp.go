package controllerImp

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"acao/pkg/plan/service"
	"acao/pkg/plan/types"
)

type PlanCtrl struct{ svc service.PlanService }

func NewPlanCtrl(svc service.PlanService) *PlanCtrl { return &PlanCtrl{svc: svc} }

type optimizeReq struct {
	WaterQuotaM3 *float64            `json:"water_quota_m3" validate:"required,gte=0"`
	Constraints  types.ConstraintSet `json:"constraints"`
	Label        string              `json:"label" validate:"omitempty,oneof=baseline plan_b"`
}

func (h *PlanCtrl) Recommendations(c echo.Context) error {
	rec, err := h.svc.GetFieldRecommendations(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *PlanCtrl) Optimize(c echo.Context) error {
	var req optimizeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	sc, err := h.svc.RunOptimization(c.Request().Context(), *req.WaterQuotaM3, req.Constraints, types.ScenarioLabel(req.Label))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *PlanCtrl) PlanB(c echo.Context) error {
	var req service.PlanBRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	sc, err := h.svc.TriggerPlanB(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, sc)
}

func (h *PlanCtrl) ListPlanB(c echo.Context) error {
	out, err := h.svc.ListPlanB(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PlanCtrl) Supply(c echo.Context) error {
	out, err := h.svc.GetNationalSupply(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// writeErr maps typed errors onto status codes: missing records 404, bad data 422,
// rejected input 400.
func writeErr(c echo.Context, err error) error {
	var de *types.DataError
	var ve *types.ValidationError
	switch {
	case errors.As(err, &de) && de.IsNotFound():
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &de):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
