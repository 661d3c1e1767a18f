package controllerImp

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"acao/entities"
	"acao/pkg/field/service"
	"acao/pkg/plan/types"
)

type FieldCtrl struct{ svc service.FieldService }

func New(svc service.FieldService) *FieldCtrl { return &FieldCtrl{svc} }

type createReq struct {
	FieldID     string  `json:"field_id" validate:"required"`
	SchemeID    string  `json:"scheme_id"`
	AreaHa      float64 `json:"area_ha" validate:"gt=0"`
	SoilPH      float64 `json:"soil_ph" validate:"gte=0,lte=14"`
	SoilEC      float64 `json:"soil_ec" validate:"gte=0"`
	SoilTexture string  `json:"soil_texture" validate:"omitempty,oneof=sand loam clay silt"`
	LandUse     string  `json:"land_use" validate:"omitempty,oneof=paddy upland"`
	GeoRef      string  `json:"geo_ref"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type plantingReq struct {
	CropID      string `json:"crop_id" validate:"required"`
	SeasonIndex int    `json:"season_index"`
}

func (h *FieldCtrl) Create(c echo.Context) error {
	var req createReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	f := &entities.Field{
		FieldID: req.FieldID, SchemeID: req.SchemeID, AreaHa: req.AreaHa,
		SoilPH: req.SoilPH, SoilEC: req.SoilEC, SoilTexture: req.SoilTexture, LandUse: req.LandUse,
		GeoRef: req.GeoRef, Latitude: req.Latitude, Longitude: req.Longitude,
	}
	out, err := h.svc.CreateField(c.Request().Context(), f)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *FieldCtrl) Get(c echo.Context) error {
	f, err := h.svc.GetFieldByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *FieldCtrl) AddPlanting(c echo.Context) error {
	var req plantingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	rec := &entities.PlantingRecord{FieldID: c.Param("id"), CropID: req.CropID, SeasonIndex: req.SeasonIndex}
	if err := h.svc.RecordPlanting(c.Request().Context(), rec); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func writeErr(c echo.Context, err error) error {
	var de *types.DataError
	var ve *types.ValidationError
	switch {
	case errors.As(err, &de) && de.IsNotFound():
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
