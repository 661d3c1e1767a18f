package controllerImp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acao/entities"
	"acao/pkg/middleware"
	"acao/pkg/plan/types"
)

type memFields struct {
	fields    map[string]entities.Field
	plantings []entities.PlantingRecord
}

func (m *memFields) CreateField(_ context.Context, f *entities.Field) (*entities.Field, error) {
	m.fields[f.FieldID] = *f
	return f, nil
}

func (m *memFields) GetFieldByID(_ context.Context, id string) (*entities.Field, error) {
	f, ok := m.fields[id]
	if !ok {
		return nil, types.NotFound("field", id)
	}
	return &f, nil
}

func (m *memFields) RecordPlanting(ctx context.Context, rec *entities.PlantingRecord) error {
	if _, err := m.GetFieldByID(ctx, rec.FieldID); err != nil {
		return err
	}
	m.plantings = append(m.plantings, *rec)
	return nil
}

func do(h *FieldCtrl, method, path, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.Validator = middleware.NewValidator()
	e.POST("/fields", h.Create)
	e.GET("/fields/:id", h.Get)
	e.POST("/fields/:id/plantings", h.AddPlanting)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFieldEndpoints(t *testing.T) {
	svc := &memFields{fields: map[string]entities.Field{}}
	h := New(svc)

	rec := do(h, http.MethodPost, "/fields", `{"field_id":"F1","scheme_id":"S1","area_ha":2.5,"soil_ph":6.1,"soil_texture":"loam","land_use":"paddy"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2.5, svc.fields["F1"].AreaHa)
	assert.Equal(t, entities.LandUsePaddy, svc.fields["F1"].LandUse)

	rec = do(h, http.MethodPost, "/fields", `{"field_id":"F2","area_ha":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(h, http.MethodPost, "/fields", `{"field_id":"F2","area_ha":1,"soil_texture":"peat"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/fields/F1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"scheme_id":"S1"`)
	rec = do(h, http.MethodGet, "/fields/F9", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/fields/F1/plantings", `{"crop_id":"rice","season_index":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, svc.plantings, 1)
	assert.Equal(t, entities.PlantingRecord{FieldID: "F1", CropID: "rice", SeasonIndex: 4}, svc.plantings[0])
	rec = do(h, http.MethodPost, "/fields/F9/plantings", `{"crop_id":"rice"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(h, http.MethodPost, "/fields/F1/plantings", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
