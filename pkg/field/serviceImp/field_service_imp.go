package serviceImp

import (
	"context"
	"math"

	"acao/entities"
	repo "acao/pkg/field/repository"
	"acao/pkg/field/service"
	"acao/pkg/plan/types"
)

type fieldSvc struct{ r repo.FieldRepository }

func NewFieldService(r repo.FieldRepository) service.FieldService { return &fieldSvc{r} }

func (s *fieldSvc) CreateField(ctx context.Context, f *entities.Field) (*entities.Field, error) {
	if f.FieldID == "" {
		return nil, types.NewValidationError("field_id", "required")
	}
	if !(f.AreaHa > 0) || math.IsInf(f.AreaHa, 0) {
		return nil, types.NewValidationError("area_ha", "must be positive, got %v", f.AreaHa)
	}
	if f.LandUse == "" {
		f.LandUse = entities.LandUseUpland
	}
	if err := s.r.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *fieldSvc) GetFieldByID(ctx context.Context, id string) (*entities.Field, error) {
	return s.r.FindByID(ctx, id)
}

// RecordPlanting appends a past season to the field's rotation history.
func (s *fieldSvc) RecordPlanting(ctx context.Context, rec *entities.PlantingRecord) error {
	if _, err := s.r.FindByID(ctx, rec.FieldID); err != nil {
		return err
	}
	if rec.CropID == "" {
		return types.NewValidationError("crop_id", "required")
	}
	return s.r.AddPlanting(ctx, rec)
}
