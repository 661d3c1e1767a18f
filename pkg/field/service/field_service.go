package service

import (
	"context"

	"acao/entities"
)

type FieldService interface {
	CreateField(ctx context.Context, f *entities.Field) (*entities.Field, error)
	GetFieldByID(ctx context.Context, id string) (*entities.Field, error)
	RecordPlanting(ctx context.Context, rec *entities.PlantingRecord) error
}
