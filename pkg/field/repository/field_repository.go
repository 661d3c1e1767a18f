package repository

import (
	"context"

	"acao/entities"
)

type FieldRepository interface {
	Save(ctx context.Context, f *entities.Field) error
	FindByID(ctx context.Context, id string) (*entities.Field, error)
	List(ctx context.Context) ([]entities.Field, error)
	ListByScheme(ctx context.Context, schemeID string) ([]entities.Field, error)
	AddPlanting(ctx context.Context, rec *entities.PlantingRecord) error
	History(ctx context.Context, fieldIDs []string) ([]entities.PlantingRecord, error)
}
