package repository

import (
	"context"

	"acao/entities"
)

type CropRepository interface {
	// Save upserts a crop and replaces its stage table.
	Save(ctx context.Context, c *entities.Crop) error
	FindByID(ctx context.Context, id string) (*entities.Crop, error)
	List(ctx context.Context) ([]entities.Crop, error)
}
