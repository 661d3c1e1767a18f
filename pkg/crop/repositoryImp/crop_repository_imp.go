package repositoryImp

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"acao/entities"
	"acao/pkg/crop/repository"
	"acao/pkg/plan/types"
)

type cropRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.CropRepository { return &cropRepo{db} }

func (r *cropRepo) Save(ctx context.Context, c *entities.Crop) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stages := c.Stages
		c.Stages = nil
		defer func() { c.Stages = stages }()
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		if err := tx.Where("crop_id = ?", c.CropID).Delete(&entities.CropStage{}).Error; err != nil {
			return err
		}
		for i := range stages {
			stages[i].ID = 0
			stages[i].CropID = c.CropID
		}
		if len(stages) == 0 {
			return nil
		}
		return tx.Create(&stages).Error
	})
}

func (r *cropRepo) FindByID(ctx context.Context, id string) (*entities.Crop, error) {
	var c entities.Crop
	err := r.db.WithContext(ctx).Preload("Stages", orderStages).Where("crop_id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("crop", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cropRepo) List(ctx context.Context) ([]entities.Crop, error) {
	var cs []entities.Crop
	if err := r.db.WithContext(ctx).Preload("Stages", orderStages).Order("crop_id ASC").Find(&cs).Error; err != nil {
		return nil, err
	}
	return cs, nil
}

func orderStages(db *gorm.DB) *gorm.DB { return db.Order("ord ASC, id ASC") }
