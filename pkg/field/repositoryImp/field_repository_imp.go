package repositoryImp

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"acao/entities"
	"acao/pkg/field/repository"
	"acao/pkg/plan/types"
)

type fieldRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.FieldRepository { return &fieldRepo{db} }

func (r *fieldRepo) Save(ctx context.Context, f *entities.Field) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *fieldRepo) FindByID(ctx context.Context, id string) (*entities.Field, error) {
	var f entities.Field
	err := r.db.WithContext(ctx).Where("field_id = ?", id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("field", id)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fieldRepo) List(ctx context.Context) ([]entities.Field, error) {
	var fs []entities.Field
	if err := r.db.WithContext(ctx).Order("field_id ASC").Find(&fs).Error; err != nil {
		return nil, err
	}
	return fs, nil
}

func (r *fieldRepo) ListByScheme(ctx context.Context, schemeID string) ([]entities.Field, error) {
	var fs []entities.Field
	if err := r.db.WithContext(ctx).Where("scheme_id = ?", schemeID).Order("field_id ASC").Find(&fs).Error; err != nil {
		return nil, err
	}
	return fs, nil
}

func (r *fieldRepo) AddPlanting(ctx context.Context, rec *entities.PlantingRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *fieldRepo) History(ctx context.Context, fieldIDs []string) ([]entities.PlantingRecord, error) {
	var recs []entities.PlantingRecord
	q := r.db.WithContext(ctx).Order("field_id ASC, season_index ASC, id ASC")
	if len(fieldIDs) > 0 {
		q = q.Where("field_id IN ?", fieldIDs)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
