package repositoryImp

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"acao/entities"
	"acao/pkg/plan/types"
	"acao/pkg/weather/repository"
)

type weatherRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.WeatherRepository { return &weatherRepo{db} }

func (r *weatherRepo) SaveSeason(ctx context.Context, s *entities.Season) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *weatherRepo) FindSeason(ctx context.Context, id string) (*entities.Season, error) {
	var s entities.Season
	err := r.db.WithContext(ctx).Where("season_id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("season", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *weatherRepo) CurrentSeason(ctx context.Context, at time.Time) (*entities.Season, error) {
	var s entities.Season
	err := r.db.WithContext(ctx).Where("start_date <= ?", at).Order("start_date DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("season", at.Format("2006-01-02"))
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *weatherRepo) SaveDays(ctx context.Context, days []entities.WeatherDay) error {
	if len(days) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scenario_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"eto_mm", "rain_mm"}),
	}).CreateInBatches(days, 500).Error
}

func (r *weatherRepo) Days(ctx context.Context, scenarioID string, from, to time.Time) ([]entities.WeatherDay, error) {
	var out []entities.WeatherDay
	err := r.db.WithContext(ctx).
		Where("scenario_id = ? AND date >= ? AND date <= ?", scenarioID, from, to).
		Order("date ASC").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *weatherRepo) SaveQuota(ctx context.Context, q *entities.WaterQuota) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *weatherRepo) ActiveQuota(ctx context.Context, schemeID, seasonID string) (*entities.WaterQuota, error) {
	var q entities.WaterQuota
	err := r.db.WithContext(ctx).Where("scheme_id = ? AND season_id = ?", schemeID, seasonID).
		Order("created_at DESC, id DESC").First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("water quota", schemeID+"/"+seasonID)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *weatherRepo) SaveEstimates(ctx context.Context, rows []entities.PriceEstimate) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "field_id"}, {Name: "crop_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"expected_yield", "yield_p10", "yield_p50", "yield_p90",
			"expected_price", "price_p10", "price_p50", "price_p90", "updated_at",
		}),
	}).Create(&rows).Error
}

func (r *weatherRepo) Estimates(ctx context.Context) ([]entities.PriceEstimate, error) {
	var out []entities.PriceEstimate
	if err := r.db.WithContext(ctx).Order("crop_id ASC, field_id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
