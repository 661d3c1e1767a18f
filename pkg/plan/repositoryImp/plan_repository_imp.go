package repositoryImp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"acao/entities"
	"acao/pkg/plan/repository"
	"acao/pkg/plan/types"
)

type scenarioRepo struct{ db *gorm.DB }

func New(db *gorm.DB) repository.ScenarioRepository { return &scenarioRepo{db} }

func (r *scenarioRepo) Create(ctx context.Context, s *types.Scenario) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scenario %s: %w", s.ID, err)
	}
	rec := entities.ScenarioRecord{
		ScenarioID:    s.ID,
		Label:         string(s.Label),
		BaselineID:    s.BaselineID,
		SeasonID:      s.SeasonID,
		TriggerReason: s.TriggerReason,
		Body:          body,
		CreatedAt:     s.CreatedAt,
	}
	if s.Plan != nil {
		rec.Status = string(s.Plan.Status)
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *scenarioRepo) FindByID(ctx context.Context, id string) (*types.Scenario, error) {
	var rec entities.ScenarioRecord
	err := r.db.WithContext(ctx).Where("scenario_id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("scenario", id)
	}
	if err != nil {
		return nil, err
	}
	return decode(rec)
}

func (r *scenarioRepo) LatestBaseline(ctx context.Context, seasonID string) (*types.Scenario, error) {
	q := r.db.WithContext(ctx).Where("label = ?", string(types.LabelBaseline))
	if seasonID != "" {
		q = q.Where("season_id = ?", seasonID)
	}
	var rec entities.ScenarioRecord
	err := q.Order("created_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NotFound("baseline scenario", seasonID)
	}
	if err != nil {
		return nil, err
	}
	return decode(rec)
}

func (r *scenarioRepo) ListByBaseline(ctx context.Context, baselineID string) ([]types.Scenario, error) {
	var recs []entities.ScenarioRecord
	if err := r.db.WithContext(ctx).Where("baseline_id = ?", baselineID).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]types.Scenario, 0, len(recs))
	for _, rec := range recs {
		s, err := decode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

func decode(rec entities.ScenarioRecord) (*types.Scenario, error) {
	var s types.Scenario
	if err := json.Unmarshal(rec.Body, &s); err != nil {
		return nil, types.NewDataError("scenario", rec.ScenarioID, "corrupt body: %v", err)
	}
	return &s, nil
}
