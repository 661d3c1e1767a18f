package repository

import (
	"context"
	"time"

	"acao/entities"
)

// WeatherRepository stores the forecast collaborators of a planning cycle: seasons,
// daily weather per scenario, water quotas and yield/price estimates.
type WeatherRepository interface {
	SaveSeason(ctx context.Context, s *entities.Season) error
	FindSeason(ctx context.Context, id string) (*entities.Season, error)
	// CurrentSeason returns the season covering at, or the latest one that started before it.
	CurrentSeason(ctx context.Context, at time.Time) (*entities.Season, error)

	SaveDays(ctx context.Context, days []entities.WeatherDay) error
	Days(ctx context.Context, scenarioID string, from, to time.Time) ([]entities.WeatherDay, error)

	SaveQuota(ctx context.Context, q *entities.WaterQuota) error
	// ActiveQuota returns the most recently created quota of a scheme and season.
	ActiveQuota(ctx context.Context, schemeID, seasonID string) (*entities.WaterQuota, error)

	SaveEstimates(ctx context.Context, rows []entities.PriceEstimate) error
	Estimates(ctx context.Context) ([]entities.PriceEstimate, error)
}
