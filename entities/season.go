package entities

import "time"

type Season struct {
	SeasonID  string    `gorm:"primaryKey" json:"season_id" yaml:"season_id"`
	Index     int       `gorm:"uniqueIndex" json:"index" yaml:"index"`
	StartDate time.Time `json:"start_date" yaml:"start_date"`
	EndDate   time.Time `json:"end_date" yaml:"end_date"`
}

// WeatherDay is one forecast day of a weather scenario.
type WeatherDay struct {
	ID         uint      `gorm:"primaryKey" json:"-" yaml:"-"`
	ScenarioID string    `gorm:"index:idx_weather_day,unique" json:"scenario_id" yaml:"scenario_id"`
	Date       time.Time `gorm:"index:idx_weather_day,unique" json:"date" yaml:"date"`
	EToMM      float64   `gorm:"column:eto_mm" json:"eto_mm" yaml:"eto_mm"`
	RainMM     float64   `gorm:"column:rain_mm" json:"rain_mm" yaml:"rain_mm"`
}

type WaterQuota struct {
	ID        uint      `gorm:"primaryKey" json:"-" yaml:"-"`
	SchemeID  string    `gorm:"index" json:"scheme_id" yaml:"scheme_id"`
	SeasonID  string    `gorm:"index" json:"season_id" yaml:"season_id"`
	VolumeM3  float64   `json:"volume_m3" yaml:"volume_m3"`
	ValidFrom time.Time `json:"valid_from" yaml:"valid_from"`
	ValidTo   time.Time `json:"valid_to" yaml:"valid_to"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// PriceEstimate is a stored yield/price outlook for one field and crop.
type PriceEstimate struct {
	ID            uint      `gorm:"primaryKey" json:"-" yaml:"-"`
	FieldID       string    `gorm:"index:idx_estimate_pair,unique" json:"field_id" yaml:"field_id"`
	CropID        string    `gorm:"index:idx_estimate_pair,unique" json:"crop_id" yaml:"crop_id"`
	ExpectedYield float64   `json:"expected_yield" yaml:"expected_yield"` // t/ha
	YieldP10      float64   `gorm:"column:yield_p10" json:"yield_p10" yaml:"yield_p10"`
	YieldP50      float64   `gorm:"column:yield_p50" json:"yield_p50" yaml:"yield_p50"`
	YieldP90      float64   `gorm:"column:yield_p90" json:"yield_p90" yaml:"yield_p90"`
	ExpectedPrice float64   `json:"expected_price" yaml:"expected_price"` // currency/t
	PriceP10      float64   `gorm:"column:price_p10" json:"price_p10" yaml:"price_p10"`
	PriceP50      float64   `gorm:"column:price_p50" json:"price_p50" yaml:"price_p50"`
	PriceP90      float64   `gorm:"column:price_p90" json:"price_p90" yaml:"price_p90"`
	UpdatedAt     time.Time `json:"-" yaml:"-"`
}
