package entities

import "time"

type Crop struct {
	CropID              string      `gorm:"primaryKey" json:"crop_id" yaml:"crop_id"`
	Name                string      `json:"name" yaml:"name"`
	IsPaddy             bool        `json:"is_paddy" yaml:"is_paddy"`
	RiskClass           string      `json:"risk_class" yaml:"risk_class"` // low|medium|high
	SoilTextures        []string    `gorm:"serializer:json" json:"soil_textures" yaml:"soil_textures"`
	PHMin               float64     `json:"ph_min" yaml:"ph_min"`
	PHMax               float64     `json:"ph_max" yaml:"ph_max"`
	ECMax               float64     `json:"ec_max" yaml:"ec_max"` // dS/m, 0 = no limit
	ProductionCostPerHa float64     `json:"production_cost_per_ha" yaml:"production_cost_per_ha"`
	SowingOffsetDays    int         `json:"sowing_offset_days" yaml:"sowing_offset_days"`
	Stages              []CropStage `gorm:"foreignKey:CropID;constraint:OnDelete:CASCADE" json:"stages" yaml:"stages"`

	CreatedAt time.Time `json:"-" yaml:"-" hashstructure:"ignore"`
	UpdatedAt time.Time `json:"-" yaml:"-" hashstructure:"ignore"`
}

// CropStage is one segment of the Kc curve; Kc moves linearly from KcStart to KcEnd.
type CropStage struct {
	ID      uint    `gorm:"primaryKey" json:"-" yaml:"-" hashstructure:"ignore"`
	CropID  string  `gorm:"index" json:"crop_id" yaml:"crop_id"`
	Ord     int     `json:"ord" yaml:"ord"`
	Name    string  `json:"name" yaml:"name"`
	Days    int     `json:"days" yaml:"days"`
	KcStart float64 `json:"kc_start" yaml:"kc_start"`
	KcEnd   float64 `json:"kc_end" yaml:"kc_end"`
}

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// PlantingRecord is one past season of a crop on a field, used by rotation rules.
type PlantingRecord struct {
	ID          uint   `gorm:"primaryKey" json:"-" yaml:"-"`
	FieldID     string `gorm:"index" json:"field_id" yaml:"field_id"`
	CropID      string `json:"crop_id" yaml:"crop_id"`
	SeasonIndex int    `json:"season_index" yaml:"season_index"`
}
