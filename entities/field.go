package entities

import "time"

type Field struct {
	FieldID     string  `gorm:"primaryKey" json:"field_id" yaml:"field_id"`
	SchemeID    string  `gorm:"index" json:"scheme_id" yaml:"scheme_id"`
	AreaHa      float64 `json:"area_ha" yaml:"area_ha"`
	SoilPH      float64 `json:"soil_ph" yaml:"soil_ph"`
	SoilEC      float64 `json:"soil_ec" yaml:"soil_ec"`           // dS/m
	SoilTexture string  `json:"soil_texture" yaml:"soil_texture"` // sand|loam|clay|silt
	LandUse     string  `json:"land_use" yaml:"land_use"`         // paddy|upland
	GeoRef      string  `json:"geo_ref" yaml:"geo_ref"`
	Latitude    float64 `json:"latitude" yaml:"latitude"`
	Longitude   float64 `json:"longitude" yaml:"longitude"`

	CreatedAt time.Time `json:"-" yaml:"-" hashstructure:"ignore"`
	UpdatedAt time.Time `json:"-" yaml:"-" hashstructure:"ignore"`
}

const (
	LandUsePaddy  = "paddy"
	LandUseUpland = "upland"
)
