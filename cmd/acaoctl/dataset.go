package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"acao/entities"
	"acao/pkg/climate"
	"acao/pkg/market"
	"acao/pkg/plan/pipeline"
	"acao/pkg/plan/types"
)

// datasetFile is the offline form of one planning cycle. Calendar and Bulletin are
// paths relative to the file.
type datasetFile struct {
	Season       types.Season              `yaml:"season"`
	Weather      types.SeasonWeather       `yaml:"weather"`
	Fields       []entities.Field          `yaml:"fields"`
	Crops        []entities.Crop           `yaml:"crops"`
	Calendar     string                    `yaml:"calendar"`
	History      []entities.PlantingRecord `yaml:"history"`
	Estimates    []entities.PriceEstimate  `yaml:"estimates"`
	Bulletin     string                    `yaml:"bulletin"`
	WaterQuotaM3 float64                   `yaml:"water_quota_m3"`
	Constraints  types.ConstraintSet       `yaml:"constraints"`
}

func loadDataset(path string) (*datasetFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d datasetFile
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	d.Weather.Season = d.Season
	dir := filepath.Dir(path)
	if d.Calendar != "" {
		cal, err := climate.LoadCalendar(filepath.Join(dir, d.Calendar))
		if err != nil {
			return nil, fmt.Errorf("crop calendar: %w", err)
		}
		cal.Apply(d.Crops)
	}
	for _, c := range d.Crops {
		if len(c.Stages) == 0 {
			return nil, types.NewDataError("crop", c.CropID, "no growth stages inline or in the calendar")
		}
	}
	if d.Bulletin != "" {
		d.Bulletin = filepath.Join(dir, d.Bulletin)
	}
	return &d, nil
}

func (d *datasetFile) dataset() pipeline.Dataset {
	return pipeline.Dataset{Season: d.Season, Weather: d.Weather, Fields: d.Fields, Crops: d.Crops, History: d.History}
}

// estimator serves the stored estimates, with bulletin prices on top when given.
func (d *datasetFile) estimator() (market.Estimator, error) {
	var est market.Estimator = market.NewTableEstimator(d.Estimates)
	if d.Bulletin == "" {
		return est, nil
	}
	f, err := os.Open(d.Bulletin)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prices, err := market.ParseBulletin(f)
	if err != nil {
		return nil, fmt.Errorf("price bulletin: %w", err)
	}
	return market.BulletinEstimator{Base: est, Prices: prices}, nil
}
