package entities

import "time"

// ScenarioRecord is the persisted snapshot of one optimization run. Body holds the
// JSON-encoded scenario (constraints, plan and diff).
type ScenarioRecord struct {
	ScenarioID    string    `gorm:"primaryKey" json:"scenario_id"`
	Label         string    `gorm:"index" json:"label"`
	BaselineID    string    `gorm:"index" json:"baseline_id"`
	SeasonID      string    `gorm:"index" json:"season_id"`
	TriggerReason string    `json:"trigger_reason"`
	Status        string    `json:"status"`
	Body          []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}
