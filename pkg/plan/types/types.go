package types

import (
	"sort"
	"time"
)

// Season identifies the planning cycle a budget or plan belongs to.
type Season struct {
	ID    string    `json:"id" yaml:"id"`
	Index int       `json:"index" yaml:"index"`
	Start time.Time `json:"start" yaml:"start"`
}

// SeasonWeather is the forecast for one weather scenario. ETo and Rain are daily
// series in mm starting at Start.
type SeasonWeather struct {
	Season     Season    `json:"season" yaml:"season"`
	ScenarioID string    `json:"scenario_id" yaml:"scenario_id"`
	Start      time.Time `json:"start" yaml:"start"`
	ETo        []float64 `json:"eto" yaml:"eto"`
	Rain       []float64 `json:"rain" yaml:"rain"`
}

type PairKey struct {
	FieldID string `json:"field_id"`
	CropID  string `json:"crop_id"`
}

func Pair(fieldID, cropID string) PairKey { return PairKey{FieldID: fieldID, CropID: cropID} }

// Band is a P10/P50/P90 uncertainty band.
type Band struct {
	P10 float64 `json:"p10" yaml:"p10"`
	P50 float64 `json:"p50" yaml:"p50"`
	P90 float64 `json:"p90" yaml:"p90"`
}

// IsZero reports whether the band carries no information.
func (b Band) IsZero() bool { return b.P10 == 0 && b.P50 == 0 && b.P90 == 0 }

// Or returns b, or a crisp band around v when b is empty.
func (b Band) Or(v float64) Band {
	if b.IsZero() {
		return Band{P10: v, P50: v, P90: v}
	}
	return b
}

type YieldPriceEstimate struct {
	FieldID       string  `json:"field_id" yaml:"field_id"`
	CropID        string  `json:"crop_id" yaml:"crop_id"`
	ExpectedYield float64 `json:"expected_yield" yaml:"expected_yield"` // t/ha
	YieldBand     Band    `json:"yield_band" yaml:"yield_band"`
	ExpectedPrice float64 `json:"expected_price" yaml:"expected_price"` // currency/t
	PriceBand     Band    `json:"price_band" yaml:"price_band"`
}

// Revenue returns the per-hectare revenue band, ordered low to high.
func (e YieldPriceEstimate) Revenue() Band {
	y := e.YieldBand.Or(e.ExpectedYield)
	p := e.PriceBand.Or(e.ExpectedPrice)
	v := []float64{y.P10 * p.P10, y.P50 * p.P50, y.P90 * p.P90}
	sort.Float64s(v)
	return Band{P10: v[0], P50: v[1], P90: v[2]}
}

// RiskScore is half the P10-P90 revenue spread per hectare.
func (e YieldPriceEstimate) RiskScore() float64 {
	r := e.Revenue()
	return (r.P90 - r.P10) / 2
}

// PeriodBudget is the water balance of one calendar month inside the crop window.
type PeriodBudget struct {
	Month           time.Month `json:"month"`
	Days            int        `json:"days"`
	ETcMM           float64    `json:"etc_mm"`
	RainMM          float64    `json:"rain_mm"`
	EffectiveRainMM float64    `json:"effective_rain_mm"`
}

type WaterBudget struct {
	FieldID          string         `json:"field_id"`
	CropID           string         `json:"crop_id"`
	SeasonID         string         `json:"season_id"`
	WeatherScenario  string         `json:"weather_scenario"`
	ETcMM            float64        `json:"etc_mm"`
	EffectiveRainMM  float64        `json:"effective_rain_mm"`
	NetRequirementMM float64        `json:"net_requirement_mm"`
	NetRequirementM3 float64        `json:"net_requirement_m3"`
	Periods          []PeriodBudget `json:"periods,omitempty"`
}

// VolumePerHa is the net requirement in m3 for one hectare.
func (b WaterBudget) VolumePerHa() float64 { return b.NetRequirementMM * M3PerHaMM }

// M3PerHaMM converts 1 mm of depth over 1 ha into cubic metres.
const M3PerHaMM = 10.0

type Criterion int

const (
	WaterFit Criterion = iota
	SoilFit
	Profitability
	Risk
)

var criterionNames = [...]string{"water_fit", "soil_fit", "profitability", "risk"}

func (c Criterion) String() string {
	if c < 0 || int(c) >= len(criterionNames) {
		return "unknown"
	}
	return criterionNames[c]
}

// Criteria lists every criterion in matrix column order.
var Criteria = []Criterion{WaterFit, SoilFit, Profitability, Risk}

// CriteriaVector holds one value per criterion, indexed by Criterion.
type CriteriaVector [4]float64

func (v CriteriaVector) Get(c Criterion) float64 { return v[c] }

type SuitabilityScore struct {
	FieldID          string         `json:"field_id"`
	CropID           string         `json:"crop_id"`
	CropName         string         `json:"crop_name"`
	Criteria         CriteriaVector `json:"criteria"`
	Closeness        float64        `json:"closeness"`
	Rank             int            `json:"rank"`
	NetRequirementMM float64        `json:"net_requirement_mm"`
}

type PlanStatus string

const (
	StatusOptimal    PlanStatus = "optimal"
	StatusFeasible   PlanStatus = "feasible"
	StatusInfeasible PlanStatus = "infeasible"
)

type Allocation struct {
	FieldID        string  `json:"field_id"`
	CropID         string  `json:"crop_id"`
	AllocatedHa    float64 `json:"allocated_ha"`
	WaterM3        float64 `json:"water_m3"`
	ExpectedYieldT float64 `json:"expected_yield_t"`
	ExpectedProfit float64 `json:"expected_profit"`
	RiskScore      float64 `json:"risk_score"`
}

// Relaxation records what the infeasibility search loosened to reach the plan.
type Relaxation struct {
	Steps                 int      `json:"steps"`
	DroppedRotationRules  []string `json:"dropped_rotation_rules,omitempty"`
	MinAreaScale          float64  `json:"min_area_scale"`
	WaterQuotaScale       float64  `json:"water_quota_scale"`
	EffectiveWaterQuotaM3 float64  `json:"effective_water_quota_m3"`
}

// Applied reports whether any constraint was actually loosened.
func (r *Relaxation) Applied() bool {
	return r != nil && (len(r.DroppedRotationRules) > 0 || r.MinAreaScale != 1 || r.WaterQuotaScale != 1)
}

type Violation struct {
	Kind   ConstraintKind `json:"kind"`
	CropID string         `json:"crop_id,omitempty"`
	Limit  float64        `json:"limit"`
	Amount float64        `json:"amount"`
}

// AllocationPlan is the outcome of one solve. ObjectiveValue is the solver optimum
// over unrounded areas, risk penalty included; compare plans with it. AllocatedProfit
// is the expected profit of the reported areas, which are floored to 0.01 ha; show it
// next to the allocations.
type AllocationPlan struct {
	Status            PlanStatus   `json:"status"`
	ObjectiveValue    float64      `json:"objective_value"`
	AllocatedProfit   float64      `json:"allocated_profit"`
	Allocations       []Allocation `json:"allocations"`
	TotalWaterUsageM3 float64      `json:"total_water_usage_m3"`
	WaterQuotaM3      float64      `json:"water_quota_m3"`
	TimedOut          bool         `json:"timed_out"`
	Backend           string       `json:"backend"`
	Relaxation        *Relaxation  `json:"relaxation,omitempty"`
	Violations        []Violation  `json:"violations,omitempty"`
}

// FieldArea sums the hectares allocated on one field.
func (p *AllocationPlan) FieldArea(fieldID string) float64 {
	var sum float64
	for _, a := range p.Allocations {
		if a.FieldID == fieldID {
			sum += a.AllocatedHa
		}
	}
	return sum
}

// Allocated returns the hectares of one (field, crop) pair.
func (p *AllocationPlan) Allocated(fieldID, cropID string) float64 {
	if p == nil {
		return 0
	}
	for _, a := range p.Allocations {
		if a.FieldID == fieldID && a.CropID == cropID {
			return a.AllocatedHa
		}
	}
	return 0
}

// CropArea sums the hectares of one crop across fields.
func (p *AllocationPlan) CropArea(cropID string) float64 {
	var sum float64
	for _, a := range p.Allocations {
		if a.CropID == cropID {
			sum += a.AllocatedHa
		}
	}
	return sum
}

type CropSupply struct {
	CropID         string  `json:"crop_id"`
	AreaHa         float64 `json:"area_ha"`
	ExpectedYieldT float64 `json:"expected_yield_t"`
	Fields         int     `json:"fields"`
}

// SupplyByCrop aggregates allocated area and expected production per crop, ordered by crop id.
func (p *AllocationPlan) SupplyByCrop() []CropSupply {
	idx := map[string]int{}
	var out []CropSupply
	for _, a := range p.Allocations {
		i, ok := idx[a.CropID]
		if !ok {
			i = len(out)
			idx[a.CropID] = i
			out = append(out, CropSupply{CropID: a.CropID})
		}
		out[i].AreaHa += a.AllocatedHa
		out[i].ExpectedYieldT += a.ExpectedYieldT
		out[i].Fields++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CropID < out[j].CropID })
	return out
}
