package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type ConstraintKind string

const (
	KindWaterQuota   ConstraintKind = "water_quota"
	KindMinArea      ConstraintKind = "min_area"
	KindMaxRiskLevel ConstraintKind = "max_risk_level"
	KindRotationRule ConstraintKind = "rotation_rule"
	KindNoSplit      ConstraintKind = "no_split"
)

// Constraint is a tagged variant: Kind selects which of the remaining fields apply.
type Constraint struct {
	Kind             ConstraintKind `json:"kind" yaml:"kind" validate:"required,oneof=water_quota min_area max_risk_level rotation_rule no_split"`
	VolumeM3         float64        `json:"volume_m3,omitempty" yaml:"volume_m3,omitempty" validate:"gte=0"`
	CropID           string         `json:"crop_id,omitempty" yaml:"crop_id,omitempty" validate:"required_if=Kind min_area,required_if=Kind rotation_rule"`
	MinimumHa        float64        `json:"minimum_ha,omitempty" yaml:"minimum_ha,omitempty" validate:"gte=0"`
	Level            string         `json:"level,omitempty" yaml:"level,omitempty" validate:"required_if=Kind max_risk_level,omitempty,oneof=low medium high"`
	CooldownSeasons  int            `json:"cooldown_seasons,omitempty" yaml:"cooldown_seasons,omitempty" validate:"gte=0"`
	MaxCropsPerField int            `json:"max_crops_per_field,omitempty" yaml:"max_crops_per_field,omitempty" validate:"gte=0"`
}

func WaterQuota(volumeM3 float64) Constraint {
	return Constraint{Kind: KindWaterQuota, VolumeM3: volumeM3}
}

func MinArea(cropID string, minimumHa float64) Constraint {
	return Constraint{Kind: KindMinArea, CropID: cropID, MinimumHa: minimumHa}
}

func MaxRiskLevel(level string) Constraint {
	return Constraint{Kind: KindMaxRiskLevel, Level: level}
}

func RotationRule(cropID string, cooldownSeasons int) Constraint {
	return Constraint{Kind: KindRotationRule, CropID: cropID, CooldownSeasons: cooldownSeasons}
}

func NoSplit(maxCropsPerField int) Constraint {
	return Constraint{Kind: KindNoSplit, MaxCropsPerField: maxCropsPerField}
}

func (c Constraint) String() string {
	switch c.Kind {
	case KindWaterQuota:
		return fmt.Sprintf("water_quota(%.2f m3)", c.VolumeM3)
	case KindMinArea:
		return fmt.Sprintf("min_area(%s, %.2f ha)", c.CropID, c.MinimumHa)
	case KindMaxRiskLevel:
		return fmt.Sprintf("max_risk_level(%s)", c.Level)
	case KindRotationRule:
		return fmt.Sprintf("rotation_rule(%s, %d)", c.CropID, c.CooldownSeasons)
	case KindNoSplit:
		return fmt.Sprintf("no_split(%d)", c.MaxCropsPerField)
	}
	return string(c.Kind)
}

var validate = validator.New()

// Validate checks one constraint in isolation.
func (c Constraint) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Field(), "%s violates %q (value %v)", c, fe.Tag(), fe.Value())
		}
		return NewValidationError("constraint", "%v", err)
	}
	switch c.Kind {
	case KindRotationRule:
		if c.CooldownSeasons < 1 {
			return NewValidationError("CooldownSeasons", "%s needs at least one season", c)
		}
	case KindNoSplit:
		if c.MaxCropsPerField < 1 {
			return NewValidationError("MaxCropsPerField", "%s needs at least one crop per field", c)
		}
	}
	return nil
}

// ConstraintSet is the immutable policy input of one solve.
type ConstraintSet []Constraint

// Validate checks every constraint and the set-level rules: at most one water
// quota and at most one no-split policy.
func (s ConstraintSet) Validate() error {
	seen := map[ConstraintKind]int{}
	for i, c := range s {
		if err := c.Validate(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("constraints[%d].%s", i, ve.Field)
			}
			return err
		}
		seen[c.Kind]++
	}
	if seen[KindWaterQuota] > 1 {
		return NewValidationError("constraints", "more than one water_quota")
	}
	if seen[KindNoSplit] > 1 {
		return NewValidationError("constraints", "more than one no_split")
	}
	return nil
}

// WaterQuota returns the quota volume and whether the set carries one.
func (s ConstraintSet) WaterQuota() (float64, bool) {
	for _, c := range s {
		if c.Kind == KindWaterQuota {
			return c.VolumeM3, true
		}
	}
	return 0, false
}

// NoSplit returns the per-field crop cap and whether the set carries one.
func (s ConstraintSet) NoSplit() (int, bool) {
	for _, c := range s {
		if c.Kind == KindNoSplit {
			return c.MaxCropsPerField, true
		}
	}
	return 0, false
}

func (s ConstraintSet) OfKind(kind ConstraintKind) []Constraint {
	var out []Constraint
	for _, c := range s {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// WithWaterQuota returns a copy of s whose water quota is replaced (or added).
func (s ConstraintSet) WithWaterQuota(volumeM3 float64) ConstraintSet {
	out := make(ConstraintSet, 0, len(s)+1)
	for _, c := range s {
		if c.Kind != KindWaterQuota {
			out = append(out, c)
		}
	}
	return append(out, WaterQuota(volumeM3))
}

// Clone returns a copy that can be modified without touching s.
func (s ConstraintSet) Clone() ConstraintSet {
	if s == nil {
		return nil
	}
	out := make(ConstraintSet, len(s))
	copy(out, s)
	return out
}

var riskRank = map[string]int{"low": 0, "medium": 1, "high": 2}

// RiskRank orders risk classes; unknown classes rank as high.
func RiskRank(level string) int {
	if r, ok := riskRank[level]; ok {
		return r
	}
	return riskRank["high"]
}
