package recommend

import (
	"fmt"
	"sort"
	"strings"

	"acao/entities"
	"acao/pkg/plan/types"
)

// TopN is how many crops a field recommendation lists.
const TopN = 3

var criterionPhrase = map[types.Criterion]string{
	types.WaterFit:      "its water requirement fits the quota share",
	types.SoilFit:       "soil texture, pH and salinity match",
	types.Profitability: "expected revenue per hectare",
	types.Risk:          "low revenue risk",
}

// Aggregate turns the ranked scores of one field into its top recommendations. plan
// may be nil; when given, allocated hectares are attached.
func Aggregate(field entities.Field, scores []types.SuitabilityScore, plan *types.AllocationPlan) types.FieldRecommendation {
	var own []types.SuitabilityScore
	for _, s := range scores {
		if s.FieldID == field.FieldID {
			own = append(own, s)
		}
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Rank < own[j].Rank })
	if len(own) > TopN {
		own = own[:TopN]
	}

	rec := types.FieldRecommendation{
		FieldID:         field.FieldID,
		Recommendations: make([]types.CropRecommendation, 0, len(own)),
		NoEligibleCrop:  len(own) == 0,
	}
	for _, s := range own {
		dom := Dominant(s.Criteria)
		cr := types.CropRecommendation{
			Rank:              s.Rank,
			CropID:            s.CropID,
			CropName:          s.CropName,
			Closeness:         s.Closeness,
			DominantCriterion: dom.String(),
		}
		if plan != nil {
			cr.AllocatedHa = plan.Allocated(field.FieldID, s.CropID)
		}
		cr.Rationale = rationale(field, s, dom, plan, cr.AllocatedHa)
		rec.Recommendations = append(rec.Recommendations, cr)
	}
	return rec
}

// Dominant returns the criterion with the highest weighted value; ties go to the
// earlier criterion.
func Dominant(v types.CriteriaVector) types.Criterion {
	best := types.Criteria[0]
	for _, c := range types.Criteria[1:] {
		if v.Get(c) > v.Get(best) {
			best = c
		}
	}
	return best
}

func rationale(f entities.Field, s types.SuitabilityScore, dom types.Criterion, plan *types.AllocationPlan, ha float64) string {
	name := s.CropName
	if name == "" {
		name = s.CropID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s ranks #%d on field %s (closeness %.2f); strongest factor: %s",
		name, s.Rank, f.FieldID, s.Closeness, criterionPhrase[dom])
	if s.NetRequirementMM > 0 {
		fmt.Fprintf(&b, "; net irrigation need %.0f mm", s.NetRequirementMM)
	}
	if plan != nil {
		if ha > 0 {
			fmt.Fprintf(&b, "; %.2f ha allocated in the current plan", ha)
		} else {
			b.WriteString("; not allocated in the current plan")
		}
	}
	return b.String()
}
