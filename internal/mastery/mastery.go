// Package mastery turns raw attempt statistics into mastery scores.
//
// Concept mastery blends answer accuracy with the SM-2 interval, which stands in for
// retention. Skill mastery is the weighted mean of its concepts.
package mastery

import "math"

const (
	AccuracyWeight       = 0.7
	RetentionWeight      = 0.3
	RetentionHorizonDays = 30.0

	MasteredThreshold  = 0.9
	ReviewingThreshold = 0.6
)

// Weighted is one concept's contribution to a skill aggregate
type Weighted struct {
	Mastery float64 `json:"mastery"`
	Weight  int     `json:"weight"`
}

// ConceptMastery scores a single concept in [0,1]. Zero attempts score 0.
func ConceptMastery(totalAttempts, correctAttempts int, intervalDays float64) float64 {
	if totalAttempts <= 0 {
		return 0
	}
	if correctAttempts < 0 {
		correctAttempts = 0
	}
	if correctAttempts > totalAttempts {
		correctAttempts = totalAttempts
	}

	accuracy := float64(correctAttempts) / float64(totalAttempts)
	retention := Clamp01(intervalDays / RetentionHorizonDays)
	return Clamp01(accuracy*AccuracyWeight + retention*RetentionWeight)
}

// SkillMastery is the weighted mean of concept masteries, each weight floored at 1.
// An empty skill scores 0.
func SkillMastery(concepts []Weighted) float64 {
	if len(concepts) == 0 {
		return 0
	}
	var sum, weights float64
	for _, c := range concepts {
		w := float64(WeightFloor(c.Weight))
		sum += Clamp01(c.Mastery) * w
		weights += w
	}
	return Clamp01(sum / weights)
}

// WeightFloor returns w, or 1 when w is below 1
func WeightFloor(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// Clamp01 restricts v to [0,1]; NaN becomes 0
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
