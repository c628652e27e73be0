package mastery

// Status is the learner-facing category of a concept
type Status string

const (
	StatusNew       Status = "new"
	StatusLearning  Status = "learning"
	StatusReviewing Status = "reviewing"
	StatusMastered  Status = "mastered"
)

// StatusOf maps a mastery score onto a Status, thresholds checked top-down
func StatusOf(m float64) Status {
	switch {
	case m >= MasteredThreshold:
		return StatusMastered
	case m >= ReviewingThreshold:
		return StatusReviewing
	case m > 0:
		return StatusLearning
	default:
		return StatusNew
	}
}

// ConceptUpdate carries a concept's counters after an answer was applied
type ConceptUpdate struct {
	TotalAttempts   int
	CorrectAttempts int
	IntervalDays    float64
	Weight          int
}

// Result of Recompute
type Result struct {
	ConceptMastery float64
	ConceptStatus  Status
	SkillMastery   float64
}

// Recompute scores an updated concept and the owning skill in one step.
// others holds the remaining concepts of the skill; the updated concept must not be among them.
func Recompute(update ConceptUpdate, others []Weighted) Result {
	m := ConceptMastery(update.TotalAttempts, update.CorrectAttempts, update.IntervalDays)

	all := make([]Weighted, 0, len(others)+1)
	all = append(all, others...)
	all = append(all, Weighted{Mastery: m, Weight: update.Weight})

	return Result{
		ConceptMastery: m,
		ConceptStatus:  StatusOf(m),
		SkillMastery:   SkillMastery(all),
	}
}
