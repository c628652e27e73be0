package spaced_repetition

import (
	"math"
	"sort"
	"time"

	"github.com/example/progression/pkg/models"
)

// MinEasinessFactor is the SM-2 floor for the easiness factor
const MinEasinessFactor = 1.3

// MaxIntervalDays bounds every interval so the next review stays representable as a time.Duration
const MaxIntervalDays = 36500

// SM2 implements the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// Answers at or above this quality count as a successful recall
	PassThreshold QualityResponse
	// Maximum interval in days, 0 disables the cap
	MaxInterval int
	// Fixed intervals for the first successful repetitions, in days
	InitialIntervals []int
}

// NewSM2 creates a new SM2 instance with the classic settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:    QualityCorrectDifficult,
		MaxInterval:      0,
		InitialIntervals: []int{1, 6},
	}
}

var defaultSM2 = NewSM2()

// Review is the outcome of scheduling one answer
type Review struct {
	IntervalDays   float64         `json:"interval_days"`
	EasinessFactor float64         `json:"easiness_factor"`
	Repetitions    int             `json:"repetitions"`
	NextReviewAt   time.Time       `json:"next_review_at"`
	Quality        QualityResponse `json:"quality"`
}

// ScheduleReview computes the next SM-2 state with the default settings.
// Out-of-range quality is clamped, it is never rejected.
func ScheduleReview(quality int, ef, intervalDays float64, repetitions int, now time.Time) Review {
	return defaultSM2.Schedule(ClampQuality(quality), ef, intervalDays, repetitions, now)
}

// Schedule computes the next state for one concept. It reads no clock: now is supplied by the caller.
func (sm *SM2) Schedule(quality QualityResponse, ef, intervalDays float64, repetitions int, now time.Time) Review {
	quality = ClampQuality(int(quality))
	if math.IsNaN(ef) || math.IsInf(ef, 0) {
		ef = models.InitialEasinessFactor
	}
	if math.IsNaN(intervalDays) || math.IsInf(intervalDays, 0) || intervalDays < 1 {
		intervalDays = 1
	}
	if repetitions < 0 {
		repetitions = 0
	}

	q := 5.0 - float64(quality)
	newEF := ef + (0.1 - q*(0.08+q*0.02))
	if newEF < MinEasinessFactor {
		newEF = MinEasinessFactor
	}

	var newInterval int
	var newRepetitions int

	if quality >= sm.PassThreshold {
		newRepetitions = repetitions + 1
		if newRepetitions <= len(sm.InitialIntervals) {
			newInterval = sm.InitialIntervals[newRepetitions-1]
		} else {
			newInterval = int(math.Min(math.Round(intervalDays*newEF), MaxIntervalDays))
		}
	} else {
		// Lapse: start over tomorrow
		newRepetitions = 0
		newInterval = 1
	}

	if sm.MaxInterval > 0 && newInterval > sm.MaxInterval {
		newInterval = sm.MaxInterval
	}
	if newInterval < 1 {
		newInterval = 1
	}
	if newInterval > MaxIntervalDays {
		newInterval = MaxIntervalDays
	}

	return Review{
		IntervalDays:   float64(newInterval),
		EasinessFactor: newEF,
		Repetitions:    newRepetitions,
		NextReviewAt:   now.Add(time.Duration(newInterval) * 24 * time.Hour),
		Quality:        quality,
	}
}

// Process applies one answer to the SM-2 fields of a progress record.
// Attempt counters and mastery are left to the caller.
func (sm *SM2) Process(progress *models.ConceptProgress, quality QualityResponse, now time.Time) Review {
	review := sm.Schedule(quality, progress.EasinessFactor, progress.IntervalDays, progress.Repetitions, now)

	reviewedAt := now
	next := review.NextReviewAt
	progress.EasinessFactor = review.EasinessFactor
	progress.IntervalDays = review.IntervalDays
	progress.Repetitions = review.Repetitions
	progress.LastQuality = int(review.Quality)
	progress.LastReviewedAt = &reviewedAt
	progress.NextReviewAt = &next

	return review
}

// DueConcepts returns up to limit concepts due for review at now, most urgent first.
// limit <= 0 returns every due concept.
func DueConcepts(progress []models.ConceptProgress, now time.Time, limit int) []models.ConceptProgress {
	var due []models.ConceptProgress
	for _, p := range progress {
		// Never scheduled counts as due
		if p.NextReviewAt == nil || !p.NextReviewAt.After(now) {
			due = append(due, p)
		}
	}

	// Sort due items by priority:
	// 1. Concepts without a successful repetition yet
	// 2. Lowest easiness factor (hardest concepts)
	// 3. Most overdue
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if (a.Repetitions == 0) != (b.Repetitions == 0) {
			return a.Repetitions == 0
		}
		if a.EasinessFactor != b.EasinessFactor {
			return a.EasinessFactor < b.EasinessFactor
		}
		switch {
		case a.NextReviewAt == nil && b.NextReviewAt != nil:
			return true
		case a.NextReviewAt != nil && b.NextReviewAt == nil:
			return false
		case a.NextReviewAt != nil && b.NextReviewAt != nil && !a.NextReviewAt.Equal(*b.NextReviewAt):
			return a.NextReviewAt.Before(*b.NextReviewAt)
		}
		return a.ConceptID < b.ConceptID
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}
