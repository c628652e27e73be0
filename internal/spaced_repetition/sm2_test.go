package spaced_repetition

import (
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/progression/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func TestScheduleReviewWorkedExample(t *testing.T) {
	r := ScheduleReview(5, 2.5, 6, 2, t0)

	assert.InDelta(t, 2.6, r.EasinessFactor, 1e-9)
	assert.Equal(t, 3, r.Repetitions)
	assert.Equal(t, 16.0, r.IntervalDays)
	assert.True(t, r.NextReviewAt.Equal(t0.AddDate(0, 0, 16)), "NextReviewAt = %v", r.NextReviewAt)
	assert.Equal(t, QualityPerfect, r.Quality)
}

func TestScheduleReviewIntervalIsWholeDaysOfElapsedTime(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// clocks move forward overnight on 2026-03-08
	now := time.Date(2026, 3, 7, 12, 0, 0, 0, ny)

	r := ScheduleReview(5, 2.5, 1, 0, now)
	assert.Equal(t, 24*time.Hour, r.NextReviewAt.Sub(now))
}

func TestScheduleReviewHugeIntervalIsCapped(t *testing.T) {
	r := ScheduleReview(5, 2.5, 1e300, 5, t0)
	assert.Equal(t, float64(MaxIntervalDays), r.IntervalDays)
	assert.True(t, r.NextReviewAt.After(t0))

	r = ScheduleReview(5, 2.5, math.MaxFloat64, 5, t0)
	assert.Equal(t, float64(MaxIntervalDays), r.IntervalDays)
}

func TestScheduleReviewFirstTwoSuccessesAreFixed(t *testing.T) {
	for _, ef := range []float64{1.3, 2.5, 3.7} {
		first := ScheduleReview(4, ef, 1, 0, t0)
		require.Equal(t, 1, first.Repetitions)
		assert.Equal(t, 1.0, first.IntervalDays, "ef=%v", ef)

		second := ScheduleReview(4, first.EasinessFactor, first.IntervalDays, first.Repetitions, t0)
		require.Equal(t, 2, second.Repetitions)
		assert.Equal(t, 6.0, second.IntervalDays, "ef=%v", ef)
	}
}

func TestScheduleReviewFailureResets(t *testing.T) {
	for q := 0; q < 3; q++ {
		for _, reps := range []int{0, 1, 7} {
			r := ScheduleReview(q, 2.8, 45, reps, t0)
			assert.Equal(t, 0, r.Repetitions, "q=%d reps=%d", q, reps)
			assert.Equal(t, 1.0, r.IntervalDays, "q=%d reps=%d", q, reps)
			assert.True(t, r.NextReviewAt.Equal(t0.AddDate(0, 0, 1)))
		}
	}
}

func TestScheduleReviewFloors(t *testing.T) {
	// Inputs deliberately include garbage that must be clamped.
	for q := -3; q <= 8; q++ {
		for _, ef := range []float64{0, 1.0, 1.3, 2.5} {
			for _, interval := range []float64{-4, 0, 0.2, 1, 30} {
				for _, reps := range []int{-1, 0, 2, 9} {
					r := ScheduleReview(q, ef, interval, reps, t0)
					assert.GreaterOrEqual(t, r.EasinessFactor, MinEasinessFactor)
					assert.GreaterOrEqual(t, r.IntervalDays, 1.0)
					assert.GreaterOrEqual(t, r.Repetitions, 0)
					assert.True(t, r.Quality >= QualityBlackout && r.Quality <= QualityPerfect)
				}
			}
		}
	}
}

func TestScheduleReviewClampsQuality(t *testing.T) {
	assert.Equal(t, QualityPerfect, ScheduleReview(42, 2.5, 1, 0, t0).Quality)
	assert.Equal(t, QualityBlackout, ScheduleReview(-1, 2.5, 1, 0, t0).Quality)
}

func TestScheduleReviewEasinessFactor(t *testing.T) {
	tests := []struct {
		quality int
		want    float64
	}{
		{5, 2.6},
		{4, 2.5},
		{3, 2.36},
		{2, 2.18},
		{1, 1.96},
		{0, 1.7},
	}
	for _, tt := range tests {
		r := ScheduleReview(tt.quality, 2.5, 1, 0, t0)
		assert.InDelta(t, tt.want, r.EasinessFactor, 1e-9, "quality %d", tt.quality)
	}
}

func TestScheduleReviewIsDeterministic(t *testing.T) {
	a := ScheduleReview(3, 2.1, 14, 4, t0)
	b := ScheduleReview(3, 2.1, 14, 4, t0)
	assert.Equal(t, a, b)
}

func TestSM2MaxInterval(t *testing.T) {
	sm := NewSM2()
	sm.MaxInterval = 30
	r := sm.Schedule(QualityPerfect, 2.5, 100, 5, t0)
	assert.Equal(t, 30.0, r.IntervalDays)
}

func TestDeriveQuality(t *testing.T) {
	tests := []struct {
		name    string
		correct bool
		ms      *int
		want    QualityResponse
	}{
		{"incorrect", false, intPtr(1000), QualityIncorrectFamiliar},
		{"incorrect without timing", false, nil, QualityIncorrectFamiliar},
		{"correct without timing", true, nil, QualityCorrectHesitation},
		{"fast", true, intPtr(4999), QualityPerfect},
		{"five seconds", true, intPtr(5000), QualityCorrectHesitation},
		{"just under ten", true, intPtr(9999), QualityCorrectHesitation},
		{"slow", true, intPtr(10000), QualityCorrectDifficult},
		{"negative timing", true, intPtr(-5), QualityCorrectHesitation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveQuality(tt.correct, tt.ms))
		})
	}
}

func TestProcessUpdatesProgress(t *testing.T) {
	p := models.NewConceptProgress(1, 2)
	sm := NewSM2()

	r := sm.Process(&p, QualityPerfect, t0)

	assert.Equal(t, r.EasinessFactor, p.EasinessFactor)
	assert.Equal(t, 1, p.Repetitions)
	assert.Equal(t, 1.0, p.IntervalDays)
	assert.Equal(t, int(QualityPerfect), p.LastQuality)
	require.NotNil(t, p.NextReviewAt)
	require.NotNil(t, p.LastReviewedAt)
	assert.True(t, p.NextReviewAt.Equal(t0.AddDate(0, 0, 1)))
	assert.True(t, p.LastReviewedAt.Equal(t0))
}

func TestDueConceptsOrdering(t *testing.T) {
	past := func(d int) *time.Time { v := t0.AddDate(0, 0, -d); return &v }
	future := t0.AddDate(0, 0, 3)

	progress := []models.ConceptProgress{
		{ConceptID: 1, Repetitions: 3, EasinessFactor: 2.5, NextReviewAt: past(1)},
		{ConceptID: 2, Repetitions: 3, EasinessFactor: 1.9, NextReviewAt: past(1)},
		{ConceptID: 3, Repetitions: 0, EasinessFactor: 2.5, NextReviewAt: past(1)},
		{ConceptID: 4, Repetitions: 2, EasinessFactor: 2.5, NextReviewAt: &future},
		{ConceptID: 5, Repetitions: 3, EasinessFactor: 2.5, NextReviewAt: past(5)},
		{ConceptID: 6, Repetitions: 1, EasinessFactor: 2.5, NextReviewAt: &t0},
	}

	due := DueConcepts(progress, t0, 0)
	ids := make([]int64, 0, len(due))
	for _, p := range due {
		ids = append(ids, p.ConceptID)
	}
	assert.Equal(t, []int64{3, 2, 5, 1, 6}, ids)

	assert.Len(t, DueConcepts(progress, t0, 2), 2)
	assert.Empty(t, DueConcepts(nil, t0, 10))
}
