// Package progression applies answer events to a learner's progress.
//
// Every event is one transaction: concept schedules, concept and skill mastery,
// skill statuses and unlocks of dependent skills commit together or not at all.
package progression

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/progression/internal/config"
	"github.com/example/progression/internal/database"
	"github.com/example/progression/internal/events"
	"github.com/example/progression/internal/logger"
	"github.com/example/progression/internal/mastery"
	sr "github.com/example/progression/internal/spaced_repetition"
	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

var (
	// ErrInvalidEvent is returned for answer events that cannot be applied
	ErrInvalidEvent = errors.New("invalid answer event")
	// ErrUnknownConcept is returned when an event names a concept that was never imported
	ErrUnknownConcept = errors.New("unknown concept")
)

// Service processes answer events against the progression store
type Service struct {
	log       *logger.Logger
	sm2       *sr.SM2
	publisher events.Publisher
	now       func() time.Time

	maxRetries int
	backoff    time.Duration

	users         *database.UserRepository
	concepts      *database.ConceptRepository
	skills        *database.SkillRepository
	progress      *database.ConceptProgressRepository
	skillProgress *database.SkillProgressRepository
	reviewLogs    *database.ReviewLogRepository

	// beforeCommit runs as the last step of every answer transaction
	beforeCommit func(tx *sqlx.Tx) error
}

// Option customizes a Service
type Option func(*Service)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPublisher sets where progression events go after commit
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithSM2 replaces the default scheduler parameters
func WithSM2(sm2 *sr.SM2) Option {
	return func(s *Service) { s.sm2 = sm2 }
}

// NewService creates a new progression service
func NewService(log *logger.Logger, cfg *config.Config, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Service{
		log:           log.With("service", "ProgressionService"),
		sm2:           sr.NewSM2(),
		publisher:     events.NewNop(),
		now:           time.Now,
		maxRetries:    cfg.AnswerMaxRetries,
		backoff:       cfg.AnswerRetryBackoff,
		users:         database.NewUserRepository(),
		concepts:      database.NewConceptRepository(),
		skills:        database.NewSkillRepository(),
		progress:      database.NewConceptProgressRepository(),
		skillProgress: database.NewSkillProgressRepository(),
		reviewLogs:    database.NewReviewLogRepository(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRetries < 1 {
		s.maxRetries = 1
	}
	return s
}

// ConceptResult is the new state of one answered concept
type ConceptResult struct {
	ConceptID      int64          `json:"concept_id"`
	IntervalDays   float64        `json:"interval_days"`
	EasinessFactor float64        `json:"easiness_factor"`
	Repetitions    int            `json:"repetitions"`
	NextReviewAt   time.Time      `json:"next_review_at"`
	Mastery        float64        `json:"mastery"`
	Status         mastery.Status `json:"status"`
}

// SkillResult is the new state of one recomputed skill
type SkillResult struct {
	SkillID  int64              `json:"skill_id"`
	Mastery  float64            `json:"mastery"`
	Previous unlock.SkillStatus `json:"previous"`
	Status   unlock.SkillStatus `json:"status"`
}

// Outcome summarizes what one answer event changed
type Outcome struct {
	EventID  uuid.UUID          `json:"event_id"`
	Quality  sr.QualityResponse `json:"quality"`
	Concepts []ConceptResult    `json:"concepts"`
	Skills   []SkillResult      `json:"skills"`
	Unlocked []int64            `json:"unlocked"`
	Mastered []int64            `json:"mastered"`
	Attempts int                `json:"attempts"`
}

// ProcessAnswer applies an answer event. Write conflicts with concurrent events
// for the same user are retried from scratch; any other error aborts the event
// with nothing written.
func (s *Service) ProcessAnswer(ctx context.Context, event models.AnswerEvent) (*Outcome, error) {
	conceptIDs, err := validate(event)
	if err != nil {
		return nil, err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	quality := sr.DeriveQuality(event.IsCorrect, event.ResponseTimeMs)
	now := s.now().UTC()
	log := s.log.With("user_id", event.UserID, "event_id", event.ID.String())

	var outcome *Outcome
	for attempt := 1; ; attempt++ {
		outcome, err = s.apply(ctx, event, conceptIDs, quality, now)
		if err == nil {
			outcome.Attempts = attempt
			break
		}
		if !database.IsRetryable(err) || attempt >= s.maxRetries {
			return nil, fmt.Errorf("failed to process answer: %w", err)
		}
		log.Warn("answer transaction conflicted, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}

	log.Debug("answer processed",
		"quality", quality.String(),
		"concepts", len(outcome.Concepts),
		"skills", len(outcome.Skills),
		"unlocked", outcome.Unlocked,
		"mastered", outcome.Mastered,
	)
	s.publish(ctx, log, event, outcome, now)
	return outcome, nil
}

// validate checks an event and returns its distinct concept ids in ascending order.
// A fixed order keeps row locks acquired in the same sequence by concurrent events.
func validate(event models.AnswerEvent) ([]int64, error) {
	if event.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidEvent)
	}
	if len(event.ConceptIDs) == 0 {
		return nil, fmt.Errorf("%w: no concepts", ErrInvalidEvent)
	}

	seen := make(map[int64]bool, len(event.ConceptIDs))
	ids := make([]int64, 0, len(event.ConceptIDs))
	for _, id := range event.ConceptIDs {
		if id <= 0 {
			return nil, fmt.Errorf("%w: concept id %d", ErrInvalidEvent, id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Service) apply(ctx context.Context, event models.AnswerEvent, conceptIDs []int64, quality sr.QualityResponse, now time.Time) (*Outcome, error) {
	outcome := &Outcome{EventID: event.ID, Quality: quality}

	err := database.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.concepts.ExistingIDs(ctx, tx, conceptIDs)
		if err != nil {
			return err
		}
		for _, id := range conceptIDs {
			if !existing[id] {
				return fmt.Errorf("concept %d: %w", id, ErrUnknownConcept)
			}
		}
		if err := s.users.EnsureExists(ctx, tx, event.UserID, now); err != nil {
			return err
		}

		for _, conceptID := range conceptIDs {
			result, err := s.applyConcept(ctx, tx, event, conceptID, quality, now)
			if err != nil {
				return err
			}
			outcome.Concepts = append(outcome.Concepts, result)
		}

		if err := s.applySkills(ctx, tx, event.UserID, conceptIDs, now, outcome); err != nil {
			return err
		}
		if s.beforeCommit != nil {
			return s.beforeCommit(tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Service) applyConcept(ctx context.Context, tx *sqlx.Tx, event models.AnswerEvent, conceptID int64, quality sr.QualityResponse, now time.Time) (ConceptResult, error) {
	p, err := s.progress.Get(ctx, tx, event.UserID, conceptID, true)
	if err != nil {
		return ConceptResult{}, err
	}

	review := s.sm2.Process(&p, quality, now)
	p.TotalAttempts++
	if event.IsCorrect {
		p.CorrectAttempts++
	}
	p.Mastery = mastery.ConceptMastery(p.TotalAttempts, p.CorrectAttempts, p.IntervalDays)
	status := mastery.StatusOf(p.Mastery)
	p.Status = string(status)

	if err := s.progress.Save(ctx, tx, &p, now); err != nil {
		return ConceptResult{}, err
	}

	entry := &models.ReviewLog{
		EventID:        event.ID.String(),
		UserID:         event.UserID,
		ConceptID:      conceptID,
		Quality:        int(quality),
		IsCorrect:      event.IsCorrect,
		IntervalDays:   review.IntervalDays,
		EasinessFactor: review.EasinessFactor,
		ReviewedAt:     now,
	}
	if event.ResponseTimeMs != nil {
		ms := int64(*event.ResponseTimeMs)
		entry.ResponseTimeMs = &ms
	}
	if err := s.reviewLogs.Create(ctx, tx, entry); err != nil {
		return ConceptResult{}, err
	}

	return ConceptResult{
		ConceptID:      conceptID,
		IntervalDays:   review.IntervalDays,
		EasinessFactor: review.EasinessFactor,
		Repetitions:    review.Repetitions,
		NextReviewAt:   review.NextReviewAt,
		Mastery:        p.Mastery,
		Status:         status,
	}, nil
}

// applySkills recomputes every skill owning an answered concept, then unlocks
// locked dependents whose prerequisites are now satisfied.
func (s *Service) applySkills(ctx context.Context, tx *sqlx.Tx, userID int64, conceptIDs []int64, now time.Time, outcome *Outcome) error {
	affected, err := s.skills.SkillsForConcepts(ctx, tx, conceptIDs)
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}

	dependents, err := s.skills.DependentSkills(ctx, tx, affected)
	if err != nil {
		return err
	}
	isAffected := make(map[int64]bool, len(affected))
	for _, id := range affected {
		isAffected[id] = true
	}
	var others []int64
	for _, id := range dependents {
		if !isAffected[id] {
			others = append(others, id)
		}
	}

	prereqs, err := s.skills.PrerequisitesFor(ctx, tx, append(append([]int64{}, affected...), others...))
	if err != nil {
		return err
	}

	// Recompute mastery of the affected skills first so prerequisite checks see the new values
	rows := make(map[int64]*models.SkillProgress, len(affected))
	fresh := make(map[int64]float64, len(affected))
	for _, skillID := range affected {
		sp, err := s.skillProgress.Get(ctx, tx, userID, skillID, len(prereqs[skillID]) > 0, true)
		if err != nil {
			return err
		}
		weighted, err := s.skills.WeightedMasteries(ctx, tx, userID, skillID)
		if err != nil {
			return err
		}
		sp.Mastery = mastery.SkillMastery(weighted)
		rows[skillID] = &sp
		fresh[skillID] = sp.Mastery
	}

	masteryMap, err := s.masteryMap(ctx, tx, userID, prereqs, fresh)
	if err != nil {
		return err
	}

	for _, skillID := range affected {
		sp := rows[skillID]
		previous := unlock.SkillStatus(sp.Status)
		unlockable := previous == unlock.StatusLocked &&
			unlock.CheckSkillUnlockable(skillID, prereqs[skillID], masteryMap).Unlockable

		next := unlock.Next(previous, unlockable, true, sp.Mastery)
		s.markTransition(sp, previous, next, now, outcome)

		if err := s.skillProgress.Save(ctx, tx, sp, now); err != nil {
			return err
		}
		outcome.Skills = append(outcome.Skills, SkillResult{
			SkillID:  skillID,
			Mastery:  sp.Mastery,
			Previous: previous,
			Status:   next,
		})
	}

	return s.unlockDependents(ctx, tx, userID, others, prereqs, masteryMap, now, outcome)
}

func (s *Service) unlockDependents(ctx context.Context, tx *sqlx.Tx, userID int64, candidates []int64, prereqs map[int64][]unlock.Prerequisite, masteryMap map[int64]float64, now time.Time, outcome *Outcome) error {
	locked := make(map[int64]models.SkillProgress, len(candidates))
	var lockedIDs []int64
	for _, skillID := range candidates {
		sp, err := s.skillProgress.Get(ctx, tx, userID, skillID, true, true)
		if err != nil {
			return err
		}
		if unlock.SkillStatus(sp.Status) != unlock.StatusLocked {
			continue
		}
		locked[skillID] = sp
		lockedIDs = append(lockedIDs, skillID)
	}

	for _, skillID := range unlock.GetUnlockableSkillIDs(lockedIDs, prereqs, masteryMap) {
		sp := locked[skillID]
		if !sp.Persisted() {
			weighted, err := s.skills.WeightedMasteries(ctx, tx, userID, skillID)
			if err != nil {
				return err
			}
			sp.Mastery = mastery.SkillMastery(weighted)
		}
		// a stored row means the skill was attempted while still locked
		next := unlock.Next(unlock.StatusLocked, true, sp.Persisted(), sp.Mastery)
		s.markTransition(&sp, unlock.StatusLocked, next, now, outcome)

		if err := s.skillProgress.Save(ctx, tx, &sp, now); err != nil {
			return err
		}
	}
	return nil
}

// masteryMap reads stored mastery of every prerequisite skill, overlaid with values recomputed in this transaction
func (s *Service) masteryMap(ctx context.Context, tx *sqlx.Tx, userID int64, prereqs map[int64][]unlock.Prerequisite, fresh map[int64]float64) (map[int64]float64, error) {
	seen := make(map[int64]bool)
	var ids []int64
	for _, edges := range prereqs {
		for _, e := range edges {
			if !seen[e.SkillID] {
				seen[e.SkillID] = true
				ids = append(ids, e.SkillID)
			}
		}
	}

	m, err := s.skillProgress.MasteryMap(ctx, tx, userID, ids)
	if err != nil {
		return nil, err
	}
	for id, v := range fresh {
		m[id] = v
	}
	return m, nil
}

func (s *Service) markTransition(sp *models.SkillProgress, previous, next unlock.SkillStatus, now time.Time, outcome *Outcome) {
	sp.Status = string(next)
	if previous == unlock.StatusLocked && next != unlock.StatusLocked {
		at := now
		sp.UnlockedAt = &at
		outcome.Unlocked = append(outcome.Unlocked, sp.SkillID)
	}
	if next == unlock.StatusMastered && previous != unlock.StatusMastered {
		at := now
		sp.MasteredAt = &at
		outcome.Mastered = append(outcome.Mastered, sp.SkillID)
	}
}

// publish is best effort: the answer is already committed
func (s *Service) publish(ctx context.Context, log *logger.Logger, event models.AnswerEvent, outcome *Outcome, now time.Time) {
	var batch []events.Event
	for _, id := range outcome.Unlocked {
		batch = append(batch, events.New(events.SkillUnlocked, event.UserID, id, event.ID.String(), now))
	}
	for _, id := range outcome.Mastered {
		batch = append(batch, events.New(events.SkillMastered, event.UserID, id, event.ID.String(), now))
	}
	for _, ev := range batch {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.Warn("failed to publish progression event", "type", ev.Type, "skill_id", ev.SkillID, "error", err)
		}
	}
}
