package progression

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"github.com/example/progression/internal/config"
	"github.com/example/progression/internal/database"
	"github.com/example/progression/internal/events"
	"github.com/example/progression/internal/logger"
	"github.com/example/progression/internal/mastery"
	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ms(v int) *int { return &v }

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	clock time.Time
	pub   *events.Memory
	svc   *Service

	basics, greetings, numbers int64
	hola, adios, gracias, uno  int64
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	cfg := config.DefaultConfig()
	cfg.DBPath = filepath.Join(s.T().TempDir(), "progression.db")
	cfg.AnswerRetryBackoff = time.Millisecond
	s.Require().NoError(database.Connect(cfg))

	s.clock = t0
	s.pub = events.NewMemory()
	s.svc = NewService(logger.NewNop(), cfg,
		WithClock(func() time.Time { return s.clock }),
		WithPublisher(s.pub),
	)

	skills := database.NewSkillRepository()
	concepts := database.NewConceptRepository()
	addSkill := func(name string, keys ...string) (int64, []int64) {
		skill := &models.Skill{Name: name}
		s.Require().NoError(skills.Upsert(s.ctx, database.DB, skill))
		var ids []int64
		for _, key := range keys {
			c := &models.Concept{ExternalKey: key}
			s.Require().NoError(concepts.Upsert(s.ctx, database.DB, c))
			s.Require().NoError(skills.AddConcept(s.ctx, database.DB, models.SkillConcept{SkillID: skill.ID, ConceptID: c.ID, Weight: 1}))
			ids = append(ids, c.ID)
		}
		return skill.ID, ids
	}

	var ids []int64
	s.basics, ids = addSkill("basics", "es.hola", "es.adios")
	s.hola, s.adios = ids[0], ids[1]
	s.greetings, ids = addSkill("greetings", "es.gracias")
	s.gracias = ids[0]
	s.numbers, ids = addSkill("numbers", "es.uno")
	s.uno = ids[0]

	s.Require().NoError(skills.AddPrerequisite(s.ctx, database.DB, models.PrerequisiteEdge{
		SkillID: s.greetings, PrerequisiteSkillID: s.basics, MinMastery: 0.5,
	}))
}

func (s *ServiceSuite) TearDownTest() {
	s.Require().NoError(database.Close())
}

func (s *ServiceSuite) answer(userID int64, correct bool, responseMs *int, conceptIDs ...int64) *Outcome {
	out, err := s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{
		UserID:         userID,
		ConceptIDs:     conceptIDs,
		IsCorrect:      correct,
		ResponseTimeMs: responseMs,
	})
	s.Require().NoError(err)
	return out
}

func (s *ServiceSuite) TestFirstCorrectAnswer() {
	out := s.answer(7, true, ms(3000), s.hola)

	s.Require().Len(out.Concepts, 1)
	c := out.Concepts[0]
	s.EqualValues(5, out.Quality)
	s.Equal(1, c.Repetitions)
	s.Equal(1.0, c.IntervalDays)
	s.InDelta(2.6, c.EasinessFactor, 1e-9)
	s.True(c.NextReviewAt.Equal(t0.AddDate(0, 0, 1)))
	s.InDelta(0.71, c.Mastery, 1e-9)
	s.Equal(mastery.StatusReviewing, c.Status)

	s.Require().Len(out.Skills, 1)
	s.Equal(s.basics, out.Skills[0].SkillID)
	s.InDelta(0.355, out.Skills[0].Mastery, 1e-9)
	s.Equal(unlock.StatusUnlocked, out.Skills[0].Previous)
	s.Equal(unlock.StatusInProgress, out.Skills[0].Status)
	s.Empty(out.Unlocked)
	s.Empty(s.pub.Events())
	s.Equal(1, out.Attempts)
}

func (s *ServiceSuite) TestIncorrectAnswerResetsSchedule() {
	out := s.answer(7, false, nil, s.hola)

	c := out.Concepts[0]
	s.EqualValues(2, out.Quality)
	s.Equal(0, c.Repetitions)
	s.Equal(1.0, c.IntervalDays)
	s.InDelta(2.18, c.EasinessFactor, 1e-9)
	s.InDelta(0.01, c.Mastery, 1e-9)
	s.Equal(mastery.StatusLearning, c.Status)
}

func (s *ServiceSuite) TestPrerequisiteMetUnlocksDependent() {
	s.answer(7, true, ms(3000), s.hola)
	out := s.answer(7, true, ms(3000), s.hola, s.adios)

	// hola: 2/2 correct, interval 6 => 0.76; adios: 1/1, interval 1 => 0.71
	s.InDelta(0.735, out.Skills[0].Mastery, 1e-9)
	s.Equal([]int64{s.greetings}, out.Unlocked)

	evs := s.pub.Events()
	s.Require().Len(evs, 1)
	s.Equal(events.SkillUnlocked, evs[0].Type)
	s.Equal(s.greetings, evs[0].SkillID)
	s.Equal(out.EventID.String(), evs[0].AnswerID)

	tree, err := s.svc.SkillTree(s.ctx, 7)
	s.Require().NoError(err)
	status := map[int64]string{}
	for _, n := range tree {
		status[n.Skill.ID] = n.Progress.Status
	}
	s.Equal(string(unlock.StatusInProgress), status[s.basics])
	s.Equal(string(unlock.StatusUnlocked), status[s.greetings])
}

func (s *ServiceSuite) TestLockedSkillKeepsStatusButStoresMastery() {
	out := s.answer(7, true, ms(3000), s.gracias)

	s.Require().Len(out.Skills, 1)
	s.Equal(unlock.StatusLocked, out.Skills[0].Status)
	s.InDelta(0.71, out.Skills[0].Mastery, 1e-9)
	s.Empty(out.Unlocked)
}

func (s *ServiceSuite) TestSkillAttemptedWhileLockedStartsInProgress() {
	s.answer(7, true, ms(3000), s.gracias)
	s.answer(7, true, ms(3000), s.hola)
	out := s.answer(7, true, ms(3000), s.hola, s.adios)
	s.Equal([]int64{s.greetings}, out.Unlocked)

	sp, err := database.NewSkillProgressRepository().Get(s.ctx, database.DB, 7, s.greetings, true, false)
	s.Require().NoError(err)
	s.Equal(string(unlock.StatusInProgress), sp.Status)
	s.InDelta(0.71, sp.Mastery, 1e-9)
	s.Require().NotNil(sp.UnlockedAt)
	s.True(sp.UnlockedAt.Equal(t0))
}

func (s *ServiceSuite) TestRepeatedSuccessMastersSkill() {
	var out *Outcome
	for i := 0; i < 4; i++ {
		out = s.answer(7, true, ms(1000), s.uno)
		if i == 2 {
			s.Equal(17.0, out.Concepts[0].IntervalDays)
			s.Equal(unlock.StatusInProgress, out.Skills[0].Status)
		}
	}

	s.Equal(49.0, out.Concepts[0].IntervalDays)
	s.Equal(mastery.StatusMastered, out.Concepts[0].Status)
	s.Equal(unlock.StatusMastered, out.Skills[0].Status)
	s.Equal([]int64{s.numbers}, out.Mastered)

	evs := s.pub.Events()
	s.Require().Len(evs, 1)
	s.Equal(events.SkillMastered, evs[0].Type)
}

func (s *ServiceSuite) TestInvalidEvents() {
	_, err := s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{UserID: 0, ConceptIDs: []int64{s.hola}})
	s.True(errors.Is(err, ErrInvalidEvent))

	_, err = s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{UserID: 7})
	s.True(errors.Is(err, ErrInvalidEvent))

	_, err = s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{UserID: 7, ConceptIDs: []int64{-1}})
	s.True(errors.Is(err, ErrInvalidEvent))
}

func (s *ServiceSuite) TestUnknownConceptWritesNothing() {
	id := uuid.New()
	_, err := s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{
		ID:         id,
		UserID:     7,
		ConceptIDs: []int64{s.hola, 999},
		IsCorrect:  true,
	})
	s.True(errors.Is(err, ErrUnknownConcept))

	count, err := database.NewReviewLogRepository().CountByEvent(s.ctx, database.DB, id.String())
	s.Require().NoError(err)
	s.Zero(count)

	p, err := database.NewConceptProgressRepository().Get(s.ctx, database.DB, 7, s.hola, false)
	s.Require().NoError(err)
	s.False(p.Persisted())
}

func (s *ServiceSuite) TestDuplicateConceptsApplyOnce() {
	out := s.answer(7, true, nil, s.hola, s.hola)
	s.Require().Len(out.Concepts, 1)

	p, err := database.NewConceptProgressRepository().Get(s.ctx, database.DB, 7, s.hola, false)
	s.Require().NoError(err)
	s.Equal(1, p.TotalAttempts)
}

func (s *ServiceSuite) TestConcurrentAnswersAreNotLost() {
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{
				UserID:     7,
				ConceptIDs: []int64{s.hola},
				IsCorrect:  true,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	p, err := database.NewConceptProgressRepository().Get(s.ctx, database.DB, 7, s.hola, false)
	s.Require().NoError(err)
	s.Equal(n, p.TotalAttempts)
	s.Equal(n, p.CorrectAttempts)
	s.Equal(n, p.Repetitions)
	s.EqualValues(n, p.Version)
}

func (s *ServiceSuite) TestConflictIsRetried() {
	calls := 0
	s.svc.beforeCommit = func(*sqlx.Tx) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("saving progress: %w", database.ErrConflict)
		}
		return nil
	}

	out := s.answer(7, true, ms(3000), s.hola)
	s.Equal(3, out.Attempts)
	s.Equal(3, calls)

	// rolled back attempts leave no trace
	p, err := database.NewConceptProgressRepository().Get(s.ctx, database.DB, 7, s.hola, false)
	s.Require().NoError(err)
	s.Equal(1, p.TotalAttempts)
	s.EqualValues(1, p.Version)
	count, err := database.NewReviewLogRepository().CountByEvent(s.ctx, database.DB, out.EventID.String())
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *ServiceSuite) TestConflictGivesUpAfterMaxRetries() {
	s.svc.maxRetries = 3
	calls := 0
	s.svc.beforeCommit = func(*sqlx.Tx) error {
		calls++
		return database.ErrConflict
	}

	_, err := s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{UserID: 7, ConceptIDs: []int64{s.hola}, IsCorrect: true})
	s.Require().Error(err)
	s.True(database.IsRetryable(err))
	s.True(errors.Is(err, database.ErrConflict))
	s.Equal(3, calls)
	s.Empty(s.pub.Events())

	p, err := database.NewConceptProgressRepository().Get(s.ctx, database.DB, 7, s.hola, false)
	s.Require().NoError(err)
	s.False(p.Persisted())
}

func (s *ServiceSuite) TestCancelDuringBackoff() {
	s.svc.backoff = time.Hour
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	calls := 0
	s.svc.beforeCommit = func(*sqlx.Tx) error {
		calls++
		cancel()
		return database.ErrConflict
	}

	start := time.Now()
	_, err := s.svc.ProcessAnswer(ctx, models.AnswerEvent{UserID: 7, ConceptIDs: []int64{s.hola}, IsCorrect: true})
	s.True(errors.Is(err, context.Canceled))
	s.Less(time.Since(start), time.Minute)
	s.Equal(1, calls)
}

func (s *ServiceSuite) TestNonRetryableErrorIsNotRetried() {
	calls := 0
	s.svc.beforeCommit = func(*sqlx.Tx) error {
		calls++
		return errors.New("disk full")
	}

	_, err := s.svc.ProcessAnswer(s.ctx, models.AnswerEvent{UserID: 7, ConceptIDs: []int64{s.hola}})
	s.Require().Error(err)
	s.False(database.IsRetryable(err))
	s.Equal(1, calls)
}

func (s *ServiceSuite) TestDueReviews() {
	s.answer(7, true, ms(3000), s.hola)
	s.answer(7, false, nil, s.adios)

	due, err := s.svc.DueReviews(s.ctx, 7, 10)
	s.Require().NoError(err)
	s.Empty(due)

	s.clock = t0.AddDate(0, 0, 1)
	due, err = s.svc.DueReviews(s.ctx, 7, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	// the failed concept has zero repetitions and comes first
	s.Equal(s.adios, due[0].ConceptID)
	s.Equal(s.hola, due[1].ConceptID)

	count, err := s.svc.CountDue(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *ServiceSuite) TestSkillTreeForNewUser() {
	tree, err := s.svc.SkillTree(s.ctx, 42)
	s.Require().NoError(err)
	s.Require().Len(tree, 3)

	for _, n := range tree {
		s.False(n.Progress.Persisted())
		if n.Skill.ID == s.greetings {
			s.Equal(string(unlock.StatusLocked), n.Progress.Status)
			s.Require().Len(n.Prerequisites, 1)
			s.Equal(s.basics, n.Prerequisites[0].PrerequisiteSkillID)
		} else {
			s.Equal(string(unlock.StatusUnlocked), n.Progress.Status)
		}
		if n.Skill.ID == s.basics {
			s.Equal([]int64{s.greetings}, n.Dependents)
		} else {
			s.Empty(n.Dependents)
		}
	}
}
