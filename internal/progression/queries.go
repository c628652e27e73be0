package progression

import (
	"context"
	"fmt"

	"github.com/example/progression/internal/database"
	sr "github.com/example/progression/internal/spaced_repetition"
	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

// DueReviews returns up to limit concepts the user should review now, most urgent first
func (s *Service) DueReviews(ctx context.Context, userID int64, limit int) ([]models.ConceptProgress, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidEvent)
	}
	now := s.now().UTC()
	progress, err := s.progress.GetDue(ctx, database.DB, userID, now)
	if err != nil {
		return nil, err
	}
	return sr.DueConcepts(progress, now, limit), nil
}

// CountDue returns how many concepts the user has due now
func (s *Service) CountDue(ctx context.Context, userID int64) (int, error) {
	return s.progress.CountDue(ctx, database.DB, userID, s.now().UTC())
}

// SkillTree returns every skill with the user's status on it.
// Skills the user never touched carry their implicit initial status.
func (s *Service) SkillTree(ctx context.Context, userID int64) ([]models.SkillNode, error) {
	skills, err := s.skills.GetAll(ctx, database.DB)
	if err != nil {
		return nil, err
	}
	edges, err := s.skills.AllPrerequisites(ctx, database.DB)
	if err != nil {
		return nil, err
	}
	stored, err := s.skillProgress.GetByUser(ctx, database.DB, userID)
	if err != nil {
		return nil, err
	}

	bySkill := make(map[int64][]models.PrerequisiteEdge)
	for _, e := range edges {
		bySkill[e.SkillID] = append(bySkill[e.SkillID], e)
	}
	g := unlock.NewGraph(edges)

	nodes := make([]models.SkillNode, 0, len(skills))
	for _, skill := range skills {
		progress, ok := stored[skill.ID]
		if !ok {
			progress = database.ImplicitSkillProgress(userID, skill.ID, len(g.Prerequisites(skill.ID)) > 0)
		}
		nodes = append(nodes, models.SkillNode{
			Skill:         skill,
			Progress:      progress,
			Prerequisites: bySkill[skill.ID],
			Dependents:    g.Dependents(skill.ID),
		})
	}
	return nodes, nil
}
