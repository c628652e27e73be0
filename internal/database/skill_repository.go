package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/progression/internal/mastery"
	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

// SkillRepository handles skills, their concepts and their prerequisite edges
type SkillRepository struct{}

// NewSkillRepository creates a new repository instance
func NewSkillRepository() *SkillRepository {
	return &SkillRepository{}
}

// Upsert creates a skill or updates the one with the same name
func (r *SkillRepository) Upsert(ctx context.Context, q sqlx.ExtContext, skill *models.Skill) error {
	query := q.Rebind(`
		INSERT INTO skills (name, skill_type, sort_order)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			skill_type = excluded.skill_type,
			sort_order = excluded.sort_order
		RETURNING id
	`)
	if err := sqlx.GetContext(ctx, q, &skill.ID, query, skill.Name, skill.SkillType, skill.SortOrder); err != nil {
		return fmt.Errorf("failed to upsert skill %q: %w", skill.Name, err)
	}
	return nil
}

// GetAll returns all skills in display order
func (r *SkillRepository) GetAll(ctx context.Context, q sqlx.ExtContext) ([]models.Skill, error) {
	var skills []models.Skill
	err := sqlx.SelectContext(ctx, q, &skills,
		"SELECT id, name, skill_type, sort_order, created_at FROM skills ORDER BY sort_order, id")
	if err != nil {
		return nil, fmt.Errorf("failed to get skills: %w", err)
	}
	return skills, nil
}

// GetByName returns a skill by its unique name
func (r *SkillRepository) GetByName(ctx context.Context, q sqlx.ExtContext, name string) (*models.Skill, error) {
	var skill models.Skill
	err := sqlx.GetContext(ctx, q, &skill,
		q.Rebind("SELECT id, name, skill_type, sort_order, created_at FROM skills WHERE name = ?"), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("skill %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}
	return &skill, nil
}

// AddConcept links a concept to a skill. Weight is floored at 1.
func (r *SkillRepository) AddConcept(ctx context.Context, q sqlx.ExtContext, link models.SkillConcept) error {
	if link.Role == "" {
		link.Role = models.RoleCore
	}
	query := q.Rebind(`
		INSERT INTO skill_concepts (skill_id, concept_id, role, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (skill_id, concept_id) DO UPDATE SET
			role = excluded.role,
			weight = excluded.weight
	`)
	_, err := q.ExecContext(ctx, query, link.SkillID, link.ConceptID, link.Role, mastery.WeightFloor(link.Weight))
	if err != nil {
		return fmt.Errorf("failed to link concept %d to skill %d: %w", link.ConceptID, link.SkillID, err)
	}
	return nil
}

// AddPrerequisite stores a prerequisite edge, replacing the threshold of an existing one
func (r *SkillRepository) AddPrerequisite(ctx context.Context, q sqlx.ExtContext, edge models.PrerequisiteEdge) error {
	query := q.Rebind(`
		INSERT INTO skill_prerequisites (skill_id, prerequisite_skill_id, min_mastery)
		VALUES (?, ?, ?)
		ON CONFLICT (skill_id, prerequisite_skill_id) DO UPDATE SET
			min_mastery = excluded.min_mastery
	`)
	_, err := q.ExecContext(ctx, query, edge.SkillID, edge.PrerequisiteSkillID, mastery.Clamp01(edge.MinMastery))
	if err != nil {
		return fmt.Errorf("failed to add prerequisite %d -> %d: %w", edge.SkillID, edge.PrerequisiteSkillID, err)
	}
	return nil
}

// AllPrerequisites returns every prerequisite edge
func (r *SkillRepository) AllPrerequisites(ctx context.Context, q sqlx.ExtContext) ([]models.PrerequisiteEdge, error) {
	var edges []models.PrerequisiteEdge
	err := sqlx.SelectContext(ctx, q, &edges,
		"SELECT skill_id, prerequisite_skill_id, min_mastery FROM skill_prerequisites ORDER BY skill_id, prerequisite_skill_id")
	if err != nil {
		return nil, fmt.Errorf("failed to get prerequisites: %w", err)
	}
	return edges, nil
}

// PrerequisitesFor returns the prerequisite edges of the given skills keyed by skill.
// Skills without edges are absent from the map.
func (r *SkillRepository) PrerequisitesFor(ctx context.Context, q sqlx.ExtContext, skillIDs []int64) (map[int64][]unlock.Prerequisite, error) {
	result := make(map[int64][]unlock.Prerequisite)
	if len(skillIDs) == 0 {
		return result, nil
	}

	query, args, err := inQuery(q, `
		SELECT skill_id, prerequisite_skill_id, min_mastery
		FROM skill_prerequisites
		WHERE skill_id IN (?)
		ORDER BY skill_id, prerequisite_skill_id
	`, skillIDs)
	if err != nil {
		return nil, err
	}

	var edges []models.PrerequisiteEdge
	if err := sqlx.SelectContext(ctx, q, &edges, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get prerequisites: %w", err)
	}
	for _, e := range edges {
		result[e.SkillID] = append(result[e.SkillID], unlock.Prerequisite{
			SkillID:    e.PrerequisiteSkillID,
			MinMastery: e.MinMastery,
		})
	}
	return result, nil
}

// DependentSkills returns the skills that directly require any of the given skills
func (r *SkillRepository) DependentSkills(ctx context.Context, q sqlx.ExtContext, skillIDs []int64) ([]int64, error) {
	if len(skillIDs) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(q, `
		SELECT DISTINCT skill_id FROM skill_prerequisites
		WHERE prerequisite_skill_id IN (?)
		ORDER BY skill_id
	`, skillIDs)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get dependent skills: %w", err)
	}
	return ids, nil
}

// SkillsForConcepts returns the skills owning any of the given concepts
func (r *SkillRepository) SkillsForConcepts(ctx context.Context, q sqlx.ExtContext, conceptIDs []int64) ([]int64, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}
	query, args, err := inQuery(q, `
		SELECT DISTINCT skill_id FROM skill_concepts
		WHERE concept_id IN (?)
		ORDER BY skill_id
	`, conceptIDs)
	if err != nil {
		return nil, err
	}

	var ids []int64
	if err := sqlx.SelectContext(ctx, q, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get skills for concepts: %w", err)
	}
	return ids, nil
}

// WeightedMasteries returns (mastery, weight) for every concept of a skill as seen by one user.
// Concepts the user never attempted count as mastery 0.
func (r *SkillRepository) WeightedMasteries(ctx context.Context, q sqlx.ExtContext, userID, skillID int64) ([]mastery.Weighted, error) {
	var rows []struct {
		Mastery float64 `db:"mastery"`
		Weight  int     `db:"weight"`
	}
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(`
		SELECT COALESCE(cp.mastery, 0) AS mastery, sc.weight AS weight
		FROM skill_concepts sc
		LEFT JOIN concept_progress cp ON cp.concept_id = sc.concept_id AND cp.user_id = ?
		WHERE sc.skill_id = ?
		ORDER BY sc.concept_id
	`), userID, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to get concept masteries for skill %d: %w", skillID, err)
	}

	out := make([]mastery.Weighted, len(rows))
	for i, row := range rows {
		out[i] = mastery.Weighted{Mastery: row.Mastery, Weight: row.Weight}
	}
	return out, nil
}
