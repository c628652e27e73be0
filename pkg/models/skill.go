package models

import "time"

// Concept roles inside a skill
const (
	RoleCore          = "core"
	RoleSupplementary = "supplementary"
)

// DefaultMinMastery is the prerequisite threshold used when authoring data omits one
const DefaultMinMastery = 0.8

// Skill is a named bundle of concepts forming one learning objective
type Skill struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SkillType string    `json:"skill_type" db:"skill_type"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SkillConcept links a concept to a skill that owns it
type SkillConcept struct {
	SkillID   int64  `json:"skill_id" db:"skill_id"`
	ConceptID int64  `json:"concept_id" db:"concept_id"`
	Role      string `json:"role" db:"role"`
	Weight    int    `json:"weight" db:"weight"` // Aggregation weight, floor 1
}

// PrerequisiteEdge says SkillID requires PrerequisiteSkillID at MinMastery or above
type PrerequisiteEdge struct {
	SkillID             int64   `json:"skill_id" db:"skill_id"`
	PrerequisiteSkillID int64   `json:"prerequisite_skill_id" db:"prerequisite_skill_id"`
	MinMastery          float64 `json:"min_mastery" db:"min_mastery"`
}
