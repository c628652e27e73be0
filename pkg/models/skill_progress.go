package models

import "time"

// SkillProgress is a user's aggregate state for one skill.
// Status is derived from concept mastery and prerequisite checks, never set freely.
type SkillProgress struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	SkillID    int64      `json:"skill_id" db:"skill_id"`
	Status     string     `json:"status" db:"status"` // locked, unlocked, in_progress, mastered
	Mastery    float64    `json:"mastery" db:"mastery"`
	UnlockedAt *time.Time `json:"unlocked_at" db:"unlocked_at"`
	MasteredAt *time.Time `json:"mastered_at" db:"mastered_at"`
	Version    int64      `json:"version" db:"version"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Persisted reports whether the record was loaded from the store
func (p SkillProgress) Persisted() bool {
	return p.Version > 0
}

// SkillNode is one entry of a user's skill tree
type SkillNode struct {
	Skill         Skill              `json:"skill"`
	Progress      SkillProgress      `json:"progress"`
	Prerequisites []PrerequisiteEdge `json:"prerequisites"`
	Dependents    []int64            `json:"dependents,omitempty"`
}
