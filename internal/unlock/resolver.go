// Package unlock decides which locked skills have met their prerequisite thresholds.
//
// Missing mastery entries count as 0, so a skill is never unlocked on incomplete data.
package unlock

import "github.com/example/progression/internal/mastery"

// Prerequisite is one outgoing edge of a skill: SkillID must reach MinMastery
type Prerequisite struct {
	SkillID    int64   `json:"skill_id"`
	MinMastery float64 `json:"min_mastery"`
}

// Unmet describes a prerequisite that blocks an unlock
type Unmet struct {
	PrerequisiteSkillID int64   `json:"prerequisite_skill_id"`
	Required            float64 `json:"required"`
	Current             float64 `json:"current"`
}

// Result of CheckSkillUnlockable
type Result struct {
	Unlockable bool    `json:"unlockable"`
	Unmet      []Unmet `json:"unmet,omitempty"`
}

// CheckSkillUnlockable evaluates every prerequisite of a skill against current mastery.
// A skill without prerequisites is always unlockable.
func CheckSkillUnlockable(skillID int64, prerequisites []Prerequisite, masteryMap map[int64]float64) Result {
	var unmet []Unmet
	for _, p := range prerequisites {
		required := mastery.Clamp01(p.MinMastery)
		current := mastery.Clamp01(masteryMap[p.SkillID])
		if current < required {
			unmet = append(unmet, Unmet{
				PrerequisiteSkillID: p.SkillID,
				Required:            required,
				Current:             current,
			})
		}
	}
	return Result{Unlockable: len(unmet) == 0, Unmet: unmet}
}

// GetUnlockableSkillIDs filters locked candidates down to those now eligible.
// Input order is kept and duplicates are dropped.
func GetUnlockableSkillIDs(lockedSkillIDs []int64, prerequisitesBySkill map[int64][]Prerequisite, masteryMap map[int64]float64) []int64 {
	seen := make(map[int64]bool, len(lockedSkillIDs))
	var out []int64
	for _, id := range lockedSkillIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if CheckSkillUnlockable(id, prerequisitesBySkill[id], masteryMap).Unlockable {
			out = append(out, id)
		}
	}
	return out
}
