package unlock

import "github.com/example/progression/internal/mastery"

// SkillStatus is the lifecycle state of a user's skill
type SkillStatus string

const (
	StatusLocked     SkillStatus = "locked"
	StatusUnlocked   SkillStatus = "unlocked"
	StatusInProgress SkillStatus = "in_progress"
	StatusMastered   SkillStatus = "mastered"
)

// Transition is an event that may move a skill forward
type Transition int

const (
	Unlock  Transition = iota // prerequisites satisfied
	Attempt                   // first attempt recorded
	Master                    // aggregate mastery reached the threshold
)

var statusRank = map[SkillStatus]int{
	StatusLocked:     0,
	StatusUnlocked:   1,
	StatusInProgress: 2,
	StatusMastered:   3,
}

// IsValid reports whether s is a known status
func (s SkillStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// InitialStatus is the status of a skill nobody has touched yet
func InitialStatus(hasPrerequisites bool) SkillStatus {
	if hasPrerequisites {
		return StatusLocked
	}
	return StatusUnlocked
}

// Advance applies one transition. Transitions only move forward; anything not
// legal from the current status leaves it unchanged.
func Advance(current SkillStatus, t Transition) SkillStatus {
	switch {
	case t == Unlock && current == StatusLocked:
		return StatusUnlocked
	case t == Attempt && current == StatusUnlocked:
		return StatusInProgress
	case t == Master && current == StatusInProgress:
		return StatusMastered
	}
	return current
}

// Next folds the transitions implied by one recompute, in lifecycle order.
func Next(current SkillStatus, unlockable, attempted bool, skillMastery float64) SkillStatus {
	s := current
	if unlockable {
		s = Advance(s, Unlock)
	}
	if attempted {
		s = Advance(s, Attempt)
	}
	if skillMastery >= mastery.MasteredThreshold {
		s = Advance(s, Master)
	}
	return s
}
