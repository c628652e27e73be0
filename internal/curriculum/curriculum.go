// Package curriculum loads authored skills, concepts and prerequisite edges.
//
// A curriculum is validated as a whole before anything is written: names must
// be unique, edges must point at known skills and the prerequisite graph must
// be acyclic.
package curriculum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/progression/internal/mastery"
	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

// ErrInvalidCurriculum is returned for authoring data that cannot be loaded
var ErrInvalidCurriculum = errors.New("invalid curriculum")

// Curriculum is the authored content of one import
type Curriculum struct {
	Skills []SkillSpec `yaml:"skills"`
}

// SkillSpec is one authored skill
type SkillSpec struct {
	Name          string             `yaml:"name"`
	Type          string             `yaml:"type,omitempty"`
	SortOrder     int                `yaml:"sort_order,omitempty"`
	Concepts      []ConceptSpec      `yaml:"concepts,omitempty"`
	Prerequisites []PrerequisiteSpec `yaml:"prerequisites,omitempty"`
}

// ConceptSpec is one concept owned by a skill
type ConceptSpec struct {
	Key      string `yaml:"key"`
	Type     string `yaml:"type,omitempty"`
	Level    string `yaml:"level,omitempty"`
	Language string `yaml:"language,omitempty"`
	Role     string `yaml:"role,omitempty"`
	Weight   int    `yaml:"weight,omitempty"`
	// SortOrder defaults to the concept's position within its skill
	SortOrder *int `yaml:"sort_order,omitempty"`
}

// Order returns the authored sort order, or position when none was given
func (c ConceptSpec) Order(position int) int {
	if c.SortOrder != nil {
		return *c.SortOrder
	}
	return position
}

// PrerequisiteSpec names a required skill. A nil MinMastery means the default threshold.
type PrerequisiteSpec struct {
	Skill      string   `yaml:"skill"`
	MinMastery *float64 `yaml:"min_mastery,omitempty"`
}

// Threshold returns the effective minimum mastery of the edge
func (p PrerequisiteSpec) Threshold() float64 {
	if p.MinMastery == nil {
		return models.DefaultMinMastery
	}
	return mastery.Clamp01(*p.MinMastery)
}

// skill returns the skill with the given name, creating it in order of first appearance
func (c *Curriculum) skill(name string) *SkillSpec {
	for i := range c.Skills {
		if c.Skills[i].Name == name {
			return &c.Skills[i]
		}
	}
	c.Skills = append(c.Skills, SkillSpec{Name: name})
	return &c.Skills[len(c.Skills)-1]
}

// Normalize trims names and applies authoring defaults in place
func (c *Curriculum) Normalize() {
	for i := range c.Skills {
		s := &c.Skills[i]
		s.Name = strings.TrimSpace(s.Name)
		for j := range s.Concepts {
			cs := &s.Concepts[j]
			cs.Key = strings.TrimSpace(cs.Key)
			cs.Weight = mastery.WeightFloor(cs.Weight)
			if cs.Role == "" {
				cs.Role = models.RoleCore
			}
		}
		for j := range s.Prerequisites {
			s.Prerequisites[j].Skill = strings.TrimSpace(s.Prerequisites[j].Skill)
		}
	}
}

// Validate checks names, references and acyclicity. Errors wrap ErrInvalidCurriculum.
func (c *Curriculum) Validate() error {
	ids := make(map[string]int64, len(c.Skills))
	for i, s := range c.Skills {
		if s.Name == "" {
			return fmt.Errorf("%w: skill #%d has no name", ErrInvalidCurriculum, i+1)
		}
		if _, dup := ids[s.Name]; dup {
			return fmt.Errorf("%w: duplicate skill %q", ErrInvalidCurriculum, s.Name)
		}
		ids[s.Name] = int64(i + 1)
	}

	for _, s := range c.Skills {
		seen := make(map[string]bool, len(s.Concepts))
		for _, cs := range s.Concepts {
			if cs.Key == "" {
				return fmt.Errorf("%w: skill %q has a concept without key", ErrInvalidCurriculum, s.Name)
			}
			if seen[cs.Key] {
				return fmt.Errorf("%w: concept %q listed twice in skill %q", ErrInvalidCurriculum, cs.Key, s.Name)
			}
			seen[cs.Key] = true
		}
	}

	edges, err := c.edges(ids)
	if err != nil {
		return err
	}
	if err := unlock.ValidateAcyclic(edges); err != nil {
		var cycle *unlock.CycleError
		if errors.As(err, &cycle) {
			return fmt.Errorf("%w: %w: %s", ErrInvalidCurriculum, unlock.ErrCycle, c.names(cycle.SkillIDs))
		}
		return fmt.Errorf("%w: %w", ErrInvalidCurriculum, err)
	}
	return nil
}

// edges converts named prerequisites into edges over positional ids
func (c *Curriculum) edges(ids map[string]int64) ([]models.PrerequisiteEdge, error) {
	var edges []models.PrerequisiteEdge
	for _, s := range c.Skills {
		for _, p := range s.Prerequisites {
			req, ok := ids[p.Skill]
			if !ok {
				return nil, fmt.Errorf("%w: skill %q requires unknown skill %q", ErrInvalidCurriculum, s.Name, p.Skill)
			}
			edges = append(edges, models.PrerequisiteEdge{
				SkillID:             ids[s.Name],
				PrerequisiteSkillID: req,
				MinMastery:          p.Threshold(),
			})
		}
	}
	return edges, nil
}

func (c *Curriculum) names(positional []int64) string {
	names := make([]string, 0, len(positional))
	for _, id := range positional {
		if id >= 1 && int(id) <= len(c.Skills) {
			names = append(names, c.Skills[id-1].Name)
		}
	}
	return strings.Join(names, " -> ")
}

// Stats counts the content of a curriculum
func (c *Curriculum) Stats() (skills, concepts, prerequisites int) {
	keys := make(map[string]bool)
	for _, s := range c.Skills {
		for _, cs := range s.Concepts {
			keys[cs.Key] = true
		}
		prerequisites += len(s.Prerequisites)
	}
	return len(c.Skills), len(keys), prerequisites
}
