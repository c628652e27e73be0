package curriculum

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/progression/internal/database"
	"github.com/example/progression/internal/logger"
	"github.com/example/progression/internal/unlock"
	"github.com/example/progression/pkg/models"
)

// ImportResult holds the result of an import operation
type ImportResult struct {
	Skills        int
	Concepts      int
	Prerequisites int
}

// Read parses and validates a curriculum file; the format follows the extension
func Read(config ImportConfig) (*Curriculum, error) {
	var (
		c   *Curriculum
		err error
	)
	switch strings.ToLower(filepath.Ext(config.FilePath)) {
	case ".yaml", ".yml":
		c, err = readYAML(config)
	case ".csv":
		c, err = readCSV(config)
	case ".xlsx", ".xlsm":
		c, err = readWorkbook(config)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidCurriculum, filepath.Ext(config.FilePath))
	}
	if err != nil {
		return nil, err
	}

	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Loader writes curricula into the progression store
type Loader struct {
	log      *logger.Logger
	skills   *database.SkillRepository
	concepts *database.ConceptRepository
}

// NewLoader creates a new loader
func NewLoader(log *logger.Logger) *Loader {
	if log == nil {
		log = logger.NewNop()
	}
	return &Loader{
		log:      log.With("service", "CurriculumLoader"),
		skills:   database.NewSkillRepository(),
		concepts: database.NewConceptRepository(),
	}
}

// Import upserts all skills, concepts and edges in one transaction. The merged
// graph of stored and new edges is checked again before commit, so an import
// can never close a cycle with content loaded earlier.
func (l *Loader) Import(ctx context.Context, c *Curriculum) (*ImportResult, error) {
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	err := database.WithTx(ctx, func(tx *sqlx.Tx) error {
		skillIDs := make(map[string]int64, len(c.Skills))
		for _, s := range c.Skills {
			skill := &models.Skill{Name: s.Name, SkillType: s.Type, SortOrder: s.SortOrder}
			if err := l.skills.Upsert(ctx, tx, skill); err != nil {
				return err
			}
			skillIDs[s.Name] = skill.ID
			result.Skills++
		}

		conceptIDs := make(map[string]int64)
		for _, s := range c.Skills {
			for i, cs := range s.Concepts {
				id, ok := conceptIDs[cs.Key]
				if !ok {
					concept := &models.Concept{
						ExternalKey: cs.Key,
						ConceptType: cs.Type,
						SortOrder:   cs.Order(i),
						Level:       cs.Level,
						Language:    cs.Language,
					}
					if err := l.concepts.Upsert(ctx, tx, concept); err != nil {
						return err
					}
					id = concept.ID
					conceptIDs[cs.Key] = id
					result.Concepts++
				}
				link := models.SkillConcept{SkillID: skillIDs[s.Name], ConceptID: id, Role: cs.Role, Weight: cs.Weight}
				if err := l.skills.AddConcept(ctx, tx, link); err != nil {
					return err
				}
			}
		}

		for _, s := range c.Skills {
			for _, p := range s.Prerequisites {
				edge := models.PrerequisiteEdge{
					SkillID:             skillIDs[s.Name],
					PrerequisiteSkillID: skillIDs[p.Skill],
					MinMastery:          p.Threshold(),
				}
				if err := l.skills.AddPrerequisite(ctx, tx, edge); err != nil {
					return err
				}
				result.Prerequisites++
			}
		}

		edges, err := l.skills.AllPrerequisites(ctx, tx)
		if err != nil {
			return err
		}
		if err := unlock.ValidateAcyclic(edges); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCurriculum, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import curriculum: %w", err)
	}

	l.log.Info("curriculum imported",
		"skills", result.Skills,
		"concepts", result.Concepts,
		"prerequisites", result.Prerequisites,
	)
	return result, nil
}

// ImportFile reads, validates and imports a curriculum file
func (l *Loader) ImportFile(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	c, err := Read(config)
	if err != nil {
		return nil, err
	}
	return l.Import(ctx, c)
}
