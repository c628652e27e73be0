package curriculum

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ImportConfig defines where each part of the curriculum lives in a workbook
type ImportConfig struct {
	FilePath           string // Path to the .xlsx, .csv or .yaml file
	SkillsSheet        string // Name, Type, SortOrder
	ConceptsSheet      string // Skill, Key, Type, Level, Language, Role, Weight, SortOrder
	PrerequisitesSheet string // Skill, Requires, MinMastery
	StartRow           int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SkillsSheet:        "Skills",
		ConceptsSheet:      "Concepts",
		PrerequisitesSheet: "Prerequisites",
		StartRow:           2, // By default, start from the second row (skip header)
	}
}

var (
	skillsHeader        = []interface{}{"Name", "Type", "SortOrder"}
	conceptsHeader      = []interface{}{"Skill", "Key", "Type", "Level", "Language", "Role", "Weight", "SortOrder"}
	prerequisitesHeader = []interface{}{"Skill", "Requires", "MinMastery"}
)

// readWorkbook parses the three curriculum sheets. The Skills and Prerequisites
// sheets are optional; skills referenced only from Concepts are created on the fly.
func readWorkbook(config ImportConfig) (*Curriculum, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		sheets[name] = true
	}
	if !sheets[config.ConceptsSheet] {
		return nil, fmt.Errorf("%w: sheet %q not found", ErrInvalidCurriculum, config.ConceptsSheet)
	}

	c := &Curriculum{}
	if sheets[config.SkillsSheet] {
		rows, err := f.GetRows(config.SkillsSheet)
		if err != nil {
			return nil, fmt.Errorf("failed to get rows: %w", err)
		}
		for i, row := range dataRows(rows, config.StartRow) {
			if blank(row) {
				continue
			}
			if err := skillRow(c, row); err != nil {
				return nil, rowError(config.SkillsSheet, i+config.StartRow, err)
			}
		}
	}

	rows, err := f.GetRows(config.ConceptsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	for i, row := range dataRows(rows, config.StartRow) {
		if blank(row) {
			continue
		}
		if err := conceptRow(c, row); err != nil {
			return nil, rowError(config.ConceptsSheet, i+config.StartRow, err)
		}
	}

	if sheets[config.PrerequisitesSheet] {
		rows, err := f.GetRows(config.PrerequisitesSheet)
		if err != nil {
			return nil, fmt.Errorf("failed to get rows: %w", err)
		}
		for i, row := range dataRows(rows, config.StartRow) {
			if blank(row) {
				continue
			}
			if err := prerequisiteRow(c, row); err != nil {
				return nil, rowError(config.PrerequisitesSheet, i+config.StartRow, err)
			}
		}
	}
	return c, nil
}

// readCSV parses a concepts-only CSV with the Concepts sheet columns
func readCSV(config ImportConfig) (*Curriculum, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	c := &Curriculum{}
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++
		if rowNum < config.StartRow || blank(row) {
			continue
		}
		if err := conceptRow(c, row); err != nil {
			return nil, rowError("csv", rowNum, err)
		}
	}
	return c, nil
}

func skillRow(c *Curriculum, row []string) error {
	name := cell(row, 0)
	if name == "" {
		return fmt.Errorf("missing skill name")
	}
	order, err := intCell(row, 2)
	if err != nil {
		return err
	}
	s := c.skill(name)
	s.Type = cell(row, 1)
	s.SortOrder = order
	return nil
}

func conceptRow(c *Curriculum, row []string) error {
	skillName := cell(row, 0)
	key := cell(row, 1)
	if skillName == "" || key == "" {
		return fmt.Errorf("skill and key are required")
	}
	weight, err := intCell(row, 6)
	if err != nil {
		return err
	}
	concept := ConceptSpec{
		Key:      key,
		Type:     cell(row, 2),
		Level:    cell(row, 3),
		Language: cell(row, 4),
		Role:     strings.ToLower(cell(row, 5)),
		Weight:   weight,
	}
	if cell(row, 7) != "" {
		order, err := intCell(row, 7)
		if err != nil {
			return err
		}
		concept.SortOrder = &order
	}
	s := c.skill(skillName)
	s.Concepts = append(s.Concepts, concept)
	return nil
}

func prerequisiteRow(c *Curriculum, row []string) error {
	skillName := cell(row, 0)
	requires := cell(row, 1)
	if skillName == "" || requires == "" {
		return fmt.Errorf("skill and required skill are required")
	}
	p := PrerequisiteSpec{Skill: requires}
	if v := cell(row, 2); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid min mastery %q", v)
		}
		p.MinMastery = &m
	}
	s := c.skill(skillName)
	s.Prerequisites = append(s.Prerequisites, p)
	return nil
}

// WriteWorkbook saves a curriculum in the layout readWorkbook expects
func WriteWorkbook(c *Curriculum, path string) error {
	config := DefaultImportConfig()
	f := excelize.NewFile()
	defer f.Close()

	for _, name := range []string{config.SkillsSheet, config.ConceptsSheet, config.PrerequisitesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	skills := [][]interface{}{skillsHeader}
	concepts := [][]interface{}{conceptsHeader}
	prerequisites := [][]interface{}{prerequisitesHeader}
	for _, s := range c.Skills {
		skills = append(skills, []interface{}{s.Name, s.Type, s.SortOrder})
		for _, cs := range s.Concepts {
			var order interface{} = ""
			if cs.SortOrder != nil {
				order = *cs.SortOrder
			}
			concepts = append(concepts, []interface{}{s.Name, cs.Key, cs.Type, cs.Level, cs.Language, cs.Role, cs.Weight, order})
		}
		for _, p := range s.Prerequisites {
			prerequisites = append(prerequisites, []interface{}{s.Name, p.Skill, p.Threshold()})
		}
	}

	for sheet, rows := range map[string][][]interface{}{
		config.SkillsSheet:        skills,
		config.ConceptsSheet:      concepts,
		config.PrerequisitesSheet: prerequisites,
	} {
		for i, row := range rows {
			row := row
			if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func dataRows(rows [][]string, startRow int) [][]string {
	if startRow < 1 {
		startRow = 1
	}
	if len(rows) < startRow {
		return nil
	}
	return rows[startRow-1:]
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func intCell(row []string, idx int) (int, error) {
	v := cell(row, idx)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q in column %d", v, idx+1)
	}
	return n, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func rowError(sheet string, rowNum int, err error) error {
	return fmt.Errorf("%w: %s row %d: %v", ErrInvalidCurriculum, sheet, rowNum, err)
}
