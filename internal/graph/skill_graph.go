// Package graph mirrors the skill prerequisite graph into Neo4j for exploration
// and path queries. The relational store stays the source of truth.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/example/progression/pkg/models"
)

// SkillGraphService maintains (:Skill)-[:REQUIRES]->(:Skill) in Neo4j
type SkillGraphService struct {
	client *Neo4jClient
}

// NewSkillGraphService creates a new skill graph service
func NewSkillGraphService(client *Neo4jClient) *SkillGraphService {
	return &SkillGraphService{client: client}
}

// SyncResult counts what a sync wrote
type SyncResult struct {
	Skills  int
	Edges   int
	Removed int
}

// Sync upserts every skill and replaces all REQUIRES edges with the given ones
func (s *SkillGraphService) Sync(ctx context.Context, skills []models.Skill, edges []models.PrerequisiteEdge) (*SyncResult, error) {
	res, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		out := &SyncResult{Skills: len(skills), Edges: len(edges)}

		if _, err := tx.Run(ctx, `
			UNWIND $skills AS sk
			MERGE (s:Skill {id: sk.id})
			SET s.name = sk.name, s.skill_type = sk.skill_type, s.sort_order = sk.sort_order
		`, map[string]interface{}{"skills": skillParams(skills)}); err != nil {
			return nil, err
		}

		removed, err := tx.Run(ctx, `
			MATCH (:Skill)-[r:REQUIRES]->(:Skill)
			DELETE r
			RETURN count(*) AS removed
		`, nil)
		if err != nil {
			return nil, err
		}
		if removed.Next(ctx) {
			if n, ok := removed.Record().Values[0].(int64); ok {
				out.Removed = int(n)
			}
		}

		if _, err := tx.Run(ctx, `
			UNWIND $edges AS e
			MATCH (s:Skill {id: e.skill_id})
			MATCH (p:Skill {id: e.prerequisite_skill_id})
			MERGE (s)-[r:REQUIRES]->(p)
			SET r.min_mastery = e.min_mastery
		`, map[string]interface{}{"edges": edgeParams(edges)}); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sync skill graph: %w", err)
	}
	return res.(*SyncResult), nil
}

// AllPrerequisites returns every skill reachable through REQUIRES edges, nearest first
func (s *SkillGraphService) AllPrerequisites(ctx context.Context, skillID int64) ([]int64, error) {
	res, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH path = (:Skill {id: $id})-[:REQUIRES*1..]->(p:Skill)
			WITH p, min(length(path)) AS depth
			RETURN p.id AS id
			ORDER BY depth, id
		`, map[string]interface{}{"id": skillID})
		if err != nil {
			return nil, err
		}
		return collectIDs(ctx, result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get prerequisites of skill %d: %w", skillID, err)
	}
	return res.([]int64), nil
}

// CyclicSkills returns skills that sit on a REQUIRES cycle. Empty for a valid curriculum.
func (s *SkillGraphService) CyclicSkills(ctx context.Context) ([]int64, error) {
	res, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, `
			MATCH (s:Skill)-[:REQUIRES*1..]->(s)
			RETURN DISTINCT s.id AS id
			ORDER BY id
		`, nil)
		if err != nil {
			return nil, err
		}
		return collectIDs(ctx, result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	return res.([]int64), nil
}

func collectIDs(ctx context.Context, result neo4j.ResultWithContext) ([]int64, error) {
	ids := []int64{}
	for result.Next(ctx) {
		if id, ok := result.Record().Values[0].(int64); ok {
			ids = append(ids, id)
		}
	}
	return ids, result.Err()
}

func skillParams(skills []models.Skill) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(skills))
	for _, sk := range skills {
		out = append(out, map[string]interface{}{
			"id":         sk.ID,
			"name":       sk.Name,
			"skill_type": sk.SkillType,
			"sort_order": int64(sk.SortOrder),
		})
	}
	return out
}

func edgeParams(edges []models.PrerequisiteEdge) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(edges))
	for _, e := range edges {
		out = append(out, map[string]interface{}{
			"skill_id":              e.SkillID,
			"prerequisite_skill_id": e.PrerequisiteSkillID,
			"min_mastery":           e.MinMastery,
		})
	}
	return out
}
