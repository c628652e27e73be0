package unlock

import (
	"errors"
	"fmt"
	"sort"

	"github.com/example/progression/pkg/models"
)

// ErrCycle is returned when the prerequisite edges do not form a DAG
var ErrCycle = errors.New("prerequisite graph contains a cycle")

// CycleError lists the skills that could not be ordered
type CycleError struct {
	SkillIDs []int64
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: skills %v", ErrCycle, e.SkillIDs)
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Graph is the skill prerequisite graph. It is built at authoring time and when
// the answer flow needs the direct dependents of a skill.
type Graph struct {
	nodes      map[int64]struct{}
	prereqs    map[int64][]Prerequisite
	dependents map[int64][]int64
}

// NewGraph indexes edges in both directions. Skills listed in skillIDs are
// included even when they have no edges.
func NewGraph(edges []models.PrerequisiteEdge, skillIDs ...int64) *Graph {
	g := &Graph{
		nodes:      make(map[int64]struct{}),
		prereqs:    make(map[int64][]Prerequisite),
		dependents: make(map[int64][]int64),
	}
	for _, id := range skillIDs {
		g.nodes[id] = struct{}{}
	}
	for _, e := range edges {
		g.nodes[e.SkillID] = struct{}{}
		g.nodes[e.PrerequisiteSkillID] = struct{}{}
		g.prereqs[e.SkillID] = append(g.prereqs[e.SkillID], Prerequisite{
			SkillID:    e.PrerequisiteSkillID,
			MinMastery: e.MinMastery,
		})
		g.dependents[e.PrerequisiteSkillID] = append(g.dependents[e.PrerequisiteSkillID], e.SkillID)
	}
	for id := range g.dependents {
		sort.Slice(g.dependents[id], func(i, j int) bool { return g.dependents[id][i] < g.dependents[id][j] })
	}
	return g
}

// Prerequisites returns the outgoing edges of a skill
func (g *Graph) Prerequisites(skillID int64) []Prerequisite {
	return g.prereqs[skillID]
}

// Dependents returns the skills that list skillID as a direct prerequisite
func (g *Graph) Dependents(skillID int64) []int64 {
	return g.dependents[skillID]
}

// TopologicalOrder returns all skills with every prerequisite ahead of its dependents.
// Ties are broken by id so the order is stable.
func (g *Graph) TopologicalOrder() ([]int64, error) {
	indegree := make(map[int64]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.prereqs[id])
	}

	var ready []int64
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]int64, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, dep := range g.dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) < len(g.nodes) {
		var stuck []int64
		for id, d := range indegree {
			if d > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
		return nil, &CycleError{SkillIDs: stuck}
	}
	return order, nil
}

// ValidateAcyclic is a shorthand for authoring checks
func ValidateAcyclic(edges []models.PrerequisiteEdge) error {
	_, err := NewGraph(edges).TopologicalOrder()
	return err
}
