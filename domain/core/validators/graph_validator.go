package validators

import (
	"fmt"
	"sort"

	"mindcanvas-backend/domain/core/aggregates"
)

// Violation describes one structural problem found in a graph. Violations
// are diagnostic results, not errors: the validator reports, production
// write paths rely on the aggregate's own reference checks.
type Violation struct {
	Kind    string
	NodeID  string
	EdgeID  string
	Message string
}

func (v Violation) String() string {
	switch {
	case v.EdgeID != "":
		return fmt.Sprintf("%s [edge %s]: %s", v.Kind, v.EdgeID, v.Message)
	case v.NodeID != "":
		return fmt.Sprintf("%s [node %s]: %s", v.Kind, v.NodeID, v.Message)
	default:
		return fmt.Sprintf("%s: %s", v.Kind, v.Message)
	}
}

// Violation kinds
const (
	KindDanglingEdge  = "dangling_edge"
	KindMissingEdge   = "missing_edge"
	KindStrayEdge     = "stray_edge"
	KindMissingParent = "missing_parent"
	KindCycle         = "cycle"
	KindSelfReference = "self_reference"
)

// GraphValidator inspects graphs for structural invariant violations
type GraphValidator struct{}

// NewGraphValidator creates a graph validator
func NewGraphValidator() *GraphValidator {
	return &GraphValidator{}
}

// Check returns every structural problem in the graph: edges whose endpoints
// do not exist, edges not implied by any parent reference, parent references
// without a matching edge or without an existing target, self references,
// and reference cycles. An empty result means the graph satisfies the tree
// invariants (aggregates.Graph.IsValidTree would report true).
func (v *GraphValidator) Check(g *aggregates.Graph) []Violation {
	var violations []Violation

	nodes := g.Nodes()
	edges := g.Edges()

	for id, edge := range edges {
		if _, ok := nodes[edge.SourceID]; !ok {
			violations = append(violations, Violation{
				Kind:    KindDanglingEdge,
				EdgeID:  id,
				Message: fmt.Sprintf("source node %s does not exist", edge.SourceID),
			})
			continue
		}
		target, ok := nodes[edge.TargetID]
		if !ok {
			violations = append(violations, Violation{
				Kind:    KindDanglingEdge,
				EdgeID:  id,
				Message: fmt.Sprintf("target node %s does not exist", edge.TargetID),
			})
			continue
		}
		if !target.ParentID().Equals(edge.SourceID) {
			violations = append(violations, Violation{
				Kind:    KindStrayEdge,
				EdgeID:  id,
				Message: "edge is not implied by the target's parent reference",
			})
		}
	}

	for id, node := range nodes {
		if node.IsRoot() {
			continue
		}
		if node.ParentID().Equals(id) {
			violations = append(violations, Violation{
				Kind:    KindSelfReference,
				NodeID:  id.String(),
				Message: "node is its own parent",
			})
			continue
		}
		if _, ok := nodes[node.ParentID()]; !ok {
			violations = append(violations, Violation{
				Kind:    KindMissingParent,
				NodeID:  id.String(),
				Message: fmt.Sprintf("parent %s does not exist", node.ParentID()),
			})
			continue
		}
		if _, ok := edges[aggregates.EdgeID(node.ParentID(), id)]; !ok {
			violations = append(violations, Violation{
				Kind:    KindMissingEdge,
				NodeID:  id.String(),
				Message: "parent reference has no matching edge",
			})
		}
	}

	if !g.IsValidTree() && len(violations) == 0 {
		// The remaining way to fail the tree check with a consistent edge
		// set is a reference cycle.
		violations = append(violations, Violation{
			Kind:    KindCycle,
			Message: "parent references form a cycle",
		})
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Kind != violations[j].Kind {
			return violations[i].Kind < violations[j].Kind
		}
		if violations[i].NodeID != violations[j].NodeID {
			return violations[i].NodeID < violations[j].NodeID
		}
		return violations[i].EdgeID < violations[j].EdgeID
	})
	return violations
}
