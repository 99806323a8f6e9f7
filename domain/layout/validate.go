package layout

import (
	"sort"

	"mindcanvas-backend/domain/core/aggregates"
	"mindcanvas-backend/domain/core/valueobjects"
)

// Mismatch reports a node present on one side of a graph/layout pair but
// missing from the other
type Mismatch struct {
	NodeID valueobjects.NodeID
	// Missing names the side the entry is absent from: "layout" or "graph"
	Missing string
}

// Validate cross-checks a layout against its graph: every graph node must
// have a layout entry and every layout entry must reference an existing
// graph node. Mismatches are reported, not silently dropped; an empty result
// means the pair is consistent.
func Validate(g *aggregates.Graph, l *Layout) []Mismatch {
	var mismatches []Mismatch

	nodes := g.Nodes()
	for id := range nodes {
		if _, ok := l.Nodes[id]; !ok {
			mismatches = append(mismatches, Mismatch{NodeID: id, Missing: "layout"})
		}
	}
	for id := range l.Nodes {
		if _, ok := nodes[id]; !ok {
			mismatches = append(mismatches, Mismatch{NodeID: id, Missing: "graph"})
		}
	}

	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].NodeID.String() < mismatches[j].NodeID.String()
	})
	return mismatches
}

// OverlapPair identifies two node rectangles that intersect
type OverlapPair struct {
	A valueobjects.NodeID
	B valueobjects.NodeID
}

// CheckOverlaps runs an exhaustive pairwise intersection check across all
// node rectangles. Any layout produced by Compute must yield an empty
// result; this is the engine's core correctness property.
func CheckOverlaps(l *Layout) []OverlapPair {
	ids := make([]valueobjects.NodeID, 0, len(l.Nodes))
	for id := range l.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var overlaps []OverlapPair
	for i := 0; i < len(ids); i++ {
		a := l.Nodes[ids[i]].Rect()
		for j := i + 1; j < len(ids); j++ {
			if a.Intersects(l.Nodes[ids[j]].Rect()) {
				overlaps = append(overlaps, OverlapPair{A: ids[i], B: ids[j]})
			}
		}
	}
	return overlaps
}

// Bounds returns the minimal rectangle covering all node rectangles, used to
// fit the camera on load. An empty layout yields the zero rectangle.
func Bounds(l *Layout) valueobjects.Rect {
	var bounds valueobjects.Rect
	first := true
	for _, n := range l.Nodes {
		if first {
			bounds = n.Rect()
			first = false
			continue
		}
		bounds = bounds.Union(n.Rect())
	}
	return bounds
}
