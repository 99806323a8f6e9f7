// Package viewport decides which nodes and edges fall inside the camera's
// view. It never mutates the graph or the layout; every function here is a
// pure read over the latest snapshot.
package viewport

import (
	"sort"

	"mindcanvas-backend/domain/core/aggregates"
	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
	"mindcanvas-backend/domain/layout"
)

// DefaultPadding is the world-space margin added around the literal visible
// rectangle before culling. It is deliberately generous, a bit over one node
// width, so nodes just outside the screen are already rendered and never pop
// in while panning.
const DefaultPadding = 400.0

// Camera is the renderer's transform: screen = world*Zoom + Pan
type Camera struct {
	PanX float64
	PanY float64
	Zoom float64
}

// ComputeBounds inverts the camera transform over a container of the given
// pixel size and returns the padded world-space rectangle to cull against
func ComputeBounds(width, height float64, cam Camera) valueobjects.Rect {
	return ComputeBoundsPadded(width, height, cam, DefaultPadding)
}

// ComputeBoundsPadded is ComputeBounds with an explicit padding margin
func ComputeBoundsPadded(width, height float64, cam Camera, padding float64) valueobjects.Rect {
	zoom := cam.Zoom
	if zoom <= 0 {
		zoom = 1
	}

	visible := valueobjects.Rect{
		X:      -cam.PanX / zoom,
		Y:      -cam.PanY / zoom,
		Width:  width / zoom,
		Height: height / zoom,
	}
	return visible.Expand(padding)
}

// IsNodeVisible tests a node rectangle against the padded viewport rectangle
func IsNodeVisible(n layout.NodeLayout, bounds valueobjects.Rect) bool {
	return n.Rect().Intersects(bounds)
}

// VisibleSet is the subset of the graph that should be rendered
type VisibleSet struct {
	Nodes []*entities.ConversationNode
	Edges []*aggregates.Edge
}

// FilterToViewport returns the nodes whose rectangle intersects the bounds
// and the edges both of whose endpoints are visible. An edge with one
// visible and one culled endpoint is dropped entirely; that is an accepted
// visual simplification, not a defect. The pass always walks the full
// node and edge sets, which stay in the low thousands.
func FilterToViewport(g *aggregates.Graph, l *layout.Layout, bounds valueobjects.Rect) *VisibleSet {
	visible := make(map[valueobjects.NodeID]bool, len(l.Nodes))

	set := &VisibleSet{}
	for _, node := range g.SortedNodes() {
		nl, ok := l.Nodes[node.ID()]
		if !ok {
			continue
		}
		if IsNodeVisible(nl, bounds) {
			visible[node.ID()] = true
			set.Nodes = append(set.Nodes, node)
		}
	}

	for _, edge := range g.SortedEdges() {
		if visible[edge.SourceID] && visible[edge.TargetID] {
			set.Edges = append(set.Edges, edge)
		}
	}

	return set
}

// RankByDistance orders all laid-out nodes by the distance of their center
// from the viewport center, nearest first, with ties broken by id. Useful
// for prioritized rendering and future level-of-detail decisions.
func RankByDistance(l *layout.Layout, bounds valueobjects.Rect) []valueobjects.NodeID {
	center := bounds.Center()

	ids := make([]valueobjects.NodeID, 0, len(l.Nodes))
	for id := range l.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di := l.Nodes[ids[i]].Rect().Center().DistanceTo(center)
		dj := l.Nodes[ids[j]].Rect().Center().DistanceTo(center)
		if di != dj {
			return di < dj
		}
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// VisibilityStats summarizes a culling pass for diagnostics
type VisibilityStats struct {
	TotalNodes   int
	VisibleNodes int
	Ratio        float64
}

// Stats computes the visibility ratio of a layout against the bounds
func Stats(l *layout.Layout, bounds valueobjects.Rect) VisibilityStats {
	stats := VisibilityStats{TotalNodes: len(l.Nodes)}
	for _, n := range l.Nodes {
		if IsNodeVisible(n, bounds) {
			stats.VisibleNodes++
		}
	}
	if stats.TotalNodes > 0 {
		stats.Ratio = float64(stats.VisibleNodes) / float64(stats.TotalNodes)
	}
	return stats
}
