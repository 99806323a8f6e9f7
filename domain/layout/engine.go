// Package layout maps a conversation graph to collision-free canvas
// positions.
//
// The algorithm is a layered placement: every node gets a rank (its longest
// path from a root) and a deterministic order within that rank. Ranks are
// separated by at least RankSeparation along the layout direction, nodes
// within a rank by at least NodeSeparation across it, so no two node
// rectangles can ever overlap. The computation is pure: the same graph and
// config always produce bit-identical coordinates.
package layout

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"mindcanvas-backend/domain/core/aggregates"
	"mindcanvas-backend/domain/core/valueobjects"
)

// Algorithm names the placement strategy recorded on computed layouts
const Algorithm = "layered"

// NodeLayout is the computed rectangle for one node, in top-left-origin
// world coordinates
type NodeLayout struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the node rectangle as a geometry value
func (n NodeLayout) Rect() valueobjects.Rect {
	return valueobjects.Rect{X: n.X, Y: n.Y, Width: n.Width, Height: n.Height}
}

// Layout is the computed placement for a whole graph. ComputedAt is carried
// for cache invalidation and debugging only; it has no bearing on
// correctness.
type Layout struct {
	Algorithm  string
	ComputedAt time.Time
	Nodes      map[valueobjects.NodeID]NodeLayout
}

// Compute produces a layout for the graph. It is a pure function of the
// graph and config; incremental mutations go through a full recompute
// because the ranking step needs global context to stay optimal, and a full
// pass is O(V+E).
func Compute(g *aggregates.Graph, cfg Config) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Layout{
		Algorithm:  Algorithm,
		ComputedAt: time.Now(),
		Nodes:      make(map[valueobjects.NodeID]NodeLayout, g.NodeCount()),
	}
	if g.NodeCount() == 0 {
		return l, nil
	}

	ranks := assignRanks(g)

	// Group nodes per rank and fix the in-rank order by creation time, then
	// id. The ordering must depend only on graph content so the placement
	// stays deterministic.
	nodesByRank := make(map[int][]valueobjects.NodeID)
	maxRank := 0
	for id, rank := range ranks {
		nodesByRank[rank] = append(nodesByRank[rank], id)
		if rank > maxRank {
			maxRank = rank
		}
	}
	nodes := g.Nodes()
	for rank := range nodesByRank {
		ids := nodesByRank[rank]
		sort.Slice(ids, func(i, j int) bool {
			a, b := nodes[ids[i]], nodes[ids[j]]
			if !a.CreatedAt().Equal(b.CreatedAt()) {
				return a.CreatedAt().Before(b.CreatedAt())
			}
			return a.ID().String() < b.ID().String()
		})
	}

	// The native placement is center-based; the conversion to top-left
	// happens exactly once, below, so every downstream consumer sees a
	// single convention.
	var mainExtent, crossExtent float64
	if cfg.horizontal() {
		mainExtent, crossExtent = cfg.NodeWidth, cfg.NodeHeight
	} else {
		mainExtent, crossExtent = cfg.NodeHeight, cfg.NodeWidth
	}
	mainStep := mainExtent + cfg.RankSeparation
	crossStep := crossExtent + cfg.NodeSeparation

	for rank := 0; rank <= maxRank; rank++ {
		ids := nodesByRank[rank]
		if len(ids) == 0 {
			continue
		}

		main := float64(rank) * mainStep
		span := float64(len(ids)-1) * crossStep
		for i, id := range ids {
			cross := float64(i)*crossStep - span/2

			var centerX, centerY float64
			switch cfg.Direction {
			case DirectionLeftRight:
				centerX, centerY = main, cross
			case DirectionRightLeft:
				centerX, centerY = -main, cross
			case DirectionTopBottom:
				centerX, centerY = cross, main
			case DirectionBottomTop:
				centerX, centerY = cross, -main
			}

			l.Nodes[id] = NodeLayout{
				X:      centerX - cfg.NodeWidth/2,
				Y:      centerY - cfg.NodeHeight/2,
				Width:  cfg.NodeWidth,
				Height: cfg.NodeHeight,
			}
		}
	}

	return l, nil
}

// assignRanks computes each node's layer: the longest parent-chain distance
// from a root. The graph is mirrored into a gonum directed graph so the
// ranking can follow a stabilized topological order; the order function is
// nil, which makes gonum order ties by node id, and node ids are assigned
// from the sorted graph ids, so the whole pass is deterministic.
func assignRanks(g *aggregates.Graph) map[valueobjects.NodeID]int {
	nodes := g.Nodes()

	ids := make([]valueobjects.NodeID, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	index := make(map[valueobjects.NodeID]int64, len(ids))
	byIndex := make(map[int64]valueobjects.NodeID, len(ids))
	dg := simple.NewDirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		byIndex[int64(i)] = id
		dg.AddNode(simple.Node(int64(i)))
	}
	for _, id := range ids {
		parentID := nodes[id].ParentID()
		if parentID.IsZero() || parentID.Equals(id) {
			continue
		}
		if _, exists := nodes[parentID]; !exists {
			continue
		}
		dg.SetEdge(dg.NewEdge(simple.Node(index[parentID]), simple.Node(index[id])))
	}

	ranks := make(map[valueobjects.NodeID]int, len(ids))

	order, err := topo.SortStabilized(dg, nil)
	if err != nil {
		// A parent-reference cycle can only come from corrupted input; fall
		// back to the sorted-id order so every node still gets a rank and
		// the walk terminates.
		order = order[:0]
		for _, id := range ids {
			order = append(order, simple.Node(index[id]))
		}
	}

	for _, n := range order {
		if n == nil {
			continue
		}
		id := byIndex[n.ID()]
		rank := 0
		parents := dg.To(n.ID())
		for parents.Next() {
			parentID := byIndex[parents.Node().ID()]
			if r, ok := ranks[parentID]; ok && r+1 > rank {
				rank = r + 1
			}
		}
		ranks[id] = rank
	}

	return ranks
}
