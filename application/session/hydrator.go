package session

import (
	"sort"

	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
)

// orderForHydration arranges incoming nodes so that every parent precedes
// its children (a breadth-first Kahn pass), because the graph's add
// operation requires the parent to already be present.
//
// Malformed input is repaired rather than rejected: a node whose parent id
// never appears in the batch is demoted to a root (parent reference
// cleared), and a parent-reference cycle is broken by demoting its smallest
// member, after which the rest of the cycle orders normally. Hydration
// therefore never fails outright on a bad record.
//
// The returned demoted list holds the ids whose parent reference was
// cleared. Ordering is deterministic: ties break on creation time, then id.
func orderForHydration(nodes []*entities.ConversationNode) ([]*entities.ConversationNode, []valueobjects.NodeID) {
	byID := make(map[valueobjects.NodeID]*entities.ConversationNode, len(nodes))
	for _, node := range nodes {
		if node == nil {
			continue
		}
		byID[node.ID()] = node
	}

	children := make(map[valueobjects.NodeID][]valueobjects.NodeID, len(byID))
	var frontier []valueobjects.NodeID
	var demoted []valueobjects.NodeID

	for id, node := range byID {
		parentID := node.ParentID()
		switch {
		case node.IsRoot():
			frontier = append(frontier, id)
		case parentID.Equals(id):
			// Self-parent: unreachable through the child index, demote.
			demoted = append(demoted, id)
			frontier = append(frontier, id)
		default:
			if _, exists := byID[parentID]; !exists {
				// Dangling parent reference: demote to root.
				demoted = append(demoted, id)
				frontier = append(frontier, id)
			} else {
				children[parentID] = append(children[parentID], id)
			}
		}
	}

	ordered := make([]*entities.ConversationNode, 0, len(byID))
	placed := make(map[valueobjects.NodeID]bool, len(byID))

	walk := func(frontier []valueobjects.NodeID) {
		for len(frontier) > 0 {
			id := frontier[0]
			frontier = frontier[1:]
			if placed[id] {
				continue
			}
			placed[id] = true
			ordered = append(ordered, byID[id])

			kids := children[id]
			sortIDs(kids, byID)
			frontier = append(frontier, kids...)
		}
	}

	sortIDs(frontier, byID)
	walk(frontier)

	// Anything left is part of a parent-reference cycle. Demote the
	// smallest remaining member to break the cycle and resume the walk from
	// it; its former descendants keep their parents.
	for len(placed) < len(byID) {
		var unplaced []valueobjects.NodeID
		for id := range byID {
			if !placed[id] {
				unplaced = append(unplaced, id)
			}
		}
		sortIDs(unplaced, byID)
		seed := unplaced[0]
		demoted = append(demoted, seed)
		walk([]valueobjects.NodeID{seed})
	}

	// Clear the parent reference on every demoted node so the graph's add
	// operation treats them as roots.
	if len(demoted) > 0 {
		demotedSet := make(map[valueobjects.NodeID]bool, len(demoted))
		for _, id := range demoted {
			demotedSet[id] = true
		}
		for i, node := range ordered {
			if demotedSet[node.ID()] {
				ordered[i] = node.WithParent(valueobjects.NodeID{})
			}
		}
	}

	sort.Slice(demoted, func(i, j int) bool { return demoted[i].String() < demoted[j].String() })
	return ordered, demoted
}

// sortIDs orders ids by the nodes' creation time, then id
func sortIDs(ids []valueobjects.NodeID, byID map[valueobjects.NodeID]*entities.ConversationNode) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().Before(b.CreatedAt())
		}
		return a.ID().String() < b.ID().String()
	})
}
