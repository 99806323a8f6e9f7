package persistence

import (
	"time"

	"mindcanvas-backend/domain/config"
	"mindcanvas-backend/domain/core/aggregates"
	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

// SerializeGraph flattens the graph's node and edge maps into the ordered
// lists of the wire format
func SerializeGraph(g *aggregates.Graph) GraphData {
	data := GraphData{
		Nodes: make([]NodeRecord, 0, g.NodeCount()),
		Edges: make([]EdgeRecord, 0, g.EdgeCount()),
	}

	for _, node := range g.SortedNodes() {
		rec := NodeRecord{
			ID:        node.ID().String(),
			Content:   node.Prompt(),
			Response:  node.Response(),
			CreatedAt: node.CreatedAt(),
		}
		if !node.IsRoot() {
			parent := node.ParentID().String()
			rec.ParentID = &parent
		}
		if meta := node.Metadata(); len(meta) > 0 {
			rec.Metadata = meta
		}
		data.Nodes = append(data.Nodes, rec)
	}

	for _, edge := range g.SortedEdges() {
		data.Edges = append(data.Edges, EdgeRecord{
			ID:     edge.ID,
			Source: edge.SourceID.String(),
			Target: edge.TargetID.String(),
		})
	}

	return data
}

// DecodeNodes validates, normalizes and converts wire node records into
// domain entities. Record order is preserved.
func DecodeNodes(records []NodeRecord, cfg *config.DomainConfig) ([]*entities.ConversationNode, error) {
	v := NewRecordValidator(cfg)

	nodes := make([]*entities.ConversationNode, 0, len(records))
	for i := range records {
		rec := records[i]
		if err := v.ValidateNodeRecord(&rec); err != nil {
			return nil, err
		}

		id, err := valueobjects.NewNodeIDFromString(rec.ID)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid node id").WithCause(err)
		}

		var parentID valueobjects.NodeID
		if rec.ParentID != nil {
			parentID, err = valueobjects.NewNodeIDFromString(*rec.ParentID)
			if err != nil {
				return nil, pkgerrors.NewValidationError("invalid parent id").WithCause(err)
			}
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		node, err := entities.ReconstructNode(id, parentID, rec.Content, rec.Response, rec.Metadata, createdAt)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

// DeserializeGraph rebuilds a graph from flattened wire data. When the edge
// list is absent or empty the edges are reconstructed purely from each
// node's parent reference, which is the backward-compatibility path for
// documents persisted before edges were stored.
func DeserializeGraph(data GraphData, cfg *config.DomainConfig) (*aggregates.Graph, error) {
	nodes, err := DecodeNodes(data.Nodes, cfg)
	if err != nil {
		return nil, err
	}

	var edges []*aggregates.Edge
	for _, rec := range data.Edges {
		source, err := valueobjects.NewNodeIDFromString(rec.Source)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid edge source").WithCause(err)
		}
		target, err := valueobjects.NewNodeIDFromString(rec.Target)
		if err != nil {
			return nil, pkgerrors.NewValidationError("invalid edge target").WithCause(err)
		}
		edges = append(edges, &aggregates.Edge{
			ID:       aggregates.EdgeID(source, target),
			SourceID: source,
			TargetID: target,
		})
	}

	return aggregates.Reassemble(nodes, edges, cfg)
}

// SerializeMindmap builds the full save document for a graph, including the
// denormalized summary metadata
func SerializeMindmap(id, name string, g *aggregates.Graph) *MindmapDocument {
	return &MindmapDocument{
		ID:        id,
		Name:      name,
		GraphData: SerializeGraph(g),
		Metadata:  ComputeMetadata(g),
		Revision:  ComputeRevision(g),
		UpdatedAt: time.Now(),
	}
}

// ProcessLoadResponse turns a loaded document back into a graph. The
// document's metadata block is ignored (it is derived data) and no layout is
// ever restored from storage.
func ProcessLoadResponse(doc *MindmapDocument, cfg *config.DomainConfig) (*aggregates.Graph, error) {
	v := NewRecordValidator(cfg)
	if err := v.ValidateDocument(doc); err != nil {
		return nil, err
	}
	return DeserializeGraph(doc.GraphData, cfg)
}

// ComputeMetadata derives the summary counts stored alongside a document.
// Depth is computed iteratively with per-node memoization, so the walk stays
// correct and stack-safe on arbitrarily deep trees.
func ComputeMetadata(g *aggregates.Graph) MindmapMetadata {
	nodes := g.Nodes()

	meta := MindmapMetadata{NodeCount: len(nodes)}

	depths := make(map[valueobjects.NodeID]int, len(nodes))
	for id, node := range nodes {
		if node.IsRoot() {
			meta.RootNodeCount++
		}

		if _, done := depths[id]; done {
			continue
		}

		// Walk up the parent chain until a memoized ancestor, a root, or a
		// break in the chain, then unwind.
		chain := []valueobjects.NodeID{}
		current := id
		base := 0
		onChain := make(map[valueobjects.NodeID]bool)
		for {
			if d, done := depths[current]; done {
				base = d
				break
			}
			node, ok := nodes[current]
			if !ok {
				base = -1 // dangling parent: treat the child as a root
				break
			}
			chain = append(chain, current)
			onChain[current] = true
			if node.IsRoot() {
				base = -1
				break
			}
			next := node.ParentID()
			if onChain[next] {
				base = -1 // cycle guard
				break
			}
			current = next
		}
		for i := len(chain) - 1; i >= 0; i-- {
			base++
			depths[chain[i]] = base
		}
	}

	for _, d := range depths {
		if d > meta.MaxDepth {
			meta.MaxDepth = d
		}
	}

	return meta
}
