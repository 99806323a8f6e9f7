package aggregates

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"mindcanvas-backend/domain/config"
	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

// Edge represents a derived parent→child connection between nodes.
// Edges are never authored independently: the child node's parent reference
// is the authoritative relationship and the edge set is always exactly the
// set implied by it.
type Edge struct {
	ID       string
	SourceID valueobjects.NodeID
	TargetID valueobjects.NodeID
}

// EdgeID returns the deterministic identifier for the ordered pair, which
// also guarantees at most one edge per ordered pair.
func EdgeID(source, target valueobjects.NodeID) string {
	return source.String() + "->" + target.String()
}

// Graph is the aggregate root for a conversation graph.
// It ensures consistency boundaries for the node and edge sets.
//
// Mutations follow a value-semantics contract: every mutating operation
// returns a new Graph and leaves the receiver untouched. Callers swap in the
// returned value. Node entities are themselves copy-on-write, so the new
// Graph may share node pointers with the old one safely.
type Graph struct {
	nodes     map[valueobjects.NodeID]*entities.ConversationNode
	edges     map[string]*Edge
	updatedAt time.Time
	version   int
	cfg       *config.DomainConfig
}

// NewGraph creates an empty graph with the default configuration
func NewGraph() *Graph {
	return NewGraphWithConfig(config.DefaultDomainConfig())
}

// NewGraphWithConfig creates an empty graph with a specific configuration
func NewGraphWithConfig(cfg *config.DomainConfig) *Graph {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Graph{
		nodes:     make(map[valueobjects.NodeID]*entities.ConversationNode),
		edges:     make(map[string]*Edge),
		updatedAt: time.Now(),
		version:   1,
		cfg:       cfg,
	}
}

// Reassemble rebuilds a graph from flattened node and edge lists, the
// inverse of flattening for persistence. Insertion order of the lists is
// irrelevant. When the edge list is absent or empty the edges are
// reconstructed purely from each node's parent reference; this is the
// backward-compatibility path for documents written before edges were
// persisted.
func Reassemble(nodes []*entities.ConversationNode, edges []*Edge, cfg *config.DomainConfig) (*Graph, error) {
	g := NewGraphWithConfig(cfg)

	for _, node := range nodes {
		if node == nil {
			return nil, pkgerrors.NewValidationError("node cannot be nil")
		}
		if _, exists := g.nodes[node.ID()]; exists {
			return nil, pkgerrors.NewConflictError("duplicate node id: " + node.ID().String())
		}
		g.nodes[node.ID()] = node
	}

	if len(edges) == 0 {
		for _, node := range nodes {
			parentID := node.ParentID()
			if parentID.IsZero() {
				continue
			}
			if _, exists := g.nodes[parentID]; !exists {
				// The hydration layer repairs dangling parents before this
				// point; anything left is unreconstructable and skipped.
				continue
			}
			g.putEdge(parentID, node.ID())
		}
	} else {
		for _, edge := range edges {
			if edge == nil {
				continue
			}
			g.edges[EdgeID(edge.SourceID, edge.TargetID)] = &Edge{
				ID:       EdgeID(edge.SourceID, edge.TargetID),
				SourceID: edge.SourceID,
				TargetID: edge.TargetID,
			}
		}
	}

	return g, nil
}

// WithNode returns a new graph with the node inserted. If the node carries a
// parent reference the corresponding edge is auto-created; a parent absent
// from the graph is a reference error.
func (g *Graph) WithNode(node *entities.ConversationNode) (*Graph, error) {
	if node == nil {
		return nil, pkgerrors.NewValidationError("node cannot be nil")
	}

	nodeID := node.ID()
	if _, exists := g.nodes[nodeID]; exists {
		return nil, pkgerrors.NewConflictError("node already exists in graph")
	}

	if len(g.nodes) >= g.cfg.MaxNodesPerGraph {
		return nil, pkgerrors.NewConflictError("maximum nodes reached")
	}

	if !node.IsRoot() {
		if _, exists := g.nodes[node.ParentID()]; !exists {
			return nil, pkgerrors.NewReferenceError(node.ParentID().String())
		}
		if len(g.edges) >= g.cfg.MaxEdgesPerGraph {
			return nil, pkgerrors.NewConflictError("maximum edges reached")
		}
	}

	next := g.clone()
	next.nodes[nodeID] = node
	if !node.IsRoot() {
		next.putEdge(node.ParentID(), nodeID)
	}
	next.touch()

	return next, nil
}

// WithoutSubtree returns a new graph with the node and its entire descendant
// subtree removed, plus every edge touching any removed node.
func (g *Graph) WithoutSubtree(id valueobjects.NodeID) (*Graph, error) {
	if _, exists := g.nodes[id]; !exists {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}

	doomed := g.collectSubtree(id)

	next := g.clone()
	for removedID := range doomed {
		delete(next.nodes, removedID)
	}
	for key, edge := range next.edges {
		if doomed[edge.SourceID] || doomed[edge.TargetID] {
			delete(next.edges, key)
		}
	}
	next.touch()

	return next, nil
}

// NodeUpdate describes a partial update to a node. Nil fields are left
// unchanged. Parent set to a pointer to the zero NodeID demotes the node to
// a root.
type NodeUpdate struct {
	Prompt   *string
	Response *string
	Parent   *valueobjects.NodeID
	Metadata map[string]interface{}
}

// WithUpdatedNode returns a new graph with the update merged onto the
// existing node. The node id is immutable. When the parent reference
// changes, the node's single incoming edge is rewired: the old edge is
// removed and the new one added; a new parent absent from the graph is a
// reference error.
func (g *Graph) WithUpdatedNode(id valueobjects.NodeID, update NodeUpdate) (*Graph, error) {
	node, exists := g.nodes[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}

	if update.Prompt != nil && utf8.RuneCountInString(*update.Prompt) > g.cfg.MaxPromptLength {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("prompt exceeds maximum length of %d characters", g.cfg.MaxPromptLength))
	}
	if update.Response != nil && utf8.RuneCountInString(*update.Response) > g.cfg.MaxResponseLength {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("response exceeds maximum length of %d characters", g.cfg.MaxResponseLength))
	}

	updated := node
	if update.Prompt != nil {
		updated = updated.WithPrompt(*update.Prompt)
	}
	if update.Response != nil {
		updated = updated.WithResponse(*update.Response)
	}
	if len(update.Metadata) > 0 {
		updated = updated.WithMetadata(update.Metadata)
	}

	reparented := false
	oldParent := node.ParentID()
	if update.Parent != nil && !update.Parent.Equals(oldParent) {
		newParent := *update.Parent
		if newParent.Equals(id) {
			return nil, pkgerrors.NewValidationError("node cannot be its own parent")
		}
		if !newParent.IsZero() {
			if _, ok := g.nodes[newParent]; !ok {
				return nil, pkgerrors.NewReferenceError(newParent.String())
			}
		}
		updated = updated.WithParent(newParent)
		reparented = true
	}

	// Promoting a root to a child grows the edge set by one.
	if reparented && oldParent.IsZero() && !updated.ParentID().IsZero() && len(g.edges) >= g.cfg.MaxEdgesPerGraph {
		return nil, pkgerrors.NewConflictError("maximum edges reached")
	}

	next := g.clone()
	next.nodes[id] = updated
	if reparented {
		if !oldParent.IsZero() {
			delete(next.edges, EdgeID(oldParent, id))
		}
		if !updated.ParentID().IsZero() {
			next.putEdge(updated.ParentID(), id)
		}
	}
	next.touch()

	return next, nil
}

// Node retrieves a node by ID
func (g *Graph) Node(id valueobjects.NodeID) (*entities.ConversationNode, error) {
	node, exists := g.nodes[id]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}
	return node, nil
}

// HasNode checks if a node exists in the graph without error
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, exists := g.nodes[id]
	return exists
}

// Nodes returns all nodes keyed by id
func (g *Graph) Nodes() map[valueobjects.NodeID]*entities.ConversationNode {
	// Return a copy to maintain encapsulation
	nodes := make(map[valueobjects.NodeID]*entities.ConversationNode, len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	return nodes
}

// Edges returns all edges keyed by edge id
func (g *Graph) Edges() map[string]*Edge {
	// Return a copy to maintain encapsulation
	edges := make(map[string]*Edge, len(g.edges))
	for k, v := range g.edges {
		edges[k] = v
	}
	return edges
}

// SortedNodes returns all nodes ordered by creation time, then id.
// The ordering is stable across runs and is what the persistence layer
// flattens into the wire format.
func (g *Graph) SortedNodes() []*entities.ConversationNode {
	nodes := make([]*entities.ConversationNode, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if !nodes[i].CreatedAt().Equal(nodes[j].CreatedAt()) {
			return nodes[i].CreatedAt().Before(nodes[j].CreatedAt())
		}
		return nodes[i].ID().String() < nodes[j].ID().String()
	})
	return nodes
}

// SortedEdges returns all edges ordered by edge id
func (g *Graph) SortedEdges() []*Edge {
	edges := make([]*Edge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

// Children returns the direct children of a node ordered by creation time,
// then id
func (g *Graph) Children(id valueobjects.NodeID) []*entities.ConversationNode {
	var children []*entities.ConversationNode
	for _, node := range g.nodes {
		if node.ParentID().Equals(id) && !node.ID().Equals(id) {
			children = append(children, node)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if !children[i].CreatedAt().Equal(children[j].CreatedAt()) {
			return children[i].CreatedAt().Before(children[j].CreatedAt())
		}
		return children[i].ID().String() < children[j].ID().String()
	})
	return children
}

// Roots returns all nodes without a parent, ordered by creation time, then id
func (g *Graph) Roots() []*entities.ConversationNode {
	var roots []*entities.ConversationNode
	for _, node := range g.nodes {
		if node.IsRoot() {
			roots = append(roots, node)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].CreatedAt().Equal(roots[j].CreatedAt()) {
			return roots[i].CreatedAt().Before(roots[j].CreatedAt())
		}
		return roots[i].ID().String() < roots[j].ID().String()
	})
	return roots
}

// Depth returns the number of parent hops from the node to its root.
// A root node has depth 0. The walk is guarded against reference cycles.
func (g *Graph) Depth(id valueobjects.NodeID) (int, error) {
	node, exists := g.nodes[id]
	if !exists {
		return 0, pkgerrors.NewNotFoundError("node " + id.String())
	}

	depth := 0
	seen := map[valueobjects.NodeID]bool{id: true}
	for !node.IsRoot() {
		parent, ok := g.nodes[node.ParentID()]
		if !ok || seen[node.ParentID()] {
			break
		}
		seen[node.ParentID()] = true
		node = parent
		depth++
	}
	return depth, nil
}

// SubtreeSize returns the number of nodes in the subtree rooted at the given
// node, including the node itself
func (g *Graph) SubtreeSize(id valueobjects.NodeID) (int, error) {
	if _, exists := g.nodes[id]; !exists {
		return 0, pkgerrors.NewNotFoundError("node " + id.String())
	}
	return len(g.collectSubtree(id)), nil
}

// NodeCount returns the number of nodes in the graph
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// UpdatedAt returns when the graph was last mutated
func (g *Graph) UpdatedAt() time.Time {
	return g.updatedAt
}

// Version returns the mutation counter
func (g *Graph) Version() int {
	return g.version
}

// Config returns the domain configuration the graph was built with
func (g *Graph) Config() *config.DomainConfig {
	return g.cfg
}

// IsValidTree verifies the structural invariants: every edge's endpoints
// exist, the edge set is exactly the set implied by the nodes' parent
// references, every non-root node has exactly one incoming edge, and no
// reference cycles exist. It reports rather than repairs; it is a diagnostic,
// not part of the production write path.
func (g *Graph) IsValidTree() bool {
	// Edge endpoints must exist and match a parent reference.
	incoming := make(map[valueobjects.NodeID]int)
	for _, edge := range g.edges {
		_, sourceExists := g.nodes[edge.SourceID]
		target, targetExists := g.nodes[edge.TargetID]
		if !sourceExists || !targetExists {
			return false
		}
		if !target.ParentID().Equals(edge.SourceID) {
			return false
		}
		incoming[edge.TargetID]++
	}

	// Every non-root node must have exactly the one implied incoming edge.
	for id, node := range g.nodes {
		if node.IsRoot() {
			if incoming[id] != 0 {
				return false
			}
			continue
		}
		if node.ParentID().Equals(id) {
			return false
		}
		if _, parentExists := g.nodes[node.ParentID()]; !parentExists {
			return false
		}
		if incoming[id] != 1 {
			return false
		}
		if _, exists := g.edges[EdgeID(node.ParentID(), id)]; !exists {
			return false
		}
	}

	return !g.hasCycle()
}

// hasCycle runs an iterative depth-first traversal over the parent→child
// edges with an explicit on-stack set
func (g *Graph) hasCycle() bool {
	children := g.childIndex()

	const (
		unvisited = 0
		onStack   = 1
		done      = 2
	)
	state := make(map[valueobjects.NodeID]int, len(g.nodes))

	for start := range g.nodes {
		if state[start] != unvisited {
			continue
		}

		type frame struct {
			id   valueobjects.NodeID
			next int
		}
		stack := []frame{{id: start}}
		state[start] = onStack

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			kids := children[top.id]
			if top.next < len(kids) {
				child := kids[top.next]
				top.next++
				switch state[child] {
				case onStack:
					return true
				case unvisited:
					state[child] = onStack
					stack = append(stack, frame{id: child})
				}
				continue
			}
			state[top.id] = done
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// collectSubtree returns the node and all its transitive descendants.
// The worklist is guarded by a visited set so a node reachable by multiple
// paths is never processed twice, which keeps the traversal correct even if
// the tree invariant is ever relaxed.
func (g *Graph) collectSubtree(id valueobjects.NodeID) map[valueobjects.NodeID]bool {
	children := g.childIndex()

	visited := make(map[valueobjects.NodeID]bool)
	worklist := []valueobjects.NodeID{id}
	for len(worklist) > 0 {
		current := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		worklist = append(worklist, children[current]...)
	}
	return visited
}

// childIndex builds a parent→children index from the authoritative parent
// references
func (g *Graph) childIndex() map[valueobjects.NodeID][]valueobjects.NodeID {
	children := make(map[valueobjects.NodeID][]valueobjects.NodeID, len(g.nodes))
	for id, node := range g.nodes {
		if node.IsRoot() || id.Equals(node.ParentID()) {
			continue
		}
		children[node.ParentID()] = append(children[node.ParentID()], id)
	}
	return children
}

// clone copies the graph's maps. Node entities are copy-on-write and may be
// shared between the old and new graph values.
func (g *Graph) clone() *Graph {
	nodes := make(map[valueobjects.NodeID]*entities.ConversationNode, len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	edges := make(map[string]*Edge, len(g.edges))
	for k, v := range g.edges {
		edges[k] = v
	}
	return &Graph{
		nodes:     nodes,
		edges:     edges,
		updatedAt: g.updatedAt,
		version:   g.version,
		cfg:       g.cfg,
	}
}

func (g *Graph) putEdge(source, target valueobjects.NodeID) {
	id := EdgeID(source, target)
	g.edges[id] = &Edge{ID: id, SourceID: source, TargetID: target}
}

func (g *Graph) touch() {
	g.updatedAt = time.Now()
	g.version++
}
