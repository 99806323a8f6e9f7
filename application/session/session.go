// Package session owns a live graph/layout pair and applies mutations to it.
//
// The session replaces what used to be an ambient global store: it is an
// explicit object constructed and owned by the caller, so multiple
// independent sessions can coexist and tests need no global state.
//
// Every mutation applies the graph change and synchronously recomputes the
// layout before returning, so no reader ever observes a graph paired with a
// stale layout. The core is single-threaded; a concurrent host must serialize
// access to a session itself.
package session

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mindcanvas-backend/domain/config"
	"mindcanvas-backend/domain/core/aggregates"
	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
	"mindcanvas-backend/domain/layout"
	"mindcanvas-backend/domain/viewport"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

// State is the session lifecycle state
type State string

const (
	StateUninitialized State = "uninitialized"
	StateHydrating     State = "hydrating"
	StateReady         State = "ready"
	StateMutating      State = "mutating"
)

// Session orchestrates a live graph and its derived layout
type Session struct {
	id        string
	state     State
	graph     *aggregates.Graph
	layout    *layout.Layout
	layoutCfg layout.Config
	domainCfg *config.DomainConfig
	selection valueobjects.NodeID
	gate      *viewport.CullGate
	logger    *zap.Logger
}

// New creates an uninitialized session. Call Hydrate (with or without nodes)
// to reach the ready state.
func New(domainCfg *config.DomainConfig, layoutCfg layout.Config, logger *zap.Logger) (*Session, error) {
	if domainCfg == nil {
		domainCfg = config.DefaultDomainConfig()
	}
	if err := domainCfg.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError("invalid domain config").WithCause(err)
	}
	if err := layoutCfg.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError("invalid layout config").WithCause(err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New().String()
	return &Session{
		id:        id,
		state:     StateUninitialized,
		layoutCfg: layoutCfg,
		domainCfg: domainCfg,
		gate:      viewport.NewCullGate(domainCfg.CullDebounce),
		logger:    logger.With(zap.String("sessionId", id)),
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return s.state
}

// Graph returns the current graph; nil before hydration
func (s *Session) Graph() *aggregates.Graph {
	return s.graph
}

// Layout returns the current layout; nil before hydration. The layout is
// always consistent with the graph returned by Graph.
func (s *Session) Layout() *layout.Layout {
	return s.layout
}

// Bounds returns the minimal rectangle covering the current layout, used to
// fit the camera on load
func (s *Session) Bounds() valueobjects.Rect {
	if s.layout == nil {
		return valueobjects.Rect{}
	}
	return layout.Bounds(s.layout)
}

// Snapshot is a consistent read of the session's renderable state
type Snapshot struct {
	Graph  *aggregates.Graph
	Layout *layout.Layout
	Bounds valueobjects.Rect
}

// Snapshot returns the current graph, layout and layout bounds together, so a
// renderer never pairs a graph with another mutation's layout
func (s *Session) Snapshot() (Snapshot, error) {
	if err := s.requireReady(); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Graph:  s.graph,
		Layout: s.layout,
		Bounds: s.Bounds(),
	}, nil
}

// Hydrate brings the session from uninitialized to ready, seeding the graph
// with the given nodes. The nodes are fed through the graph's add operation
// parents-first (a Kahn pass orders them); a node whose parent never appears
// is demoted to a root rather than dropped, so hydration does not fail on a
// single bad record. Pass nil to start with an empty graph.
func (s *Session) Hydrate(nodes []*entities.ConversationNode) error {
	if s.state != StateUninitialized {
		return pkgerrors.NewStateError("hydrate requires an uninitialized session")
	}
	s.state = StateHydrating

	ordered, demoted := orderForHydration(nodes)
	for _, id := range demoted {
		s.logger.Warn("demoted node to root during hydration",
			zap.String("nodeId", id.String()),
		)
	}

	g := aggregates.NewGraphWithConfig(s.domainCfg)
	for _, node := range ordered {
		next, err := g.WithNode(node)
		if err != nil {
			s.state = StateUninitialized
			return pkgerrors.Wrap(err, "hydration failed")
		}
		g = next
	}

	l, err := layout.Compute(g, s.layoutCfg)
	if err != nil {
		s.state = StateUninitialized
		return pkgerrors.Wrap(err, "layout failed during hydration")
	}

	s.graph = g
	s.layout = l
	s.state = StateReady
	s.logger.Info("session hydrated",
		zap.Int("nodeCount", g.NodeCount()),
		zap.Int("edgeCount", g.EdgeCount()),
		zap.Int("demoted", len(demoted)),
	)
	return nil
}

// AddNode creates a new conversation node and inserts it. A zero parent id
// creates a root. Returns the new node's id.
func (s *Session) AddNode(prompt string, parentID valueobjects.NodeID) (valueobjects.NodeID, error) {
	node, err := entities.NewConversationNodeWithConfig(prompt, parentID, s.domainCfg)
	if err != nil {
		return valueobjects.NodeID{}, err
	}

	if err := s.mutate(func(g *aggregates.Graph) (*aggregates.Graph, error) {
		return g.WithNode(node)
	}); err != nil {
		return valueobjects.NodeID{}, err
	}

	s.logger.Info("node added",
		zap.String("nodeId", node.ID().String()),
		zap.Bool("root", node.IsRoot()),
	)
	return node.ID(), nil
}

// AttachResponse records the generated response on a node. This is the entry
// point the external response generator's completion callback feeds into.
func (s *Session) AttachResponse(id valueobjects.NodeID, response string) error {
	return s.UpdateNode(id, aggregates.NodeUpdate{Response: &response})
}

// UpdateNode merges a partial update onto a node, rewiring its incoming edge
// when the parent reference changes
func (s *Session) UpdateNode(id valueobjects.NodeID, update aggregates.NodeUpdate) error {
	if err := s.mutate(func(g *aggregates.Graph) (*aggregates.Graph, error) {
		return g.WithUpdatedNode(id, update)
	}); err != nil {
		return err
	}
	s.logger.Info("node updated", zap.String("nodeId", id.String()))
	return nil
}

// RemoveNode removes the node and its entire descendant subtree. The
// selection is cleared if it pointed into the removed subtree.
func (s *Session) RemoveNode(id valueobjects.NodeID) error {
	if err := s.mutate(func(g *aggregates.Graph) (*aggregates.Graph, error) {
		return g.WithoutSubtree(id)
	}); err != nil {
		return err
	}
	if !s.selection.IsZero() && !s.graph.HasNode(s.selection) {
		s.selection = valueobjects.NodeID{}
	}
	s.logger.Info("subtree removed", zap.String("nodeId", id.String()))
	return nil
}

// Select marks a node as the UI selection
func (s *Session) Select(id valueobjects.NodeID) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	if !s.graph.HasNode(id) {
		return pkgerrors.NewNotFoundError("node " + id.String())
	}
	s.selection = id
	return nil
}

// ClearSelection drops the UI selection
func (s *Session) ClearSelection() {
	s.selection = valueobjects.NodeID{}
}

// Selection returns the selected node id, if any
func (s *Session) Selection() (valueobjects.NodeID, bool) {
	return s.selection, !s.selection.IsZero()
}

// Cull computes the visible subset for the given camera, honoring the
// debounce gate: bursts of camera events coalesce and only a bounded number
// of passes run. Returns false when the event was coalesced.
func (s *Session) Cull(width, height float64, cam viewport.Camera) (*viewport.VisibleSet, bool) {
	if s.state != StateReady || !s.gate.Allow() {
		return nil, false
	}
	return s.cull(width, height, cam), true
}

// CullNow computes the visible subset immediately, bypassing the gate
func (s *Session) CullNow(width, height float64, cam viewport.Camera) (*viewport.VisibleSet, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.cull(width, height, cam), nil
}

// Reset destroys the session's graph and returns to uninitialized
func (s *Session) Reset() {
	s.graph = nil
	s.layout = nil
	s.selection = valueobjects.NodeID{}
	s.gate.Reset()
	s.state = StateUninitialized
	s.logger.Info("session reset")
}

func (s *Session) cull(width, height float64, cam viewport.Camera) *viewport.VisibleSet {
	bounds := viewport.ComputeBounds(width, height, cam)
	return viewport.FilterToViewport(s.graph, s.layout, bounds)
}

// mutate runs one graph mutation and recomputes the layout before the
// action completes. On any error the previous graph/layout pair stays in
// place untouched.
func (s *Session) mutate(op func(*aggregates.Graph) (*aggregates.Graph, error)) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	s.state = StateMutating
	defer func() { s.state = StateReady }()

	next, err := op(s.graph)
	if err != nil {
		return err
	}

	l, err := layout.Compute(next, s.layoutCfg)
	if err != nil {
		return pkgerrors.Wrap(err, "layout recompute failed")
	}

	s.graph = next
	s.layout = l
	return nil
}

func (s *Session) requireReady() error {
	if s.state != StateReady {
		return pkgerrors.NewStateError("session is not ready (state: " + string(s.state) + ")")
	}
	return nil
}
