package aggregates

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcanvas-backend/domain/config"
	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func nodeID(t *testing.T, id string) valueobjects.NodeID {
	t.Helper()
	nid, err := valueobjects.NewNodeIDFromString(id)
	require.NoError(t, err)
	return nid
}

// testNode builds a node with a deterministic creation time derived from seq
func testNode(t *testing.T, id, parent string, seq int) *entities.ConversationNode {
	t.Helper()
	var pid valueobjects.NodeID
	if parent != "" {
		pid = nodeID(t, parent)
	}
	node, err := entities.ReconstructNode(
		nodeID(t, id), pid, "prompt "+id, "response "+id, nil,
		testEpoch.Add(time.Duration(seq)*time.Second),
	)
	require.NoError(t, err)
	return node
}

// buildGraph inserts parent/child pairs in order; parent "" means root
func buildGraph(t *testing.T, pairs [][2]string) *Graph {
	t.Helper()
	g := NewGraph()
	for i, pair := range pairs {
		next, err := g.WithNode(testNode(t, pair[0], pair[1], i))
		require.NoError(t, err)
		g = next
	}
	return g
}

func TestNewGraph(t *testing.T) {
	g := NewGraph()

	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 1, g.Version())
	assert.True(t, g.IsValidTree())
}

func TestWithNode(t *testing.T) {
	tests := []struct {
		name    string
		seed    [][2]string
		id      string
		parent  string
		wantErr func(error) bool
	}{
		{
			name: "root node",
			id:   "r",
		},
		{
			name:   "child of existing parent",
			seed:   [][2]string{{"r", ""}},
			id:     "c1",
			parent: "r",
		},
		{
			name:    "dangling parent is a reference error",
			seed:    [][2]string{{"r", ""}},
			id:      "c1",
			parent:  "ghost",
			wantErr: func(err error) bool { return pkgerrors.IsReference(err) },
		},
		{
			name:    "duplicate id is a conflict",
			seed:    [][2]string{{"r", ""}},
			id:      "r",
			wantErr: func(err error) bool { return pkgerrors.IsConflict(err) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.seed)
			before := g.NodeCount()

			next, err := g.WithNode(testNode(t, tt.id, tt.parent, 99))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error type: %v", err)
				assert.Nil(t, next)
				// Input graph untouched
				assert.Equal(t, before, g.NodeCount())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, before+1, next.NodeCount())
			assert.Equal(t, before, g.NodeCount(), "input graph must not be mutated")
			assert.True(t, next.IsValidTree())

			if tt.parent != "" {
				_, ok := next.Edges()[tt.parent+"->"+tt.id]
				assert.True(t, ok, "edge must be auto-created from parent reference")
			}
		})
	}
}

func TestWithNodeEdgeDerivation(t *testing.T) {
	g := buildGraph(t, [][2]string{{"r", ""}, {"c1", "r"}, {"c2", "c1"}})

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())

	edges := g.Edges()
	assert.Contains(t, edges, "r->c1")
	assert.Contains(t, edges, "c1->c2")
}

func TestWithoutSubtree(t *testing.T) {
	//        r
	//       / \
	//     c1   c3
	//     |
	//     c2
	base := [][2]string{{"r", ""}, {"c1", "r"}, {"c2", "c1"}, {"c3", "r"}}

	t.Run("cascades to all descendants", func(t *testing.T) {
		g := buildGraph(t, base)

		next, err := g.WithoutSubtree(nodeID(t, "c1"))
		require.NoError(t, err)

		assert.Equal(t, 2, next.NodeCount())
		assert.Equal(t, 1, next.EdgeCount())
		assert.True(t, next.HasNode(nodeID(t, "r")))
		assert.True(t, next.HasNode(nodeID(t, "c3")))
		assert.False(t, next.HasNode(nodeID(t, "c1")))
		assert.False(t, next.HasNode(nodeID(t, "c2")))

		for _, edge := range next.Edges() {
			assert.NotEqual(t, "c1", edge.SourceID.String())
			assert.NotEqual(t, "c1", edge.TargetID.String())
			assert.NotEqual(t, "c2", edge.TargetID.String())
		}
		assert.True(t, next.IsValidTree())

		// Original untouched
		assert.Equal(t, 4, g.NodeCount())
	})

	t.Run("removing the root empties the graph", func(t *testing.T) {
		g := buildGraph(t, base)

		next, err := g.WithoutSubtree(nodeID(t, "r"))
		require.NoError(t, err)

		assert.Equal(t, 0, next.NodeCount())
		assert.Equal(t, 0, next.EdgeCount())
	})

	t.Run("unknown node is not found", func(t *testing.T) {
		g := buildGraph(t, base)

		_, err := g.WithoutSubtree(nodeID(t, "ghost"))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestWithUpdatedNode(t *testing.T) {
	base := [][2]string{{"a", ""}, {"b", ""}, {"n", "a"}}

	t.Run("content update leaves edges alone", func(t *testing.T) {
		g := buildGraph(t, base)
		prompt := "rewritten"

		next, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Prompt: &prompt})
		require.NoError(t, err)

		node, err := next.Node(nodeID(t, "n"))
		require.NoError(t, err)
		assert.Equal(t, "rewritten", node.Prompt())
		assert.Equal(t, g.EdgeCount(), next.EdgeCount())
		assert.Contains(t, next.Edges(), "a->n")
	})

	t.Run("re-parent rewires exactly one edge", func(t *testing.T) {
		g := buildGraph(t, base)
		newParent := nodeID(t, "b")

		next, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Parent: &newParent})
		require.NoError(t, err)

		edges := next.Edges()
		assert.NotContains(t, edges, "a->n")
		assert.Contains(t, edges, "b->n")
		assert.Equal(t, 1, len(edges))
		assert.True(t, next.IsValidTree())
	})

	t.Run("re-parent to same parent is a no-op on edges", func(t *testing.T) {
		g := buildGraph(t, base)
		same := nodeID(t, "a")

		next, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Parent: &same})
		require.NoError(t, err)

		assert.Contains(t, next.Edges(), "a->n")
		assert.Equal(t, g.EdgeCount(), next.EdgeCount())
	})

	t.Run("re-parent to missing node is a reference error", func(t *testing.T) {
		g := buildGraph(t, base)
		ghost := nodeID(t, "ghost")

		_, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Parent: &ghost})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsReference(err))
	})

	t.Run("demote to root removes the incoming edge", func(t *testing.T) {
		g := buildGraph(t, base)
		root := valueobjects.NodeID{}

		next, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Parent: &root})
		require.NoError(t, err)

		assert.Equal(t, 0, next.EdgeCount())
		node, err := next.Node(nodeID(t, "n"))
		require.NoError(t, err)
		assert.True(t, node.IsRoot())
	})

	t.Run("self-parent is rejected", func(t *testing.T) {
		g := buildGraph(t, base)
		self := nodeID(t, "n")

		_, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Parent: &self})
		require.Error(t, err)
	})
}

func TestQueries(t *testing.T) {
	//   r          s
	//  / \
	// a   b
	// |
	// c
	g := buildGraph(t, [][2]string{{"r", ""}, {"a", "r"}, {"b", "r"}, {"c", "a"}, {"s", ""}})

	t.Run("children ordered by creation", func(t *testing.T) {
		children := g.Children(nodeID(t, "r"))
		require.Len(t, children, 2)
		assert.Equal(t, "a", children[0].ID().String())
		assert.Equal(t, "b", children[1].ID().String())
	})

	t.Run("roots", func(t *testing.T) {
		roots := g.Roots()
		require.Len(t, roots, 2)
		assert.Equal(t, "r", roots[0].ID().String())
		assert.Equal(t, "s", roots[1].ID().String())
	})

	t.Run("depth walks the parent chain", func(t *testing.T) {
		for id, want := range map[string]int{"r": 0, "a": 1, "c": 2, "s": 0} {
			depth, err := g.Depth(nodeID(t, id))
			require.NoError(t, err)
			assert.Equal(t, want, depth, "depth of %s", id)
		}
	})

	t.Run("subtree size", func(t *testing.T) {
		for id, want := range map[string]int{"r": 4, "a": 2, "c": 1, "s": 1} {
			size, err := g.SubtreeSize(nodeID(t, id))
			require.NoError(t, err)
			assert.Equal(t, want, size, "subtree of %s", id)
		}
	})

	t.Run("missing node errors", func(t *testing.T) {
		_, err := g.Depth(nodeID(t, "ghost"))
		assert.True(t, pkgerrors.IsNotFound(err))
		_, err = g.SubtreeSize(nodeID(t, "ghost"))
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestIsValidTree(t *testing.T) {
	t.Run("well-formed graph", func(t *testing.T) {
		g := buildGraph(t, [][2]string{{"r", ""}, {"a", "r"}, {"b", "a"}})
		assert.True(t, g.IsValidTree())
	})

	t.Run("cycle is detected", func(t *testing.T) {
		// Assemble a cycle directly; the write path cannot produce one.
		a := testNode(t, "a", "b", 0)
		b := testNode(t, "b", "a", 1)
		g, err := Reassemble([]*entities.ConversationNode{a, b}, nil, nil)
		require.NoError(t, err)
		assert.False(t, g.IsValidTree())
	})

	t.Run("dangling parent is invalid", func(t *testing.T) {
		a := testNode(t, "a", "ghost", 0)
		g, err := Reassemble([]*entities.ConversationNode{a}, nil, nil)
		require.NoError(t, err)
		assert.False(t, g.IsValidTree())
	})

	t.Run("stray edge is invalid", func(t *testing.T) {
		a := testNode(t, "a", "", 0)
		b := testNode(t, "b", "", 1)
		stray := &Edge{ID: EdgeID(a.ID(), b.ID()), SourceID: a.ID(), TargetID: b.ID()}
		g, err := Reassemble([]*entities.ConversationNode{a, b}, []*Edge{stray}, nil)
		require.NoError(t, err)
		assert.False(t, g.IsValidTree())
	})
}

func TestReassembleEdgeFallback(t *testing.T) {
	nodes := []*entities.ConversationNode{
		testNode(t, "r", "", 0),
		testNode(t, "c1", "r", 1),
		testNode(t, "c2", "c1", 2),
	}

	t.Run("edges reconstructed from parent references", func(t *testing.T) {
		g, err := Reassemble(nodes, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, g.EdgeCount())
		assert.Contains(t, g.Edges(), "r->c1")
		assert.Contains(t, g.Edges(), "c1->c2")
		assert.True(t, g.IsValidTree())
	})

	t.Run("explicit edges preserved", func(t *testing.T) {
		edges := []*Edge{
			{SourceID: nodeID(t, "r"), TargetID: nodeID(t, "c1")},
			{SourceID: nodeID(t, "c1"), TargetID: nodeID(t, "c2")},
		}
		g, err := Reassemble(nodes, edges, nil)
		require.NoError(t, err)

		assert.Equal(t, 2, g.EdgeCount())
		assert.True(t, g.IsValidTree())
	})

	t.Run("duplicate node id rejected", func(t *testing.T) {
		_, err := Reassemble([]*entities.ConversationNode{nodes[0], nodes[0]}, nil, nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestNodeLimit(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxNodesPerGraph = 2

	g := NewGraphWithConfig(cfg)
	g, err := g.WithNode(testNode(t, "a", "", 0))
	require.NoError(t, err)
	g, err = g.WithNode(testNode(t, "b", "", 1))
	require.NoError(t, err)

	_, err = g.WithNode(testNode(t, "c", "", 2))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestEdgeLimit(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxEdgesPerGraph = 1

	g := NewGraphWithConfig(cfg)
	g, err := g.WithNode(testNode(t, "r", "", 0))
	require.NoError(t, err)
	g, err = g.WithNode(testNode(t, "c1", "r", 1))
	require.NoError(t, err)

	t.Run("adding a child past the cap is a conflict", func(t *testing.T) {
		_, err := g.WithNode(testNode(t, "c2", "r", 2))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("roots do not consume the edge budget", func(t *testing.T) {
		next, err := g.WithNode(testNode(t, "s", "", 3))
		require.NoError(t, err)
		assert.Equal(t, 1, next.EdgeCount())

		// Promoting the extra root to a child would grow the edge set.
		parent := nodeID(t, "r")
		_, err = next.WithUpdatedNode(nodeID(t, "s"), NodeUpdate{Parent: &parent})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err))
	})

	t.Run("rewiring an existing edge stays within the cap", func(t *testing.T) {
		next, err := g.WithNode(testNode(t, "s", "", 3))
		require.NoError(t, err)

		parent := nodeID(t, "s")
		rewired, err := next.WithUpdatedNode(nodeID(t, "c1"), NodeUpdate{Parent: &parent})
		require.NoError(t, err)
		assert.Equal(t, 1, rewired.EdgeCount())
	})
}

func TestContentLimits(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxPromptLength = 10
	cfg.MaxResponseLength = 10

	g := NewGraphWithConfig(cfg)
	g, err := g.WithNode(testNode(t, "n", "", 0))
	require.NoError(t, err)

	t.Run("oversized response rejected", func(t *testing.T) {
		response := strings.Repeat("x", 11)
		_, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Response: &response})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("oversized prompt rejected", func(t *testing.T) {
		prompt := strings.Repeat("x", 11)
		_, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Prompt: &prompt})
		require.Error(t, err)
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("at the limit accepted", func(t *testing.T) {
		response := strings.Repeat("x", 10)
		next, err := g.WithUpdatedNode(nodeID(t, "n"), NodeUpdate{Response: &response})
		require.NoError(t, err)

		node, err := next.Node(nodeID(t, "n"))
		require.NoError(t, err)
		assert.Equal(t, response, node.Response())
	})
}

// Concrete end-to-end scenario: build a three-node chain, verify counts and
// depth, then cascade-delete the middle node.
func TestConversationChainScenario(t *testing.T) {
	g := NewGraph()

	g, err := g.WithNode(testNode(t, "r", "", 0))
	require.NoError(t, err)
	g, err = g.WithNode(testNode(t, "c1", "r", 1))
	require.NoError(t, err)
	g, err = g.WithNode(testNode(t, "c2", "c1", 2))
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Contains(t, g.Edges(), "r->c1")
	assert.Contains(t, g.Edges(), "c1->c2")

	depth, err := g.Depth(nodeID(t, "c2"))
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
	assert.True(t, g.IsValidTree())

	g, err = g.WithoutSubtree(nodeID(t, "c1"))
	require.NoError(t, err)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.True(t, g.HasNode(nodeID(t, "r")))
}
