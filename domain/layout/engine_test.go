package layout

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"mindcanvas-backend/domain/core/aggregates"
	"mindcanvas-backend/domain/core/entities"
	"mindcanvas-backend/domain/core/valueobjects"
)

var testEpoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func nodeID(t require.TestingT, id string) valueobjects.NodeID {
	nid, err := valueobjects.NewNodeIDFromString(id)
	require.NoError(t, err)
	return nid
}

func testNode(t require.TestingT, id, parent string, seq int) *entities.ConversationNode {
	var parentID valueobjects.NodeID
	if parent != "" {
		parentID = nodeID(t, parent)
	}
	node, err := entities.ReconstructNode(
		nodeID(t, id),
		parentID,
		"prompt "+id,
		"",
		nil,
		testEpoch.Add(time.Duration(seq)*time.Second),
	)
	require.NoError(t, err)
	return node
}

// buildGraph inserts child-of pairs parents-first; pairs are {id, parent}
// with an empty parent meaning root
func buildGraph(t testing.TB, pairs [][2]string) *aggregates.Graph {
	g := aggregates.NewGraph()
	for i, pair := range pairs {
		next, err := g.WithNode(testNode(t, pair[0], pair[1], i))
		require.NoError(t, err)
		g = next
	}
	return g
}

func TestComputeEmptyGraph(t *testing.T) {
	l, err := Compute(aggregates.NewGraph(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, Algorithm, l.Algorithm)
	assert.Empty(t, l.Nodes)
	assert.True(t, Bounds(l).IsZero())
}

func TestComputeInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeWidth = 0

	_, err := Compute(aggregates.NewGraph(), cfg)
	assert.Error(t, err)
}

func TestComputeSingleRoot(t *testing.T) {
	g := buildGraph(t, [][2]string{{"root", ""}})
	cfg := DefaultConfig()

	l, err := Compute(g, cfg)
	require.NoError(t, err)
	require.Len(t, l.Nodes, 1)

	// A lone root sits centered on the origin.
	nl := l.Nodes[nodeID(t, "root")]
	assert.Equal(t, -cfg.NodeWidth/2, nl.X)
	assert.Equal(t, -cfg.NodeHeight/2, nl.Y)
	assert.Equal(t, cfg.NodeWidth, nl.Width)
	assert.Equal(t, cfg.NodeHeight, nl.Height)
}

func TestComputeChainRanks(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"root", ""},
		{"c1", "root"},
		{"c2", "c1"},
	})
	cfg := DefaultConfig()

	l, err := Compute(g, cfg)
	require.NoError(t, err)
	require.Len(t, l.Nodes, 3)

	step := cfg.NodeWidth + cfg.RankSeparation
	for i, id := range []string{"root", "c1", "c2"} {
		nl := l.Nodes[nodeID(t, id)]
		assert.Equal(t, float64(i)*step-cfg.NodeWidth/2, nl.X, "rank position of %s", id)
		assert.Equal(t, -cfg.NodeHeight/2, nl.Y, "cross position of %s", id)
	}
}

func TestComputeSiblingsCenteredOnParent(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"root", ""},
		{"a", "root"},
		{"b", "root"},
	})
	cfg := DefaultConfig()

	l, err := Compute(g, cfg)
	require.NoError(t, err)

	crossStep := cfg.NodeHeight + cfg.NodeSeparation
	a := l.Nodes[nodeID(t, "a")]
	b := l.Nodes[nodeID(t, "b")]

	// Siblings straddle the rank's center line; "a" was created first so it
	// takes the lower cross coordinate.
	assert.Equal(t, -crossStep/2-cfg.NodeHeight/2, a.Y)
	assert.Equal(t, crossStep/2-cfg.NodeHeight/2, b.Y)
	assert.Equal(t, a.X, b.X)
	assert.Equal(t, crossStep, b.Y-a.Y)
}

func TestComputeDirections(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"root", ""},
		{"child", "root"},
	})

	tests := []struct {
		direction Direction
		check     func(t *testing.T, root, child NodeLayout)
	}{
		{DirectionLeftRight, func(t *testing.T, root, child NodeLayout) {
			assert.Greater(t, child.X, root.X)
			assert.Equal(t, root.Y, child.Y)
		}},
		{DirectionRightLeft, func(t *testing.T, root, child NodeLayout) {
			assert.Less(t, child.X, root.X)
			assert.Equal(t, root.Y, child.Y)
		}},
		{DirectionTopBottom, func(t *testing.T, root, child NodeLayout) {
			assert.Greater(t, child.Y, root.Y)
			assert.Equal(t, root.X, child.X)
		}},
		{DirectionBottomTop, func(t *testing.T, root, child NodeLayout) {
			assert.Less(t, child.Y, root.Y)
			assert.Equal(t, root.X, child.X)
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Direction = tt.direction

			l, err := Compute(g, cfg)
			require.NoError(t, err)

			tt.check(t, l.Nodes[nodeID(t, "root")], l.Nodes[nodeID(t, "child")])
		})
	}
}

func TestComputeLongestPathRanking(t *testing.T) {
	// "deep" hangs off a three-hop chain while "shallow" hangs directly off
	// the root; they must land in different ranks.
	g := buildGraph(t, [][2]string{
		{"root", ""},
		{"mid", "root"},
		{"deep", "mid"},
		{"shallow", "root"},
	})
	cfg := DefaultConfig()

	l, err := Compute(g, cfg)
	require.NoError(t, err)

	step := cfg.NodeWidth + cfg.RankSeparation
	assert.Equal(t, 1*step, l.Nodes[nodeID(t, "shallow")].X-l.Nodes[nodeID(t, "root")].X)
	assert.Equal(t, 2*step, l.Nodes[nodeID(t, "deep")].X-l.Nodes[nodeID(t, "root")].X)
}

func TestComputeForest(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"r1", ""},
		{"r2", ""},
		{"c1", "r1"},
	})

	l, err := Compute(g, DefaultConfig())
	require.NoError(t, err)

	assert.Len(t, l.Nodes, 3)
	assert.Empty(t, CheckOverlaps(l))
	assert.Empty(t, Validate(g, l))

	// Both roots share rank zero.
	assert.Equal(t, l.Nodes[nodeID(t, "r1")].X, l.Nodes[nodeID(t, "r2")].X)
}

func TestValidateReportsMismatches(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"root", ""},
		{"child", "root"},
	})

	l, err := Compute(g, DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, Validate(g, l))

	delete(l.Nodes, nodeID(t, "child"))
	l.Nodes[nodeID(t, "ghost")] = NodeLayout{Width: 10, Height: 10}

	mismatches := Validate(g, l)
	require.Len(t, mismatches, 2)
	assert.Equal(t, Mismatch{NodeID: nodeID(t, "child"), Missing: "layout"}, mismatches[0])
	assert.Equal(t, Mismatch{NodeID: nodeID(t, "ghost"), Missing: "graph"}, mismatches[1])
}

func TestBoundsCoversAllNodes(t *testing.T) {
	g := buildGraph(t, [][2]string{
		{"root", ""},
		{"a", "root"},
		{"b", "root"},
		{"c", "a"},
	})

	l, err := Compute(g, DefaultConfig())
	require.NoError(t, err)

	bounds := Bounds(l)
	for id, nl := range l.Nodes {
		r := nl.Rect()
		assert.GreaterOrEqual(t, r.X, bounds.X, "left edge of %s", id)
		assert.GreaterOrEqual(t, r.Y, bounds.Y, "top edge of %s", id)
		assert.LessOrEqual(t, r.Right(), bounds.Right(), "right edge of %s", id)
		assert.LessOrEqual(t, r.Bottom(), bounds.Bottom(), "bottom edge of %s", id)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"zero node width", func(c *Config) { c.NodeWidth = 0 }, true},
		{"negative node height", func(c *Config) { c.NodeHeight = -1 }, true},
		{"zero rank separation", func(c *Config) { c.RankSeparation = 0 }, true},
		{"zero node separation", func(c *Config) { c.NodeSeparation = 0 }, true},
		{"unknown direction", func(c *Config) { c.Direction = "DOWN" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// drawGraph generates a random forest. Parent indices always precede
// children so insertion order satisfies the parents-first contract.
func drawGraph(t *rapid.T) *aggregates.Graph {
	n := rapid.IntRange(1, 40).Draw(t, "nodes")

	g := aggregates.NewGraph()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("n%03d", i)
		parent := ""
		if i > 0 && rapid.Float64Range(0, 1).Draw(t, "isChild") > 0.2 {
			parent = ids[rapid.IntRange(0, i-1).Draw(t, "parent")]
		}
		next, err := g.WithNode(testNode(t, id, parent, i))
		if err != nil {
			t.Fatalf("building graph: %v", err)
		}
		g = next
		ids = append(ids, id)
	}
	return g
}

func drawConfig(t *rapid.T) Config {
	directions := []Direction{DirectionLeftRight, DirectionRightLeft, DirectionTopBottom, DirectionBottomTop}
	return Config{
		NodeWidth:      rapid.Float64Range(1, 600).Draw(t, "nodeWidth"),
		NodeHeight:     rapid.Float64Range(1, 600).Draw(t, "nodeHeight"),
		RankSeparation: rapid.Float64Range(1, 400).Draw(t, "rankSeparation"),
		NodeSeparation: rapid.Float64Range(1, 400).Draw(t, "nodeSeparation"),
		Direction:      rapid.SampledFrom(directions).Draw(t, "direction"),
	}
}

func TestComputeNeverOverlaps(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		cfg := drawConfig(t)

		l, err := Compute(g, cfg)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}

		if overlaps := CheckOverlaps(l); len(overlaps) > 0 {
			t.Fatalf("overlapping rectangles: %v", overlaps)
		}
		if mismatches := Validate(g, l); len(mismatches) > 0 {
			t.Fatalf("graph/layout mismatch: %v", mismatches)
		}
	})
}

func TestComputeDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := drawGraph(t)
		cfg := drawConfig(t)

		first, err := Compute(g, cfg)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}
		second, err := Compute(g, cfg)
		if err != nil {
			t.Fatalf("compute: %v", err)
		}

		if len(first.Nodes) != len(second.Nodes) {
			t.Fatalf("node counts differ: %d vs %d", len(first.Nodes), len(second.Nodes))
		}
		for id, a := range first.Nodes {
			b, ok := second.Nodes[id]
			if !ok {
				t.Fatalf("node %s missing from second layout", id)
			}
			if a != b {
				t.Fatalf("coordinates differ for %s: %+v vs %+v", id, a, b)
			}
		}
	})
}
