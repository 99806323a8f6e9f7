package layout

import "fmt"

// Direction controls the axis along which ranks grow
type Direction string

const (
	DirectionLeftRight Direction = "LR"
	DirectionRightLeft Direction = "RL"
	DirectionTopBottom Direction = "TB"
	DirectionBottomTop Direction = "BT"
)

// Config holds the numeric tunables of the layout algorithm. All nodes share
// one fixed width and height in the current product; the values are still
// carried per node in the computed layout for future flexibility.
//
// Changing the config never touches persisted data: layout is always derived
// fresh from the graph.
type Config struct {
	NodeWidth      float64   `yaml:"node_width"`
	NodeHeight     float64   `yaml:"node_height"`
	RankSeparation float64   `yaml:"rank_separation"`
	NodeSeparation float64   `yaml:"node_separation"`
	Direction      Direction `yaml:"direction"`
}

// DefaultConfig returns the default layout tunables
func DefaultConfig() Config {
	return Config{
		NodeWidth:      320,
		NodeHeight:     180,
		RankSeparation: 140,
		NodeSeparation: 60,
		Direction:      DirectionLeftRight,
	}
}

// Validate checks the tunables
func (c Config) Validate() error {
	if c.NodeWidth <= 0 || c.NodeHeight <= 0 {
		return fmt.Errorf("node dimensions must be positive, got %gx%g", c.NodeWidth, c.NodeHeight)
	}
	if c.RankSeparation <= 0 {
		return fmt.Errorf("rank separation must be positive, got %g", c.RankSeparation)
	}
	if c.NodeSeparation <= 0 {
		return fmt.Errorf("node separation must be positive, got %g", c.NodeSeparation)
	}
	switch c.Direction {
	case DirectionLeftRight, DirectionRightLeft, DirectionTopBottom, DirectionBottomTop:
	default:
		return fmt.Errorf("unknown layout direction %q", c.Direction)
	}
	return nil
}

// horizontal reports whether ranks grow along the x axis
func (c Config) horizontal() bool {
	return c.Direction == DirectionLeftRight || c.Direction == DirectionRightLeft
}
