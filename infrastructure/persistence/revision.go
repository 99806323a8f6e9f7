package persistence

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"

	"mindcanvas-backend/domain/core/aggregates"
)

// GraphRevision identifies the exact content of a saved graph. The checksum
// is computed over the canonical wire form (sorted nodes and edges), so two
// graphs with the same content always produce the same checksum regardless of
// mutation history.
type GraphRevision struct {
	Version   int    `json:"version"`
	Checksum  string `json:"checksum"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// ComputeRevision derives the revision stamp for a graph
func ComputeRevision(g *aggregates.Graph) GraphRevision {
	return GraphRevision{
		Version:   g.Version(),
		Checksum:  checksumGraphData(SerializeGraph(g)),
		NodeCount: g.NodeCount(),
		EdgeCount: g.EdgeCount(),
	}
}

// SameContent reports whether two revisions describe identical graph content.
// The version counter is ignored; it tracks mutation history, not content.
func (r GraphRevision) SameContent(other GraphRevision) bool {
	return r.Checksum == other.Checksum
}

func checksumGraphData(data GraphData) string {
	// CreatedAt timestamps are part of the wire form and therefore part of
	// the checksum; a node recreated with the same text is new content.
	encoded, err := json.Marshal(data)
	if err != nil {
		// GraphData contains only marshalable types; this cannot happen with
		// well-formed input.
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
