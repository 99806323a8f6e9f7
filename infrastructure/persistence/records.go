// Package persistence owns the wire format of saved mindmaps and the
// conversion between wire records and domain entities.
//
// Layout never appears in the wire format: it is a derived value whose
// source of truth is the graph, and it is recomputed fresh after every load.
// That rules out stale-coordinate bugs after schema or node-count changes.
package persistence

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"mindcanvas-backend/domain/config"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

// NodeRecord is the persisted form of one conversation node
type NodeRecord struct {
	ID        string                 `json:"id" validate:"required"`
	ParentID  *string                `json:"parentId"`
	Content   string                 `json:"content"`
	Response  string                 `json:"response"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// EdgeRecord is the persisted form of one derived edge; its id is always
// "{source}->{target}"
type EdgeRecord struct {
	ID     string `json:"id" validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// GraphData is the flattened graph inside a document. Edges may be absent or
// empty in older documents; loaders must reconstruct them from the nodes'
// parent references.
type GraphData struct {
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges,omitempty"`
}

// MindmapMetadata is denormalized summary data computed on save
type MindmapMetadata struct {
	NodeCount     int `json:"nodeCount"`
	RootNodeCount int `json:"rootNodeCount"`
	MaxDepth      int `json:"maxDepth"`
}

// MindmapDocument is the full save/load contract. Metadata is populated on
// save; CreatedAt/UpdatedAt are populated by the store on load.
type MindmapDocument struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"name"`
	GraphData GraphData       `json:"graphData"`
	Metadata  MindmapMetadata `json:"metadata"`
	Revision  GraphRevision   `json:"revision,omitempty"`
	CreatedAt time.Time       `json:"createdAt,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt,omitempty"`
}

// RecordValidator validates and normalizes wire records at the persistence
// boundary, so the domain never has to re-check record shape at every call
// site
type RecordValidator struct {
	validate *validator.Validate
	cfg      *config.DomainConfig
}

// NewRecordValidator creates a validator with the given domain limits
func NewRecordValidator(cfg *config.DomainConfig) *RecordValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &RecordValidator{
		validate: validator.New(),
		cfg:      cfg,
	}
}

// ValidateDocument checks a whole document's shape
func (v *RecordValidator) ValidateDocument(doc *MindmapDocument) error {
	if doc == nil {
		return pkgerrors.NewValidationError("document cannot be nil")
	}
	if err := v.validate.Struct(doc); err != nil {
		return pkgerrors.NewValidationError("invalid mindmap document").WithCause(err)
	}
	seen := make(map[string]bool, len(doc.GraphData.Nodes))
	for i := range doc.GraphData.Nodes {
		if err := v.ValidateNodeRecord(&doc.GraphData.Nodes[i]); err != nil {
			return err
		}
		if seen[doc.GraphData.Nodes[i].ID] {
			return pkgerrors.NewValidationError("duplicate node id: " + doc.GraphData.Nodes[i].ID)
		}
		seen[doc.GraphData.Nodes[i].ID] = true
	}
	for i := range doc.GraphData.Edges {
		if err := v.validate.Struct(&doc.GraphData.Edges[i]); err != nil {
			return pkgerrors.NewValidationError("invalid edge record").WithCause(err)
		}
	}
	return nil
}

// ValidateNodeRecord checks and normalizes one node record in place: ids are
// trimmed, an empty or self-referencing parent becomes null, and the
// metadata bag is capped at the configured key count. Backend records are
// loosely typed, so shape is repaired here rather than trusted downstream.
func (v *RecordValidator) ValidateNodeRecord(rec *NodeRecord) error {
	if rec == nil {
		return pkgerrors.NewValidationError("node record cannot be nil")
	}

	rec.ID = strings.TrimSpace(rec.ID)
	if err := v.validate.Struct(rec); err != nil {
		return pkgerrors.NewValidationError("invalid node record").WithCause(err)
	}

	if rec.ParentID != nil {
		parent := strings.TrimSpace(*rec.ParentID)
		if parent == "" || parent == rec.ID {
			rec.ParentID = nil
		} else {
			rec.ParentID = &parent
		}
	}

	if len(rec.Metadata) > v.cfg.MaxMetadataKeys {
		return pkgerrors.NewValidationError("node metadata exceeds key limit")
	}
	for key, value := range rec.Metadata {
		if value == nil {
			delete(rec.Metadata, key)
		}
	}

	return nil
}
