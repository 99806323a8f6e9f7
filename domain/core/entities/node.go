package entities

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mindcanvas-backend/domain/config"
	"mindcanvas-backend/domain/core/valueobjects"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

// ConversationNode is the main entity representing a single conversation turn:
// the user's prompt plus the generated response. Nodes form a forest through
// the parent reference; a node with a zero parent id is a root.
//
// The entity is copy-on-write: mutating accessors return a modified copy and
// never touch the receiver, matching the value-semantics contract of the
// graph aggregate.
type ConversationNode struct {
	// Private fields ensure encapsulation
	id        valueobjects.NodeID
	parentID  valueobjects.NodeID // zero value means root
	prompt    string
	response  string
	metadata  map[string]interface{}
	createdAt time.Time
}

// NewConversationNode creates a new node with business rule validation
func NewConversationNode(prompt string, parentID valueobjects.NodeID) (*ConversationNode, error) {
	return NewConversationNodeWithConfig(prompt, parentID, config.DefaultDomainConfig())
}

// NewConversationNodeWithConfig creates a new node validated against the
// given configuration
func NewConversationNodeWithConfig(prompt string, parentID valueobjects.NodeID, cfg *config.DomainConfig) (*ConversationNode, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" && !cfg.AllowEmptyPrompt {
		return nil, pkgerrors.NewValidationError("prompt cannot be empty")
	}
	if utf8.RuneCountInString(prompt) > cfg.MaxPromptLength {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("prompt exceeds maximum length of %d characters", cfg.MaxPromptLength))
	}

	return &ConversationNode{
		id:        valueobjects.NewNodeID(),
		parentID:  parentID,
		prompt:    prompt,
		metadata:  make(map[string]interface{}),
		createdAt: time.Now(),
	}, nil
}

// ReconstructNode reconstructs a node from persisted data with preserved
// timestamps. Validation is intentionally looser than NewConversationNode:
// stored records are normalized at the persistence boundary, not rejected
// here.
func ReconstructNode(
	id valueobjects.NodeID,
	parentID valueobjects.NodeID,
	prompt string,
	response string,
	metadata map[string]interface{},
	createdAt time.Time,
) (*ConversationNode, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node id is required for reconstruction")
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	return &ConversationNode{
		id:        id,
		parentID:  parentID,
		prompt:    prompt,
		response:  response,
		metadata:  metadata,
		createdAt: createdAt,
	}, nil
}

// ID returns the node's unique identifier
func (n *ConversationNode) ID() valueobjects.NodeID {
	return n.id
}

// ParentID returns the parent node's identifier; zero for a root node
func (n *ConversationNode) ParentID() valueobjects.NodeID {
	return n.parentID
}

// IsRoot reports whether the node has no parent
func (n *ConversationNode) IsRoot() bool {
	return n.parentID.IsZero()
}

// Prompt returns the user's query text
func (n *ConversationNode) Prompt() string {
	return n.prompt
}

// Response returns the generated response text
func (n *ConversationNode) Response() string {
	return n.response
}

// CreatedAt returns when the node was created
func (n *ConversationNode) CreatedAt() time.Time {
	return n.createdAt
}

// Metadata returns a copy of the free-form metadata bag
func (n *ConversationNode) Metadata() map[string]interface{} {
	// Return a copy to maintain encapsulation
	meta := make(map[string]interface{}, len(n.metadata))
	for k, v := range n.metadata {
		meta[k] = v
	}
	return meta
}

// MetadataValue returns a single metadata entry
func (n *ConversationNode) MetadataValue(key string) (interface{}, bool) {
	v, ok := n.metadata[key]
	return v, ok
}

// WithPrompt returns a copy of the node with a new prompt
func (n *ConversationNode) WithPrompt(prompt string) *ConversationNode {
	c := n.clone()
	c.prompt = strings.TrimSpace(prompt)
	return c
}

// WithResponse returns a copy of the node with a new response
func (n *ConversationNode) WithResponse(response string) *ConversationNode {
	c := n.clone()
	c.response = response
	return c
}

// WithParent returns a copy of the node re-parented under the given node.
// A zero parent id makes the copy a root.
func (n *ConversationNode) WithParent(parentID valueobjects.NodeID) *ConversationNode {
	c := n.clone()
	c.parentID = parentID
	return c
}

// WithMetadata returns a copy of the node with the given entries merged onto
// the metadata bag
func (n *ConversationNode) WithMetadata(entries map[string]interface{}) *ConversationNode {
	c := n.clone()
	for k, v := range entries {
		c.metadata[k] = v
	}
	return c
}

// Clone returns a deep copy of the node
func (n *ConversationNode) Clone() *ConversationNode {
	return n.clone()
}

func (n *ConversationNode) clone() *ConversationNode {
	meta := make(map[string]interface{}, len(n.metadata))
	for k, v := range n.metadata {
		meta[k] = v
	}
	return &ConversationNode{
		id:        n.id,
		parentID:  n.parentID,
		prompt:    n.prompt,
		response:  n.response,
		metadata:  meta,
		createdAt: n.createdAt,
	}
}
