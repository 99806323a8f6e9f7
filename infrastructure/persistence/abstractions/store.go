// Package abstractions defines the storage ports the engine depends on.
// The real document store lives behind these interfaces; only the data
// contract matters to the core.
package abstractions

import (
	"context"

	"mindcanvas-backend/infrastructure/persistence"
)

// DocumentStore persists whole mindmap documents keyed by id
type DocumentStore interface {
	// Save writes a document, overwriting any previous version
	Save(ctx context.Context, doc *persistence.MindmapDocument) error

	// Load reads a document by id. A missing document is a NOT_FOUND error.
	Load(ctx context.Context, id string) (*persistence.MindmapDocument, error)

	// List returns the ids of all stored documents
	List(ctx context.Context) ([]string, error)

	// Delete removes a document by id; deleting a missing document is a
	// NOT_FOUND error
	Delete(ctx context.Context, id string) error
}
