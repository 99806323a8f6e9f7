// Package filestore is a local JSON implementation of the document store,
// used by the CLI and by tests. One file per document, atomic replace on
// save.
package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"mindcanvas-backend/infrastructure/persistence"
	"mindcanvas-backend/infrastructure/persistence/abstractions"
	pkgerrors "mindcanvas-backend/pkg/errors"
)

const fileExtension = ".json"

var _ abstractions.DocumentStore = (*Store)(nil)

// Store persists mindmap documents as JSON files in a directory
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates a file store rooted at dir, creating the directory if needed
func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.NewStorageError("mkdir", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Save writes the document, replacing any previous version atomically
func (s *Store) Save(ctx context.Context, doc *persistence.MindmapDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || strings.TrimSpace(doc.ID) == "" {
		return pkgerrors.NewValidationError("document id is required")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return pkgerrors.NewStorageError("marshal", err)
	}

	path := s.path(doc.ID)
	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return pkgerrors.NewStorageError("create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return pkgerrors.NewStorageError("write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return pkgerrors.NewStorageError("close", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return pkgerrors.NewStorageError("rename", err)
	}

	s.logger.Info("document saved",
		zap.String("documentId", doc.ID),
		zap.Int("nodeCount", doc.Metadata.NodeCount),
		zap.String("path", path),
	)
	return nil
}

// Load reads a document by id
func (s *Store) Load(ctx context.Context, id string) (*persistence.MindmapDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.NewNotFoundError("document " + id)
		}
		return nil, pkgerrors.NewStorageError("open", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pkgerrors.NewStorageError("read", err)
	}

	var doc persistence.MindmapDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.NewStorageError("unmarshal", err)
	}

	// Stat the open handle, not the path: a concurrent rewrite replaces the
	// file, and the mtime must belong to the version just read.
	if doc.UpdatedAt.IsZero() {
		if info, err := f.Stat(); err == nil {
			doc.UpdatedAt = info.ModTime()
		}
	}

	return &doc, nil
}

// List returns all stored document ids, sorted
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileExtension))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a document by id
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return pkgerrors.NewNotFoundError("document " + id)
		}
		return pkgerrors.NewStorageError("delete", err)
	}

	s.logger.Info("document deleted", zap.String("documentId", id))
	return nil
}

func (s *Store) path(id string) string {
	// Document ids come from the application, not from users, but keep the
	// path inside the store directory regardless.
	safe := strings.ReplaceAll(id, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, safe+fileExtension)
}
