// canvasctl is a maintenance tool for saved mindmap documents: it loads a
// document, rebuilds the session (graph + fresh layout), reports structural
// diagnostics, and can rewrite the document with recomputed metadata.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"mindcanvas-backend/application/session"
	domaincfg "mindcanvas-backend/domain/config"
	"mindcanvas-backend/domain/core/validators"
	appcfg "mindcanvas-backend/infrastructure/config"
	"mindcanvas-backend/infrastructure/persistence"
	"mindcanvas-backend/infrastructure/persistence/filestore"
)

func main() {
	var (
		docID      = flag.String("doc", "", "document id to inspect")
		dataDir    = flag.String("data", "", "data directory (overrides DATA_DIR)")
		layoutFile = flag.String("layout", "", "optional YAML layout config")
		list       = flag.Bool("list", false, "list stored documents and exit")
		rewrite    = flag.Bool("rewrite", false, "rewrite the document with recomputed metadata")
	)
	flag.Parse()

	cfg, err := appcfg.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *layoutFile != "" {
		if err := cfg.ApplyLayoutFile(*layoutFile); err != nil {
			log.Fatalf("Failed to apply layout config: %v", err)
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	store, err := filestore.New(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to open document store", zap.Error(err))
	}

	if *list {
		ids, err := store.List(ctx)
		if err != nil {
			logger.Fatal("Failed to list documents", zap.Error(err))
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	if *docID == "" {
		flag.Usage()
		os.Exit(2)
	}

	doc, err := store.Load(ctx, *docID)
	if err != nil {
		logger.Fatal("Failed to load document", zap.String("documentId", *docID), zap.Error(err))
	}

	dcfg := domaincfg.LoadDomainConfig(cfg.Environment)
	nodes, err := persistence.DecodeNodes(doc.GraphData.Nodes, dcfg)
	if err != nil {
		logger.Fatal("Document contains invalid node records", zap.Error(err))
	}

	sess, err := session.New(dcfg, cfg.Layout, logger)
	if err != nil {
		logger.Fatal("Failed to create session", zap.Error(err))
	}
	if err := sess.Hydrate(nodes); err != nil {
		logger.Fatal("Hydration failed", zap.Error(err))
	}

	graph := sess.Graph()
	bounds := sess.Bounds()
	meta := persistence.ComputeMetadata(graph)

	logger.Info("document inspected",
		zap.String("documentId", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("nodeCount", meta.NodeCount),
		zap.Int("rootNodeCount", meta.RootNodeCount),
		zap.Int("maxDepth", meta.MaxDepth),
		zap.Int("edgeCount", graph.EdgeCount()),
		zap.Bool("validTree", graph.IsValidTree()),
		zap.Float64("layoutWidth", bounds.Width),
		zap.Float64("layoutHeight", bounds.Height),
	)

	if violations := validators.NewGraphValidator().Check(graph); len(violations) > 0 {
		for _, v := range violations {
			logger.Warn("structural violation", zap.String("violation", v.String()))
		}
	}

	if *rewrite {
		updated := persistence.SerializeMindmap(doc.ID, doc.Name, graph)
		if updated.Revision.SameContent(doc.Revision) {
			logger.Info("document content unchanged, skipping rewrite",
				zap.String("documentId", doc.ID),
				zap.String("checksum", doc.Revision.Checksum),
			)
			return
		}
		updated.CreatedAt = doc.CreatedAt
		if err := store.Save(ctx, updated); err != nil {
			logger.Fatal("Failed to rewrite document", zap.Error(err))
		}
		logger.Info("document rewritten",
			zap.String("documentId", doc.ID),
			zap.String("checksum", updated.Revision.Checksum),
		)
	}
}

func newLogger(cfg *appcfg.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
