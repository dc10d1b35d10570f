package main

import (
	"fmt"
	"path/filepath"

	"cix/internal/cache"
	"cix/internal/callgraph"
	"cix/internal/classify"
	"cix/internal/config"
	"cix/internal/gitrev"
	"cix/internal/impact"
	"cix/internal/indexer"
	"cix/internal/logging"
	"cix/internal/parser"
	"cix/internal/query"
	"cix/internal/storage"
	"cix/internal/symbols"
)

// app bundles the wired components behind every command. Database and
// stores are always built; the parser is built lazily because a cgo-less
// binary can still serve queries and impact analysis.
type app struct {
	repoRoot string
	cfg      *config.Config
	logger   *logging.Logger
	db       *storage.DB
	store    *symbols.Store
	resolver *callgraph.Resolver
	engine   *query.Engine
	git      *gitrev.Provider
	cache    *cache.AnalysisCache
	analyzer *impact.Analyzer
}

// openApp loads configuration and opens the index database
func openApp() (*app, error) {
	repoRoot, err := filepath.Abs(repoFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}

	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})

	db, err := storage.Open(repoRoot, logger)
	if err != nil {
		return nil, err
	}

	store := symbols.NewStore(db, logger)
	resolver := callgraph.NewResolver(db, store, logger)
	engine := query.NewEngine(db, store, resolver, logger)
	git := gitrev.NewProvider(repoRoot, cfg.Git.TimeoutMs, logger)

	analysisCache, err := cache.NewAnalysisCache(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	// A nil *CommandClassifier must not end up in the interface, or the
	// analyzer would see a non-nil classifier that always fails.
	var clf classify.Classifier
	if cfg.Classifier.Enabled {
		if c := classify.NewCommandClassifier(
			cfg.Classifier.Command, cfg.Classifier.Args, cfg.Classifier.TimeoutMs, logger,
		); c != nil {
			clf = c
		}
	}

	analyzer := impact.NewAnalyzer(
		git, store, engine, analysisCache, clf,
		impact.LoadHistoryPatterns(repoRoot, logger),
		cfg.Impact, logger,
	)

	return &app{
		repoRoot: repoRoot,
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store,
		resolver: resolver,
		engine:   engine,
		git:      git,
		cache:    analysisCache,
		analyzer: analyzer,
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// newParser builds the tree-sitter parser. Fails on cgo-less builds, where
// indexing must come from a SCIP index instead.
func (a *app) newParser() (parser.Parser, error) {
	return parser.NewTreeSitter(a.logger)
}

// newIndexer wires an indexer over the app's components
func (a *app) newIndexer(p parser.Parser) *indexer.Indexer {
	return indexer.NewIndexer(a.repoRoot, a.db, a.store, a.resolver, p, a.cfg.Indexing, a.logger)
}

func (a *app) cixDir() string {
	return filepath.Join(a.repoRoot, ".cix")
}
