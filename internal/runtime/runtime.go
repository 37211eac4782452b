// Package runtime assembles the workflow engine and its collaborators from
// configuration. Both the HTTP server and the one-shot CLI go through here.
package runtime

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ebahrami/underthreat/config"
	"github.com/ebahrami/underthreat/internal/cache"
	"github.com/ebahrami/underthreat/internal/interpret"
	"github.com/ebahrami/underthreat/internal/llm"
	"github.com/ebahrami/underthreat/internal/report"
	"github.com/ebahrami/underthreat/internal/router"
	"github.com/ebahrami/underthreat/internal/species"
	"github.com/ebahrami/underthreat/internal/telemetry"
	"github.com/ebahrami/underthreat/internal/webresearch"
	"github.com/ebahrami/underthreat/internal/workflow"
)

// Service bundles the engine with everything that needs closing.
type Service struct {
	Engine    *workflow.Engine
	Telemetry *telemetry.Telemetry
	store     species.Store
	webCache  *cache.Cache
}

// Close releases the service's resources.
func (s *Service) Close() error {
	var first error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			first = err
		}
	}
	if err := s.webCache.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// BuildStore opens the configured species store backend.
func BuildStore(ctx context.Context, cfg config.DatabasesConfig) (species.Store, error) {
	switch cfg.Backend {
	case "postgres":
		dsn, err := cfg.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		return species.NewPostgresStore(ctx, dsn)
	case "", "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "data/underthreat.db"
		}
		return species.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

// New assembles a ready-to-run Service.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	tele := telemetry.NewTelemetry(cfg.Telemetry)

	store, err := BuildStore(ctx, cfg.Databases)
	if err != nil {
		return nil, fmt.Errorf("building store: %w", err)
	}

	var webCache *cache.Cache
	if cfg.Cache.Enabled {
		webCache, err = cache.New(ctx, cfg.Cache)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("building cache: %w", err)
		}
	}

	// Without an API key the interpreter and vector retrieval degrade to
	// their defaults; the workflow stays usable against the local store.
	var provider llm.Provider
	var embedder species.Embedder
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewClient(cfg.LLM)
		if err != nil {
			store.Close()
			webCache.Close()
			return nil, fmt.Errorf("building llm client: %w", err)
		}
		provider = client
		embedder = client
	}

	interpreter := interpret.New(provider, log.New(os.Stdout, "[INTERPRET] ", log.LstdFlags))

	stages := []workflow.Stage{
		species.NewStage(store, embedder, log.New(os.Stdout, "[SPECIES] ", log.LstdFlags), species.StageConfig{
			SnippetK:     cfg.Retrieval.SnippetK,
			HabitatLimit: cfg.Retrieval.HabitatLimit,
			ImageLimit:   cfg.Retrieval.ImageLimit,
		}),
		webresearch.NewStage(cfg.Web, webCache, log.New(os.Stdout, "[WEB] ", log.LstdFlags)),
	}

	engine, err := workflow.NewEngine(
		log.New(os.Stdout, "[ENGINE] ", log.LstdFlags),
		tele,
		interpreter,
		router.Route,
		stages,
		report.Composer{},
		cfg.General.DefaultTimeout,
	)
	if err != nil {
		store.Close()
		webCache.Close()
		return nil, fmt.Errorf("building engine: %w", err)
	}

	return &Service{Engine: engine, Telemetry: tele, store: store, webCache: webCache}, nil
}
