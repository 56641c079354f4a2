package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/backend"
	"github.com/sells-group/netsheet-cli/internal/cost"
	"github.com/sells-group/netsheet-cli/internal/db"
	"github.com/sells-group/netsheet-cli/internal/extract"
	"github.com/sells-group/netsheet-cli/internal/listing"
	"github.com/sells-group/netsheet-cli/internal/netsheet"
	"github.com/sells-group/netsheet-cli/internal/orchestrator"
	"github.com/sells-group/netsheet-cli/internal/pipeline"
	"github.com/sells-group/netsheet-cli/internal/raster"
	"github.com/sells-group/netsheet-cli/internal/report"
	"github.com/sells-group/netsheet-cli/internal/resilience"
	"github.com/sells-group/netsheet-cli/internal/store"
	anthropicpkg "github.com/sells-group/netsheet-cli/pkg/anthropic"
	"github.com/sells-group/netsheet-cli/pkg/gemini"
)

// netsheetEnv holds the initialized store, listing source, orchestrator and
// pipeline needed by the process/poll/serve commands.
type netsheetEnv struct {
	Store        store.Store
	Listings     listing.Source
	Orchestrator *orchestrator.Orchestrator
	Processor    *pipeline.Processor

	closers []func()
}

// Close releases resources held by the environment.
func (e *netsheetEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode and builds everything a document run
// needs. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*netsheetEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &netsheetEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	src, closeListings, err := initListings(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Listings = src
	env.closers = append(env.closers, closeListings)

	orch, err := initOrchestrator(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Orchestrator = orch

	deps := pipeline.Deps{
		Orchestrator: orch,
		Store:        st,
		Listings:     src,
		Defaults:     listing.DefaultsFromConfig(cfg.NetSheet),
		Fees:         netsheet.FeesFromConfig(cfg.NetSheet),
		OutputDir:    cfg.Output.Dir,
	}
	if cfg.Output.RenderPDF {
		deps.Renderer = &report.ChromeRenderer{ExecPath: cfg.Output.ChromePath}
	}
	if cfg.Output.UploadDir != "" {
		deps.Uploader = &report.DirUploader{Dir: cfg.Output.UploadDir}
	}
	env.Processor = pipeline.New(deps)

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "netsheet.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initListings opens the configured listing source. Without one, every
// lookup falls back to the configured defaults.
func initListings(ctx context.Context) (listing.Source, func(), error) {
	switch {
	case cfg.Listing.DatabaseURL != "":
		pool, err := db.Open(ctx, cfg.Listing.DatabaseURL, nil, nil)
		if err != nil {
			return nil, func() {}, eris.Wrap(err, "open listing database")
		}
		src := listing.NewPostgresSource(pool)
		if err := src.Migrate(ctx); err != nil {
			pool.Close()
			return nil, func() {}, eris.Wrap(err, "migrate listing database")
		}
		zap.L().Info("listing source: postgres")
		return src, pool.Close, nil
	case cfg.Listing.Path != "":
		src, err := listing.LoadFile(cfg.Listing.Path)
		if err != nil {
			return nil, func() {}, eris.Wrap(err, "load listing file")
		}
		zap.L().Info("listing source: file",
			zap.String("path", cfg.Listing.Path),
			zap.Int("listings", src.Len()),
		)
		return src, func() {}, nil
	default:
		zap.L().Warn("no listing source configured, taxes and commission use defaults")
		return nil, func() {}, nil
	}
}

// initOrchestrator wires the rasterizer, vision backends and page
// extractors into the three-strategy escalation. Claude extractors share one
// policy; Gemini replaces the secondary model when a key is configured.
func initOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	schema := extract.DefaultSchema()
	bindings, err := extract.LoadBindings(cfg.Extraction.BindingsPath, schema)
	if err != nil {
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	policy := resilience.PolicyFor("anthropic", cfg.Anthropic.PrimaryModel, cfg.Anthropic.RateLimitRPS, cfg.Extraction)
	primary := backend.AnthropicFromConfig(client, cfg.Anthropic.PrimaryModel, cfg, policy)

	var secondary backend.FieldExtractor
	if cfg.Gemini.Key != "" {
		gc, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.Gemini.Key, BaseURL: cfg.Gemini.BaseURL})
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		secondary = backend.GeminiFromConfig(gc, cfg)
		zap.L().Info("secondary backend: gemini", zap.String("model", cfg.Gemini.Model))
	} else {
		secondary = backend.AnthropicFromConfig(client, cfg.Anthropic.SecondaryModel, cfg, policy)
		zap.L().Info("secondary backend: anthropic", zap.String("model", cfg.Anthropic.SecondaryModel))
	}

	rasterizer := raster.NewPdftoppm(cfg.Raster)
	strategies := orchestrator.Standard(cfg.Extraction, bindings,
		extract.New(rasterizer, primary, schema),
		extract.New(rasterizer, secondary, schema),
	)

	return orchestrator.New(orchestrator.ConfigFrom(cfg.Extraction), strategies,
		orchestrator.WithCostCalculator(cost.FromConfig(cfg.Pricing)),
	), nil
}
