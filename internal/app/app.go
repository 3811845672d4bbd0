package app

import (
	"context"
	"fmt"
	"log/slog"

	"ZipPicks/internal/config"
	"ZipPicks/internal/infrastructure/archive"
	"ZipPicks/internal/infrastructure/csvsource"
	"ZipPicks/internal/infrastructure/llm"
	"ZipPicks/internal/infrastructure/storage"
	"ZipPicks/internal/infrastructure/wordpress"
	"ZipPicks/internal/logging"
	"ZipPicks/internal/ports"
	"ZipPicks/internal/prompt"
	"ZipPicks/internal/usecase"
	"ZipPicks/internal/validate"
	"ZipPicks/internal/vibes"
)

// Application wires configuration to use cases and adapters.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	tracker  *usecase.Tracker
	closer   func() error
}

// New builds a runnable application. The task store is Postgres when a
// DSN is configured, otherwise the JSON file store. The drafter and
// publisher are wired only when their credentials are present; stages
// that need an absent one fail per task, so offline commands still run.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	taxonomy, err := vibes.LoadTaxonomy(cfg.Taxonomy.VibesFile, cfg.Taxonomy.CitiesFile)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	engine, err := prompt.NewEngine(cfg.Prompts.Dir, cfg.Prompts.Version)
	if err != nil {
		return nil, err
	}

	store, closer, err := buildStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var drafter ports.Drafter
	if cfg.LLM.APIKey != "" {
		drafter = llm.NewChatClient(cfg.LLM)
	}

	var publisher ports.Publisher
	if cfg.WordPress.SiteURL != "" {
		publisher, err = wordpress.NewClient(cfg.WordPress, baseLogger.With("component", "wordpress"))
		if err != nil {
			return nil, fmt.Errorf("wordpress client: %w", err)
		}
	}

	tracker := usecase.NewTracker(store, cfg.Pipeline.MaxRetries, baseLogger.With("component", "tracker"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    csvsource.NewLoader(cfg.Data.File, baseLogger.With("component", "source")),
		Taxonomy:  taxonomy,
		Matcher:   vibes.Matcher{MinRating: cfg.Data.MinRating, MaxCandidates: cfg.Data.MaxCandidates},
		Engine:    engine,
		Drafter:   drafter,
		Validator: validate.New(),
		Tracker:   tracker,
		Archive:   archive.New(cfg.Output.Dir),
		Publisher: publisher,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pipeline: pipeline,
		tracker:  tracker,
		closer:   closer,
	}, nil
}

// Pipeline exposes the wired pipeline to commands.
func (a *Application) Pipeline() *usecase.Pipeline { return a.pipeline }

// Config exposes the effective configuration.
func (a *Application) Config() config.Config { return a.cfg }

// Tracker exposes the wired task tracker to commands.
func (a *Application) Tracker() *usecase.Tracker { return a.tracker }

// Logger exposes the base logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

// Close releases held resources such as the database pool.
func (a *Application) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (ports.TaskStore, func() error, error) {
	if cfg.DSN != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	store, err := storage.NewFileStore(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}
