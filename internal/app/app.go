// Package app wires configuration into a ready engine, shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/database"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/face"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/gallery"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/index"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/repository"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
)

type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Pool         *pgxpool.Pool
	Repo         *repository.IdentityRepository
	Index        index.Index
	Synchronizer *gallery.Synchronizer
	Engine       *service.Engine
}

// New connects to the database and builds the engine. The index starts
// empty; callers decide whether an initial sync failure is fatal.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	caps, err := face.NewCapabilities(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create providers: %w", err)
	}

	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}

	repo := repository.NewIdentityRepository(pool)
	idx := index.New(cfg.IndexKind, cfg.RecognitionThreshold)
	syncer := gallery.NewSynchronizer(repo, idx, caps.Embedder.Dimension(), logger)

	engine := service.NewEngine(
		caps.Detector,
		caps.Embedder,
		idx,
		syncer,
		repo,
		logger,
		service.EngineConfig{
			RegisterThreshold: cfg.RegisterDetectThreshold,
			ScanThreshold:     cfg.ScanDetectThreshold,
			Concurrency:       cfg.RegistrationConcurrency,
		},
	)

	logger.Info("engine ready",
		slog.String("detector", cfg.DetectorType),
		slog.String("embedder", cfg.ProviderType),
		slog.String("index", idx.Stats().Kind),
		slog.Int("dimension", caps.Embedder.Dimension()),
		slog.Float64("threshold", cfg.RecognitionThreshold),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Repo:         repo,
		Index:        idx,
		Synchronizer: syncer,
		Engine:       engine,
	}, nil
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
