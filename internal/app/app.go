package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clipshelf/server/internal/config"
	"github.com/clipshelf/server/internal/crypto"
	"github.com/clipshelf/server/internal/db"
	"github.com/clipshelf/server/internal/idgen"
	"github.com/clipshelf/server/internal/jobs"
	"github.com/clipshelf/server/internal/markdown"
	"github.com/clipshelf/server/internal/repository"
	"github.com/clipshelf/server/internal/safego"
	"github.com/clipshelf/server/internal/service"
	"github.com/clipshelf/server/internal/storage"
	"github.com/clipshelf/server/internal/telemetry"
	"github.com/jmoiron/sqlx"
)

const dbStatsInterval = 15 * time.Second

type App struct {
	Cfg   *config.Config
	DB    *sqlx.DB
	Store *repository.Store

	AccountService *service.AccountService
	SessionService *service.SessionService
	ClipService    *service.ClipService
	TagService     *service.TagService
	Recorder       *service.Recorder
	Reaper         *jobs.Reaper
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	ids, err := idgen.New(cfg.SnowflakeNode)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize id generator: %w", err)
	}

	cipher, err := crypto.DeriveKeyCipher(cfg.KeyEncryptionSecret)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize key cipher: %w", err)
	}

	// Archive storage (optional)
	archive, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	store := repository.NewStore(database)

	// Services
	accountService := service.NewAccountService(store, ids, service.DefaultPasswordHasher())
	sessionService := service.NewSessionService(store, ids, cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTRefreshExpiry)
	tagService := service.NewTagService(store, ids)
	recorder := service.NewRecorder(store, ids, cfg.AccessLogWorkers, cfg.AccessLogQueue)
	clipService := service.NewClipService(
		store,
		ids,
		tagService,
		recorder,
		cipher,
		markdown.NewRenderer(),
		archive,
		cfg.MaxContentBytes,
	)

	reaper := jobs.NewReaper(sessionService, clipService, accountService, tagService, jobs.ReaperConfig{
		Interval:      cfg.ReaperInterval,
		Grace:         cfg.ReaperGrace,
		ClipRetention: cfg.ClipRetention,
		UserRetention: cfg.UserRetention,
		Batch:         cfg.ReaperBatch,
	})

	return &App{
		Cfg:            cfg,
		DB:             database,
		Store:          store,
		AccountService: accountService,
		SessionService: sessionService,
		ClipService:    clipService,
		TagService:     tagService,
		Recorder:       recorder,
		Reaper:         reaper,
	}, nil
}

// Start launches the background jobs. They run until ctx is cancelled or
// Close is called.
func (a *App) Start(ctx context.Context) {
	safego.Go(func() { a.Reaper.Start(ctx) })
	telemetry.StartDBStatsCollector(ctx, a.DB.DB, dbStatsInterval)
}

// Close stops the reaper, drains queued access log entries and closes the
// database, in that order.
func (a *App) Close() error {
	if a.Reaper != nil {
		a.Reaper.Stop()
	}
	if a.Recorder != nil {
		a.Recorder.Close()
	}
	return db.Close(a.DB)
}
