package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cvlex/internal/api"
	"cvlex/internal/config"
	"cvlex/internal/knowledge"
	"cvlex/internal/media"
	"cvlex/internal/providers"
	"cvlex/internal/storage"
	"cvlex/internal/uploads"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	mediaSubdir    = "generated"
	staleUploadAge = time.Hour
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("cvlex api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	uploadStore, err := uploads.NewStore(cfg.UploadDir, logger.Named("uploads"))
	if err != nil {
		return err
	}
	if n, err := uploadStore.Sweep(staleUploadAge); err != nil {
		logger.Warn("sweep upload dir", zap.Error(err))
	} else if n > 0 {
		logger.Info("removed stale uploads", zap.Int("count", n))
	}

	// A missing knowledge file is not fatal: /legal-query answers 500 until
	// the file shows up and is reloaded.
	holder := knowledge.NewHolder(cfg.KnowledgePath, logger.Named("knowledge"))
	if err := holder.Reload(ctx); err != nil {
		logger.Warn("knowledge unavailable at startup", zap.String("path", cfg.KnowledgePath), zap.Error(err))
	}
	if cfg.KnowledgeWatch {
		go func() {
			if err := holder.Watch(ctx); err != nil {
				logger.Error("knowledge watcher stopped", zap.Error(err))
			}
		}()
	}

	pm, err := providers.NewManager(ctx, cfg)
	if err != nil {
		return err
	}

	mediaStore, err := newMediaStore(ctx, cfg, logger.Named("media"))
	if err != nil {
		return err
	}

	deps := api.Deps{
		Config:    cfg,
		Log:       logger,
		Uploads:   uploadStore,
		Knowledge: holder,
		Providers: pm,
		Media:     mediaStore,
	}
	if cfg.PostgresURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		db, err := storage.NewDB(dbCtx, cfg.PostgresURL)
		if err == nil {
			err = db.Migrate(dbCtx)
		}
		cancel()
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Audit = storage.NewLLMAuditRepo(db)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           api.NewServer(deps).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.ProviderTimeout)*time.Second + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cvlex api listening",
			zap.String("addr", cfg.APIAddr),
			zap.String("llm_providers", cfg.LLMProviders),
			zap.String("media_provider", cfg.MediaProvider),
			zap.String("media_store", cfg.MediaStore),
			zap.Bool("knowledge", holder.Current().Available()),
			zap.Bool("audit", deps.Audit != nil),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMediaStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (media.Store, error) {
	switch cfg.MediaStore {
	case "", "local":
		return media.NewLocalStore(cfg.StaticDir, mediaSubdir, logger)
	case "r2":
		return media.NewR2Store(ctx, media.R2Config{
			AccountID:  cfg.R2AccountID,
			Bucket:     cfg.R2Bucket,
			AccessKey:  cfg.R2AccessKey,
			SecretKey:  cfg.R2SecretKey,
			PublicBase: cfg.MediaPublicBase,
			Prefix:     mediaSubdir,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown MEDIA_STORE %q", cfg.MediaStore)
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
