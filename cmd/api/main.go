package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/hdfs-analysis-sim/internal/application"
	appanalysis "github.com/bryanwahyu/hdfs-analysis-sim/internal/application/analysis"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/config"
	domain "github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/analysis"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/domain/scoring"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/ai/openai"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/callback"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/classifier"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/db/mysql"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/db/postgres"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/httpserver"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/logging"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/pubsub"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/infra/storage"
	"github.com/bryanwahyu/hdfs-analysis-sim/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, logCloser := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer logCloser.Close()
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	checkers := map[string]middleware.HealthChecker{}

	results, err := storage.NewLocalStore(cfg.Processing.ResultsDir)
	if err != nil {
		return err
	}

	repo, db, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		log.Info("job repository ready", zap.String("driver", cfg.Database.Driver))
	}

	// init minio
	var artifacts domain.ArtifactStore
	if cfg.MinioEnabled() {
		store, err := storage.NewMinio(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		artifacts = store
		checkers["minio"] = store
		log.Info("artifact mirror enabled", zap.String("endpoint", cfg.Minio.Endpoint), zap.String("bucket", cfg.Minio.BucketName))
	}

	var publisher domain.Publisher
	if cfg.RedisEnabled() {
		pub, err := pubsub.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.PubSub.Channel)
		if err != nil {
			return err
		}
		defer pub.Close()
		publisher = pub
		checkers["redis"] = pub
		log.Info("completion pub/sub enabled", zap.String("channel", cfg.PubSub.Channel))
	}

	rnd := scoring.NewLockedRand(cfg.Processing.Seed)
	engine := scoring.NewEngine(rnd)
	predictor, err := openPredictor(cfg)
	if err != nil {
		return err
	}
	if predictor != nil {
		engine.WithPredictor(predictor)
	}
	log.Info("scoring configured", zap.String("mode", cfg.Scoring.Mode))

	svc := appanalysis.NewService(appanalysis.Config{
		BlockDelay:         cfg.Processing.BlockDelay,
		MaxDelayedBlocks:   cfg.Processing.MaxDelayedBlocks,
		WriteCSV:           cfg.Processing.WriteCSV,
		PerBlockCallbacks:  cfg.Callback.PerBlock,
		DefaultCallbackURL: cfg.Callback.DefaultURL,
	}, appanalysis.Deps{
		Repo:      repo,
		Notifier:  callback.New(&http.Client{Timeout: cfg.Callback.Timeout}),
		Results:   results,
		Artifacts: artifacts,
		Publisher: publisher,
		Engine:    engine,
		Rand:      rnd,
		Clock:     application.SystemClock{},
		Log:       log,
	})

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit.Capacity > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
		defer limiter.Stop()
	}

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		Log:         log,
		APIKeys:     middleware.KeysFromList(cfg.Server.APIKeys),
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Checkers:    checkers,
	}))

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", addr),
			zap.String("results_dir", results.Dir()),
			zap.Duration("block_delay", cfg.Processing.BlockDelay),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	ctx2, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Warn("http shutdown error", zap.Error(err))
	}
	if err := svc.Shutdown(ctx2); err != nil {
		log.Warn("analysis workers did not stop in time", zap.Error(err))
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config) (domain.JobRepository, *sql.DB, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		repo := mysqlp.NewJobRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("mysql migrate: %w", err)
		}
		return repo, db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		repo := postgres.NewJobRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return repo, db, nil
	default:
		return memory.NewJobRepository(), nil, nil
	}
}

func openPredictor(cfg *config.Config) (scoring.Predictor, error) {
	switch cfg.Scoring.Mode {
	case config.ScoringModel:
		m, err := classifier.Load(cfg.Scoring.ModelPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ScoringOpenAI:
		if cfg.OpenAI.BaseURL != "" {
			oc := goopenai.DefaultConfig(cfg.OpenAI.APIKey)
			oc.BaseURL = cfg.OpenAI.BaseURL
			return openai.NewClientWithConfig(oc, cfg.OpenAI.Model), nil
		}
		return openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil
	default:
		return nil, nil
	}
}
