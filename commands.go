package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/review-engine/pkg/config"
	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/handlers"
	"github.com/ekaya-inc/review-engine/pkg/llm"
	"github.com/ekaya-inc/review-engine/pkg/logging"
	"github.com/ekaya-inc/review-engine/pkg/middleware"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
	"github.com/ekaya-inc/review-engine/pkg/seed"
	"github.com/ekaya-inc/review-engine/pkg/services"
	"github.com/ekaya-inc/review-engine/pkg/services/accesslog"
	"github.com/ekaya-inc/review-engine/pkg/services/workqueue"
)

// app carries what every command needs. setup fills it before any action runs.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func (a *app) setup(ctx context.Context, _ *cli.Command) (context.Context, error) {
	cfg, err := config.Load(Version, config.ResolvePath(a.configPath))
	if err != nil {
		return ctx, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return ctx, err
	}
	a.cfg, a.logger = cfg, logger

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("annotator_provider", cfg.Annotator.Provider),
		zap.String("annotator_model", cfg.Annotator.Model),
		zap.String("access_log_broker", cfg.AccessLog.Broker))
	return ctx, nil
}

// connect opens the pool, retrying while the database starts up.
func (a *app) connect(ctx context.Context) (*database.DB, error) {
	db, err := database.ConnectWithRetry(ctx, &database.Config{
		URL:               a.cfg.Database.ConnectionString(),
		MaxConnections:    a.cfg.Database.MaxConnections,
		ConnectAttempts:   a.cfg.Database.ConnectRetries,
		ConnectRetryDelay: a.cfg.Database.ConnectRetryDelay,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// connectAndMigrate connects and brings the schema up to date.
func (a *app) connectAndMigrate(ctx context.Context) (*database.DB, error) {
	db, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db, a.logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (a *app) newLLMClient() (llm.LLMClient, error) {
	llmCfg := &llm.Config{
		Endpoint: a.cfg.Annotator.Endpoint(),
		Model:    a.cfg.Annotator.Model,
		APIKey:   a.cfg.Annotator.APIKey(),
	}
	if a.cfg.Annotator.Provider == config.ProviderAnthropic {
		return llm.NewAnthropicClient(llmCfg, a.logger)
	}
	return llm.NewClient(llmCfg, a.logger)
}

// newEnrichment builds the annotator and the enrichment service. A nil
// getScope makes writes run on the scope already in the caller's context.
func (a *app) newEnrichment(reviews repositories.ReviewRepository, getScope database.ScopeFunc) (services.EnrichmentService, error) {
	client, err := a.newLLMClient()
	if err != nil {
		return nil, fmt.Errorf("create annotator client: %w", err)
	}
	annotator := services.NewSentimentAnnotator(client, services.AnnotatorConfig{
		Timeout:           a.cfg.Annotator.Timeout,
		RequestsPerSecond: a.cfg.Annotator.RequestsPerSecond,
		Breaker: llm.CircuitBreakerConfig{
			Threshold:  a.cfg.Annotator.BreakerThreshold,
			ResetAfter: a.cfg.Annotator.BreakerResetAfter,
		},
	}, a.logger)

	return services.NewEnrichmentService(reviews, annotator, getScope, services.EnrichmentConfig{
		MaxConcurrent:  a.cfg.Enrichment.MaxConcurrent,
		RetryAfter:     a.cfg.Enrichment.RetryAfter,
		AttemptTimeout: a.cfg.Enrichment.AttemptTimeout,
		WriteTimeout:   a.cfg.Enrichment.WriteTimeout,
	}, a.logger), nil
}

func (a *app) newSweeper(db *database.DB) (*services.EnrichmentSweeper, error) {
	reviews := repositories.NewReviewRepository()
	// The sweep holds no connection of its own while enriching.
	enrichment, err := a.newEnrichment(reviews, database.NewScopeFunc(db))
	if err != nil {
		return nil, err
	}
	return services.NewEnrichmentSweeper(reviews, enrichment, database.NewScopeFunc(db),
		a.cfg.Enrichment.SweepBatch, a.cfg.Enrichment.RetryAfter, a.logger), nil
}

// newRedis connects to Redis when access logs go through it.
func (a *app) newRedis(ctx context.Context) (*redis.Client, error) {
	if a.cfg.AccessLog.Broker != config.BrokerRedis {
		return nil, nil
	}
	return database.NewRedisClient(ctx, &a.cfg.Redis)
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func (a *app) serve(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	db, err := a.connectAndMigrate(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := a.newRedis(ctx)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	reviewRepo := repositories.NewReviewRepository()
	// Serial enrichment writes on the request's own connection. Parallel
	// enrichment gives that connection back and acquires one per write.
	var enrichScope database.ScopeFunc
	if a.cfg.Enrichment.MaxConcurrent > 1 {
		enrichScope = database.NewScopeFunc(db)
	}
	enrichment, err := a.newEnrichment(reviewRepo, enrichScope)
	if err != nil {
		return err
	}
	reviewService := services.NewReviewService(reviewRepo, a.cfg.Reviews.PageSize, a.logger)
	trendService := services.NewTrendService(repositories.NewTrendRepository(), a.cfg.Reviews.TrendsLimit, a.logger)

	var sink accesslog.Sink = accesslog.NewDirectSink(repositories.NewAccessLogRepository(), database.NewScopeFunc(db))
	if redisClient != nil {
		sink = accesslog.NewRedisSink(redisClient, a.cfg.Redis.AccessLogKey)
	}
	queue := workqueue.New(a.logger,
		workqueue.WithWorkers(a.cfg.AccessLog.Workers),
		workqueue.WithCapacity(a.cfg.AccessLog.QueueSize))
	accessLogger := accesslog.NewLogger(queue, sink, a.logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(a.cfg, a.logger).RegisterRoutes(mux)
	handlers.NewReviewsHandler(reviewService, enrichment, trendService, accessLogger, a.logger).
		RegisterRoutes(mux, database.WithScope(db, a.logger))

	var handler http.Handler = mux
	handler = middleware.RequestLogger(a.logger)(handler)
	handler = middleware.Recoverer(a.logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting review-engine",
			zap.String("addr", server.Addr),
			zap.String("version", a.cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down", zap.Duration("timeout", a.cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}
	// Requests are done; flush what they queued before the pool closes.
	if err := queue.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Access log queue not drained", zap.Error(err))
	}
	stats := queue.Stats()
	a.logger.Info("Stopped",
		zap.Int64("access_log_written", stats.Completed),
		zap.Int64("access_log_failed", stats.Failed),
		zap.Int64("access_log_dropped", stats.Dropped))
	return nil
}

func (a *app) worker(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	db, err := a.connectAndMigrate(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := a.newRedis(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if redisClient != nil {
		defer redisClient.Close()
		sink := accesslog.NewDirectSink(repositories.NewAccessLogRepository(), database.NewScopeFunc(db))
		consumer := accesslog.NewConsumer(redisClient, a.cfg.Redis.AccessLogKey, sink, a.logger)
		g.Go(func() error { return consumer.Run(ctx) })
	}

	if a.cfg.Enrichment.SweepInterval > 0 {
		sweeper, err := a.newSweeper(db)
		if err != nil {
			return err
		}
		g.Go(func() error { return sweeper.Run(ctx, a.cfg.Enrichment.SweepInterval) })
	}

	if redisClient == nil && a.cfg.Enrichment.SweepInterval <= 0 {
		return errors.New("nothing to do: access_log.broker is not redis and enrichment.sweep_interval is 0")
	}
	return g.Wait()
}

func (a *app) migrate(ctx context.Context, _ *cli.Command) error {
	db, err := a.connectAndMigrate(ctx)
	if err != nil {
		return err
	}
	db.Close()
	a.logger.Info("Migrations applied")
	return nil
}

func (a *app) seed(ctx context.Context, _ *cli.Command) error {
	db, err := a.connectAndMigrate(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	fixture, err := seed.DefaultFixture()
	if err != nil {
		return err
	}

	scope, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()

	seeder := seed.NewSeeder(repositories.NewCategoryRepository(), repositories.NewReviewRepository(), a.logger)
	res, err := seeder.Run(database.SetScope(ctx, scope), fixture)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	fmt.Printf("Seeded %d categories and %d reviews (%d categories already present)\n",
		res.CategoriesCreated, res.ReviewsCreated, res.CategoriesSkipped)
	return nil
}

func (a *app) enrich(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	db, err := a.connectAndMigrate(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sweeper, err := a.newSweeper(db)
	if err != nil {
		return err
	}
	res, err := sweeper.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Enriched %d of %d reviews\n", res.Enriched, res.Scanned)
	return nil
}
