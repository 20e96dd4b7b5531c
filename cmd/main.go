package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/okian/scoutnotes/internal/adapters/forms"
	"github.com/okian/scoutnotes/internal/adapters/http/api"
	"github.com/okian/scoutnotes/internal/adapters/http/swagger"
	"github.com/okian/scoutnotes/internal/adapters/repository"
	service "github.com/okian/scoutnotes/internal/app"
	"github.com/okian/scoutnotes/internal/config"
	"github.com/okian/scoutnotes/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the draft API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	handler, err := newHandler(ctx, cfg, svc)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// buildService wires the draft store and form source selected by cfg. The
// returned cleanup releases what the service does not own.
func buildService(ctx context.Context, cfg *config.Config) (*service.Service, func(), error) {
	log := logger.Get()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithMaxNamedDrafts(cfg.MaxNamedDrafts),
	}

	var pool *pgxpool.Pool
	if cfg.StoreDriver == config.StorePostgres || cfg.FormSource == config.FormsPostgres {
		p, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, cleanup, fmt.Errorf("ping postgres: %w", err)
		}
		pool = p
	}

	var store repository.Store
	if cfg.StoreDriver == config.StorePostgres {
		pg := repository.NewPostgresFromPool(pool, repository.WithPostgresLogger(log.Named("repository")))
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, cleanup, err
		}
		// the service closes the store, and with it the pool
		store = pg
		opts = append(opts, service.WithStore(store))
	} else if pool != nil {
		closers = append(closers, pool.Close)
	}

	provider, err := buildFormProvider(ctx, cfg, pool, &closers)
	if err != nil {
		cleanup()
		if store != nil {
			_ = store.Close()
		}
		return nil, func() {}, err
	}
	opts = append(opts, service.WithFormProvider(provider))

	return service.New(opts...), cleanup, nil
}

// buildFormProvider layers the configured form source under an optional
// Redis cache and a singleflight coalescer.
func buildFormProvider(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, closers *[]func()) (forms.Provider, error) {
	log := logger.Get()

	catalog, err := forms.LoadCatalog(cfg.RubricCatalogPath)
	if err != nil {
		return nil, err
	}

	var provider forms.Provider = catalog
	if cfg.FormSource == config.FormsPostgres {
		pg := forms.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		n, err := pg.Seed(ctx, catalog.Forms())
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "rubric forms seeded", logger.Int("published", n))
		provider = pg
	}

	if cfg.RedisURL != "" {
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("%w: redis_url: %w", config.ErrInvalidConfig, err)
		}
		client := redis.NewClient(ropts)
		*closers = append(*closers, func() { _ = client.Close() })
		provider = forms.NewRedisCache(client, provider, forms.WithTTL(cfg.RubricCacheTTL()))
		log.Info(ctx, "rubric form cache enabled", logger.Duration("ttl", cfg.RubricCacheTTL()))
	}

	return forms.NewCoalesce(provider), nil
}

// newHandler builds the chi router with the API and docs routes.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) (http.Handler, error) {
	auth, err := api.NewAuthenticator(cfg.AuthMode, cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	r := chi.NewRouter()
	api.NewServer(svc, svc, auth).Register(ctx, r)
	swagger.Register(ctx, r)
	return r, nil
}

// startServiceMetricsUpdater refreshes the stored-drafts gauge until ctx ends.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the gauge as a side effect
			_ = svc.GetStats(ctx)
		}
	}
}
