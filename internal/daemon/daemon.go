package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ratehive/ratehive/internal/api"
	"github.com/ratehive/ratehive/internal/app/award"
	"github.com/ratehive/ratehive/internal/app/badges"
	"github.com/ratehive/ratehive/internal/domain"
	"github.com/ratehive/ratehive/internal/health"
	"github.com/ratehive/ratehive/internal/infra/memstore"
	_ "github.com/ratehive/ratehive/internal/infra/metrics" // Register Prometheus metrics
	"github.com/ratehive/ratehive/internal/infra/postgres"
	"github.com/ratehive/ratehive/internal/infra/sqlite"
	"github.com/ratehive/ratehive/internal/jobs"
)

// Daemon is the core RateHive runtime. It wires together all services.
type Daemon struct {
	Config      Config
	Store       domain.Store
	Catalog     *badges.Catalog
	Coordinator *award.Coordinator
	Server      *api.Server
	Health      *health.Checker
	Jobs        *jobs.Scheduler
	cancel      context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	configureLogging(cfg.Logging)

	store, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	catalog := badges.NewCatalog(store, cfg.Awards.CatalogTTL())

	pointOverrides := make(map[domain.ActionType]int64, len(cfg.Awards.Points))
	for action, pts := range cfg.Awards.Points {
		pointOverrides[domain.ActionType(action)] = pts
	}
	coord, err := award.NewCoordinator(store, catalog, award.Config{
		LockWait: cfg.Awards.LockWait(),
		Points:   pointOverrides,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init coordinator: %w", err)
	}

	srv := api.NewServer(coord, store)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	checker := health.NewChecker(store, ratehiveHome())
	srv.SetHealthChecker(checker)

	d := &Daemon{
		Config:      cfg,
		Store:       store,
		Catalog:     catalog,
		Coordinator: coord,
		Server:      srv,
		Health:      checker,
	}

	if cfg.Jobs.Enabled {
		d.Jobs = jobs.NewScheduler(store, catalog, jobs.Config{
			ReconcileSpec:      cfg.Jobs.ReconcileSpec,
			CatalogRefreshSpec: cfg.Jobs.CatalogRefreshSpec,
		})
	}

	return d, nil
}

// openStore opens the configured ledger store.
func openStore(cfg StoreConfig) (domain.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.Open(ratehiveHome())
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.Open(ctx, cfg.DSN)
	case "memory":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func configureLogging(cfg LoggingConfig) {
	if lvl, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	}
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	if d.Jobs != nil {
		if err := d.Jobs.Start(ctx); err != nil {
			return fmt.Errorf("start jobs: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if d.Jobs != nil {
			d.Jobs.Stop()
		}
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Store.Close()
	}()

	log.WithFields(log.Fields{
		"addr":  addr,
		"store": d.Config.Store.Driver,
	}).Info("ratehive serving")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Jobs != nil {
		d.Jobs.Stop()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}
