// Package app owns the database client and every component built on it.
// One App per process; Initialize must succeed before anything else is used.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"go-inventory-offline/internal/apperr"
	"go-inventory-offline/internal/backup"
	"go-inventory-offline/internal/config"
	"go-inventory-offline/internal/database"
	"go-inventory-offline/internal/gateway"
	"go-inventory-offline/internal/metrics"
	"go-inventory-offline/internal/notify"
	"go-inventory-offline/internal/service"
	pkgdb "go-inventory-offline/pkg/database"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"gorm.io/gorm"
)

type App struct {
	cfg *config.Config
	db  *gorm.DB

	Gateway  *gateway.Gateway
	Hub      *notify.Hub
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	Stock        service.StockService
	Distribution service.DistributionService
	Backup       service.BackupService
	Auth         service.AuthService
	Dashboard    service.DashboardService

	mu          sync.Mutex
	initialized bool
}

// New opens the database and wires every component. The gateway stays closed
// to general traffic until Initialize succeeds.
func New(cfg *config.Config) (*App, error) {
	db, err := pkgdb.ConnectDB(pkgdb.Options{
		Path:     cfg.Database.Path,
		LogLevel: cfg.Database.LogLevel,
	})
	if err != nil {
		return nil, &apperr.InitializationError{Stage: "connect", Err: err}
	}

	// Dependency Injection (Wiring Layers)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := notify.NewHub()
	go hub.Run()

	gw := gateway.New(db)

	return &App{
		cfg:          cfg,
		db:           db,
		Gateway:      gw,
		Hub:          hub,
		Metrics:      m,
		Registry:     reg,
		Stock:        service.NewStockService(gw, hub, m),
		Distribution: service.NewDistributionService(gw, hub, m),
		Backup:       service.NewBackupService(gw, hub, m),
		Auth:         service.NewAuthService(gw),
		Dashboard:    service.NewDashboardService(gw, m),
	}, nil
}

// Initialize migrates the schema, seeds defaults and opens the gateway.
// Any failure is an *apperr.InitializationError. A second call returns
// apperr.ErrAlreadyInitialized whatever the first call's outcome.
func (a *App) Initialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return apperr.ErrAlreadyInitialized
	}
	a.initialized = true

	// 1. Schema
	if err := database.NewMigrator(a.db).RunMigrations(); err != nil {
		return &apperr.InitializationError{Stage: "migrate", Err: err}
	}

	// 2. Default categories and admin user
	err := database.Seed(a.db, database.SeedOptions{
		AdminUsername: a.cfg.Seed.AdminUsername,
		AdminPassword: a.cfg.Seed.AdminPassword,
		AdminRole:     a.cfg.Seed.AdminRole,
	})
	if err != nil {
		return &apperr.InitializationError{Stage: "seed", Err: err}
	}

	a.Gateway.MarkReady()
	log.Println("[DB] Database ready")
	return nil
}

// BackupStore returns the S3 store when configured, otherwise the local directory.
func (a *App) BackupStore(ctx context.Context) (backup.Store, error) {
	s3cfg := a.cfg.Backup.S3
	if !s3cfg.Enabled {
		return backup.NewFileStore(a.cfg.Backup.Dir), nil
	}
	return backup.NewS3Store(ctx, backup.S3Options{
		Bucket:    s3cfg.Bucket,
		Region:    s3cfg.Region,
		Endpoint:  s3cfg.Endpoint,
		AccessKey: s3cfg.AccessKey,
		SecretKey: s3cfg.SecretKey,
		Prefix:    s3cfg.Prefix,
	})
}

// WriteMetrics refreshes the on-hand gauge and writes the registry in the
// Prometheus text format.
func (a *App) WriteMetrics(w io.Writer) error {
	if _, err := a.Dashboard.Stats(); err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}
	families, err := a.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// WriteMetricsFile writes the registry atomically to path, for the node
// exporter textfile collector.
func (a *App) WriteMetricsFile(path string) error {
	if _, err := a.Dashboard.Stats(); err != nil {
		return fmt.Errorf("refresh stats: %w", err)
	}
	return prometheus.WriteToTextfile(path, a.Registry)
}

// Close stops the hub and releases the connection.
func (a *App) Close() error {
	a.Hub.Close()
	return pkgdb.Close(a.db)
}
