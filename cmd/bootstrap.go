package cmd

import (
	"context"
	"fmt"

	"overlay-engine/core/config"
	"overlay-engine/core/database"
	"overlay-engine/core/logger"
	"overlay-engine/core/storage"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/overlay"
	"overlay-engine/feature/pricing"
	"overlay-engine/feature/rules"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// deps is the wired set of components shared by every command.
type deps struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *gorm.DB
	scheduler *pricing.Scheduler
	overlays  *overlay.Service
}

// bootstrap loads configuration, connects the database, migrates the schema and
// wires the pricing and overlay components.
func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	migrations := []struct {
		name    string
		migrate func(*gorm.DB) error
	}{
		{"catalog", catalog.Migrate},
		{"rules", rules.Migrate},
		{"pricing", pricing.Migrate},
		{"overlays", overlay.Migrate},
	}
	for _, m := range migrations {
		if err := m.migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", m.name, err)
		}
	}
	logg.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	prices := pricing.NewStore(db)
	scheduler := pricing.NewScheduler(prices, pricing.NewHTTPMarket(cfg.Market), cfg.Pricing, cfg.Market, logg)

	var store overlay.Store = overlay.NewGormStore(db)
	if cfg.Overlay.ArchiveEnabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			return nil, err
		}
		store = overlay.NewArchivingStore(store, client, cfg.Storage.Bucket, cfg.Overlay.ArchivePrefix, logg)
		logg.Info("Overlay archive enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	engine := overlay.NewEngine(
		catalog.NewRepository(db),
		rules.NewRegistry(db, logg),
		prices,
		store,
		cfg.Overlay,
		logg,
	)

	return &deps{
		cfg:       cfg,
		logger:    logg,
		db:        db,
		scheduler: scheduler,
		overlays:  overlay.NewService(engine, store, logg),
	}, nil
}

// refreshSleep is the configured pause between market batches.
func (a *deps) refreshSleep() int {
	if a.cfg.Pricing.SleepMs < 0 {
		return 0
	}
	return a.cfg.Pricing.SleepMs
}
