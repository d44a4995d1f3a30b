package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"overlay-engine/core/loader"
	"overlay-engine/core/logger"
	"overlay-engine/core/middleware/auth"
	"overlay-engine/core/middleware/rayid"
	"overlay-engine/feature/overlay"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "overlay-engine/docs/swagger"
)

// @title Overlay Engine API
// @version 1.0
// @description Tier-specific profit overlays of the catalog tables.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the overlay server",
	Long: `Starts the HTTP server serving overlays and, when a schedule is configured,
refreshes prices and recomputes overlays periodically.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := context.WithCancel(context.Background())
		defer stop()

		// 1. Configuration, logger, database and components
		a, err := bootstrap(ctx)
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		logg := a.logger
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 2. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		// 3. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(overlay.NewFeature(a.overlays))

		// RayID first so every log line can be traced.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Swagger documentation is public.
		app.Get("/swagger/*", swagger.HandlerDefault)

		app.Use(auth.New(auth.Config{ApiKey: a.cfg.Server.ApiKey}))

		// 4. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 5. Scheduler
		if period := a.cfg.Overlay.Schedule(); period > 0 {
			go a.schedule(ctx, period)
		}

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
			if err := app.Listen(a.cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		stop()
		_ = app.Shutdown()
	},
}

// schedule refreshes prices and then recomputes overlays every period until ctx
// is done. The first cycle starts immediately.
func (a *deps) schedule(ctx context.Context, period time.Duration) {
	a.logger.Info("Scheduler started", zap.Duration("period", period))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		a.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *deps) cycle(ctx context.Context) {
	sleep := time.Duration(a.refreshSleep()) * time.Millisecond
	if _, err := a.scheduler.Refresh(ctx, a.cfg.Pricing.RefreshLimit, sleep); err != nil {
		a.logger.Error("Scheduled refresh failed", zap.Error(err))
	}
	if ctx.Err() != nil {
		return
	}

	_, err := a.overlays.Run(ctx, overlay.RunOptions{})
	switch {
	case errors.Is(err, overlay.ErrRunInProgress):
		a.logger.Info("Scheduled run skipped, a run is in progress")
	case err != nil:
		a.logger.Error("Scheduled run failed", zap.Error(err))
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
