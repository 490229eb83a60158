package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookmark-reconciler/core/config"
	"bookmark-reconciler/core/database"
	"bookmark-reconciler/core/loader"
	"bookmark-reconciler/core/logger"
	"bookmark-reconciler/core/metrics"
	"bookmark-reconciler/core/middleware/auth"
	"bookmark-reconciler/core/middleware/rayid"
	"bookmark-reconciler/core/reconcile"
	"bookmark-reconciler/core/storage"
	"bookmark-reconciler/feature/bookmarks"
	"bookmark-reconciler/feature/integrity"
	"bookmark-reconciler/feature/reconciliation"
	"bookmark-reconciler/feature/snapshot"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(configDir)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database (Optional, the reconciliation feature stays disabled without it)
		var store reconciliation.TreeStore
		var db *gorm.DB
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed", zap.Error(err))
		} else {
			db = conn
			bs := bookmarks.NewStore(db)
			if err := bs.Prepare(context.Background()); err != nil {
				logg.Fatal("Failed to prepare bookmark table", zap.Error(err))
			}
			store = bs
			logg.Info("Connected to bookmark database", zap.String("driver", cfg.Database.Driver))
		}

		// 4. Initialize Storage (Optional, snapshots and reports are skipped without it)
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			logg.Warn("Failed to create storage client", zap.Error(err))
		}
		snapshots := asSnapshots(connectSnapshots(cfg, client, logg))

		// 5. Metrics
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder := metrics.NewRecorder(reg)

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
			BodyLimit:             cfg.Server.BodyLimit(),
		})

		// 6. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(reconciliation.NewFeature(store, snapshots, cfg.Reconcile, cfg.Apply, logg, reconcile.WithRecorder(recorder)))
		mgr.Register(integrity.NewFeature(db, client, cfg.Storage, logg))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
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

		// 2.5 Metrics endpoint (Public)
		if cfg.Server.Metrics {
			app.Get("/metrics", metrics.Handler(reg))
		}

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 7. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(cfg.Server.Address()); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.ShutdownWithTimeout(30 * time.Second)
	},
}

// connectSnapshots returns the snapshot store, or nil when object storage is unavailable.
func connectSnapshots(cfg *config.Config, client storage.Client, logg *zap.Logger) *snapshot.Store {
	if client == nil {
		return nil
	}

	timeout := cfg.Storage.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()
	if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
		logg.Warn("Snapshot storage disabled", zap.Error(err))
		return nil
	}
	return snapshot.NewStore(client, cfg.Storage.Bucket, cfg.Storage.Prefix)
}

// asSnapshots avoids handing a typed nil to the service.
func asSnapshots(s *snapshot.Store) reconciliation.Snapshots {
	if s == nil {
		return nil
	}
	return s
}

func init() {
	RootCmd.AddCommand(startCmd)
}
