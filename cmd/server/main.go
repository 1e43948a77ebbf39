package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetvault/internal/config"
	"github.com/JonMunkholm/sheetvault/internal/core"
	"github.com/JonMunkholm/sheetvault/internal/database"
	"github.com/JonMunkholm/sheetvault/internal/logging"
	"github.com/JonMunkholm/sheetvault/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		ConnectRetries:  cfg.Database.ConnectRetries,
		ConnectBackoff:  cfg.Database.ConnectBackoff,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	if cfg.Migrations.AutoMigrate {
		if err := database.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
	}

	service := core.NewService(database.NewStore(pool), core.OptionsFromConfig(cfg))
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		service.StartRetentionScheduler(gctx, core.RetentionConfig{
			ProcessingErrorDays: cfg.Retention.ProcessingErrorDays,
			CheckInterval:       cfg.Retention.CheckInterval,
		})
		return nil
	})

	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then let running imports commit.
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if status := service.ImportLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
		return nil
	})

	return g.Wait()
}
