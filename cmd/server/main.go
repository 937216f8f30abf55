package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/afterflow/internal/config"
	"github.com/JonMunkholm/afterflow/internal/core"
	"github.com/JonMunkholm/afterflow/internal/links"
	"github.com/JonMunkholm/afterflow/internal/logging"
	"github.com/JonMunkholm/afterflow/internal/metadata"
	"github.com/JonMunkholm/afterflow/internal/store"
	"github.com/JonMunkholm/afterflow/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"export_timezone", cfg.Export.Timezone,
		"metadata_enabled", cfg.Metadata.Enabled,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	loc, err := cfg.Export.Location()
	if err != nil {
		slog.Error("invalid export timezone", "timezone", cfg.Export.Timezone, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open session store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("session store ready", "driver", cfg.Database.Driver)

	var fetcher *metadata.Fetcher
	if cfg.Metadata.Enabled {
		fetcher, err = metadata.New(metadata.Config{
			Timeout:   cfg.Metadata.Timeout,
			CacheSize: cfg.Metadata.CacheSize,
			UserAgent: cfg.Metadata.UserAgent,
		})
		if err != nil {
			slog.Error("failed to create metadata fetcher", "error", err)
			os.Exit(1)
		}
	}

	service := core.NewService(st, core.ServiceConfig{
		MaxFileSize:          cfg.Import.MaxFileSize,
		MaxConcurrentImports: cfg.Import.MaxConcurrent,
		MaxWait:              cfg.Import.MaxWaitTime,
		ImportTimeout:        cfg.Import.Timeout,
		ExportTimeout:        cfg.Export.Timeout,
		Location:             loc,
		Classify:             links.Classify,
	})

	server := web.NewServer(service, fetcher, cfg)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
