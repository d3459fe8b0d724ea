package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-learn/internal/account"
	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/httpapi"
	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
	"github.com/p-n-ai/pai-learn/internal/platform/database"
	"github.com/p-n-ai/pai-learn/internal/progress"
	"github.com/p-n-ai/pai-learn/internal/report"
	"github.com/p-n-ai/pai-learn/internal/storage/memstore"
	"github.com/p-n-ai/pai-learn/internal/storage/pgstore"
)

// store is everything the services need from a persistence backend.
type store interface {
	progress.Store
	catalog.Store
	account.Store
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		st     store
		events progress.EventLogger = progress.NopEventLogger{}
		checks []httpapi.Check
	)

	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
		}
		pg, err := pgstore.New(db.Pool)
		if err != nil {
			return err
		}
		st = pg
		events = progress.NewPostgresEventLogger(db.Pool)
		checks = append(checks, httpapi.Check{Name: "database", Fn: db.HealthCheck})
		slog.Info("using postgres store", "max_conns", cfg.Database.MaxConns)
	default:
		st = memstore.New()
		slog.Warn("using in-memory store; data is lost on restart")
	}

	engineCfg := progress.EngineConfig{Store: st, Events: events}
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, certificate verification is uncached", "error", err)
		} else {
			defer c.Close()
			engineCfg.VerifyCache = progress.NewRedisVerifyCache(c, cfg.Certificate.VerifyCacheTTL)
			checks = append(checks, httpapi.Check{Name: "cache", Fn: c.HealthCheck})
		}
	}

	accounts := account.NewService(st)
	engineCfg.Users = accounts
	cat := catalog.NewService(catalog.ServiceConfig{
		Store:               st,
		DefaultPassingScore: cfg.Grading.DefaultPassingScore,
		DefaultMaxAttempts:  cfg.Grading.DefaultMaxAttempts,
	})

	if cfg.CatalogPath != "" {
		loader, err := catalog.NewLoader(cat)
		if err != nil {
			return err
		}
		if _, err := loader.ImportDir(ctx, cfg.CatalogPath); err != nil {
			return err
		}
	}

	api := httpapi.New(httpapi.Config{
		Accounts: accounts,
		Catalog:  cat,
		Progress: progress.NewEngine(engineCfg),
		Reports:  report.NewService(report.ServiceConfig{Store: st, Users: accounts}),
	})

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      newMux(api, checks...),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// newMux creates the HTTP router with health check endpoints in front of
// the API.
func newMux(api http.Handler, checks ...httpapi.Check) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /readyz", httpapi.ReadyHandler(checks...))
	mux.Handle("/api/", api)
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
