// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/pile/internal/api"
	"github.com/starford/pile/internal/docservice"
	"github.com/starford/pile/internal/index"
	"github.com/starford/pile/internal/mcpserver"
	"github.com/starford/pile/internal/render"
	"github.com/starford/pile/internal/sse"
	"github.com/starford/pile/internal/storage"
	"github.com/starford/pile/internal/upload"
	"github.com/starford/pile/internal/workspace"
)

// vaultServices is what both the HTTP server and the MCP server run on.
type vaultServices struct {
	store *storage.FS
	db    *index.DB
	vault *upload.Vault
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the structured JSON logger and installs it as the default.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openVault prepares storage and the index and runs the initial sync. The
// caller closes the returned index.
func (a *application) openVault(logger *slog.Logger) (*vaultServices, error) {
	cfg := a.config
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return &vaultServices{store: store, db: db, vault: upload.NewVault(store)}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("upload_mode", cfg.Editor.Upload.Mode),
		slog.Any("schema", cfg.Editor.Schema.Keys()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	vs, err := app.openVault(logger)
	if err != nil {
		return err
	}
	defer vs.db.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	docs := docservice.NewService(vs.store, vs.db, docservice.WithChangeCallback(broker.PublishDocumentEvent))

	uploader, err := upload.Resolve(cfg.Editor.Upload.Mode, cfg.Editor.Upload.BaseURL, vs.store)
	if err != nil {
		return fmt.Errorf("init uploader: %w", err)
	}
	renderOpts := []render.Option{
		render.WithHighlightStyle(cfg.Editor.Preview.HighlightStyle),
		render.WithMinify(cfg.Editor.Preview.Minify),
	}
	if cfg.Editor.Preview.AllowHTML {
		renderOpts = append(renderOpts, render.WithUnsafe())
	}

	ws, err := workspace.New(docs, cfg.Editor.Schema,
		workspace.WithRenderer(render.NewMarkdown(renderOpts...)),
		workspace.WithUploader(uploader),
		workspace.WithEventPublisher(broker),
		workspace.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}

	attachments := api.NewAttachmentHandler(cfg.Vault.Path, vs.vault)
	apiRouter := api.NewRouter(api.Deps{
		Docs:        docs,
		Workspace:   ws,
		Attachments: attachments,
		Events:      broker,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := vs.db.Ping(); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)
	// Stored media, referenced from document bodies.
	r.Get("/attachments/{filename}", attachments.ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, vs.db, vs.store, cfg.Vault.Path, logger, broker.PublishDocumentEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully", slog.Int("open_sessions", len(ws.List())))
	return nil
}

// RunMCP serves the vault over MCP on stdin/stdout until the client
// disconnects or a shutdown signal arrives.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger()

	vs, err := app.openVault(logger)
	if err != nil {
		return err
	}
	defer vs.db.Close()

	docs := docservice.NewService(vs.store, vs.db)
	srv := mcpserver.New(docs, vs.vault)

	logger.Info("Starting MCP server", slog.String("vault_path", app.config.Vault.Path))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
