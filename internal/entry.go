// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sowilo/internal/api"
	"github.com/starford/sowilo/internal/index"
	"github.com/starford/sowilo/internal/mcpserver"
	"github.com/starford/sowilo/internal/notebook"
	"github.com/starford/sowilo/internal/session"
	"github.com/starford/sowilo/internal/sse"
	"github.com/starford/sowilo/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// engine is the loaded notebook with its session registry.
type engine struct {
	store    *storage.FS
	db       *index.DB
	book     *notebook.Service
	sessions *session.Registry
}

// openEngine opens the vault and the index, loads every note and wires the
// session registry to notebook reloads. publish receives session events.
func openEngine(cfg *Config, logger *slog.Logger, publish func(session.Event)) (*engine, error) {
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

	book := notebook.NewService(store, db, logger, notebook.WithSaveDelay(cfg.Editor.SaveDelay))
	if err := book.Load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load notes: %w", err)
	}

	regOpts := []session.Option{session.WithHistoryLimit(cfg.Editor.HistoryLimit)}
	if publish != nil {
		regOpts = append(regOpts, session.WithPublisher(publish))
	}
	sessions := session.NewRegistry(book, db, logger, regOpts...)
	book.OnReload(sessions.NoteChanged)

	return &engine{store: store, db: db, book: book, sessions: sessions}, nil
}

// run starts the background loops: the vault watcher, the saver and the
// file collector. cb receives watcher events.
func (e *engine) run(ctx context.Context, g *errgroup.Group, cfg *Config, cb notebook.EventCallback) {
	g.Go(func() error {
		return e.book.Watch(ctx, e.store.NotesDir(), cb)
	})
	g.Go(func() error {
		return e.book.RunSaver(ctx)
	})
	g.Go(func() error {
		return e.book.RunCollector(ctx, cfg.Editor.CollectInterval, cfg.Editor.CollectGrace)
	})
}

func (e *engine) close(logger *slog.Logger) {
	e.sessions.CloseAll()
	if err := e.book.Flush(); err != nil {
		logger.Error("final flush failed", slog.String("error", err.Error()))
	}
	if err := e.db.Close(); err != nil {
		logger.Error("close index failed", slog.String("error", err.Error()))
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP API with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Int("history_limit", cfg.Editor.HistoryLimit),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Editor.EventThrottle)
	defer broker.Close()

	eng, err := openEngine(cfg, logger, func(ev session.Event) {
		broker.PublishNoteEvent(ev.Kind, ev.NoteID, ev)
	})
	if err != nil {
		return err
	}
	defer eng.close(logger)

	apiRouter := api.NewRouter(eng.book, eng.sessions, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Vault watcher, saver and collector. External changes go out over SSE.
	eng.run(gCtx, g, cfg, func(kind string, noteID uuid.UUID) {
		typ := sse.TypeNoteReloaded
		if kind == "deleted" {
			typ = sse.TypeNoteDeleted
		}
		broker.PublishNoteEvent(typ, noteID, map[string]string{"note_id": noteID.String()})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or when another loop fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

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

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	eng, err := openEngine(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer eng.close(logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	eng.run(gCtx, g, cfg, func(kind string, noteID uuid.UUID) {
		logger.Info("vault change", slog.String("kind", kind), slog.String("note", noteID.String()))
	})

	srv := mcpserver.New(eng.book, eng.sessions, app.version)
	g.Go(func() error {
		defer cancel()
		logger.Info("Starting MCP server on stdio")
		return srv.ServeStdio()
	})

	return g.Wait()
}
