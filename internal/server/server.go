// Package server wires storage, sessions, the engine and the HTTP handlers
// into one router and runs it with graceful shutdown.
package server

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
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/snippet-runner/internal/auth"
	"github.com/sakif/snippet-runner/internal/config"
	"github.com/sakif/snippet-runner/internal/engine"
	"github.com/sakif/snippet-runner/internal/handler"
	"github.com/sakif/snippet-runner/internal/middleware"
	sqliteRepo "github.com/sakif/snippet-runner/internal/repository/sqlite"
	"github.com/sakif/snippet-runner/internal/service"
	"github.com/sakif/snippet-runner/internal/session"
)

const sweepInterval = time.Minute

// Server owns the router and everything it closes on shutdown.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *session.Manager
	engine   *engine.Engine
	tokens   *auth.TokenService
}

// New opens the database and builds the routes. The engine is owned by the
// caller.
func New(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) (*Server, error) {
	var tokens *auth.TokenService
	if cfg.Auth.JWTSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("creating token service: %w", err)
		}
	} else {
		logger.Warn("auth.jwt_secret not set, session routes are open")
	}

	db, err := sqliteRepo.New(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: session.NewManager(cfg.Session.TTL, logger),
		engine:   eng,
		tokens:   tokens,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	snippetService := service.NewSnippetService(s.db, s.logger)
	runService := service.NewRunService(s.engine, s.sessions, s.db, s.config.Execution.MaxCodeLength, s.logger)

	executeHandler := handler.NewExecuteHandler(runService, s.logger)
	snippetHandler := handler.NewSnippetHandler(snippetService, s.logger)
	sessionHandler := handler.NewSessionHandler(s.sessions, runService, s.tokens, s.logger)

	s.router.Get("/health", handler.HandleHealth(s.engine))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", executeHandler.HandleExecute)

		r.Get("/snippets", snippetHandler.HandleList)
		r.Post("/snippets", snippetHandler.HandleCreate)
		r.Get("/snippets/{id}", snippetHandler.HandleGetByID)
		r.Put("/snippets/{id}", snippetHandler.HandleUpdate)
		r.Delete("/snippets/{id}", snippetHandler.HandleDelete)

		r.Post("/sessions", sessionHandler.HandleCreate)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(auth.RequireSession(s.tokens, "id"))
			r.Delete("/", sessionHandler.HandleDelete)
			r.Post("/run", sessionHandler.HandleRun)
			r.Get("/result", sessionHandler.HandleResult)
			r.Delete("/result", sessionHandler.HandleClear)
			r.Get("/preview", sessionHandler.HandlePreview)
			r.Get("/ws", sessionHandler.HandleWebSocket)
			r.Post("/snippets/{snippetId}/run", sessionHandler.HandleRunSnippet)
		})
	})
}

// Close stops the session sweeper, ends every session and closes the
// database.
func (s *Server) Close() error {
	s.sessions.Stop()
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Start() error {
	defer s.Close()
	s.sessions.Start(sweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.Execution.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Storage.DBPath),
			slog.Bool("python", s.engine.PythonAvailable()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
