// Package server is the composition root: it opens the database, builds the
// services and handlers, mounts the routes and runs the HTTP server with
// graceful shutdown.
//
//	config → sqlite.DB → services → handlers → chi router
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

	"github.com/sakif/gitpilot/internal/auth"
	"github.com/sakif/gitpilot/internal/config"
	"github.com/sakif/gitpilot/internal/events"
	"github.com/sakif/gitpilot/internal/github"
	"github.com/sakif/gitpilot/internal/handler"
	"github.com/sakif/gitpilot/internal/middleware"
	sqliteRepo "github.com/sakif/gitpilot/internal/repository/sqlite"
	"github.com/sakif/gitpilot/internal/service"
)

// Option overrides a default collaborator. Tests use these to avoid the
// network and slow bcrypt costs.
type Option func(*options)

type options struct {
	fetcher   service.RepositoryFetcher
	publisher events.Publisher
	invites   *auth.InviteCodes
}

func WithRepositoryFetcher(f service.RepositoryFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

func WithInviteCodes(c *auth.InviteCodes) Option {
	return func(o *options) { o.invites = c }
}

// Server owns the database connection and the event broker connection and
// closes both on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
	nats   *events.NATSPublisher // nil unless NATS_URL is set and reachable
}

// New wires the whole dependency graph. JWT_SECRET is required: every
// membership operation needs an authenticated caller.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service (set JWT_SECRET): %w", err)
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
	}

	if o.publisher == nil {
		o.publisher = s.connectPublisher()
	}
	if o.fetcher == nil {
		o.fetcher = github.NewClient(cfg.GitHubToken)
	}
	if o.invites == nil {
		o.invites = auth.NewInviteCodes()
	}

	s.setupRoutes(o)
	return s, nil
}

// connectPublisher dials NATS when configured. The server still starts
// without a broker; events are then dropped.
func (s *Server) connectPublisher() events.Publisher {
	if s.config.NATSURL == "" {
		return events.Noop{}
	}
	p, err := events.ConnectNATS(s.config.NATSURL, s.logger)
	if err != nil {
		s.logger.Warn("NATS unavailable, domain events will not be published",
			slog.String("error", err.Error()),
		)
		return events.Noop{}
	}
	s.nats = p
	return p
}

// Handler returns the router. Tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts middleware and routes.
//
//	GET    /healthz
//	GET    /auth/github/login              (when GitHub OAuth is configured)
//	GET    /auth/github/callback
//	POST   /auth/logout
//	GET    /api/me
//	POST   /api/me/onboarding
//	GET    /api/me/repository
//	GET    /api/projects                   public projects
//	POST   /api/projects
//	GET    /api/projects/mine
//	GET    /api/projects/{id}
//	PUT    /api/projects/{id}
//	POST   /api/projects/{id}/upvote
//	POST   /api/projects/{id}/invite
//	DELETE /api/projects/{id}/invite
//	POST   /api/projects/{id}/repository
//	GET    /api/projects/{id}/role
//	GET    /api/projects/{id}/members
//	PUT    /api/projects/{id}/members/{userID}
//	DELETE /api/projects/{id}/members/{userID}
//	POST   /api/projects/{id}/join-requests
//	GET    /api/projects/{id}/join-requests?status=
//	POST   /api/join-requests/{id}/resolve
//
// Identity is optional at the router level; each service decides what an
// anonymous caller may do and answers 401 where it must.
func (s *Server) setupRoutes(o options) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(auth.OptionalAuth(s.tokens))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	policy := service.JoinPolicy{AllowDuplicatePending: s.config.AllowDuplicateJoinRequests}

	authService := service.NewAuthService(s.db, s.tokens, s.logger)
	projectService := service.NewProjectService(s.db, s.db, o.invites, s.logger)
	membershipService := service.NewMembershipService(s.db, s.db, s.logger)
	joinRequestService := service.NewJoinRequestService(s.db, s.db, s.db, o.invites, o.publisher, policy, s.logger)
	repositoryService := service.NewRepositoryService(s.db, s.db, s.db, o.fetcher, s.logger)

	var githubProvider *auth.GitHubProvider
	if s.config.AuthEnabled() {
		githubProvider = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth not configured, login routes are disabled")
	}

	authHandler := handler.NewAuthHandler(githubProvider, authService, s.logger)
	projectHandler := handler.NewProjectHandler(projectService, repositoryService, s.logger)
	membershipHandler := handler.NewMembershipHandler(membershipService, s.logger)
	joinRequestHandler := handler.NewJoinRequestHandler(joinRequestService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if githubProvider != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	}
	s.router.Post("/auth/logout", authHandler.HandleLogout)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/me", authHandler.HandleMe)
		r.Post("/me/onboarding", authHandler.HandleCompleteOnboarding)
		r.Get("/me/repository", projectHandler.HandleMyRepository)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.HandleListPublic)
			r.Post("/", projectHandler.HandleCreate)
			r.Get("/mine", projectHandler.HandleListMine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", projectHandler.HandleGet)
				r.Put("/", projectHandler.HandleUpdate)
				r.Post("/upvote", projectHandler.HandleUpvote)
				r.Post("/invite", projectHandler.HandleRegenerateInvite)
				r.Delete("/invite", projectHandler.HandleRevokeInvite)
				r.Post("/repository", projectHandler.HandleConnectRepository)

				r.Get("/role", membershipHandler.HandleRole)
				r.Get("/members", membershipHandler.HandleList)
				r.Put("/members/{userID}", membershipHandler.HandleSetRole)
				r.Delete("/members/{userID}", membershipHandler.HandleRemove)

				r.Post("/join-requests", joinRequestHandler.HandleSubmit)
				r.Get("/join-requests", joinRequestHandler.HandleList)
			})
		})

		r.Post("/join-requests/{id}/resolve", joinRequestHandler.HandleResolve)
	})
}

// Close releases the database and broker connections.
func (s *Server) Close() error {
	if s.nats != nil {
		s.nats.Close()
	}
	return s.db.Close()
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
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
