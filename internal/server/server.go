package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mzaid0/Nestora/config"
	_ "github.com/mzaid0/Nestora/docs"
	"github.com/mzaid0/Nestora/internal/auth"
	"github.com/mzaid0/Nestora/internal/db"
	"github.com/mzaid0/Nestora/internal/events"
	"github.com/mzaid0/Nestora/internal/handlers"
	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/mq"
	"github.com/mzaid0/Nestora/internal/services"
	"github.com/mzaid0/Nestora/internal/storage"
	"github.com/mzaid0/Nestora/internal/store"
	httpSwagger "github.com/swaggo/http-swagger"
)

const shutdownTimeout = 10 * time.Second

// Server owns the HTTP server and the connections it was built on.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
	log        logging.Logger
}

// New connects to the configured database, object storage and broker and
// mounts the API under cfg.APIPrefix.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher, err := auth.NewBcryptHasher(cfg.Auth.HashCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}

	s := &Server{log: log}

	var users services.UserRepository
	var health handlers.Pinger
	if cfg.Database.Driver == db.DriverMemory {
		log.Warn(ctx, "using in-memory user store; data is lost on restart")
		users = store.NewMemoryUserRepository()
	} else {
		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.db = dbConn
		users = store.NewUserRepository(dbConn)
		health = dbConn
	}

	objects, err := storage.NewBackend(ctx, cfg.Storage)
	if err != nil {
		s.closeResources()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		s.closeResources()
		return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
	}
	avatars := storage.NewAvatarStore(objects, cfg.Storage.PublicBaseURL)

	var publisher events.Publisher = events.Nop{}
	broker, err := mq.NewBackend(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		log.Info(ctx, "user events disabled")
	case err != nil:
		s.closeResources()
		return nil, fmt.Errorf("init mq: %w", err)
	default:
		s.broker = broker
		publisher = events.NewMQPublisher(broker, cfg.MQ.EventsChannel)
	}

	authService := services.NewAuthService(users, hasher, tokens, avatars, publisher, log)
	userService := services.NewUserService(users, tokens, log)
	authHandler := handlers.NewAuthHandler(authService, handlers.CookieConfig{
		Name:   cfg.Auth.CookieName,
		Secure: cfg.IsProduction(),
		TTL:    tokens.TTL(),
	}, log)
	requireSession := handlers.RequireSession(userService, cfg.Auth.CookieName, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)
	router.Get("/healthz", handlers.Health(health))
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	router.Route(cfg.APIPrefix, func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, requireSession)
	})

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.closeResources()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests and closes the database and broker.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.closeResources()
	return err
}

func (s *Server) closeResources() {
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.log.Warn(context.Background(), "close broker", "error", err)
		}
		s.broker = nil
	}
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}
