// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects storage, services,
// handlers and middleware, and decides which URL patterns map to which
// handler and what runs in front of them.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() creates:
//	  sqlite.DB       → Choir/Song/Asset repositories
//	  storage.Storage → local directory or MinIO bucket
//	  throttle        → Redis or in-process counters
//	  services        → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/choirhub/internal/auth"
	"github.com/sakif/choirhub/internal/config"
	"github.com/sakif/choirhub/internal/handler"
	"github.com/sakif/choirhub/internal/metrics"
	"github.com/sakif/choirhub/internal/middleware"
	sqliteRepo "github.com/sakif/choirhub/internal/repository/sqlite"
	"github.com/sakif/choirhub/internal/service"
	"github.com/sakif/choirhub/internal/storage"
	"github.com/sakif/choirhub/internal/throttle"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the storage root and the Redis
// client. Close releases them in reverse order of creation.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	files   storage.Storage
	limiter httprate.LimitCounter
	metrics *metrics.Metrics
	admin   *auth.AdminTokens
	closers []io.Closer
}

// New opens every backing store named by cfg and builds the router.
// On error anything already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// === DATABASE ===
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	s.db, err = sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.closers = append(s.closers, s.db)

	// === STORAGE ===
	if err := s.openStorage(ctx); err != nil {
		return nil, err
	}

	// === THROTTLE ===
	s.openLimiter(ctx)

	// === ADMIN TOKENS ===
	// Without a secret the admin API is simply not mounted.
	if cfg.AdminJWTSecret != "" {
		s.admin, err = auth.NewAdminTokens(cfg.AdminJWTSecret)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("ADMIN_JWT_SECRET not set; admin API disabled")
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) openStorage(ctx context.Context) error {
	switch s.config.StorageDriver {
	case config.StorageMinio:
		m, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  s.config.MinioEndpoint,
			AccessKey: s.config.MinioAccessKey,
			SecretKey: s.config.MinioSecretKey,
			Bucket:    s.config.MinioBucket,
			UseSSL:    s.config.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("opening object storage: %w", err)
		}
		s.files = m
	default:
		l, err := storage.NewLocal(s.config.StorageDir)
		if err != nil {
			return fmt.Errorf("opening local storage: %w", err)
		}
		s.files = l
		s.closers = append(s.closers, l)
	}
	return nil
}

// openLimiter picks the Redis counter store when configured. An unreachable
// Redis at startup is logged, not fatal: the store counts in process until
// Redis answers.
func (s *Server) openLimiter(ctx context.Context) {
	cfg := s.config
	if cfg.RedisAddr == "" {
		s.limiter = throttle.NewLocal(cfg.ThrottleWindow)
		return
	}

	// Fail fast; the counter store falls back to in-process counts.
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   -1,
	})
	s.closers = append(s.closers, client)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		s.logger.Warn("redis unreachable; throttle counts in process",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	}
	s.limiter = throttle.NewRedis(client, cfg.ThrottleWindow, s.logger)
}

// publicURL maps a storage key to the URL clients fetch it from.
func (s *Server) publicURL(key string) string {
	return storage.PublicURL(s.config.PublicBaseURL, key)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                              → DB ping
// GET    /metrics                              → Prometheus
// GET    /storage/*                            → stored files, inline
// POST   /api/login | validate-token | logout  → member session (throttled)
// GET    /api/songs, /api/songs/search, /api/songs/{uuid},
//        /api/song-assets/{uuid}/download     → member gate (throttled)
// *      /admin/...                            → admin JWT
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns an id to each request, read by Logger
// 2. RealIP: rewrites RemoteAddr from proxy headers, read by Throttle
// 3. Recoverer: turns a panic into a 500 instead of a crash
// 4. Logger, Metrics: observe the finished request
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(s.metrics))

	choirs := s.db.Choirs()
	songRepo := s.db.Songs()

	authSvc := service.NewAuthService(choirs, s.metrics, s.logger)
	choirSvc := service.NewChoirService(choirs, s.logger)
	songSvc := service.NewSongService(songRepo, s.files, s.logger)
	assetSvc := service.NewAssetService(s.db.Assets(), songRepo, s.files, s.logger)

	authH := handler.NewAuthHandler(authSvc, s.logger)
	songH := handler.NewSongHandler(songSvc, s.publicURL, s.logger)
	fileH := handler.NewFileHandler(assetSvc, s.metrics, s.logger)
	healthH := handler.NewHealthHandler(s.db, s.logger)

	// === Operational ===
	r.Get("/healthz", healthH.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/storage/*", fileH.HandleStorage)

	// === Member API ===
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Throttle(s.config.ThrottleLimit, s.config.ThrottleWindow, s.limiter, s.metrics, s.logger))

		r.Post("/login", authH.HandleLogin)
		r.Post("/validate-token", authH.HandleValidateToken)
		r.Post("/logout", authH.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireMember(authSvc, s.metrics, s.logger))

			r.Get("/songs", songH.HandleList)
			r.Get("/songs/search", songH.HandleSearch)
			r.Get("/songs/{uuid}", songH.HandleShow)
			r.Get("/song-assets/{uuid}/download", fileH.HandleDownload)
		})
	})

	// === Admin API ===
	if s.admin == nil {
		return
	}
	adminH := handler.NewAdminHandler(choirSvc, songSvc, s.publicURL, s.logger)
	assetH := handler.NewAssetHandler(assetSvc, s.publicURL, s.config.MaxUploadBytes(), s.logger)

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin(s.admin, s.logger))

		r.Get("/dashboard", adminH.HandleDashboard)

		r.Get("/choirs", adminH.HandleListChoirs)
		r.Post("/choirs", adminH.HandleCreateChoir)
		r.Put("/choirs/{uuid}", adminH.HandleUpdateChoir)
		r.Delete("/choirs/{uuid}", adminH.HandleDeleteChoir)

		r.Get("/songs", adminH.HandleListSongs)
		r.Post("/songs", adminH.HandleCreateSong)
		r.Put("/songs/{uuid}", adminH.HandleUpdateSong)
		r.Delete("/songs/{uuid}", adminH.HandleDeleteSong)
		r.Get("/songs/{uuid}/assets", assetH.HandleListBySong)

		r.Post("/song-assets", assetH.HandleCreate)
		r.Put("/song-assets/{uuid}", assetH.HandleUpdate)
		r.Delete("/song-assets/{uuid}", assetH.HandleDelete)
		r.Get("/song-assets/{uuid}/serve", fileH.HandleServe)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database, storage and Redis client.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database (flushes the WAL, releases the file lock)
//
// There is no write timeout: audio and video downloads stream for as long as
// the client keeps reading. Uploads get a generous read timeout instead.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicBaseURL),
			slog.String("database", s.config.DBPath),
			slog.String("storage", s.config.StorageDriver),
			slog.Bool("admin", s.admin != nil),
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
