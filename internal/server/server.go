// Package server exposes the feed engine over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"snapfeed/internal/cache"
	"snapfeed/internal/config"
	"snapfeed/internal/database"
	"snapfeed/internal/events"
	"snapfeed/internal/middleware"
	"snapfeed/internal/models"
	"snapfeed/internal/repository"
	"snapfeed/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	sink           events.Sink
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	feed           *service.FeedService
	likes          *service.LikeService
	shares         *service.ShareService
	replies        *service.ReplyService
}

// NewServer connects the database, Redis and the metrics queue described by
// cfg and builds a Server on top of them. Redis and RabbitMQ are optional:
// when unreachable the server runs without a cache or a metrics sink.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.NewClient(ctx, cfg.RedisURL)

	var sink events.Sink = events.NoopSink{}
	if cfg.RabbitURL != "" {
		rabbit, err := events.DialRabbit(cfg.RabbitURL, cfg.MetricsQueue, cfg.MetricsProvider)
		if err != nil {
			middleware.Logger.Warn("metrics sink unavailable, continuing without it", slog.String("error", err.Error()))
		} else {
			sink = rabbit
		}
	}

	return NewServerWithDeps(cfg, db, redisClient, sink), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, sink events.Sink) *Server {
	repo := repository.NewCachedPostRepository(
		repository.NewPostRepository(db),
		cache.New(redisClient, cfg.PostCacheTTL()),
	)
	feed := service.NewFeedService(repo, sink, cfg.FeedDefaultLimit)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		sink:           sink,
		promMiddleware: middleware.InitMetrics("snapfeed"),
		feed:           feed,
		likes:          service.NewLikeService(repo, feed),
		shares:         service.NewShareService(repo, feed),
		replies:        service.NewReplyService(repo, feed),
	}
}

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "snapfeed",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{
					Type:     "about:blank",
					Title:    fe.Message,
					Status:   fe.Code,
					Detail:   fe.Message,
					Instance: c.Path(),
				})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	snaps := app.Group("/snaps")
	snaps.Get("/", s.GetSnaps)
	snaps.Post("/", s.CreateSnap)
	// Specific routes before the generic /:id ones.
	snaps.Put("/block/:id", s.BlockSnap)
	snaps.Put("/:id/like", s.LikeSnap)
	snaps.Put("/:id/dislike", s.UnlikeSnap)
	snaps.Post("/:id/share", s.ShareSnap)
	snaps.Delete("/:id/share", s.UnshareSnap)
	snaps.Get("/:id/answers", s.GetAnswers)
	snaps.Post("/:id/answers", s.CreateAnswer)
	snaps.Get("/:id", s.GetSnap)
	snaps.Put("/:id", s.EditSnap)
	snaps.Delete("/:id", s.DeleteSnap)

	users := app.Group("/users")
	users.Get("/:id/shares", s.GetUserShares)
	users.Get("/:id/likes", s.GetUserLikes)
}

// HealthCheck reports store and cache reachability.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	// The cache is optional; only the store decides readiness.
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	})
}

// Start listens on the configured port until Shutdown is called.
func (s *Server) Start() error {
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP listener and releases the store, cache and sink.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if closer, ok := s.sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			middleware.Logger.Error("error closing metrics sink", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
