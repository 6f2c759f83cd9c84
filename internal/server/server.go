// Package server contains the HTTP and WebSocket handlers of the feed API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "feedline/docs" // swagger docs
	"feedline/internal/auth"
	"feedline/internal/cache"
	"feedline/internal/config"
	"feedline/internal/middleware"
	"feedline/internal/models"
	"feedline/internal/notifications"
	"feedline/internal/observability"
	"feedline/internal/repository"
	"feedline/internal/service"
	"feedline/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.ObjectStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	hub            *notifications.Hub
	broadcaster    *notifications.Broadcaster
	authService    *service.AuthService
	postService    *service.PostService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, revocation, rate limits and cross-instance
// fan-out are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore) (*Server, error) {
	if cfg == nil || db == nil || store == nil {
		return nil, errors.New("server: config, database and object store are required")
	}

	c := cache.New(redisClient)
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db, c)
	tokenRepo := repository.NewTokenRepository(db)

	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	})

	hub := notifications.NewHub()
	var notifier *notifications.Notifier
	if redisClient != nil {
		notifier = notifications.NewNotifier(redisClient)
	}
	broadcaster, err := notifications.NewBroadcaster(hub, notifier)
	if err != nil {
		return nil, err
	}

	postService, err := service.NewPostService(postRepo, userRepo, store, broadcaster)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("feedline-api"),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		hub:            hub,
		broadcaster:    broadcaster,
		authService:    service.NewAuthService(userRepo, tokenRepo, tokens, c, cfg.BcryptCost, cfg.AccessTokenTTL),
		postService:    postService,
	}, nil
}

// App returns the Fiber app with middleware and routes installed, building it
// on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:   "Feedline API",
		BodyLimit: s.config.MaxUploadMB * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// bypassRateLimits reports whether per-route Redis limits are skipped so
// local and test workflows are not throttled.
func (s *Server) bypassRateLimits() bool {
	switch s.config.Env {
	case "test", "development":
		return true
	}
	return s.redis == nil
}

func (s *Server) rateLimit(limit int, window time.Duration, name string) fiber.Handler {
	if s.bypassRateLimits() || limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return middleware.RateLimit(s.redis, limit, window, name)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Images are fetched cross-origin by the web client.
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(s.config.Origins(), ","),
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool { return strings.HasPrefix(c.Path(), "/ws") },
	}))

	// Global in-memory limit per IP.
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return s.config.Env == "test" || c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/swagger/*", swagger.HandlerDefault)

	requireAuth := middleware.AuthRequired(s.authService)
	authLimit := s.rateLimit(s.config.LoginRateLimit, s.config.LoginRateWindow, "login")

	user := app.Group("/user")
	user.Put("/signup", s.rateLimit(s.config.LoginRateLimit, s.config.LoginRateWindow, "signup"), s.Signup)
	user.Post("/login", authLimit, s.Login)
	user.Get("/status/:userId", s.GetStatus)
	user.Put("/updatestatus", requireAuth, s.UpdateStatus)
	user.Put("/refresh/:userId", s.Refresh)
	user.Delete("/logout/:userId", requireAuth, s.Logout)

	feedAuth := middleware.AuthOptional(s.authService, s.config.FeedRequireAuth)
	feed := app.Group("/feed")
	feed.Get("/posts", feedAuth, s.GetPosts)
	feed.Get("/posts/:postId", feedAuth, s.GetPost)
	feed.Post("/post", requireAuth, s.CreatePost)
	feed.Put("/post/:postId", requireAuth, s.UpdatePost)
	feed.Delete("/post/:postId", requireAuth, s.DeletePost)

	if local, ok := s.store.(*storage.LocalStore); ok {
		app.Static("/images", local.Dir(), fiber.Static{ByteRange: true, MaxAge: 3600})
	}

	app.Get("/ws", websocketUpgradeRequired, middleware.WebSocketAuth(s.authService, false), s.WebsocketHandler())
}

// StartRealtime wires the hub to Redis pub/sub when Redis is configured.
func (s *Server) StartRealtime() error {
	return s.broadcaster.Start(s.shutdownCtx)
}

// Start wires realtime delivery and listens on the configured port. It
// blocks until the listener stops.
func (s *Server) Start() error {
	if err := s.StartRealtime(); err != nil {
		return fmt.Errorf("start realtime: %w", err)
	}
	observability.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, then tears down realtime delivery and
// closes Redis. The database is closed by its owner.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	s.shutdownFn()

	if err := s.hub.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	observability.Logger.InfoContext(ctx, "server shutdown complete")
	return errors.Join(errs...)
}
