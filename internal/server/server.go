// Package server contains the HTTP handlers of the blog API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "plume/docs" // swagger docs
	"plume/internal/cache"
	"plume/internal/config"
	"plume/internal/featureflags"
	"plume/internal/llm"
	"plume/internal/mail"
	"plume/internal/middleware"
	"plume/internal/models"
	"plume/internal/repository"
	"plume/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already-initialized collaborators of a Server. Redis is
// optional; Mailer and Completer default to the configured implementations.
type Deps struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Mailer    mail.Mailer
	Completer llm.Completer
}

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	db                *gorm.DB
	redis             *redis.Client
	limiter           *middleware.RateLimiter
	app               *fiber.App
	promMiddleware    *fiberprometheus.FiberPrometheus
	featureFlags      *featureflags.Manager
	tokens            *service.TokenService
	authService       *service.AuthService
	postService       *service.PostService
	commentService    *service.CommentService
	suggestionService *service.SuggestionService
	userService       *service.UserService
}

// NewServer wires repositories and services around deps.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	if deps.Mailer == nil {
		deps.Mailer = mail.New(cfg)
	}
	if deps.Completer == nil {
		deps.Completer = llm.NewClient(llm.Config{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBaseURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout(),
		})
	}

	hasher, err := service.NewPasswordHasher(cfg.PasswordHashIterations)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	userRepo := repository.NewUserRepository(deps.DB)
	resetRepo := repository.NewResetTokenRepository(deps.DB)
	postRepo := repository.NewPostRepository(deps.DB)
	tagRepo := repository.NewTagRepository(deps.DB, cache.NewStore(deps.Redis))
	blacklist := repository.NewTokenBlacklist(deps.DB, deps.Redis)

	s := &Server{
		config:         cfg,
		db:             deps.DB,
		redis:          deps.Redis,
		limiter:        middleware.NewRateLimiter(deps.Redis, cfg.Env),
		promMiddleware: middleware.InitMetrics("plume-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	s.tokens = service.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL(), userRepo, blacklist)
	s.authService = service.NewAuthService(userRepo, resetRepo, s.tokens, hasher, deps.Mailer, service.AuthOptions{
		FrontendURL:         cfg.FrontendURL,
		ConcealUnknownEmail: cfg.PasswordResetConcealUnknown,
	})
	s.postService = service.NewPostService(postRepo, tagRepo, repository.NewReactionRepository(deps.DB), userRepo)
	s.commentService = service.NewCommentService(repository.NewCommentRepository(deps.DB), s.postService)
	s.suggestionService = service.NewSuggestionService(postRepo, deps.Completer, s.featureFlags)
	s.userService = service.NewUserService(userRepo, resetRepo, blacklist, hasher)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user IDs to the logger
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected browser requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Trop de requêtes, veuillez réessayer plus tard.", "60"))
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

	api := app.Group("/api")
	authRequired := middleware.AuthRequired(s.tokens)
	staffOnly := middleware.StaffRequired()

	users := api.Group("/users")
	users.Post("/register/", s.limiter.Limit(5, time.Minute, "register"), s.Register)
	users.Post("/login/", s.limiter.Limit(5, time.Minute, "login"), s.Login)
	users.Post("/token/refresh/", s.Refresh)
	users.Post("/logout/", s.Logout)
	users.Post("/password/reset/", s.limiter.Limit(100, time.Hour, "password_reset"), s.RequestPasswordReset)
	users.Post("/password/reset/:token/", s.ConfirmPasswordReset)

	// Specific routes before the generic /:id ones
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Get("/tags/", s.GetTags)
	posts.Get("/author/:id/", s.GetAuthor)
	posts.Post("/create/", authRequired, staffOnly, s.CreatePost)
	posts.Get("/:id/comments/", s.GetComments)
	posts.Put("/:id/update/", authRequired, staffOnly, s.UpdatePost)
	posts.Patch("/:id/update/", authRequired, staffOnly, s.UpdatePost)
	posts.Post("/:id/comment/", authRequired, s.CreateComment)
	posts.Post("/:id/react/:emoji/", authRequired, s.ReactToPost)
	posts.Post("/:id/suggestions/", authRequired, staffOnly, s.RequestSuggestions)
	posts.Get("/:id/", s.GetPost)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional: without it the blacklist and caches fall back to
	// the database and process memory.
	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Plume API",
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return models.RespondWithError(c, fe.Code, fe)
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
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

	middleware.Logger.Info("server shutdown complete")
	return nil
}
