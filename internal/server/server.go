// Package server contains the HTTP handlers for the chirp API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "chirp/docs" // swagger docs
	"chirp/internal/config"
	"chirp/internal/middleware"
	"chirp/internal/models"
	"chirp/internal/observability"
	"chirp/internal/repository"
	"chirp/internal/service"
	"chirp/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const tokenPurgeInterval = time.Hour

// AuthAPI is the account and session surface the handlers depend on.
type AuthAPI interface {
	middleware.IdentityResolver
	Signup(ctx context.Context, in service.SignupInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.AuthResponse, error)
	Logout(ctx context.Context, refreshToken, username string) error
	RefreshToken(ctx context.Context, refreshToken, username string) (*models.AuthResponse, error)
	FindAllUsernames(ctx context.Context) ([]string, error)
}

// EngagementAPI is the post and engagement surface the handlers depend on.
type EngagementAPI interface {
	CreatePost(ctx context.Context, actor *models.User, in service.CreatePostInput) (*models.PostResponse, error)
	DeletePost(ctx context.Context, actor *models.User, postID uint) error
	ToggleLike(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error)
	ToggleRetweet(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error)
	ToggleBookmark(ctx context.Context, actor *models.User, postID uint) (*models.ToggleResult, error)
	IsLiked(ctx context.Context, actor *models.User, postID uint) (bool, error)
	IsRetweeted(ctx context.Context, actor *models.User, postID uint) (bool, error)
	IsBookmarked(ctx context.Context, actor *models.User, postID uint) (bool, error)
	LikeCounter(ctx context.Context, postID uint) (int64, error)
	GetAllPosts(ctx context.Context, page repository.Page) ([]models.PostResponse, error)
	GetPostByID(ctx context.Context, postID uint) (*models.PostResponse, error)
	GetRepliesForPost(ctx context.Context, postID uint, page repository.Page) ([]models.PostResponse, error)
	GetPostsByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error)
	GetRepliesByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error)
	GetRetweetsByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error)
	GetLikedByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error)
	GetBookmarksByUsername(ctx context.Context, username string, page repository.Page) ([]models.PostResponse, error)
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	validator      *validation.Validator
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	auth           AuthAPI
	engagement     EngagementAPI
	tokens         *service.TokenService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this when a bootstrap layer establishes DB/Redis and applies the schema.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)

	tokens := service.NewTokenService(service.TokenConfigFrom(cfg), refreshRepo)
	authService := service.NewAuthService(userRepo, tokens, service.NewBcryptHasher(0), service.ProfileDefaults{
		AvatarPath: cfg.DefaultAvatarPath,
		BannerPath: cfg.DefaultBannerPath,
	})
	engagementService := service.NewEngagementService(userRepo, postRepo, engagementRepo)

	s := NewServerWithServices(cfg, authService, engagementService)
	s.db = db
	s.redis = redisClient
	s.tokens = tokens
	s.promMiddleware = middleware.InitMetrics("chirp-api")
	return s, nil
}

// NewServerWithServices creates a Server around ready-made services. It
// registers no metrics collectors and has no storage to probe.
func NewServerWithServices(cfg *config.Config, auth AuthAPI, engagement EngagementAPI) *Server {
	return &Server{
		config:     cfg,
		validator:  validation.New(validation.WithPasswordPolicy(validation.PasswordPolicy(cfg.PasswordPolicy))),
		auth:       auth,
		engagement: engagement,
	}
}

// SetupMiddleware configures all middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Use(middleware.Timeout(s.config.RequestTimeout))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Chirp Backend Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	requireUser := middleware.AuthRequired(s.auth)

	auth := api.Group("/auth")
	auth.Post("/sign-up", s.Signup)
	auth.Post("/sign-in", s.Login)
	auth.Post("/logout", s.Logout)
	auth.Post("/refresh-token", s.RefreshToken)
	auth.Get("/usernames", s.GetUsernames)

	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/", requireUser, s.CreatePost)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", requireUser, s.DeletePost)
	posts.Get("/:id/replies", s.GetReplies)
	posts.Get("/:id/like-count", s.GetLikeCount)
	posts.Post("/:id/like", requireUser, s.ToggleLike)
	posts.Post("/:id/retweet", requireUser, s.ToggleRetweet)
	posts.Post("/:id/bookmark", requireUser, s.ToggleBookmark)
	posts.Get("/:id/liked", requireUser, s.IsLiked)
	posts.Get("/:id/retweeted", requireUser, s.IsRetweeted)
	posts.Get("/:id/bookmarked", requireUser, s.IsBookmarked)

	users := api.Group("/users")
	users.Get("/me", requireUser, s.GetMe)
	users.Get("/:username/posts", s.GetUserPosts)
	users.Get("/:username/replies", s.GetUserReplies)
	users.Get("/:username/retweets", s.GetUserRetweets)
	users.Get("/:username/likes", s.GetUserLikes)
	users.Get("/:username/bookmarks", requireUser, s.GetUserBookmarks)
}

// LivenessCheck handles GET /health/live
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles GET /health/ready. The database gates readiness;
// Redis is only a cache, so its state is reported without failing the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "unavailable"
	if s.db != nil {
		dbStatus = "healthy"
		sqlDB, err := s.db.DB()
		if err != nil {
			dbStatus = "unhealthy"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = "unhealthy"
		}
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
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

// App builds the Fiber application with middleware and routes installed.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Chirp API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the HTTP server and the background token purge.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.tokens != nil {
		go s.purgeExpiredTokens(s.shutdownCtx)
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// purgeExpiredTokens removes expired refresh tokens until ctx is done.
func (s *Server) purgeExpiredTokens(ctx context.Context) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.purgeOnce(ctx)
		}
	}
}

// purgeOnce runs a single traced purge pass.
func (s *Server) purgeOnce(ctx context.Context) (int64, error) {
	job, ctx := observability.StartJob(ctx, "purge_refresh_tokens")
	n, err := s.tokens.PurgeExpired(ctx)
	job.Finish(err, attribute.Int64("job.removed", n))

	if err != nil {
		middleware.Logger.WarnContext(ctx, "refresh token purge failed",
			slog.String("error", err.Error()),
			slog.String("trace_id", job.TraceID()))
		return 0, err
	}
	if n > 0 {
		middleware.Logger.InfoContext(ctx, "purged expired refresh tokens", slog.Int64("count", n))
	}
	return n, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
			}
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
