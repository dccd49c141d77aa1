// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	_ "inkwell/docs" // swagger docs
	"inkwell/internal/assistant"
	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/feed"
	"inkwell/internal/messaging"
	"inkwell/internal/middleware"
	"inkwell/internal/notifications"
	"inkwell/internal/presence"
	"inkwell/internal/repository"
	"inkwell/internal/service"

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

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Authenticator
	featureFlags   *featureflags.Manager

	hub         *notifications.Hub
	broadcaster *notifications.RedisBroadcaster
	presence    *presence.Registry
	sessions    *messaging.Handler
	assistant   *assistant.Client

	authService      *service.AuthService
	postService      *service.PostService
	commentService   *service.CommentService
	feedService      *service.FeedService
	userService      *service.UserService
	chatService      *service.ChatService
	assistantService *service.AssistantService
}

// NewServer creates a Server using already-initialized dependencies.
// redisClient may be nil; the server then runs single-node with in-memory
// feed sessions and no rate limiting.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("server requires config and database")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db, redisClient, time.Duration(cfg.PopularTagsTTLSeconds)*time.Second)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	chatRepo := repository.NewChatRepository(db, redisClient)
	sampleRepo := repository.NewWritingSampleRepository(db)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	hub := notifications.NewHub()
	broadcaster := notifications.NewRedisBroadcaster(redisClient, hub)
	registry := presence.NewRegistry()
	auth := middleware.NewAuthenticator(cfg.JWTSecret, redisClient, time.Duration(cfg.WSTicketTTLSeconds)*time.Second)
	ai := assistant.NewClient(assistant.Config{
		BaseURL: cfg.AssistantBaseURL,
		Model:   cfg.AssistantModel,
		Timeout: time.Duration(cfg.AssistantTimeoutSeconds) * time.Second,
	})

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("inkwell-api"),
		auth:           auth,
		featureFlags:   flags,
		hub:            hub,
		broadcaster:    broadcaster,
		presence:       registry,
		assistant:      ai,
	}

	s.sessions = messaging.NewHandler(userRepo, chatRepo, registry, broadcaster, messaging.Options{
		Redis:     redisClient,
		SendLimit: sendLimit(cfg),
	})
	s.authService = service.NewAuthService(userRepo, auth)
	s.postService = service.NewPostService(postRepo, flags, cfg.SearchMaxLimit)
	s.commentService = service.NewCommentService(commentRepo, postRepo)
	s.feedService = service.NewFeedService(postRepo, feed.NewStore(redisClient, time.Duration(cfg.FeedSessionTTLSeconds)*time.Second))
	s.userService = service.NewUserService(userRepo, followRepo, postRepo)
	s.chatService = service.NewChatService(chatRepo, userRepo, broadcaster)
	s.assistantService = service.NewAssistantService(ai, postRepo, sampleRepo, flags)

	return s, nil
}

func sendLimit(cfg *config.Config) int {
	if cfg.WSRateLimitPerMinute > 0 {
		return cfg.WSRateLimitPerMinute
	}
	return 0
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses keep the headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || !s.config.IsProduction()
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	authed := s.auth.Required()
	optional := s.auth.Optional()

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/", s.ReadinessCheck)
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Get("/feature-flags", optional, s.GetFeatureFlags)

	auth := api.Group("/auth")
	// Credential endpoints refuse traffic when the limiter store is down.
	auth.Post("/signup", middleware.RateLimitWithPolicy(s.redis, 3, 10*time.Minute, middleware.FailClosed, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimitWithPolicy(s.redis, 10, 5*time.Minute, middleware.FailClosed, "login"), s.Login)
	auth.Post("/logout", authed, s.Logout)

	// Static segments are registered before /:id so they are not captured by it.
	posts := api.Group("/posts")
	posts.Get("/", optional, s.GetPosts)
	posts.Get("/tags/popular", s.GetPopularTags)
	posts.Post("/", authed, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id/comments", optional, s.GetComments)
	posts.Post("/:id/comments", authed, middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	posts.Post("/:id/like", authed, s.LikePost)
	posts.Delete("/:id/like", authed, s.UnlikePost)
	posts.Post("/:id/publish", authed, s.PublishPost)
	posts.Get("/:id", optional, s.GetPost)
	posts.Put("/:id", authed, s.UpdatePost)
	posts.Delete("/:id", authed, s.DeletePost)

	api.Get("/feed", authed, s.GetFeed)

	users := api.Group("/users")
	users.Get("/me", authed, s.GetMyProfile)
	users.Get("/online", authed, s.GetOnlineUsers)
	users.Get("/search", optional, middleware.RateLimit(s.redis, 30, time.Minute, "user_search"), s.SearchUsers)
	users.Get("/profile/:username", optional, s.GetUserProfile)
	users.Put("/profile", authed, s.UpdateMyProfile)
	users.Post("/follow/:userId", authed, s.FollowUser)
	users.Delete("/follow/:userId", authed, s.UnfollowUser)
	users.Get("/:username/posts", optional, s.GetUserPosts)
	users.Get("/:username/followers", s.GetFollowers)
	users.Get("/:username/following", s.GetFollowing)

	chats := api.Group("/chats", authed)
	chats.Get("/", s.GetChats)
	chats.Get("/unread/count", s.GetUnreadCount)
	chats.Get("/with/:userId", s.GetChatWith)
	chats.Get("/:chatId/messages", s.GetMessages)
	chats.Post("/:chatId/messages", middleware.RateLimit(s.redis, 15, time.Minute, "send_chat"), s.SendMessage)
	chats.Put("/:chatId/read", s.MarkChatRead)

	ai := api.Group("/ai", authed)
	ai.Get("/status", s.GetAssistantStatus)
	ai.Post("/generate", middleware.RateLimit(s.redis, 10, time.Minute, "ai_generate"), s.GenerateDraft)
	ai.Get("/samples", s.GetWritingSamples)
	ai.Post("/samples", s.SaveWritingSample)
	ai.Get("/samples/all", s.ListSavedSamples)
	ai.Delete("/samples/:id", s.DeleteWritingSample)

	api.Post("/ws/ticket", authed, s.IssueWSTicket)
	api.Get("/ws", s.RequireUpgrade, authed, s.WebsocketHandler())
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Inkwell API",
		ErrorHandler: errorHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start relays broadcasts through Redis and serves HTTP until the listener stops.
func (s *Server) Start(ctx context.Context) error {
	if err := s.broadcaster.Start(ctx); err != nil {
		return fmt.Errorf("start broadcaster: %w", err)
	}
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown stops accepting connections and releases clients.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.app != nil {
		err = s.app.ShutdownWithContext(ctx)
	}
	if cerr := s.assistant.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
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

	// Redis is optional: a single node runs without it.
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
		"message": "Inkwell API",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags reports which flags are on for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(currentUserID(c)))
}
