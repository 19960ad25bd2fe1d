package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/CloudShare/config"
	"github.com/sifan077/CloudShare/internal/app/service"
	inthttp "github.com/sifan077/CloudShare/internal/http/handler"
	"github.com/sifan077/CloudShare/internal/http/middleware"
	httpUtil "github.com/sifan077/CloudShare/internal/http/util"
	"go.uber.org/zap"
)

const (
	adminTokenTTL = 12 * time.Hour
	// JSON uploads carry base64, which is 4/3 of the raw size, plus framing.
	bodyOverhead = 1 << 20
)

// Dependencies bundles what the HTTP server needs to serve requests.
type Dependencies struct {
	Logger *zap.Logger
	Config *config.Config
	Shares service.ShareService
	Admin  service.AdminService
	// Redis backs upload rate limiting; nil disables it.
	Redis redis.UniversalClient
	// Checks are reported by /ready.
	Checks map[string]inthttp.Check
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all routes registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	maxUpload := deps.Config.App.MaxUploadBytes
	app := fiber.New(fiber.Config{
		AppName:      deps.Config.App.SiteName,
		BodyLimit:    int(maxUpload*4/3) + bodyOverhead,
		Immutable:    true,
		ProxyHeader:  deps.Config.App.ProxyHeader,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(s.deps.Logger),
		middleware.Logger(s.deps.Logger),
		middleware.Metrics(),
		middleware.CORS(),
	)
}

func (s *Server) registerRoutes() {
	cfg := s.deps.Config

	inthttp.NewHealthHandler(s.deps.Logger, cfg.App.SiteName, s.deps.Checks).Register(s.app)

	var limiter fiber.Handler
	if cfg.RateLimit.Enabled && s.deps.Redis != nil {
		limiter = middleware.RateLimit(s.deps.Redis, middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      cfg.RateLimit.Window,
			KeyPrefix:   "ratelimit:upload",
		}, s.deps.Logger)
	}

	shareHandler := inthttp.NewShareHandler(inthttp.ShareDeps{
		Logger:        s.deps.Logger,
		Shares:        s.deps.Shares,
		Site:          cfg.App,
		UploadLimiter: limiter,
	})
	shareHandler.Register(s.app)

	adminHandler := inthttp.NewAdminHandler(inthttp.AdminDeps{
		Logger: s.deps.Logger,
		Admin:  s.deps.Admin,
		Tokens: httpUtil.NewTokenSigner(cfg.App.AdminPassword, adminTokenTTL),
		Path:   cfg.App.AdminPath,
	})
	adminHandler.Register(s.app)
}

func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal Server Error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
