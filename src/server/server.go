package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"www.github.com/Wanderer0074348/MokabuLens/src/auth"
	"www.github.com/Wanderer0074348/MokabuLens/src/handlers"
	"www.github.com/Wanderer0074348/MokabuLens/src/logger"
	"www.github.com/Wanderer0074348/MokabuLens/src/metrics"
	"www.github.com/Wanderer0074348/MokabuLens/src/middleware"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
	"www.github.com/Wanderer0074348/MokabuLens/src/router"
)

// Deps is everything the HTTP surface needs. RateLimiter, Gatherer and
// AllowedOrigins are optional.
type Deps struct {
	Sessions       *auth.SessionService
	Verifier       models.TokenVerifier
	Gate           *router.AccessGate
	Health         models.HealthChecker
	Recorder       metrics.Recorder
	Gatherer       prometheus.Gatherer
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewEngine builds the gin engine. The access gate runs on every request,
// unmatched routes included, before any handler.
func NewEngine(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Recorder == nil {
		d.Recorder = metrics.Nop{}
	}

	authMiddleware := middleware.NewAuthMiddleware(
		d.Gate,
		d.Verifier,
		d.Sessions.CookieName(),
		middleware.WithAuthLogger(d.Logger),
		middleware.WithAuthRecorder(d.Recorder),
	)
	authHandler := auth.NewHandler(d.Sessions, d.Logger)
	pageHandler := handlers.NewPageHandler(d.Sessions, d.Health, d.Logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	if len(d.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(d.AllowedOrigins))
	}
	r.Use(authMiddleware.Gate())

	r.GET(d.Gate.SignInPath(), pageHandler.SignInPage)
	r.GET("/", pageHandler.Home)
	r.GET("/dashboard", pageHandler.Dashboard)
	r.GET("/favicon.ico", pageHandler.Favicon)
	r.GET("/healthz", pageHandler.HealthCheck)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	authRoutes := r.Group("/api/auth")
	authRoutes.Use(authMiddleware.OptionalSession())
	{
		signIn := authRoutes.Group("")
		if d.RateLimiter != nil {
			signIn.Use(d.RateLimiter.Middleware())
		}
		signIn.GET("/signin/:provider", authHandler.SignIn)
		signIn.POST("/signin/:provider", authHandler.SignIn)
		signIn.GET("/callback/:provider", authHandler.Callback)

		authRoutes.GET("/signout", authHandler.SignOut)
		authRoutes.POST("/signout", authHandler.SignOut)
		authRoutes.GET("/session", authHandler.Session)
		authRoutes.GET("/providers", authHandler.Providers)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return r
}
