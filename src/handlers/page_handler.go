package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"www.github.com/Wanderer0074348/MokabuLens/src/auth"
	"www.github.com/Wanderer0074348/MokabuLens/src/models"
	"www.github.com/Wanderer0074348/MokabuLens/src/router"
)

const healthTimeout = 2 * time.Second

// PageHandler serves the application's minimal JSON pages.
type PageHandler struct {
	sessions *auth.SessionService
	health   models.HealthChecker
	logger   *slog.Logger
}

func NewPageHandler(sessions *auth.SessionService, health models.HealthChecker, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
}

type providerLink struct {
	ID        string `json:"id"`
	SignInURL string `json:"signin_url"`
}

// SignInPage lists the providers with sign-in links that carry the return
// target, and echoes any error code from a failed attempt.
func (h *PageHandler) SignInPage(c *gin.Context) {
	callbackURL, ok := auth.SafeReturnPath(c.Query(router.ReturnTargetParam))
	if !ok {
		callbackURL = "/"
	}

	providers := make([]providerLink, 0, len(h.sessions.Providers()))
	for _, name := range h.sessions.Providers() {
		params := url.Values{}
		params.Set(router.ReturnTargetParam, callbackURL)
		providers = append(providers, providerLink{
			ID:        name,
			SignInURL: "/api/auth/signin/" + name + "?" + params.Encode(),
		})
	}

	body := gin.H{
		"providers":   providers,
		"callbackUrl": callbackURL,
	}
	if code := c.Query("error"); code != "" {
		body["error"] = code
	}
	if user := h.sessions.GetCurrentUser(c.Request); user != nil {
		body["user"] = user
	}

	c.JSON(http.StatusOK, body)
}

func (h *PageHandler) Home(c *gin.Context) {
	h.page(c, "home")
}

func (h *PageHandler) Dashboard(c *gin.Context) {
	h.page(c, "dashboard")
}

// page renders a protected page. The gate has already attached the session,
// so a missing user here means the route was registered outside the gate.
func (h *PageHandler) page(c *gin.Context, name string) {
	user := h.sessions.GetCurrentUser(c.Request)
	if user == nil {
		h.logger.Error("protected page served without a session", slog.String("page", name))
		c.Redirect(http.StatusFound, h.sessions.SignInPath())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page": name,
		"user": user,
	})
}

func (h *PageHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if h.health != nil {
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"timestamp": time.Now(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
	})
}

func (h *PageHandler) Favicon(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
