package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"www.github.com/Wanderer0074348/MokabuLens/src/models"
	"www.github.com/Wanderer0074348/MokabuLens/src/router"
)

type Handler struct {
	service *SessionService
	logger  *slog.Logger
}

func NewHandler(service *SessionService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// SignIn starts the provider flow. With ?json=true the AuthCallbackResult is
// returned instead of redirecting.
func (h *Handler) SignIn(c *gin.Context) {
	returnPath := returnTarget(c)
	result := h.service.BeginSignIn(c.Request.Context(), c.Param("provider"), returnPath)

	if wantsJSON(c.DefaultPostForm("json", c.Query("json"))) {
		c.JSON(http.StatusOK, result)
		return
	}

	if !result.OK {
		c.Redirect(http.StatusFound, h.signInErrorURL(result.Error, returnPath))
		return
	}

	c.Redirect(http.StatusFound, result.URL)
}

func (h *Handler) Callback(c *gin.Context) {
	result, token := h.service.CompleteSignIn(c.Request.Context(), c.Param("provider"), models.CallbackParams{
		State: c.Query("state"),
		Code:  c.Query("code"),
		Error: c.Query("error"),
	})

	if !result.OK {
		c.Redirect(http.StatusFound, h.signInErrorURL(result.Error, result.URL))
		return
	}

	h.service.SetSessionCookie(c.Writer, token)
	c.Redirect(http.StatusFound, result.URL)
}

func (h *Handler) SignOut(c *gin.Context) {
	returnPath := returnTarget(c)
	if returnPath == "" {
		returnPath = h.service.SignInPath()
	}

	target, err := h.service.SignOut(c.Writer, returnPath)
	if err != nil {
		h.logger.Error("sign out failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Redirect(http.StatusFound, target)
}

// Session reports the caller's session, or an empty object when there is none.
func (h *Handler) Session(c *gin.Context) {
	session := h.service.GetCurrentSession(c.Request)
	if session == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	c.JSON(http.StatusOK, models.Session{
		User:      *ProjectUser(session),
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) Providers(c *gin.Context) {
	providers := gin.H{}
	for _, name := range h.service.Providers() {
		providers[name] = gin.H{
			"id":         name,
			"signin_url": "/api/auth/signin/" + name,
		}
	}
	c.JSON(http.StatusOK, providers)
}

// returnTarget reads the post-sign-in target from a form body first, then from
// the query string.
func returnTarget(c *gin.Context) string {
	if target := c.PostForm(router.ReturnTargetParam); target != "" {
		return target
	}
	return c.Query(router.ReturnTargetParam)
}

func wantsJSON(value string) bool {
	return value == "true" || value == "1"
}

func (h *Handler) signInErrorURL(code, returnPath string) string {
	params := url.Values{}
	params.Set("error", code)
	if target, ok := SafeReturnPath(returnPath); ok {
		params.Set(router.ReturnTargetParam, target)
	}
	return h.service.SignInPath() + "?" + params.Encode()
}
