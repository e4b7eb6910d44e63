package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/service"
)

const oidcStateCookie = "reviewhub_oidc_state"

type OIDCHandler struct {
	svc  *service.OIDCService
	auth *service.AuthService
}

func NewOIDCHandler(svc *service.OIDCService, auth *service.AuthService) *OIDCHandler {
	return &OIDCHandler{svc: svc, auth: auth}
}

// Begin godoc
// @Summary Start OIDC login
// @Description Redirects to the configured provider's authorization URL.
// @Tags auth
// @Success 307
// @Router /api/v1/auth/oidc/login [get]
func (h *OIDCHandler) Begin(c *gin.Context) {
	authURL, state := h.svc.BeginLogin()
	cfg := h.auth.CookieConfig()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oidcStateCookie, state, 300, "/", cfg.Domain, cfg.Secure, true)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// Callback godoc
// @Summary Complete OIDC login
// @Tags auth
// @Produce json
// @Param code query string true "Authorization code"
// @Param state query string true "State nonce"
// @Success 200 {object} model.AuthResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/oidc/callback [get]
func (h *OIDCHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	cookieState, err := c.Cookie(oidcStateCookie)
	if err != nil || state == "" || state != cookieState {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cfg := h.auth.CookieConfig()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oidcStateCookie, "", -1, "/", cfg.Domain, cfg.Secure, true)

	accessToken, refreshToken, expiresIn, err := h.svc.CompleteLogin(c.Request.Context(), c.Query("code"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, refreshToken, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}
