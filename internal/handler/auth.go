package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reviewhub/backend/internal/model"
	"github.com/reviewhub/backend/internal/service"
)

type AuthHandler struct {
	svc      *service.AuthService
	boundary *Boundary
	oidc     *service.OIDCService
}

func NewAuthHandler(svc *service.AuthService, boundary *Boundary, oidc *service.OIDCService) *AuthHandler {
	return &AuthHandler{svc: svc, boundary: boundary, oidc: oidc}
}

// Register godoc
// @Summary Register a new user
// @Description Sign up when ALLOW_SIGNUP is true.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.AuthRequest true "Login ID and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accessToken, refreshToken, expiresIn, err := h.svc.Register(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}

// Login godoc
// @Summary Login
// @Description Rejected credentials count toward the lockout
// @Description threshold; a locked account answers 423 with Retry-After.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.AuthRequest true "Login ID and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 423 {object} model.AccountLockedResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accessToken, refreshToken, expiresIn, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Description Uses refresh token cookie (reviewhub_refresh).
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(h.svc.CookieConfig().Name)
	accessToken, newRefreshToken, expiresIn, err := h.svc.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	h.setRefreshCookie(c, newRefreshToken)
	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	})
}

// Logout godoc
// @Summary Logout
// @Description Clears the refresh cookie. Tokens are stateless, so
// @Description nothing is revoked server-side; they lapse at expiry.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthLogoutResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, model.AuthLogoutResponse{Status: "logged_out"})
}

// Config godoc
// @Summary Get auth config
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthConfigResponse
// @Router /api/v1/auth/config [get]
func (h *AuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, model.AuthConfigResponse{
		AllowSignup: h.svc.AllowSignup(),
		OIDCEnabled: h.oidc != nil,
	})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Payload
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.boundary.JSON(c, http.StatusOK, model.Payload{
		"identifier": user.ID,
		"loginId":    user.LoginID,
	})
}

// ChangePassword godoc
// @Summary Change password
// @Description Invalidates all outstanding refresh tokens for the
// @Description account; already-issued access tokens run to expiry.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} model.StatusResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, model.StatusResponse{Status: "password_changed"})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, token, cfg.MaxAge, cfg.Path, cfg.Domain, cfg.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	cfg := h.svc.CookieConfig()
	c.SetSameSite(cfg.SameSite)
	c.SetCookie(cfg.Name, "", -1, cfg.Path, cfg.Domain, cfg.Secure, true)
}
