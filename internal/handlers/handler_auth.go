package handlers

import (
	"log/slog"
	"net/http"

	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"

	portssvc "github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/dto"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/SscSPs/geexpress_backend/internal/platform/config"
	"github.com/gin-gonic/gin"
)

// authHandler handles authentication related requests.
type authHandler struct {
	authService portssvc.AuthSvcFacade
}

func newAuthHandler(as portssvc.AuthSvcFacade) *authHandler {
	return &authHandler{authService: as}
}

// registerAuthRoutes sets up the public login and refresh routes plus the
// authenticated session routes.
func registerAuthRoutes(r *gin.Engine, cfg *config.Config, authService portssvc.AuthSvcFacade) {
	h := newAuthHandler(authService)

	limitMiddleware := limitergin.NewMiddleware(newIPLimiter(cfg.LoginRate, "10-M"))

	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", limitMiddleware, h.login)
		auth.POST("/refresh", limitMiddleware, h.refresh)

		session := auth.Group("", middleware.AuthMiddleware(cfg.JWTSecret))
		session.POST("/logout", h.logout)
		session.PUT("/password", h.changePassword)
	}
}

// login godoc
// @Summary Courier or admin login
// @Description Authenticates by phone number and returns an access token and a refresh token.
// @Tags auth
// @Accept json
// @Produce json
// @Param login body dto.LoginRequest true "Login Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Account disabled"
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func (h *authHandler) login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		respondError(c, err, "Failed to log in")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("User logged in", slog.String("user_id", session.User.UserID))
	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:        session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
		User:         dto.ToUserResponse(session.User),
	})
}

// refresh godoc
// @Summary Refresh access token
// @Description Exchanges a refresh token for a new access token. The refresh token is rotated.
// @Tags auth
// @Accept json
// @Produce json
// @Param refresh body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.RefreshTokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func (h *authHandler) refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	session, err := h.authService.Refresh(c.Request.Context(), req.UserID, req.RefreshToken)
	if err != nil {
		respondError(c, err, "Failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, dto.RefreshTokenResponse{
		Token:        session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
	})
}

// logout godoc
// @Summary Log out
// @Description Revokes the caller's refresh token.
// @Tags auth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *authHandler) logout(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), caller); err != nil {
		respondError(c, err, "Failed to log out")
		return
	}
	c.Status(http.StatusNoContent)
}

// changePassword godoc
// @Summary Change password
// @Description Replaces the caller's password and clears the forced-change flag.
// @Tags auth
// @Accept json
// @Param body body dto.ChangePasswordRequest true "Passwords"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /auth/password [put]
func (h *authHandler) changePassword(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), caller, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err, "Failed to change password")
		return
	}
	c.Status(http.StatusNoContent)
}
