package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/services"
)

// CookieConfig controls the token cookies set on login and refresh.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type UserHandler struct {
	userService *services.UserService
	limits      readmodel.Limits
	cookies     CookieConfig
}

func NewUserHandler(userService *services.UserService, limits readmodel.Limits, cookies CookieConfig) *UserHandler {
	return &UserHandler{
		userService: userService,
		limits:      limits,
		cookies:     cookies,
	}
}

func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup, jwtConfig *middleware.JWTConfig) {
	users := r.Group("/users")
	{
		users.POST("/registration", h.Register)
		users.POST("/login", h.Login)
		users.POST("/access-token", h.RefreshAccessToken)
		users.POST("/forget-password", h.ForgotPassword)
		users.PUT("/reset-password", h.ResetPassword)
		users.GET("/c/:username", middleware.OptionalJWTAuth(jwtConfig), h.ChannelProfile)
	}

	auth := users.Group("", middleware.NewJWTAuth(jwtConfig))
	{
		auth.POST("/logout", h.Logout)
		auth.GET("/get-user", h.GetCurrentUser)
		auth.PUT("/update-user-details", h.UpdateDetails)
		auth.PUT("/update-user-password", h.ChangePassword)
		auth.PUT("/update-avatar", h.UpdateAvatar)
		auth.PUT("/update-coverimage", h.UpdateCoverImage)
		auth.GET("/history", h.WatchHistory)
	}
}

func (h *UserHandler) setTokenCookies(c *gin.Context, tokens *services.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, tokens.AccessToken, int(h.cookies.AccessTTL.Seconds()), "/", "", h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, tokens.RefreshToken, int(h.cookies.RefreshTTL.Seconds()), "/", "", h.cookies.Secure, true)
}

func (h *UserHandler) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", h.cookies.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", "", h.cookies.Secure, true)
}

func (h *UserHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	avatar, closeAvatar, err := formFile(c, "avatar", true)
	defer closeAvatar()
	if err != nil {
		respondError(c, err)
		return
	}
	cover, closeCover, err := formFile(c, "coverImage", false)
	defer closeCover()
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req, avatar, cover)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

func (h *UserHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, tokens, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setTokenCookies(c, tokens)
	c.JSON(http.StatusOK, gin.H{
		"message":      "Login successful",
		"user":         user,
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.userService.Logout(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}

	h.clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *UserHandler) RefreshAccessToken(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		// 允许空 body，缺少 token 时由 service 返回 401
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	tokens, err := h.userService.RefreshTokens(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setTokenCookies(c, tokens)
	c.JSON(http.StatusOK, gin.H{
		"message":      "Access token refreshed",
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateDetails(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.UpdateDetails(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Account details updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	h.updateImage(c, "avatar", h.userService.UpdateAvatar)
}

func (h *UserHandler) UpdateCoverImage(c *gin.Context) {
	h.updateImage(c, "coverImage", h.userService.UpdateCoverImage)
}

type imageUpdater func(ctx context.Context, userID string, f *services.FileUpload) (*models.User, error)

func (h *UserHandler) updateImage(c *gin.Context, field string, update imageUpdater) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	file, closeFile, err := formFile(c, field, true)
	defer closeFile()
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := update(c.Request.Context(), userID, file)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": field + " updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req services.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.ForgotPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset instructions sent to email"})
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req services.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

func (h *UserHandler) ChannelProfile(c *gin.Context) {
	profile, err := h.userService.ChannelProfile(c.Request.Context(), c.Param("username"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"channel": profile})
}

func (h *UserHandler) WatchHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	opts, ok := pageOptions(c, h.limits)
	if !ok {
		return
	}

	page, err := h.userService.WatchHistory(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
