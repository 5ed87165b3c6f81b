package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/services"
)

type VideoHandler struct {
	videoService *services.VideoService
	limits       readmodel.Limits
}

func NewVideoHandler(videoService *services.VideoService, limits readmodel.Limits) *VideoHandler {
	return &VideoHandler{
		videoService: videoService,
		limits:       limits,
	}
}

func (h *VideoHandler) RegisterRoutes(r *gin.RouterGroup, jwtConfig *middleware.JWTConfig) {
	videos := r.Group("/videos")
	{
		videos.GET("/v/:id", middleware.OptionalJWTAuth(jwtConfig), h.GetVideo)
		videos.GET("/feed", h.PublishedFeed)
		videos.POST("/view", middleware.OptionalJWTAuth(jwtConfig), h.RecordView)
	}

	auth := videos.Group("", middleware.NewJWTAuth(jwtConfig))
	{
		auth.POST("/upload", h.Upload)
		auth.PUT("/p/:id", h.TogglePublish)
		auth.DELETE("/d/:id", h.Delete)
		auth.GET("/feed/subscriptions", h.SubscriptionFeed)
	}
}

func (h *VideoHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.UploadVideoRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	videoFile, closeVideo, err := formFile(c, "videoFile", true)
	defer closeVideo()
	if err != nil {
		respondError(c, err)
		return
	}
	thumbnail, closeThumb, err := formFile(c, "thumbnail", true)
	defer closeThumb()
	if err != nil {
		respondError(c, err)
		return
	}

	video, err := h.videoService.Upload(c.Request.Context(), userID, &req, videoFile, thumbnail)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Video uploaded successfully",
		"video":   video,
	})
}

func (h *VideoHandler) TogglePublish(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	video, err := h.videoService.TogglePublish(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Publish status updated",
		"video":   video,
	})
}

func (h *VideoHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.videoService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully"})
}

func (h *VideoHandler) RecordView(c *gin.Context) {
	var req services.RecordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.videoService.RecordView(c.Request.Context(), req.VideoID, middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "View recorded"})
}

func (h *VideoHandler) GetVideo(c *gin.Context) {
	video, err := h.videoService.Detail(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"video": video})
}

func (h *VideoHandler) PublishedFeed(c *gin.Context) {
	opts, ok := pageOptions(c, h.limits)
	if !ok {
		return
	}

	page, err := h.videoService.PublishedFeed(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *VideoHandler) SubscriptionFeed(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	opts, ok := pageOptions(c, h.limits)
	if !ok {
		return
	}

	page, err := h.videoService.SubscriptionFeed(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}
