package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vidtube/vidtube/internal/middleware"
	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/services"
)

// SocialHandler serves subscriptions, likes, comments and tweets.
type SocialHandler struct {
	subscriptionService *services.SubscriptionService
	likeService         *services.LikeService
	commentService      *services.CommentService
	tweetService        *services.TweetService
	limits              readmodel.Limits
}

func NewSocialHandler(
	subscriptionService *services.SubscriptionService,
	likeService *services.LikeService,
	commentService *services.CommentService,
	tweetService *services.TweetService,
	limits readmodel.Limits,
) *SocialHandler {
	return &SocialHandler{
		subscriptionService: subscriptionService,
		likeService:         likeService,
		commentService:      commentService,
		tweetService:        tweetService,
		limits:              limits,
	}
}

func (h *SocialHandler) RegisterRoutes(r *gin.RouterGroup, jwtConfig *middleware.JWTConfig) {
	auth := middleware.NewJWTAuth(jwtConfig)

	subscriptions := r.Group("/subscriptions", auth)
	{
		subscriptions.POST("/subscribe", h.Subscribe)
		subscriptions.POST("/unsubscribe", h.Unsubscribe)
	}

	likes := r.Group("/likes", auth)
	{
		likes.POST("/vl/:videoId", h.toggleLike(models.TargetVideo, "videoId"))
		likes.POST("/cl/:commentId", h.toggleLike(models.TargetComment, "commentId"))
		likes.POST("/tl/:tweetId", h.toggleLike(models.TargetTweet, "tweetId"))
		likes.GET("/liked-videos", h.LikedVideos)
	}

	comments := r.Group("/comments")
	{
		comments.GET("/get-video-comments", h.listComments(models.TargetVideo, "videoId"))
		comments.GET("/get-tweet-comments", h.listComments(models.TargetTweet, "tweetId"))
		comments.POST("/vc", auth, h.CommentOnVideo)
		comments.POST("/tc", auth, h.CommentOnTweet)
		comments.POST("/delete/:id", auth, h.DeleteComment)
	}

	tweets := r.Group("/tweets", auth)
	{
		tweets.POST("/create", h.CreateTweet)
		tweets.PUT("/update", h.UpdateTweet)
		tweets.DELETE("/delete/:id", h.DeleteTweet)
	}
}

func (h *SocialHandler) Subscribe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.subscriptionService.Subscribe(c.Request.Context(), userID, req.ChannelOwnerUsername)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Subscribed successfully",
		"subscription": sub,
	})
}

func (h *SocialHandler) Unsubscribe(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.subscriptionService.Unsubscribe(c.Request.Context(), userID, req.ChannelOwnerUsername); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed successfully"})
}

func (h *SocialHandler) toggleLike(kind models.TargetKind, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUser(c)
		if !ok {
			return
		}

		liked, err := h.likeService.Toggle(c.Request.Context(), kind, c.Param(param), userID)
		if err != nil {
			respondError(c, err)
			return
		}

		message := "Unliked successfully"
		if liked {
			message = "Liked successfully"
		}
		c.JSON(http.StatusOK, gin.H{
			"message": message,
			"liked":   liked,
		})
	}
}

func (h *SocialHandler) LikedVideos(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	videos, err := h.likeService.LikedVideos(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"likedVideos": videos})
}

func (h *SocialHandler) listComments(kind models.TargetKind, query string) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, ok := pageOptions(c, h.limits)
		if !ok {
			return
		}

		page, err := h.commentService.List(c.Request.Context(), kind, c.Query(query), opts)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, page)
	}
}

func (h *SocialHandler) CommentOnVideo(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.VideoCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.commentService.AddToVideo(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Comment created successfully",
		"comment": comment,
	})
}

func (h *SocialHandler) CommentOnTweet(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.TweetCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.commentService.AddToTweet(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Comment created successfully",
		"comment": comment,
	})
}

func (h *SocialHandler) DeleteComment(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.commentService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

func (h *SocialHandler) CreateTweet(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.CreateTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tweet, err := h.tweetService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Tweet created successfully",
		"tweet":   tweet,
	})
}

func (h *SocialHandler) UpdateTweet(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req services.UpdateTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tweet, err := h.tweetService.Update(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Tweet updated successfully",
		"tweet":   tweet,
	})
}

func (h *SocialHandler) DeleteTweet(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.tweetService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tweet deleted successfully"})
}
