package services

import (
	"context"
	"strings"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
)

type CommentService struct {
	commentRepo *repository.CommentRepository
	likeRepo    *repository.LikeRepository
	videoRepo   *repository.VideoRepository
	tweetRepo   *repository.TweetRepository
	reader      *readmodel.Reader
	producer    EventPublisher
	logger      *logger.Logger
}

func NewCommentService(
	commentRepo *repository.CommentRepository,
	likeRepo *repository.LikeRepository,
	videoRepo *repository.VideoRepository,
	tweetRepo *repository.TweetRepository,
	reader *readmodel.Reader,
	producer EventPublisher,
	logger *logger.Logger,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		videoRepo:   videoRepo,
		tweetRepo:   tweetRepo,
		reader:      reader,
		producer:    producer,
		logger:      logger,
	}
}

type VideoCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
	VideoID string `json:"videoId" binding:"required"`
}

type TweetCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
	TweetID string `json:"tweetId" binding:"required"`
}

func (s *CommentService) AddToVideo(ctx context.Context, userID string, req *VideoCommentRequest) (*models.Comment, error) {
	return s.add(ctx, userID, models.TargetVideo, req.VideoID, req.Content)
}

func (s *CommentService) AddToTweet(ctx context.Context, userID string, req *TweetCommentRequest) (*models.Comment, error) {
	return s.add(ctx, userID, models.TargetTweet, req.TweetID, req.Content)
}

func (s *CommentService) add(ctx context.Context, userID string, kind models.TargetKind, rawTargetID, content string) (*models.Comment, error) {
	owner, err := models.ParseID(userID, "user id")
	if err != nil {
		return nil, err
	}
	target, err := models.ParseID(rawTargetID, string(kind)+" id")
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.InvalidArgument("content is required")
	}

	comment := &models.Comment{Content: content, Owner: owner}

	// 检查评论目标是否存在
	switch kind {
	case models.TargetVideo:
		video, err := s.videoRepo.GetByID(ctx, target)
		if err != nil {
			return nil, err
		}
		if video == nil || (!video.IsPublished && video.Owner != owner) {
			return nil, apperror.NotFound("video not found")
		}
		comment.Video = &target
	case models.TargetTweet:
		tweet, err := s.tweetRepo.GetByID(ctx, target)
		if err != nil {
			return nil, err
		}
		if tweet == nil {
			return nil, apperror.NotFound("tweet not found")
		}
		comment.Tweet = &target
	default:
		return nil, apperror.InvalidArgument("comments can only target a video or a tweet")
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, target.Hex(), queue.EventCommentCreated, queue.CommentEventData{
		CommentID:  comment.ID.Hex(),
		UserID:     userID,
		TargetKind: string(kind),
		TargetID:   target.Hex(),
	})

	s.logger.WithFields(map[string]interface{}{
		"comment_id": comment.ID.Hex(),
		"target":     string(kind),
		"target_id":  target.Hex(),
	}).Info("Comment created successfully")
	return comment, nil
}

// Delete removes a comment owned by userID together with its likes.
func (s *CommentService) Delete(ctx context.Context, userID, rawCommentID string) error {
	owner, err := models.ParseID(userID, "user id")
	if err != nil {
		return err
	}
	commentID, err := models.ParseID(rawCommentID, "comment id")
	if err != nil {
		return err
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil {
		return apperror.NotFound("comment not found")
	}
	if comment.Owner != owner {
		return apperror.Forbidden("only the owner can delete this comment")
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}
	if _, err := s.likeRepo.DeleteByTarget(ctx, models.TargetComment, commentID); err != nil {
		s.logger.WithError(err).WithField("comment_id", rawCommentID).Warn("Failed to delete comment likes")
	}

	kind, target := models.TargetVideo, comment.Video
	if comment.Tweet != nil {
		kind, target = models.TargetTweet, comment.Tweet
	}
	data := queue.CommentEventData{CommentID: rawCommentID, UserID: userID, TargetKind: string(kind)}
	if target != nil {
		data.TargetID = target.Hex()
	}
	publishEvent(ctx, s.producer, s.logger, data.TargetID, queue.EventCommentDeleted, data)

	s.logger.WithField("comment_id", rawCommentID).Info("Comment deleted successfully")
	return nil
}

func (s *CommentService) List(ctx context.Context, kind models.TargetKind, rawTargetID string, opts readmodel.Options) (*readmodel.Page[models.CommentView], error) {
	return s.reader.Comments(ctx, kind, rawTargetID, opts)
}
