package services

import (
	"context"
	"strings"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TweetService struct {
	tweetRepo   *repository.TweetRepository
	commentRepo *repository.CommentRepository
	likeRepo    *repository.LikeRepository
	producer    EventPublisher
	logger      *logger.Logger
}

func NewTweetService(tweetRepo *repository.TweetRepository, commentRepo *repository.CommentRepository, likeRepo *repository.LikeRepository, producer EventPublisher, logger *logger.Logger) *TweetService {
	return &TweetService{
		tweetRepo:   tweetRepo,
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		producer:    producer,
		logger:      logger,
	}
}

type CreateTweetRequest struct {
	Content string `json:"content" binding:"required,min=1,max=280"`
}

type UpdateTweetRequest struct {
	TweetID string `json:"tweetId" binding:"required"`
	Content string `json:"content" binding:"required,min=1,max=280"`
}

func (s *TweetService) Create(ctx context.Context, userID string, req *CreateTweetRequest) (*models.Tweet, error) {
	owner, err := models.ParseID(userID, "user id")
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperror.InvalidArgument("content is required")
	}

	tweet := &models.Tweet{Content: content, Owner: owner}
	if err := s.tweetRepo.Create(ctx, tweet); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, tweet.ID.Hex(), queue.EventTweetCreated, queue.TweetEventData{
		TweetID: tweet.ID.Hex(),
		UserID:  userID,
	})

	s.logger.WithField("tweet_id", tweet.ID.Hex()).Info("Tweet created successfully")
	return tweet, nil
}

func (s *TweetService) Update(ctx context.Context, userID string, req *UpdateTweetRequest) (*models.Tweet, error) {
	tweetID, err := s.authorize(ctx, userID, req.TweetID)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperror.InvalidArgument("content is required")
	}

	tweet, err := s.tweetRepo.UpdateContent(ctx, tweetID, content)
	if err != nil {
		return nil, err
	}
	if tweet == nil {
		return nil, apperror.NotFound("tweet not found")
	}

	publishEvent(ctx, s.producer, s.logger, tweet.ID.Hex(), queue.EventTweetUpdated, queue.TweetEventData{
		TweetID: tweet.ID.Hex(),
		UserID:  userID,
	})

	s.logger.WithField("tweet_id", tweet.ID.Hex()).Info("Tweet updated successfully")
	return tweet, nil
}

// Delete removes the tweet, its likes, its comments and their likes.
func (s *TweetService) Delete(ctx context.Context, userID, rawTweetID string) error {
	tweetID, err := s.authorize(ctx, userID, rawTweetID)
	if err != nil {
		return err
	}

	if err := s.tweetRepo.Delete(ctx, tweetID); err != nil {
		return err
	}

	// 级联删除点赞和评论
	commentIDs, err := s.commentRepo.IDsByTarget(ctx, models.TargetTweet, tweetID)
	if err != nil {
		s.logger.WithError(err).WithField("tweet_id", rawTweetID).Warn("Failed to list tweet comments")
	} else if _, err := s.likeRepo.DeleteByTargets(ctx, models.TargetComment, commentIDs); err != nil {
		s.logger.WithError(err).WithField("tweet_id", rawTweetID).Warn("Failed to delete tweet comment likes")
	}
	if _, err := s.commentRepo.DeleteByTarget(ctx, models.TargetTweet, tweetID); err != nil {
		s.logger.WithError(err).WithField("tweet_id", rawTweetID).Warn("Failed to delete tweet comments")
	}
	if _, err := s.likeRepo.DeleteByTarget(ctx, models.TargetTweet, tweetID); err != nil {
		s.logger.WithError(err).WithField("tweet_id", rawTweetID).Warn("Failed to delete tweet likes")
	}

	publishEvent(ctx, s.producer, s.logger, rawTweetID, queue.EventTweetDeleted, queue.TweetEventData{
		TweetID: tweetID.Hex(),
		UserID:  userID,
	})

	s.logger.WithField("tweet_id", rawTweetID).Info("Tweet deleted successfully")
	return nil
}

func (s *TweetService) authorize(ctx context.Context, userID, rawTweetID string) (primitive.ObjectID, error) {
	owner, err := models.ParseID(userID, "user id")
	if err != nil {
		return primitive.NilObjectID, err
	}
	tweetID, err := models.ParseID(rawTweetID, "tweet id")
	if err != nil {
		return primitive.NilObjectID, err
	}

	tweet, err := s.tweetRepo.GetByID(ctx, tweetID)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if tweet == nil {
		return primitive.NilObjectID, apperror.NotFound("tweet not found")
	}
	if tweet.Owner != owner {
		return primitive.NilObjectID, apperror.Forbidden("only the owner can modify this tweet")
	}
	return tweetID, nil
}
