package services

import (
	"context"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LikeService struct {
	likeRepo    *repository.LikeRepository
	videoRepo   *repository.VideoRepository
	commentRepo *repository.CommentRepository
	tweetRepo   *repository.TweetRepository
	reader      *readmodel.Reader
	producer    EventPublisher
	logger      *logger.Logger
}

func NewLikeService(
	likeRepo *repository.LikeRepository,
	videoRepo *repository.VideoRepository,
	commentRepo *repository.CommentRepository,
	tweetRepo *repository.TweetRepository,
	reader *readmodel.Reader,
	producer EventPublisher,
	logger *logger.Logger,
) *LikeService {
	return &LikeService{
		likeRepo:    likeRepo,
		videoRepo:   videoRepo,
		commentRepo: commentRepo,
		tweetRepo:   tweetRepo,
		reader:      reader,
		producer:    producer,
		logger:      logger,
	}
}

// Toggle likes the target if userID has not liked it yet and unlikes it
// otherwise. It reports whether the like exists afterwards.
func (s *LikeService) Toggle(ctx context.Context, kind models.TargetKind, rawTargetID, userID string) (bool, error) {
	user, err := models.ParseID(userID, "user id")
	if err != nil {
		return false, err
	}
	target, err := models.ParseID(rawTargetID, string(kind)+" id")
	if err != nil {
		return false, err
	}

	// 检查目标是否存在
	if err := s.ensureTarget(ctx, kind, target); err != nil {
		return false, err
	}

	existing, err := s.likeRepo.Get(ctx, kind, target, user)
	if err != nil {
		return false, err
	}

	liked := existing == nil
	if existing != nil {
		if err := s.likeRepo.Delete(ctx, existing.ID); err != nil {
			return false, err
		}
	} else if err := s.likeRepo.Create(ctx, models.NewLike(kind, target, user)); err != nil {
		// 并发重复点赞，结果仍然是已点赞
		if !repository.IsDuplicate(err) {
			return false, err
		}
	}

	publishEvent(ctx, s.producer, s.logger, rawTargetID, queue.EventLikeToggled, queue.LikeEventData{
		UserID:     userID,
		TargetKind: string(kind),
		TargetID:   target.Hex(),
		Liked:      liked,
	})

	s.logger.WithFields(map[string]interface{}{
		"user_id":   userID,
		"target":    string(kind),
		"target_id": target.Hex(),
		"liked":     liked,
	}).Info("Like toggled successfully")
	return liked, nil
}

func (s *LikeService) ensureTarget(ctx context.Context, kind models.TargetKind, id primitive.ObjectID) error {
	var (
		exists bool
		err    error
	)
	switch kind {
	case models.TargetVideo:
		var video *models.Video
		video, err = s.videoRepo.GetByID(ctx, id)
		exists = video != nil
	case models.TargetComment:
		var comment *models.Comment
		comment, err = s.commentRepo.GetByID(ctx, id)
		exists = comment != nil
	case models.TargetTweet:
		var tweet *models.Tweet
		tweet, err = s.tweetRepo.GetByID(ctx, id)
		exists = tweet != nil
	default:
		return apperror.InvalidArgument("unsupported like target " + string(kind))
	}
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound(string(kind) + " not found")
	}
	return nil
}

func (s *LikeService) LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	return s.reader.LikedVideos(ctx, userID)
}
