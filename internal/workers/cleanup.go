package workers

import (
	"context"
	"fmt"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"golang.org/x/sync/errgroup"
)

// MediaRemover is satisfied by *storage.MediaStore.
type MediaRemover interface {
	Remove(ctx context.Context, storageID string) error
}

// CleanupWorker removes what a deleted video or a replaced image leaves
// behind: media objects and rows that point at the deleted video.
type CleanupWorker struct {
	commentRepo *repository.CommentRepository
	likeRepo    *repository.LikeRepository
	viewRepo    *repository.ViewRepository
	media       MediaRemover
	consumers   []*queue.KafkaConsumer
	logger      *logger.Logger
}

func NewCleanupWorker(
	commentRepo *repository.CommentRepository,
	likeRepo *repository.LikeRepository,
	viewRepo *repository.ViewRepository,
	media MediaRemover,
	consumers []*queue.KafkaConsumer,
	logger *logger.Logger,
) *CleanupWorker {
	return &CleanupWorker{
		commentRepo: commentRepo,
		likeRepo:    likeRepo,
		viewRepo:    viewRepo,
		media:       media,
		consumers:   consumers,
		logger:      logger,
	}
}

// Start consumes every topic until ctx is cancelled or a reader fails.
func (w *CleanupWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cleanup worker...")

	g, gctx := errgroup.WithContext(ctx)
	for _, consumer := range w.consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Subscribe(gctx, w.Handle)
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *CleanupWorker) Stop() error {
	w.logger.Info("Stopping cleanup worker...")
	var firstErr error
	for _, consumer := range w.consumers {
		if err := consumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Handle dispatches one message. Events the worker has nothing to do for are
// acknowledged without work. Events that can never be processed come back as
// queue.Permanent errors; anything else is retried by the consumer.
func (w *CleanupWorker) Handle(ctx context.Context, msg queue.Message) error {
	event, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"timestamp":  event.Timestamp,
		"topic":      msg.Topic,
	}).Debug("Processing event")

	switch event.Type {
	case queue.EventVideoDeleted:
		var data queue.VideoDeletedEventData
		if err := event.DecodeData(&data); err != nil {
			return err
		}
		return w.handleVideoDeleted(ctx, data)
	case queue.EventMediaReplaced:
		var data queue.MediaReplacedEventData
		if err := event.DecodeData(&data); err != nil {
			return err
		}
		return w.handleMediaReplaced(ctx, data)
	default:
		w.logger.WithField("event_type", event.Type).Debug("Skipping event")
		return nil
	}
}

func (w *CleanupWorker) handleVideoDeleted(ctx context.Context, data queue.VideoDeletedEventData) error {
	videoID, err := models.ParseID(data.VideoID, "video id")
	if err != nil {
		return queue.Permanent(err)
	}

	// 1. 删除存储中的视频和缩略图，失败时继续清理数据，最后返回错误以便重试
	var mediaErr error
	for _, id := range []string{data.VideoStorageID, data.ThumbnailStorageID} {
		if id == "" {
			continue
		}
		if err := w.media.Remove(ctx, id); err != nil {
			w.logger.WithError(err).WithField("storage_id", id).Error("Failed to remove video media")
			if mediaErr == nil {
				mediaErr = fmt.Errorf("failed to remove %s: %w", id, err)
			}
		}
	}

	// 2. 删除评论上的点赞，再删除评论
	commentIDs, err := w.commentRepo.IDsByTarget(ctx, models.TargetVideo, videoID)
	if err != nil {
		return fmt.Errorf("failed to list comments of video %s: %w", data.VideoID, err)
	}
	commentLikes, err := w.likeRepo.DeleteByTargets(ctx, models.TargetComment, commentIDs)
	if err != nil {
		return err
	}
	comments, err := w.commentRepo.DeleteByTarget(ctx, models.TargetVideo, videoID)
	if err != nil {
		return err
	}

	// 3. 删除视频点赞和观看记录
	likes, err := w.likeRepo.DeleteByTarget(ctx, models.TargetVideo, videoID)
	if err != nil {
		return err
	}
	views, err := w.viewRepo.DeleteByVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if mediaErr != nil {
		return mediaErr
	}

	w.logger.WithFields(map[string]interface{}{
		"video_id":      data.VideoID,
		"comments":      comments,
		"comment_likes": commentLikes,
		"likes":         likes,
		"views":         views,
	}).Info("Video cleanup completed successfully")
	return nil
}

func (w *CleanupWorker) handleMediaReplaced(ctx context.Context, data queue.MediaReplacedEventData) error {
	if data.PreviousStorageID == "" {
		return nil
	}
	if err := w.media.Remove(ctx, data.PreviousStorageID); err != nil {
		return fmt.Errorf("failed to remove previous %s: %w", data.Field, err)
	}

	w.logger.WithFields(map[string]interface{}{
		"user_id":    data.UserID,
		"field":      data.Field,
		"storage_id": data.PreviousStorageID,
	}).Info("Replaced media removed successfully")
	return nil
}
