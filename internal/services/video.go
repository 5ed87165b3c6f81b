package services

import (
	"context"
	"strings"
	"time"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/readmodel"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/cache"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"github.com/vidtube/vidtube/pkg/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type VideoService struct {
	videoRepo *repository.VideoRepository
	viewRepo  *repository.ViewRepository
	userRepo  *repository.UserRepository
	reader    *readmodel.Reader
	media     MediaStorage
	cache     Cache
	producer  EventPublisher
	feedTTL   time.Duration
	logger    *logger.Logger
}

func NewVideoService(
	videoRepo *repository.VideoRepository,
	viewRepo *repository.ViewRepository,
	userRepo *repository.UserRepository,
	reader *readmodel.Reader,
	media MediaStorage,
	cache Cache,
	producer EventPublisher,
	feedTTL time.Duration,
	logger *logger.Logger,
) *VideoService {
	return &VideoService{
		videoRepo: videoRepo,
		viewRepo:  viewRepo,
		userRepo:  userRepo,
		reader:    reader,
		media:     media,
		cache:     cache,
		producer:  producer,
		feedTTL:   feedTTL,
		logger:    logger,
	}
}

type UploadVideoRequest struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description" binding:"required,max=5000"`
	Duration    string `form:"duration" binding:"max=20"`
	IsPublished *bool  `form:"isPublished"`
}

type RecordViewRequest struct {
	VideoID string `json:"videoId" binding:"required"`
}

func (s *VideoService) Upload(ctx context.Context, ownerID string, req *UploadVideoRequest, videoFile, thumbnail *FileUpload) (*models.Video, error) {
	owner, err := models.ParseID(ownerID, "owner id")
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperror.InvalidArgument("title is required")
	}

	// 校验文件
	if err := ValidateVideo(videoFile); err != nil {
		return nil, err
	}
	if err := ValidateImage(thumbnail, ThumbnailRule); err != nil {
		return nil, err
	}

	// 上传视频和缩略图
	videoMedia, err := uploadMedia(ctx, s.media, storage.FolderVideos, videoFile)
	if err != nil {
		return nil, err
	}
	thumbMedia, err := uploadMedia(ctx, s.media, storage.FolderThumbnails, thumbnail)
	if err != nil {
		s.discard(ctx, videoMedia.StorageID)
		return nil, err
	}

	published := true
	if req.IsPublished != nil {
		published = *req.IsPublished
	}

	video := &models.Video{
		VideoFile:   videoMedia,
		Thumbnail:   thumbMedia,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Duration:    strings.TrimSpace(req.Duration),
		IsPublished: published,
		Owner:       owner,
	}
	if err := s.videoRepo.Create(ctx, video); err != nil {
		s.discard(ctx, videoMedia.StorageID, thumbMedia.StorageID)
		return nil, err
	}

	if video.IsPublished {
		s.bumpFeed(ctx)
	}
	s.publish(ctx, video.ID.Hex(), queue.EventVideoUploaded, queue.VideoEventData{
		VideoID:     video.ID.Hex(),
		OwnerID:     ownerID,
		Title:       video.Title,
		IsPublished: video.IsPublished,
	})

	s.logger.WithFields(map[string]interface{}{
		"video_id": video.ID.Hex(),
		"owner_id": ownerID,
	}).Info("Video uploaded successfully")
	return video, nil
}

func (s *VideoService) TogglePublish(ctx context.Context, ownerID, rawVideoID string) (*models.Video, error) {
	owner, err := models.ParseID(ownerID, "owner id")
	if err != nil {
		return nil, err
	}
	videoID, err := models.ParseID(rawVideoID, "video id")
	if err != nil {
		return nil, err
	}

	video, err := s.videoRepo.TogglePublish(ctx, videoID, owner)
	if err != nil {
		return nil, err
	}
	if video == nil {
		// 区分视频不存在和无权限
		return nil, s.ownershipError(ctx, videoID)
	}

	s.bumpFeed(ctx)
	s.publish(ctx, video.ID.Hex(), queue.EventVideoPublishToggled, queue.VideoEventData{
		VideoID:     video.ID.Hex(),
		OwnerID:     ownerID,
		IsPublished: video.IsPublished,
	})

	s.logger.WithFields(map[string]interface{}{
		"video_id":     video.ID.Hex(),
		"is_published": video.IsPublished,
	}).Info("Video publish status toggled successfully")
	return video, nil
}

// Delete removes the video document; media objects and dependent rows are
// cleaned up by the worker from the video.deleted event. When the event cannot
// be published the media objects are removed here instead.
func (s *VideoService) Delete(ctx context.Context, ownerID, rawVideoID string) error {
	owner, err := models.ParseID(ownerID, "owner id")
	if err != nil {
		return err
	}
	videoID, err := models.ParseID(rawVideoID, "video id")
	if err != nil {
		return err
	}

	video, err := s.videoRepo.Delete(ctx, videoID, owner)
	if err != nil {
		return err
	}
	if video == nil {
		return s.ownershipError(ctx, videoID)
	}

	if video.IsPublished {
		s.bumpFeed(ctx)
	}
	event := queue.NewEvent(queue.EventVideoDeleted, queue.VideoDeletedEventData{
		VideoID:            video.ID.Hex(),
		OwnerID:            ownerID,
		VideoStorageID:     video.VideoFile.StorageID,
		ThumbnailStorageID: video.Thumbnail.StorageID,
	})
	if err := s.producer.Publish(ctx, video.ID.Hex(), event); err != nil {
		s.logger.WithError(err).WithField("video_id", video.ID.Hex()).Error("Failed to publish video.deleted, removing media inline")
		s.discard(ctx, storedMedia(video.VideoFile, video.Thumbnail)...)
	}

	s.logger.WithField("video_id", video.ID.Hex()).Info("Video deleted successfully")
	return nil
}

func (s *VideoService) ownershipError(ctx context.Context, videoID primitive.ObjectID) error {
	existing, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperror.NotFound("video not found")
	}
	return apperror.Forbidden("only the owner can modify this video")
}

// RecordView stores a view row and bumps the counter. Authenticated viewers
// also get the video in their watch history.
func (s *VideoService) RecordView(ctx context.Context, rawVideoID, viewerID string) error {
	videoID, err := models.ParseID(rawVideoID, "video id")
	if err != nil {
		return err
	}
	viewer, err := models.ParseOptionalID(viewerID, "viewer id")
	if err != nil {
		return err
	}

	video, err := s.videoRepo.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil || (!video.IsPublished && (viewer == nil || *viewer != video.Owner)) {
		return apperror.NotFound("video not found")
	}

	if err := s.viewRepo.Create(ctx, &models.View{ViewBy: viewer, Video: videoID}); err != nil {
		return err
	}
	matched, err := s.videoRepo.IncrementViews(ctx, videoID)
	if err != nil {
		return err
	}
	if !matched {
		return apperror.NotFound("video not found")
	}
	if viewer != nil {
		if err := s.userRepo.AddToWatchHistory(ctx, *viewer, videoID); err != nil {
			return err
		}
	}

	s.publish(ctx, rawVideoID, queue.EventVideoViewed, queue.ViewEventData{
		VideoID:  rawVideoID,
		ViewerID: viewerID,
	})
	return nil
}

func (s *VideoService) Detail(ctx context.Context, rawVideoID, viewerID string) (*models.VideoDetail, error) {
	viewer, err := models.ParseOptionalID(viewerID, "viewer id")
	if err != nil {
		return nil, err
	}
	return s.reader.VideoDetail(ctx, rawVideoID, viewer)
}

// PublishedFeed serves pages from Redis when possible. Cache failures only
// cost a round trip to Mongo.
func (s *VideoService) PublishedFeed(ctx context.Context, opts readmodel.Options) (*readmodel.Page[models.Video], error) {
	opts = opts.Normalize()

	// 1. 读取当前 feed 版本号
	gen, err := s.cache.GetInt64(ctx, cache.FeedGenerationKey())
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read feed generation")
		return s.reader.PublishedVideos(ctx, opts)
	}
	key := cache.FeedPageKey(gen, opts.Page, opts.Limit, opts.Sort)

	// 2. 命中缓存直接返回
	var cached readmodel.Page[models.Video]
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		if cached.Items == nil {
			cached.Items = []models.Video{}
		}
		return &cached, nil
	} else if !cache.IsMiss(err) {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to read cached feed page")
	}

	// 3. 回源并写缓存
	page, err := s.reader.PublishedVideos(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, page, s.feedTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to cache feed page")
	}
	return page, nil
}

func (s *VideoService) SubscriptionFeed(ctx context.Context, userID string, opts readmodel.Options) (*readmodel.Page[models.VideoSummary], error) {
	return s.reader.SubscriptionFeed(ctx, userID, opts)
}

func (s *VideoService) bumpFeed(ctx context.Context) {
	if _, err := s.cache.Incr(ctx, cache.FeedGenerationKey()); err != nil {
		s.logger.WithError(err).Error("Failed to invalidate published feed cache")
	}
}

func (s *VideoService) publish(ctx context.Context, key string, t queue.EventType, data interface{}) {
	publishEvent(ctx, s.producer, s.logger, key, t, data)
}

func (s *VideoService) discard(ctx context.Context, storageIDs ...string) {
	discardUploads(ctx, s.media, s.logger, storageIDs...)
}

func storedMedia(media ...models.Media) []string {
	ids := make([]string, 0, len(media))
	for _, m := range media {
		if m.StorageID != "" {
			ids = append(ids, m.StorageID)
		}
	}
	return ids
}
