package readmodel

import (
	"context"
	"strings"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reader answers the denormalized queries. Ids arrive as raw request strings
// and malformed ones fail with InvalidArgument before any store call.
type Reader struct {
	store Aggregator
}

func NewReader(store Aggregator) *Reader {
	return &Reader{store: store}
}

func (r *Reader) ChannelProfile(ctx context.Context, username string, viewerID *primitive.ObjectID) (*models.ChannelProfile, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperror.InvalidArgument("username is required")
	}

	var rows []models.ChannelProfile
	if err := r.store.Aggregate(ctx, models.CollectionUsers, ChannelProfilePipeline(username, viewerID), &rows); err != nil {
		return nil, apperror.StoreFailure("failed to load channel profile", err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("no channel with this username exists")
	}
	return &rows[0], nil
}

// VideoDetail hides unpublished videos from everyone but their owner.
func (r *Reader) VideoDetail(ctx context.Context, rawVideoID string, viewerID *primitive.ObjectID) (*models.VideoDetail, error) {
	videoID, err := models.ParseID(rawVideoID, "video id")
	if err != nil {
		return nil, err
	}

	var rows []models.VideoDetail
	if err := r.store.Aggregate(ctx, models.CollectionVideos, VideoDetailPipeline(videoID), &rows); err != nil {
		return nil, apperror.StoreFailure("failed to load video", err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("video not found")
	}
	detail := &rows[0]
	if !detail.IsPublished && !ownedBy(detail, viewerID) {
		return nil, apperror.NotFound("video not found")
	}
	return detail, nil
}

func ownedBy(detail *models.VideoDetail, viewerID *primitive.ObjectID) bool {
	return viewerID != nil && detail.Owner != nil && detail.Owner.ID == *viewerID
}

func (r *Reader) WatchHistory(ctx context.Context, rawUserID string, opts Options) (*Page[models.WatchedVideo], error) {
	userID, err := models.ParseID(rawUserID, "user id")
	if err != nil {
		return nil, err
	}
	return Paginate[models.WatchedVideo](ctx, r.store, models.CollectionUsers, WatchHistoryPipeline(userID), opts)
}

func (r *Reader) SubscriptionFeed(ctx context.Context, rawSubscriberID string, opts Options) (*Page[models.VideoSummary], error) {
	subscriberID, err := models.ParseID(rawSubscriberID, "subscriber id")
	if err != nil {
		return nil, err
	}
	return Paginate[models.VideoSummary](ctx, r.store, models.CollectionSubscriptions, SubscriptionFeedPipeline(subscriberID), opts)
}

func (r *Reader) PublishedVideos(ctx context.Context, opts Options) (*Page[models.Video], error) {
	return Paginate[models.Video](ctx, r.store, models.CollectionVideos, PublishedVideosPipeline(), opts)
}

func (r *Reader) Comments(ctx context.Context, kind models.TargetKind, rawTargetID string, opts Options) (*Page[models.CommentView], error) {
	targetID, err := models.ParseID(rawTargetID, string(kind)+" id")
	if err != nil {
		return nil, err
	}
	pipeline, err := CommentsPipeline(kind, targetID)
	if err != nil {
		return nil, err
	}
	return Paginate[models.CommentView](ctx, r.store, models.CollectionComments, pipeline, opts)
}

// LikedVideos is unpaginated; it is bounded by the user's own likes.
func (r *Reader) LikedVideos(ctx context.Context, rawUserID string) ([]models.LikedVideo, error) {
	userID, err := models.ParseID(rawUserID, "user id")
	if err != nil {
		return nil, err
	}

	var rows []models.LikedVideo
	if err := r.store.Aggregate(ctx, models.CollectionLikes, LikedVideosPipeline(userID), &rows); err != nil {
		return nil, apperror.StoreFailure("failed to load liked videos", err)
	}
	if rows == nil {
		rows = []models.LikedVideo{}
	}
	return rows, nil
}
