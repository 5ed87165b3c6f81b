package readmodel

import (
	"strings"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func match(filter bson.D) bson.D {
	return bson.D{{Key: "$match", Value: filter}}
}

func unwindAndReroot(field string) []bson.D {
	return []bson.D{
		{{Key: "$unwind", Value: "$" + field}},
		match(bson.D{{Key: field + ".isPublished", Value: true}}),
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$" + field}}}},
	}
}

// ChannelProfilePipeline runs against users. viewerID may be nil for
// anonymous requests, in which case isSubscribed is always false.
func ChannelProfilePipeline(username string, viewerID *primitive.ObjectID) mongo.Pipeline {
	var isSubscribed interface{} = false
	if viewerID != nil {
		isSubscribed = bson.D{{Key: "$in", Value: bson.A{*viewerID, "$subscribers.subscriber"}}}
	}

	return mongo.Pipeline{
		match(bson.D{{Key: "username", Value: strings.ToLower(strings.TrimSpace(username))}}),
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollectionSubscriptions},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollectionSubscriptions},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribedTo"},
		}}},
		// all three expressions see the joined arrays, not the sizes
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscribers", Value: bson.D{{Key: "$size", Value: "$subscribers"}}},
			{Key: "subscribed", Value: bson.D{{Key: "$size", Value: "$subscribedTo"}}},
			{Key: "isSubscribed", Value: isSubscribed},
		}}},
		ChannelUser.Stage(),
	}
}

// VideoDetailPipeline runs against videos.
func VideoDetailPipeline(videoID primitive.ObjectID) mongo.Pipeline {
	p := mongo.Pipeline{match(bson.D{{Key: "_id", Value: videoID}})}
	p = append(p, joinOwner("owner", OwnerWithSubscribers, subscriberCount()...)...)
	p = append(p,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollectionLikes},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "video"},
			{Key: "as", Value: "likes"},
		}}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "likes", Value: bson.D{{Key: "$size", Value: "$likes"}}},
		}}},
	)
	return p
}

// WatchHistoryPipeline runs against users and yields one row per watched,
// published video. Rows come out in whatever order the join produces; the
// pagination sort decides the final order.
func WatchHistoryPipeline(userID primitive.ObjectID) mongo.Pipeline {
	videoStages := mongo.Pipeline{
		match(bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$in", Value: bson.A{"$_id", "$$history"}},
		}}}),
	}
	videoStages = append(videoStages, joinOwner("owner", PublicUser)...)

	p := mongo.Pipeline{
		match(bson.D{{Key: "_id", Value: userID}}),
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollectionVideos},
			{Key: "let", Value: bson.D{{Key: "history", Value: bson.D{
				{Key: "$ifNull", Value: bson.A{"$watchHistory", bson.A{}}},
			}}}},
			{Key: "pipeline", Value: videoStages},
			{Key: "as", Value: "watchHistory"},
		}}},
	}
	return append(p, unwindAndReroot("watchHistory")...)
}

// SubscriptionFeedPipeline runs against subscriptions.
func SubscriptionFeedPipeline(subscriberID primitive.ObjectID) mongo.Pipeline {
	p := mongo.Pipeline{
		match(bson.D{{Key: "subscriber", Value: subscriberID}}),
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollectionVideos},
			{Key: "localField", Value: "channel"},
			{Key: "foreignField", Value: "owner"},
			{Key: "as", Value: "videos"},
		}}},
	}
	p = append(p, unwindAndReroot("videos")...)
	p = append(p, joinOwner("owner", PublicUser)...)
	return append(p, VideoSummary.Stage())
}

// PublishedVideosPipeline runs against videos.
func PublishedVideosPipeline() mongo.Pipeline {
	return mongo.Pipeline{match(bson.D{{Key: "isPublished", Value: true}})}
}

// CommentsPipeline runs against comments. Only video and tweet comments exist.
func CommentsPipeline(kind models.TargetKind, targetID primitive.ObjectID) (mongo.Pipeline, error) {
	if kind != models.TargetVideo && kind != models.TargetTweet {
		return nil, apperror.InvalidArgument("comments can only target a video or a tweet")
	}

	p := mongo.Pipeline{match(bson.D{{Key: string(kind), Value: targetID}})}
	return append(p, joinOwner("owner", CommentAuthor)...), nil
}

// LikedVideosPipeline runs against likes, newest like first. Likes whose video
// was deleted or unpublished drop out instead of yielding an empty entry.
func LikedVideosPipeline(userID primitive.ObjectID) mongo.Pipeline {
	videoStages := []bson.D{
		match(bson.D{{Key: "isPublished", Value: true}}),
		VideoCard.Stage(),
	}
	videoStages = append(videoStages, joinOwner("owner", OwnerName)...)

	return mongo.Pipeline{
		match(bson.D{
			{Key: "likeBy", Value: userID},
			{Key: "video", Value: bson.D{{Key: "$exists", Value: true}}},
		}),
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		lookupByID(models.CollectionVideos, "video", "_id", "likedVideo", videoStages...),
		{{Key: "$addFields", Value: bson.D{{Key: "likedVideo", Value: firstOrNull("likedVideo")}}}},
		match(bson.D{{Key: "likedVideo", Value: bson.D{{Key: "$ne", Value: nil}}}}),
		{{Key: "$project", Value: bson.D{{Key: "likedVideo", Value: 1}}}},
	}
}
