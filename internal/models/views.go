package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Shapes produced by the aggregation read models. Fields that a projection
// drops are omitempty so the JSON only carries what survived the join.

type MediaURL struct {
	URL string `json:"url" bson:"url"`
}

type PublicUser struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Username string             `json:"username,omitempty" bson:"username,omitempty"`
	FullName string             `json:"fullName,omitempty" bson:"fullName,omitempty"`
	Avatar   *MediaURL          `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

type VideoOwner struct {
	PublicUser  `bson:",inline"`
	Subscribers int64 `json:"subscribers" bson:"subscribers"`
}

type ChannelProfile struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	Username     string             `json:"username" bson:"username"`
	FullName     string             `json:"fullName" bson:"fullName"`
	Avatar       MediaURL           `json:"avatar" bson:"avatar"`
	CoverImage   *MediaURL          `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	Subscribers  int64              `json:"subscribers" bson:"subscribers"`
	Subscribed   int64              `json:"subscribed" bson:"subscribed"`
	IsSubscribed bool               `json:"isSubscribed" bson:"isSubscribed"`
}

type VideoDetail struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	VideoFile   Media              `json:"videoFile" bson:"videoFile"`
	Thumbnail   Media              `json:"thumbnail" bson:"thumbnail"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Duration    string             `json:"duration" bson:"duration"`
	Views       int64              `json:"views" bson:"views"`
	IsPublished bool               `json:"isPublished" bson:"isPublished"`
	Owner       *VideoOwner        `json:"owner" bson:"owner,omitempty"`
	Likes       int64              `json:"likes" bson:"likes"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// WatchedVideo is a full video row with its owner reduced to PublicUser.
type WatchedVideo struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	VideoFile   Media              `json:"videoFile" bson:"videoFile"`
	Thumbnail   Media              `json:"thumbnail" bson:"thumbnail"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Duration    string             `json:"duration" bson:"duration"`
	Views       int64              `json:"views" bson:"views"`
	IsPublished bool               `json:"isPublished" bson:"isPublished"`
	Owner       *PublicUser        `json:"owner" bson:"owner,omitempty"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type VideoSummary struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	VideoFile MediaURL           `json:"videoFile" bson:"videoFile"`
	Thumbnail MediaURL           `json:"thumbnail" bson:"thumbnail"`
	Title     string             `json:"title" bson:"title"`
	Duration  string             `json:"duration" bson:"duration"`
	Views     int64              `json:"views" bson:"views"`
	Owner     *PublicUser        `json:"owner" bson:"owner,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

type CommentView struct {
	ID        primitive.ObjectID  `json:"_id" bson:"_id"`
	Content   string              `json:"content" bson:"content"`
	Video     *primitive.ObjectID `json:"video,omitempty" bson:"video,omitempty"`
	Tweet     *primitive.ObjectID `json:"tweet,omitempty" bson:"tweet,omitempty"`
	Owner     *PublicUser         `json:"owner" bson:"owner,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

type VideoCard struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id"`
	Thumbnail Media              `json:"thumbnail" bson:"thumbnail"`
	Title     string             `json:"title" bson:"title"`
	Duration  string             `json:"duration" bson:"duration"`
	Views     int64              `json:"views" bson:"views"`
	Owner     *PublicUser        `json:"owner" bson:"owner,omitempty"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// LikedVideo keeps the like's id next to the joined video.
type LikedVideo struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	LikedVideo VideoCard          `json:"likedVideo" bson:"likedVideo"`
}
