package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CollectionUsers         = "users"
	CollectionVideos        = "videos"
	CollectionSubscriptions = "subscriptions"
	CollectionLikes         = "likes"
	CollectionComments      = "comments"
	CollectionTweets        = "tweets"
	CollectionViews         = "views"
)

// Media points at an object in the media store. StorageID is what the store
// needs to delete it again.
type Media struct {
	URL       string `json:"url" bson:"url"`
	StorageID string `json:"storageId,omitempty" bson:"storageId,omitempty"`
}

type PasswordReset struct {
	Token       string    `json:"-" bson:"token,omitempty"`
	TokenExpiry time.Time `json:"-" bson:"tokenExpiry,omitempty"`
}

type User struct {
	ID            primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Username      string               `json:"username" bson:"username"`
	Email         string               `json:"email" bson:"email"`
	Password      string               `json:"-" bson:"password"`
	FullName      string               `json:"fullName" bson:"fullName"`
	Avatar        Media                `json:"avatar" bson:"avatar"`
	CoverImage    *Media               `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	WatchHistory  []primitive.ObjectID `json:"watchHistory" bson:"watchHistory"`
	PasswordReset *PasswordReset       `json:"-" bson:"passwordReset,omitempty"`
	CreatedAt     time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt" bson:"updatedAt"`
}

type Subscription struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Subscriber primitive.ObjectID `json:"subscriber" bson:"subscriber"`
	Channel    primitive.ObjectID `json:"channel" bson:"channel"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updatedAt"`
}
