package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TargetKind names the discriminator field a Like or Comment points through.
type TargetKind string

const (
	TargetVideo   TargetKind = "video"
	TargetComment TargetKind = "comment"
	TargetTweet   TargetKind = "tweet"
)

// Like sets exactly one of Video, Comment, Tweet.
type Like struct {
	ID        primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Video     *primitive.ObjectID `json:"video,omitempty" bson:"video,omitempty"`
	Comment   *primitive.ObjectID `json:"comment,omitempty" bson:"comment,omitempty"`
	Tweet     *primitive.ObjectID `json:"tweet,omitempty" bson:"tweet,omitempty"`
	LikeBy    primitive.ObjectID  `json:"likeBy" bson:"likeBy"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

func NewLike(kind TargetKind, target, likeBy primitive.ObjectID) *Like {
	like := &Like{LikeBy: likeBy}
	switch kind {
	case TargetVideo:
		like.Video = &target
	case TargetComment:
		like.Comment = &target
	case TargetTweet:
		like.Tweet = &target
	}
	return like
}

// Comment sets exactly one of Video, Tweet.
type Comment struct {
	ID        primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Content   string              `json:"content" bson:"content"`
	Owner     primitive.ObjectID  `json:"owner" bson:"owner"`
	Video     *primitive.ObjectID `json:"video,omitempty" bson:"video,omitempty"`
	Tweet     *primitive.ObjectID `json:"tweet,omitempty" bson:"tweet,omitempty"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}

type Tweet struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Content   string             `json:"content" bson:"content"`
	Owner     primitive.ObjectID `json:"owner" bson:"owner"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}
