package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Video struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	VideoFile   Media              `json:"videoFile" bson:"videoFile"`
	Thumbnail   Media              `json:"thumbnail" bson:"thumbnail"`
	Title       string             `json:"title" bson:"title"`
	Description string             `json:"description" bson:"description"`
	Duration    string             `json:"duration" bson:"duration"`
	Views       int64              `json:"views" bson:"views"`
	IsPublished bool               `json:"isPublished" bson:"isPublished"`
	Owner       primitive.ObjectID `json:"owner" bson:"owner"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// View is one row per view event; ViewBy is nil for anonymous viewers.
type View struct {
	ID        primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	ViewBy    *primitive.ObjectID `json:"viewBy" bson:"viewBy"`
	Video     primitive.ObjectID  `json:"video" bson:"video"`
	CreatedAt time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt" bson:"updatedAt"`
}
