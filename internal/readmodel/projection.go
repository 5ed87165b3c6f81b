package readmodel

import (
	"github.com/vidtube/vidtube/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Projection is a named public subset of an entity. Every join site takes one,
// so no lookup can return a full user document by accident.
type Projection struct {
	name   string
	fields []string
}

func newProjection(name string, fields ...string) Projection {
	return Projection{name: name, fields: fields}
}

var (
	PublicUser           = newProjection("PublicUser", "username", "fullName", "avatar.url")
	ChannelUser          = newProjection("ChannelUser", "username", "fullName", "avatar.url", "coverImage.url", "subscribers", "subscribed", "isSubscribed")
	VideoSummary         = newProjection("VideoSummary", "videoFile.url", "thumbnail.url", "title", "duration", "views", "owner", "createdAt")
	CommentAuthor        = newProjection("CommentAuthor", "username", "avatar.url")
	OwnerWithSubscribers = newProjection("OwnerWithSubscribers", "username", "fullName", "avatar.url", "subscribers")
	OwnerName            = newProjection("OwnerName", "fullName")
	VideoCard            = newProjection("VideoCard", "thumbnail", "title", "duration", "views", "createdAt", "owner")
)

func (p Projection) Name() string { return p.name }

func (p Projection) Fields() []string {
	out := make([]string, len(p.fields))
	copy(out, p.fields)
	return out
}

// Stage returns a fresh $project stage; _id is always kept.
func (p Projection) Stage() bson.D {
	doc := make(bson.D, 0, len(p.fields))
	for _, f := range p.fields {
		doc = append(doc, bson.E{Key: f, Value: 1})
	}
	return bson.D{{Key: "$project", Value: doc}}
}

// firstOrNull flattens a joined array to its first element, or null when the
// join matched nothing.
func firstOrNull(field string) bson.D {
	return bson.D{{Key: "$ifNull", Value: bson.A{
		bson.D{{Key: "$first", Value: "$" + field}},
		nil,
	}}}
}

// lookupByID joins from.foreignField == this.localField through a
// sub-pipeline. The let/$expr form keeps sub-pipelines usable on servers
// older than 5.0.
func lookupByID(from, localField, foreignField, as string, stages ...bson.D) bson.D {
	sub := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$eq", Value: bson.A{"$" + foreignField, "$$key"}},
		}}}}},
	}
	sub = append(sub, stages...)

	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: from},
		{Key: "let", Value: bson.D{{Key: "key", Value: "$" + localField}}},
		{Key: "pipeline", Value: sub},
		{Key: "as", Value: as},
	}}}
}

// joinOwner replaces the user id in field with that user reduced to proj.
// enrich stages run on the user document before it is projected.
func joinOwner(field string, proj Projection, enrich ...bson.D) []bson.D {
	stages := append([]bson.D{}, enrich...)
	stages = append(stages, proj.Stage())

	return []bson.D{
		lookupByID(models.CollectionUsers, field, "_id", field, stages...),
		{{Key: "$addFields", Value: bson.D{{Key: field, Value: firstOrNull(field)}}}},
	}
}

// subscriberCount adds subscribers = number of subscriptions whose channel is
// the current user document.
func subscriberCount() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: models.CollectionSubscriptions},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscribers", Value: bson.D{{Key: "$size", Value: "$subscribers"}}},
		}}},
	}
}
