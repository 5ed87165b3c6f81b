package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vidtube/vidtube/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *Database) *UserRepository {
	return &UserRepository{coll: db.Collection(models.CollectionUsers)}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.WatchHistory == nil {
		user.WatchHistory = []primitive.ObjectID{}
	}

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.getOne(ctx, bson.M{"_id": id}, "ID")
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, bson.M{"username": username}, "username")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, bson.M{"email": email}, "email")
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	or := bson.A{}
	if username != "" {
		or = append(or, bson.M{"username": username})
	}
	if email != "" {
		or = append(or, bson.M{"email": email})
	}
	if len(or) == 0 {
		return nil, nil
	}
	return r.getOne(ctx, bson.M{"$or": or}, "username or email")
}

// GetByResetToken only matches tokens that have not expired yet.
func (r *UserRepository) GetByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return r.getOne(ctx, bson.M{
		"passwordReset.token":       token,
		"passwordReset.tokenExpiry": bson.M{"$gt": now},
	}, "reset token")
}

// UpdateFields applies a $set and returns the updated document, or nil when
// the user does not exist.
func (r *UserRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) (*models.User, error) {
	fields["updatedAt"] = time.Now().UTC()

	var user models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// ReplaceMedia swaps avatar or coverImage and returns the document as it was
// before the swap so the caller can discard the previous object.
func (r *UserRepository) ReplaceMedia(ctx context.Context, id primitive.ObjectID, field string, media models.Media) (*models.User, error) {
	var previous models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{field: media, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&previous)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", field, err)
	}
	return &previous, nil
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id primitive.ObjectID, reset models.PasswordReset) error {
	if _, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"passwordReset": reset, "updatedAt": time.Now().UTC()},
	}); err != nil {
		return fmt.Errorf("failed to set password reset: %w", err)
	}
	return nil
}

// ResetPassword consumes an unexpired reset token: the token match, the new
// hash and clearing passwordReset happen in one update, so a token can only be
// spent once. Returns the user as it was before the reset, or nil when the
// token is unknown, expired or already used.
func (r *UserRepository) ResetPassword(ctx context.Context, token string, now time.Time, hashedPassword string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{
			"passwordReset.token":       token,
			"passwordReset.tokenExpiry": bson.M{"$gt": now},
		},
		bson.M{
			"$set":   bson.M{"password": hashedPassword, "updatedAt": now},
			"$unset": bson.M{"passwordReset": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}
	return &user, nil
}

// AddToWatchHistory appends videoID unless already present. $addToSet keeps
// concurrent duplicate appends from producing two entries.
func (r *UserRepository) AddToWatchHistory(ctx context.Context, userID, videoID primitive.ObjectID) error {
	if _, err := r.coll.UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"watchHistory": videoID},
	}); err != nil {
		return fmt.Errorf("failed to update watch history: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, filter bson.M, by string) (*models.User, error) {
	var user models.User
	found, err := findOne(ctx, r.coll, filter, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}
