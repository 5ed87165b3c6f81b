package services

import (
	"context"
	"fmt"

	"github.com/vidtube/vidtube/internal/models"
	"github.com/vidtube/vidtube/internal/repository"
	"github.com/vidtube/vidtube/pkg/apperror"
	"github.com/vidtube/vidtube/pkg/logger"
	"github.com/vidtube/vidtube/pkg/queue"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionService struct {
	subRepo  *repository.SubscriptionRepository
	userRepo *repository.UserRepository
	producer EventPublisher
	logger   *logger.Logger
}

func NewSubscriptionService(subRepo *repository.SubscriptionRepository, userRepo *repository.UserRepository, producer EventPublisher, logger *logger.Logger) *SubscriptionService {
	return &SubscriptionService{
		subRepo:  subRepo,
		userRepo: userRepo,
		producer: producer,
		logger:   logger,
	}
}

type SubscriptionRequest struct {
	ChannelOwnerUsername string `json:"channelOwnerUsername" binding:"required"`
}

func (s *SubscriptionService) Subscribe(ctx context.Context, subscriberID, channelUsername string) (*models.Subscription, error) {
	subscriber, channel, err := s.resolve(ctx, subscriberID, channelUsername)
	if err != nil {
		return nil, err
	}
	if subscriber == channel.ID {
		return nil, apperror.Conflict("cannot subscribe to your own channel")
	}

	sub := &models.Subscription{Subscriber: subscriber, Channel: channel.ID}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperror.Conflict("already subscribed to this channel")
		}
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, channel.ID.Hex(), queue.EventSubscriptionCreated, queue.SubscriptionEventData{
		SubscriberID: subscriberID,
		ChannelID:    channel.ID.Hex(),
	})

	s.logger.WithFields(map[string]interface{}{
		"subscriber_id": subscriberID,
		"channel_id":    channel.ID.Hex(),
	}).Info("Subscribed successfully")
	return sub, nil
}

func (s *SubscriptionService) Unsubscribe(ctx context.Context, subscriberID, channelUsername string) error {
	subscriber, channel, err := s.resolve(ctx, subscriberID, channelUsername)
	if err != nil {
		return err
	}

	deleted, err := s.subRepo.Delete(ctx, subscriber, channel.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("not subscribed to this channel")
	}

	publishEvent(ctx, s.producer, s.logger, channel.ID.Hex(), queue.EventSubscriptionDeleted, queue.SubscriptionEventData{
		SubscriberID: subscriberID,
		ChannelID:    channel.ID.Hex(),
	})

	s.logger.WithFields(map[string]interface{}{
		"subscriber_id": subscriberID,
		"channel_id":    channel.ID.Hex(),
	}).Info("Unsubscribed successfully")
	return nil
}

func (s *SubscriptionService) resolve(ctx context.Context, subscriberID, channelUsername string) (primitive.ObjectID, *models.User, error) {
	subscriber, err := models.ParseID(subscriberID, "subscriber id")
	if err != nil {
		return primitive.NilObjectID, nil, err
	}
	username := normalizeUsername(channelUsername)
	if username == "" {
		return primitive.NilObjectID, nil, apperror.InvalidArgument("channelOwnerUsername is required")
	}

	channel, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return primitive.NilObjectID, nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if channel == nil {
		return primitive.NilObjectID, nil, apperror.NotFound("channel not found")
	}
	return subscriber, channel, nil
}
