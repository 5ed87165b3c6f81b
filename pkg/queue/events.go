package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	EventUserRegistered         EventType = "user.registered"
	EventPasswordResetRequested EventType = "password_reset.requested"
	EventMediaReplaced          EventType = "media.replaced"
	EventVideoUploaded          EventType = "video.uploaded"
	EventVideoPublishToggled    EventType = "video.publish_toggled"
	EventVideoDeleted           EventType = "video.deleted"
	EventVideoViewed            EventType = "video.viewed"
	EventSubscriptionCreated    EventType = "subscription.created"
	EventSubscriptionDeleted    EventType = "subscription.deleted"
	EventLikeToggled            EventType = "like.toggled"
	EventCommentCreated         EventType = "comment.created"
	EventCommentDeleted         EventType = "comment.deleted"
	EventTweetCreated           EventType = "tweet.created"
	EventTweetUpdated           EventType = "tweet.updated"
	EventTweetDeleted           EventType = "tweet.deleted"
)

type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent stamps data with the current time.
func NewEvent(t EventType, data interface{}) Event {
	return Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
}

// RawEvent is the consumer-side view of Event; Data is decoded once the type
// is known.
type RawEvent struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func DecodeEvent(value []byte) (*RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return nil, Permanent(fmt.Errorf("failed to decode event: %w", err))
	}
	if ev.Type == "" {
		return nil, Permanent(errors.New("event has no type"))
	}
	return &ev, nil
}

func (e *RawEvent) DecodeData(dest interface{}) error {
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return Permanent(fmt.Errorf("failed to decode %s payload: %w", e.Type, err))
	}
	return nil
}

type UserEventData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type PasswordResetEventData struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MediaReplacedEventData struct {
	UserID            string `json:"user_id"`
	Field             string `json:"field"`
	PreviousStorageID string `json:"previous_storage_id"`
}

type VideoEventData struct {
	VideoID     string `json:"video_id"`
	OwnerID     string `json:"owner_id"`
	Title       string `json:"title,omitempty"`
	IsPublished bool   `json:"is_published"`
}

type VideoDeletedEventData struct {
	VideoID            string `json:"video_id"`
	OwnerID            string `json:"owner_id"`
	VideoStorageID     string `json:"video_storage_id"`
	ThumbnailStorageID string `json:"thumbnail_storage_id"`
}

type ViewEventData struct {
	VideoID  string `json:"video_id"`
	ViewerID string `json:"viewer_id,omitempty"`
}

type SubscriptionEventData struct {
	SubscriberID string `json:"subscriber_id"`
	ChannelID    string `json:"channel_id"`
}

type LikeEventData struct {
	UserID     string `json:"user_id"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	Liked      bool   `json:"liked"`
}

type CommentEventData struct {
	CommentID  string `json:"comment_id"`
	UserID     string `json:"user_id"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
}

type TweetEventData struct {
	TweetID string `json:"tweet_id"`
	UserID  string `json:"user_id"`
}
