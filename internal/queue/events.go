package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the timeline stream
const (
	EventMessageCreated = "message_created"
	EventMessageDeleted = "message_deleted"
	EventUserFollowed   = "user_followed"
	EventUserUnfollowed = "user_unfollowed"
)

const (
	StreamTimeline        = "stream:timeline"
	ConsumerGroupTimeline = "timeline_workers"

	// StreamMaxLen bounds the stream; XADD trims the oldest entries past it.
	StreamMaxLen = 100_000
)

// TimelineEvent is published after a committed write that changes someone's home timeline.
type TimelineEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds; for message events, the message timestamp

	MessageID int64 `json:"message_id,omitempty"`
	AuthorID  int64 `json:"author_id,omitempty"`

	FollowerID int64 `json:"follower_id,omitempty"`
	FolloweeID int64 `json:"followee_id,omitempty"`
}

// NewMessageCreatedEvent fans the message out to the author's followers.
func NewMessageCreatedEvent(messageID, authorID int64, at time.Time) TimelineEvent {
	return TimelineEvent{
		Type:      EventMessageCreated,
		Timestamp: at.UnixMilli(),
		MessageID: messageID,
		AuthorID:  authorID,
	}
}

func NewMessageDeletedEvent(messageID, authorID int64) TimelineEvent {
	return TimelineEvent{
		Type:      EventMessageDeleted,
		Timestamp: time.Now().UnixMilli(),
		MessageID: messageID,
		AuthorID:  authorID,
	}
}

func NewUserFollowedEvent(followerID, followeeID int64) TimelineEvent {
	return TimelineEvent{
		Type:       EventUserFollowed,
		Timestamp:  time.Now().UnixMilli(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

func NewUserUnfollowedEvent(followerID, followeeID int64) TimelineEvent {
	return TimelineEvent{
		Type:       EventUserUnfollowed,
		Timestamp:  time.Now().UnixMilli(),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// ToMap converts the event to XADD field-value pairs. The JSON body goes in "data".
func (e TimelineEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseTimelineEvent parses a TimelineEvent from Redis stream message values.
func ParseTimelineEvent(values map[string]interface{}) (TimelineEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return TimelineEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event TimelineEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return TimelineEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
