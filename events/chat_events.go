package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// MessageSentEvent is emitted by the relay once a send request has passed
// validation. ConnectionID identifies the originating session so the hub can
// mark the sender's own delivery.
type MessageSentEvent struct {
	Message      domain.Message `json:"message"`
	ConnectionID string         `json:"connection_id"`
}

// UserJoinedEvent is emitted when a session joins a room it was not already
// a member of. Re-joins are membership no-ops and emit nothing.
type UserJoinedEvent struct {
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	ConnectionID string    `json:"connection_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted for every room a session leaves, either
// explicitly or as part of disconnect teardown.
type UserLeftEvent struct {
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	ConnectionID string    `json:"connection_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserTypingEvent is emitted for a typing signal. It is ephemeral: nothing
// is retained and a late joiner sees no backlog.
type UserTypingEvent struct {
	RoomID       string `json:"room_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	IsTyping     bool   `json:"is_typing"`
	ConnectionID string `json:"connection_id"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"chat",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"chat",
		"UserLeft",
		"v1",
	)

	UserTypingV1 = helper.EventDefinition[UserTypingEvent](
		"chat",
		"UserTyping",
		"v1",
	)
)
