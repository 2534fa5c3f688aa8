package chat

import (
	"encoding/json"
	"time"
)

// Envelope is the frame exchanged over the WebSocket channel in both
// directions. Client frames carry their fields inline; server frames carry a
// typed payload. The wire uses camelCase field names, which is the contract
// browser clients already speak.
type Envelope struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	Message  string          `json:"message,omitempty"`
	IsTyping bool            `json:"isTyping,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Client-to-server event types.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventHistory     = "history"
	EventMembers     = "members"
	EventRoomList    = "room_list"
)

// Server-to-client event types.
const (
	EventConnected      = "connected"
	EventJoined         = "joined"
	EventLeft           = "left"
	EventReceiveMessage = "receive_message"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserTyping     = "user_typing"
	EventError          = "error"
)

// ConnectedPayload acknowledges a successful handshake with the identity the
// server bound to the session.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
}

// JoinedPayload acknowledges a join to the joining session only.
type JoinedPayload struct {
	RoomID string `json:"roomId"`
}

// LeftPayload acknowledges a leave to the leaving session only.
type LeftPayload struct {
	RoomID string `json:"roomId"`
}

// ReceiveMessagePayload is a delivered message. IsOwn is set per recipient so
// a client never has to guess whether a delivery is its own echo.
type ReceiveMessagePayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId"`
	IsOwn     bool      `json:"isOwn"`
}

// UserJoinedPayload announces a join to the other members of a room.
type UserJoinedPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UserLeftPayload announces a leave or disconnect to the remaining members.
type UserLeftPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UserTypingPayload relays a typing signal to the other members of a room.
type UserTypingPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// HistoryPayload carries the cached recent messages of a room.
type HistoryPayload struct {
	RoomID   string                  `json:"roomId"`
	Messages []ReceiveMessagePayload `json:"messages"`
}

// MemberPayload is one entry of a members listing.
type MemberPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MembersPayload lists the current members of a room.
type MembersPayload struct {
	RoomID  string          `json:"roomId"`
	Members []MemberPayload `json:"members"`
}

// RoomPayload is one entry of a room listing.
type RoomPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomListPayload lists the rooms known to the catalog.
type RoomListPayload struct {
	Rooms []RoomPayload `json:"rooms"`
}
