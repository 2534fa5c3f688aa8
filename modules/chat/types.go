package chat

import (
	"time"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// MaxMessageLength bounds the body of a relayed message.
const MaxMessageLength = 4096

// Request-reply service names registered by the chat module.
const (
	ServiceConnect     = "connect"
	ServiceDisconnect  = "disconnect"
	ServiceJoinRoom    = "join-room"
	ServiceLeaveRoom   = "leave-room"
	ServiceSendMessage = "send-message"
	ServiceTyping      = "typing"
	ServiceGetHistory  = "get-history"
	ServiceGetMembers  = "get-members"
	ServiceListRooms   = "list-rooms"
	ServiceCreateRoom  = "create-room"
)

// Error codes carried in responses for expected failures. They survive the
// request-reply boundary, unlike Go error identity.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotInRoom      = "not_in_room"
	CodeDisconnected   = "disconnected"
)

// ConnectRequest registers an authenticated session.
type ConnectRequest struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
}

// ConnectResponse acknowledges session registration.
type ConnectResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
}

// DisconnectRequest tears down a session and all its memberships.
type DisconnectRequest struct {
	ConnectionID string `json:"connection_id"`
}

// DisconnectResponse acknowledges teardown. Teardown is idempotent, so the
// response is always successful.
type DisconnectResponse struct {
	RoomsLeft []string `json:"rooms_left"`
}

// JoinRoomRequest adds a session to a room.
type JoinRoomRequest struct {
	ConnectionID string `json:"connection_id"`
	RoomID       string `json:"room_id"`
}

// JoinRoomResponse acknowledges a join.
type JoinRoomResponse struct {
	Success       bool   `json:"success"`
	Code          string `json:"code,omitempty"`
	AlreadyJoined bool   `json:"already_joined,omitempty"`
}

// LeaveRoomRequest removes a session from a room.
type LeaveRoomRequest struct {
	ConnectionID string `json:"connection_id"`
	RoomID       string `json:"room_id"`
}

// LeaveRoomResponse acknowledges a leave.
type LeaveRoomResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
}

// SendMessageRequest relays a message to a room.
type SendMessageRequest struct {
	ConnectionID string `json:"connection_id"`
	RoomID       string `json:"room_id"`
	Body         string `json:"body"`
}

// SendMessageResponse acknowledges a relay to the sender only.
type SendMessageResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	SentAt    time.Time `json:"sent_at,omitempty"`
}

// TypingRequest relays a typing signal to a room.
type TypingRequest struct {
	ConnectionID string `json:"connection_id"`
	RoomID       string `json:"room_id"`
	IsTyping     bool   `json:"is_typing"`
}

// TypingResponse acknowledges a typing signal to the sender only.
type TypingResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
}

// GetHistoryRequest fetches the cached recent messages of a room.
type GetHistoryRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
}

// GetHistoryResponse carries cached messages, oldest first.
type GetHistoryResponse struct {
	Messages []domain.Message `json:"messages"`
}

// GetMembersRequest fetches the current member snapshot of a room.
type GetMembersRequest struct {
	RoomID string `json:"room_id"`
}

// GetMembersResponse carries the member snapshot.
type GetMembersResponse struct {
	Members []domain.Member `json:"members"`
}

// ListRoomsRequest fetches the room catalog.
type ListRoomsRequest struct{}

// ListRoomsResponse carries the room catalog with live member counts.
type ListRoomsResponse struct {
	Rooms []RoomInfo `json:"rooms"`
}

// RoomInfo is a catalog entry with its live member count.
type RoomInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Members   int       `json:"members"`
}

// CreateRoomRequest adds an explicit room to the catalog.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// CreateRoomResponse acknowledges room creation.
type CreateRoomResponse struct {
	Success bool     `json:"success"`
	Code    string   `json:"code,omitempty"`
	Room    RoomInfo `json:"room,omitempty"`
}
