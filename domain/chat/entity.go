package chat

import "time"

// Room represents a chat room. Rooms either come from the seeded catalog or
// are created implicitly when the first session joins an unknown room ID.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Implicit  bool      `json:"-"`
}

// Message represents a relayed chat message. It is constructed server-side
// with an assigned ID and timestamp and is never mutated after creation.
type Message struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// Session represents one authenticated live connection. The identity fields
// are bound at handshake from a verified token and are authoritative for
// everything the connection does afterwards.
type Session struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
}

// TypingSignal is a transient per-room typing state. It is never stored;
// each signal supersedes the previous one for the same user.
type TypingSignal struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// Member is a room member as seen by the registry.
type Member struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
}
