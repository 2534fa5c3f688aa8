package api

import "time"

// ErrorResponse is the standard error body for REST endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// RegisterRequest is the body of POST /api/v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/v1/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CreateRoomRequest is the body of POST /api/v1/rooms.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// RoomResponse is one room in REST responses.
type RoomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Members   int       `json:"members"`
}

// RoomListResponse is the body of GET /api/v1/rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// MessageResponse is one message in REST history responses.
type MessageResponse struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse is the body of GET /api/v1/rooms/:id/history.
type HistoryResponse struct {
	RoomID   string            `json:"room_id"`
	Messages []MessageResponse `json:"messages"`
}

// MemberResponse is one member in REST member listings.
type MemberResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// MembersResponse is the body of GET /api/v1/rooms/:id/members.
type MembersResponse struct {
	RoomID  string           `json:"room_id"`
	Members []MemberResponse `json:"members"`
}
