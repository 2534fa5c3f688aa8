package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	chatdomain "github.com/example/realtime-chat-demo/domain/chat"
	"github.com/example/realtime-chat-demo/modules/broadcast"
)

// Rate limiting constants
const (
	messagesPerSecond = 10
	burstSize         = 20
)

// rateLimiter implements a simple token bucket rate limiter.
type rateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate int // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newRateLimiter(maxTokens, refillRate int) *rateLimiter {
	return &rateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * r.refillRate
	if tokensToAdd > 0 {
		r.tokens += tokensToAdd
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.lastRefill = now
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// upgradeWebSocket validates the access token before allowing the upgrade.
// The session identity comes from verified claims only; the client never
// names itself.
func (m *APIModule) upgradeWebSocket(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Missing access token",
		})
	}

	claims, err := m.authAdapter.ValidateToken(c.UserContext(), token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired access token",
		})
	}

	c.Locals("userID", claims.UserID)
	c.Locals("username", claims.Username)
	return websocket.New(m.handleWebSocket)(c)
}

// handleWebSocket runs one authenticated WebSocket session.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connectionID := uuid.New().String()
	userID, _ := c.Locals("userID").(string)
	username, _ := c.Locals("username").(string)

	ctx := context.Background()

	if err := m.chatAdapter.Connect(ctx, chatdomain.Session{
		ConnectionID: connectionID,
		UserID:       userID,
		Username:     username,
	}); err != nil {
		log.Printf("[api] Failed to register session %s: %v", connectionID, err)
		_ = c.Close()
		return
	}

	client := broadcast.NewClient(connectionID, userID, username, c)
	m.hub.Register(client)

	defer func() {
		// Stop delivery first so nothing reaches the socket while the
		// registry tears the session down.
		m.hub.Unregister(connectionID)
		if _, err := m.chatAdapter.Disconnect(ctx, connectionID); err != nil {
			log.Printf("[api] Failed to tear down session %s: %v", connectionID, err)
		}
		log.Printf("[api] WebSocket client disconnected: %s (%s)", connectionID, username)
	}()

	log.Printf("[api] WebSocket client connected: %s (%s)", connectionID, username)

	client.Send(chatdomain.EventConnected, chatdomain.ConnectedPayload{
		ConnectionID: connectionID,
		UserID:       userID,
		Username:     username,
	})

	limiter := newRateLimiter(burstSize, messagesPerSecond)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", connectionID)
			} else {
				log.Printf("[api] Read error from %s: %v", connectionID, err)
			}
			break
		}

		if !limiter.allow() {
			client.SendError("Rate limit exceeded, please slow down")
			continue
		}

		var env chatdomain.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			client.SendError("Invalid message format")
			continue
		}

		switch env.Type {
		case chatdomain.EventJoinRoom:
			m.handleJoin(ctx, client, env)
		case chatdomain.EventLeaveRoom:
			m.handleLeave(ctx, client, env)
		case chatdomain.EventSendMessage:
			m.handleSend(ctx, client, env)
		case chatdomain.EventTyping:
			m.handleTyping(ctx, client, env)
		case chatdomain.EventHistory:
			m.handleHistory(ctx, client, env)
		case chatdomain.EventMembers:
			m.handleMembers(ctx, client, env)
		case chatdomain.EventRoomList:
			m.handleRoomList(ctx, client)
		default:
			client.SendError("Unknown message type: " + env.Type)
		}
	}
}

func (m *APIModule) handleJoin(ctx context.Context, client *broadcast.Client, env chatdomain.Envelope) {
	if env.RoomID == "" {
		client.SendError("Room ID is required")
		return
	}

	if _, err := m.chatAdapter.JoinRoom(ctx, client.ConnectionID, env.RoomID); err != nil {
		client.SendError(wsErrorMessage(err))
		return
	}

	m.hub.JoinRoom(client.ConnectionID, env.RoomID)
	client.Send(chatdomain.EventJoined, chatdomain.JoinedPayload{RoomID: env.RoomID})
}

func (m *APIModule) handleLeave(ctx context.Context, client *broadcast.Client, env chatdomain.Envelope) {
	if env.RoomID == "" {
		client.SendError("Room ID is required")
		return
	}

	// Unsubscribe before the registry leave so nothing is delivered for the
	// room after the leave is acknowledged.
	m.hub.LeaveRoom(client.ConnectionID, env.RoomID)
	if err := m.chatAdapter.LeaveRoom(ctx, client.ConnectionID, env.RoomID); err != nil {
		client.SendError(wsErrorMessage(err))
		return
	}

	client.Send(chatdomain.EventLeft, chatdomain.LeftPayload{RoomID: env.RoomID})
}

func (m *APIModule) handleSend(ctx context.Context, client *broadcast.Client, env chatdomain.Envelope) {
	if _, err := m.chatAdapter.SendMessage(ctx, client.ConnectionID, env.RoomID, env.Message); err != nil {
		client.SendError(wsErrorMessage(err))
		return
	}
	// No local ack: the sender sees its message through the room broadcast
	// with isOwn set.
}

func (m *APIModule) handleTyping(ctx context.Context, client *broadcast.Client, env chatdomain.Envelope) {
	if err := m.chatAdapter.Typing(ctx, client.ConnectionID, env.RoomID, env.IsTyping); err != nil {
		client.SendError(wsErrorMessage(err))
	}
}

func (m *APIModule) handleHistory(ctx context.Context, client *broadcast.Client, env chatdomain.Envelope) {
	if env.RoomID == "" {
		client.SendError("Room ID is required")
		return
	}

	limit := env.Limit
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	messages, err := m.chatAdapter.History(ctx, env.RoomID, limit)
	if err != nil {
		client.SendError("Failed to get history")
		return
	}

	payload := chatdomain.HistoryPayload{
		RoomID:   env.RoomID,
		Messages: make([]chatdomain.ReceiveMessagePayload, 0, len(messages)),
	}
	for _, msg := range messages {
		payload.Messages = append(payload.Messages, chatdomain.ReceiveMessagePayload{
			ID:        msg.ID,
			RoomID:    msg.RoomID,
			User:      msg.Username,
			Message:   msg.Body,
			Timestamp: msg.SentAt,
			UserID:    msg.UserID,
			IsOwn:     msg.UserID == client.UserID,
		})
	}
	client.Send(chatdomain.EventHistory, payload)
}

func (m *APIModule) handleMembers(ctx context.Context, client *broadcast.Client, env chatdomain.Envelope) {
	if env.RoomID == "" {
		client.SendError("Room ID is required")
		return
	}

	members, err := m.chatAdapter.Members(ctx, env.RoomID)
	if err != nil {
		client.SendError("Failed to get members")
		return
	}

	payload := chatdomain.MembersPayload{
		RoomID:  env.RoomID,
		Members: make([]chatdomain.MemberPayload, 0, len(members)),
	}
	for _, member := range members {
		payload.Members = append(payload.Members, chatdomain.MemberPayload{
			UserID:   member.UserID,
			Username: member.Username,
		})
	}
	client.Send(chatdomain.EventMembers, payload)
}

func (m *APIModule) handleRoomList(ctx context.Context, client *broadcast.Client) {
	rooms, err := m.chatAdapter.ListRooms(ctx)
	if err != nil {
		client.SendError("Failed to list rooms")
		return
	}

	payload := chatdomain.RoomListPayload{
		Rooms: make([]chatdomain.RoomPayload, 0, len(rooms)),
	}
	for _, room := range rooms {
		payload.Rooms = append(payload.Rooms, chatdomain.RoomPayload{
			ID:   room.ID,
			Name: room.Name,
		})
	}
	client.Send(chatdomain.EventRoomList, payload)
}

// wsErrorMessage maps domain errors to client-facing error text.
func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, chatdomain.ErrNotInRoom):
		return "Not in room"
	case errors.Is(err, chatdomain.ErrDisconnected):
		return "Session is not connected"
	case errors.Is(err, chatdomain.ErrInvalidRequest):
		return "Invalid request"
	default:
		return "Request failed"
	}
}
