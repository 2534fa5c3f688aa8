package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/google/uuid"

	domain "github.com/example/realtime-chat-demo/domain/chat"
	"github.com/example/realtime-chat-demo/events"
)

const maxRoomNameLength = 100

// seededRooms is the default room catalog created at startup.
var seededRooms = []struct{ id, name string }{
	{"general", "General"},
	{"random", "Random"},
	{"tech-talk", "Tech Talk"},
}

// Module owns the room registry and implements the message relay and the
// presence/typing notifier. Validated events are published on the event bus;
// the broadcast module fans them out to websocket connections.
type Module struct {
	registry *Registry
	eventBus mono.EventBus

	// relayMu serializes validation and publish so the relay is the ordering
	// authority for a room: events reach the bus in the order the relay
	// processed them, and no publish can interleave with a disconnect that
	// has already begun tearing the sender down.
	relayMu sync.Mutex
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule() *Module {
	return &Module{
		registry: NewRegistry(100),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.UserTypingV1.ToBase(),
	}
}

// Start seeds the default room catalog.
func (m *Module) Start(_ context.Context) error {
	for _, r := range seededRooms {
		m.registry.CreateRoom(r.id, r.name)
	}
	log.Printf("[chat] Module started with %d seeded rooms", len(seededRooms))
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[chat] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms": len(m.registry.Rooms()),
		},
	}
}

// Registry exposes the registry for tests.
func (m *Module) Registry() *Registry {
	return m.registry
}

// Connect registers an authenticated session. Identity comes from the
// verified token claims, bound once at handshake.
func (m *Module) Connect(s domain.Session) error {
	return m.registry.AddSession(s)
}

// Disconnect tears down a session: leaveAll plus a UserLeft notification per
// room. It is idempotent. Once it holds the relay lock, no later send can be
// validated against the dying session's membership.
func (m *Module) Disconnect(connectionID string) []string {
	m.relayMu.Lock()
	defer m.relayMu.Unlock()

	session, ok := m.registry.Session(connectionID)
	if !ok {
		return nil
	}

	left := m.registry.RemoveSession(connectionID)
	if m.eventBus != nil {
		for _, roomID := range left {
			event := events.UserLeftEvent{
				RoomID:       roomID,
				UserID:       session.UserID,
				Username:     session.Username,
				ConnectionID: connectionID,
				Timestamp:    time.Now(),
			}
			if err := events.UserLeftV1.Publish(m.eventBus, event, nil); err != nil {
				log.Printf("[chat] Failed to publish UserLeft event: %v", err)
			}
		}
	}

	log.Printf("[chat] Session %s disconnected, left %d rooms", connectionID, len(left))
	return left
}

// Join adds a session to a room and announces it to the other members.
// Re-joining is a membership no-op and announces nothing.
func (m *Module) Join(connectionID, roomID string) (alreadyJoined bool, err error) {
	m.relayMu.Lock()
	defer m.relayMu.Unlock()

	session, ok := m.registry.Session(connectionID)
	if !ok {
		return false, domain.ErrDisconnected
	}

	alreadyJoined, err = m.registry.Join(connectionID, roomID)
	if err != nil {
		return false, err
	}
	if alreadyJoined {
		return true, nil
	}

	if m.eventBus != nil {
		event := events.UserJoinedEvent{
			RoomID:       roomID,
			UserID:       session.UserID,
			Username:     session.Username,
			ConnectionID: connectionID,
			Timestamp:    time.Now(),
		}
		if err := events.UserJoinedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[chat] Failed to publish UserJoined event: %v", err)
		}
	}

	log.Printf("[chat] User %s joined room %s", session.UserID, roomID)
	return false, nil
}

// Leave removes one membership edge and notifies the remaining members.
func (m *Module) Leave(connectionID, roomID string) error {
	m.relayMu.Lock()
	defer m.relayMu.Unlock()

	session, ok := m.registry.Session(connectionID)
	if !ok {
		return domain.ErrDisconnected
	}

	wasMember, err := m.registry.Leave(connectionID, roomID)
	if err != nil || !wasMember {
		return err
	}

	if m.eventBus != nil {
		event := events.UserLeftEvent{
			RoomID:       roomID,
			UserID:       session.UserID,
			Username:     session.Username,
			ConnectionID: connectionID,
			Timestamp:    time.Now(),
		}
		if err := events.UserLeftV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[chat] Failed to publish UserLeft event: %v", err)
		}
	}
	return nil
}

// SendMessage validates a send request and relays it to the room. The
// message is attributed to the session's handshake identity; a
// client-supplied name is never trusted.
func (m *Module) SendMessage(connectionID, roomID, body string) (domain.Message, error) {
	m.relayMu.Lock()
	defer m.relayMu.Unlock()

	session, ok := m.registry.Session(connectionID)
	if !ok {
		return domain.Message{}, domain.ErrDisconnected
	}

	body = strings.TrimSpace(body)
	if body == "" || len(body) > MaxMessageLength || !utf8.ValidString(body) {
		return domain.Message{}, domain.ErrInvalidRequest
	}

	if !m.registry.IsMember(connectionID, roomID) {
		return domain.Message{}, domain.ErrNotInRoom
	}

	msg := domain.Message{
		ID:       uuid.New().String(),
		RoomID:   roomID,
		UserID:   session.UserID,
		Username: session.Username,
		Body:     body,
		SentAt:   time.Now(),
	}
	m.registry.AddMessage(msg)

	if m.eventBus != nil {
		event := events.MessageSentEvent{
			Message:      msg,
			ConnectionID: connectionID,
		}
		if err := events.MessageSentV1.Publish(m.eventBus, event, nil); err != nil {
			return domain.Message{}, fmt.Errorf("failed to publish message: %w", err)
		}
	}

	return msg, nil
}

// Typing relays a typing signal to the other members of a room. Nothing is
// retained; a failed signal is dropped without surfacing to anyone but the
// sender.
func (m *Module) Typing(connectionID, roomID string, isTyping bool) error {
	m.relayMu.Lock()
	defer m.relayMu.Unlock()

	session, ok := m.registry.Session(connectionID)
	if !ok {
		return domain.ErrDisconnected
	}

	if strings.TrimSpace(roomID) == "" {
		return domain.ErrInvalidRequest
	}

	if !m.registry.IsMember(connectionID, roomID) {
		return domain.ErrNotInRoom
	}

	if m.eventBus != nil {
		event := events.UserTypingEvent{
			RoomID:       roomID,
			UserID:       session.UserID,
			Username:     session.Username,
			IsTyping:     isTyping,
			ConnectionID: connectionID,
		}
		if err := events.UserTypingV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[chat] Failed to publish UserTyping event: %v", err)
		}
	}
	return nil
}

// CreateRoom adds an explicit room to the catalog.
func (m *Module) CreateRoom(name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxRoomNameLength || !utf8.ValidString(name) {
		return domain.Room{}, domain.ErrInvalidRequest
	}

	id := uuid.New().String()[:8]
	return *m.registry.CreateRoom(id, name), nil
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	type registration struct {
		name string
		fn   func() error
	}

	regs := []registration{
		{ServiceConnect, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceConnect,
				json.Unmarshal, json.Marshal, m.handleConnect)
		}},
		{ServiceDisconnect, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceDisconnect,
				json.Unmarshal, json.Marshal, m.handleDisconnect)
		}},
		{ServiceJoinRoom, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceJoinRoom,
				json.Unmarshal, json.Marshal, m.handleJoinRoom)
		}},
		{ServiceLeaveRoom, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceLeaveRoom,
				json.Unmarshal, json.Marshal, m.handleLeaveRoom)
		}},
		{ServiceSendMessage, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceSendMessage,
				json.Unmarshal, json.Marshal, m.handleSendMessage)
		}},
		{ServiceTyping, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceTyping,
				json.Unmarshal, json.Marshal, m.handleTyping)
		}},
		{ServiceGetHistory, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetHistory,
				json.Unmarshal, json.Marshal, m.handleGetHistory)
		}},
		{ServiceGetMembers, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceGetMembers,
				json.Unmarshal, json.Marshal, m.handleGetMembers)
		}},
		{ServiceListRooms, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceListRooms,
				json.Unmarshal, json.Marshal, m.handleListRooms)
		}},
		{ServiceCreateRoom, func() error {
			return helper.RegisterTypedRequestReplyService(container, ServiceCreateRoom,
				json.Unmarshal, json.Marshal, m.handleCreateRoom)
		}},
	}

	for _, reg := range regs {
		if err := reg.fn(); err != nil {
			return fmt.Errorf("failed to register %s service: %w", reg.name, err)
		}
	}

	log.Printf("[chat] Registered %d services", len(regs))
	return nil
}

func (m *Module) handleConnect(_ context.Context, req ConnectRequest, _ *mono.Msg) (ConnectResponse, error) {
	err := m.Connect(domain.Session{
		ConnectionID: req.ConnectionID,
		UserID:       req.UserID,
		Username:     req.Username,
	})
	if err != nil {
		return ConnectResponse{Success: false, Code: errorCode(err)}, nil
	}
	return ConnectResponse{Success: true}, nil
}

func (m *Module) handleDisconnect(_ context.Context, req DisconnectRequest, _ *mono.Msg) (DisconnectResponse, error) {
	return DisconnectResponse{RoomsLeft: m.Disconnect(req.ConnectionID)}, nil
}

func (m *Module) handleJoinRoom(_ context.Context, req JoinRoomRequest, _ *mono.Msg) (JoinRoomResponse, error) {
	alreadyJoined, err := m.Join(req.ConnectionID, req.RoomID)
	if err != nil {
		return JoinRoomResponse{Success: false, Code: errorCode(err)}, nil
	}
	return JoinRoomResponse{Success: true, AlreadyJoined: alreadyJoined}, nil
}

func (m *Module) handleLeaveRoom(_ context.Context, req LeaveRoomRequest, _ *mono.Msg) (LeaveRoomResponse, error) {
	if err := m.Leave(req.ConnectionID, req.RoomID); err != nil {
		return LeaveRoomResponse{Success: false, Code: errorCode(err)}, nil
	}
	return LeaveRoomResponse{Success: true}, nil
}

func (m *Module) handleSendMessage(_ context.Context, req SendMessageRequest, _ *mono.Msg) (SendMessageResponse, error) {
	msg, err := m.SendMessage(req.ConnectionID, req.RoomID, req.Body)
	if err != nil {
		return SendMessageResponse{Success: false, Code: errorCode(err)}, nil
	}
	return SendMessageResponse{
		Success:   true,
		MessageID: msg.ID,
		SentAt:    msg.SentAt,
	}, nil
}

func (m *Module) handleTyping(_ context.Context, req TypingRequest, _ *mono.Msg) (TypingResponse, error) {
	if err := m.Typing(req.ConnectionID, req.RoomID, req.IsTyping); err != nil {
		return TypingResponse{Success: false, Code: errorCode(err)}, nil
	}
	return TypingResponse{Success: true}, nil
}

func (m *Module) handleGetHistory(_ context.Context, req GetHistoryRequest, _ *mono.Msg) (GetHistoryResponse, error) {
	return GetHistoryResponse{Messages: m.registry.History(req.RoomID, req.Limit)}, nil
}

func (m *Module) handleGetMembers(_ context.Context, req GetMembersRequest, _ *mono.Msg) (GetMembersResponse, error) {
	return GetMembersResponse{Members: m.registry.MembersOf(req.RoomID)}, nil
}

func (m *Module) handleListRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms := m.registry.Rooms()
	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, RoomInfo{
			ID:        room.ID,
			Name:      room.Name,
			CreatedAt: room.CreatedAt,
			Members:   m.registry.MemberCount(room.ID),
		})
	}
	return ListRoomsResponse{Rooms: infos}, nil
}

func (m *Module) handleCreateRoom(_ context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	room, err := m.CreateRoom(req.Name)
	if err != nil {
		return CreateRoomResponse{Success: false, Code: errorCode(err)}, nil
	}
	return CreateRoomResponse{
		Success: true,
		Room: RoomInfo{
			ID:        room.ID,
			Name:      room.Name,
			CreatedAt: room.CreatedAt,
		},
	}, nil
}

// errorCode maps domain errors to wire codes for request-reply responses.
func errorCode(err error) string {
	switch err {
	case domain.ErrNotInRoom:
		return CodeNotInRoom
	case domain.ErrDisconnected:
		return CodeDisconnected
	default:
		return CodeInvalidRequest
	}
}
