package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

func newStartedModule(t *testing.T) *Module {
	t.Helper()
	m := NewModule()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return m
}

func TestModule_StartSeedsRooms(t *testing.T) {
	m := newStartedModule(t)

	rooms := m.Registry().Rooms()
	if len(rooms) != 3 {
		t.Fatalf("seeded %d rooms, want 3", len(rooms))
	}
	want := map[string]string{
		"general":   "General",
		"random":    "Random",
		"tech-talk": "Tech Talk",
	}
	for _, room := range rooms {
		name, ok := want[room.ID]
		if !ok {
			t.Errorf("unexpected seeded room %q", room.ID)
			continue
		}
		if room.Name != name {
			t.Errorf("room %q name = %q, want %q", room.ID, room.Name, name)
		}
		if room.Implicit {
			t.Errorf("seeded room %q is implicit", room.ID)
		}
	}
}

func TestModule_SendMessage(t *testing.T) {
	tests := []struct {
		name    string
		connID  string
		roomID  string
		body    string
		setup   func(m *Module)
		wantErr error
	}{
		{
			name:   "valid message",
			connID: "conn1",
			roomID: "general",
			body:   "hello",
			setup: func(m *Module) {
				mustConnect(m, "conn1", "u1")
				mustJoin(m, "conn1", "general")
			},
		},
		{
			name:   "body gets trimmed",
			connID: "conn1",
			roomID: "general",
			body:   "  hello  ",
			setup: func(m *Module) {
				mustConnect(m, "conn1", "u1")
				mustJoin(m, "conn1", "general")
			},
		},
		{
			name:   "not a member",
			connID: "conn1",
			roomID: "random",
			body:   "hello",
			setup: func(m *Module) {
				mustConnect(m, "conn1", "u1")
				mustJoin(m, "conn1", "general")
			},
			wantErr: domain.ErrNotInRoom,
		},
		{
			name:    "unknown session",
			connID:  "ghost",
			roomID:  "general",
			body:    "hello",
			setup:   func(*Module) {},
			wantErr: domain.ErrDisconnected,
		},
		{
			name:   "empty body",
			connID: "conn1",
			roomID: "general",
			body:   "   ",
			setup: func(m *Module) {
				mustConnect(m, "conn1", "u1")
				mustJoin(m, "conn1", "general")
			},
			wantErr: domain.ErrInvalidRequest,
		},
		{
			name:   "oversized body",
			connID: "conn1",
			roomID: "general",
			body:   strings.Repeat("x", MaxMessageLength+1),
			setup: func(m *Module) {
				mustConnect(m, "conn1", "u1")
				mustJoin(m, "conn1", "general")
			},
			wantErr: domain.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStartedModule(t)
			tt.setup(m)

			msg, err := m.SendMessage(tt.connID, tt.roomID, tt.body)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SendMessage() error = %v, want %v", err, tt.wantErr)
				}
				// A rejected message never enters history.
				if got := m.Registry().History(tt.roomID, 0); len(got) != 0 {
					t.Errorf("rejected message entered history: %d entries", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("SendMessage() unexpected error: %v", err)
			}
			if msg.ID == "" {
				t.Error("SendMessage() message ID is empty")
			}
			if msg.Body != strings.TrimSpace(tt.body) {
				t.Errorf("SendMessage() body = %q, want trimmed %q", msg.Body, strings.TrimSpace(tt.body))
			}
			if msg.UserID != "u1" {
				t.Errorf("SendMessage() attributed to %q, want session identity u1", msg.UserID)
			}
			if msg.SentAt.IsZero() {
				t.Error("SendMessage() timestamp is zero")
			}
			if got := m.Registry().History(tt.roomID, 0); len(got) != 1 {
				t.Errorf("History() has %d entries after send, want 1", len(got))
			}
		})
	}
}

func TestModule_JoinReJoinLeave(t *testing.T) {
	m := newStartedModule(t)
	mustConnect(m, "conn1", "u1")

	alreadyJoined, err := m.Join("conn1", "general")
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if alreadyJoined {
		t.Error("Join() alreadyJoined = true on first join")
	}

	alreadyJoined, err = m.Join("conn1", "general")
	if err != nil {
		t.Fatalf("Join() error on re-join: %v", err)
	}
	if !alreadyJoined {
		t.Error("Join() alreadyJoined = false on re-join")
	}

	if err := m.Leave("conn1", "general"); err != nil {
		t.Fatalf("Leave() error: %v", err)
	}
	if m.Registry().IsMember("conn1", "general") {
		t.Error("still a member after Leave()")
	}

	if _, err := m.Join("ghost", "general"); !errors.Is(err, domain.ErrDisconnected) {
		t.Errorf("Join() for unknown session error = %v, want ErrDisconnected", err)
	}
}

func TestModule_Typing(t *testing.T) {
	m := newStartedModule(t)
	mustConnect(m, "conn1", "u1")
	mustJoin(m, "conn1", "general")

	if err := m.Typing("conn1", "general", true); err != nil {
		t.Errorf("Typing() error: %v", err)
	}
	if err := m.Typing("conn1", "random", true); !errors.Is(err, domain.ErrNotInRoom) {
		t.Errorf("Typing() outside room error = %v, want ErrNotInRoom", err)
	}
	if err := m.Typing("conn1", " ", true); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Typing() blank room error = %v, want ErrInvalidRequest", err)
	}
	if err := m.Typing("ghost", "general", true); !errors.Is(err, domain.ErrDisconnected) {
		t.Errorf("Typing() unknown session error = %v, want ErrDisconnected", err)
	}
}

func TestModule_DisconnectIdempotent(t *testing.T) {
	m := newStartedModule(t)
	mustConnect(m, "conn1", "u1")
	mustJoin(m, "conn1", "general")
	mustJoin(m, "conn1", "random")

	left := m.Disconnect("conn1")
	if len(left) != 2 {
		t.Fatalf("Disconnect() left %d rooms, want 2", len(left))
	}
	if left[0] != "general" || left[1] != "random" {
		t.Errorf("Disconnect() rooms = %v, want [general random]", left)
	}

	// Second disconnect is a no-op.
	if left := m.Disconnect("conn1"); left != nil {
		t.Errorf("Disconnect() second call = %v, want nil", left)
	}

	// A dead session can no longer send.
	if _, err := m.SendMessage("conn1", "general", "hello"); !errors.Is(err, domain.ErrDisconnected) {
		t.Errorf("SendMessage() after disconnect error = %v, want ErrDisconnected", err)
	}
}

func TestModule_CreateRoom(t *testing.T) {
	m := newStartedModule(t)

	room, err := m.CreateRoom("  Ops  ")
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	if room.Name != "Ops" {
		t.Errorf("CreateRoom() name = %q, want trimmed %q", room.Name, "Ops")
	}
	if room.ID == "" {
		t.Error("CreateRoom() ID is empty")
	}

	if _, err := m.CreateRoom("   "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("CreateRoom() blank name error = %v, want ErrInvalidRequest", err)
	}
	if _, err := m.CreateRoom(strings.Repeat("x", maxRoomNameLength+1)); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("CreateRoom() oversized name error = %v, want ErrInvalidRequest", err)
	}
}

func TestModule_HandlersMapErrorCodes(t *testing.T) {
	m := newStartedModule(t)
	ctx := context.Background()
	mustConnect(m, "conn1", "u1")

	// Send without joining surfaces not_in_room over the wire.
	resp, err := m.handleSendMessage(ctx, SendMessageRequest{
		ConnectionID: "conn1",
		RoomID:       "general",
		Body:         "hello",
	}, nil)
	if err != nil {
		t.Fatalf("handleSendMessage() transport error: %v", err)
	}
	if resp.Success {
		t.Error("handleSendMessage() Success = true for non-member")
	}
	if resp.Code != CodeNotInRoom {
		t.Errorf("handleSendMessage() Code = %q, want %q", resp.Code, CodeNotInRoom)
	}

	// Unknown session surfaces disconnected.
	joinResp, err := m.handleJoinRoom(ctx, JoinRoomRequest{
		ConnectionID: "ghost",
		RoomID:       "general",
	}, nil)
	if err != nil {
		t.Fatalf("handleJoinRoom() transport error: %v", err)
	}
	if joinResp.Success || joinResp.Code != CodeDisconnected {
		t.Errorf("handleJoinRoom() = %+v, want Code %q", joinResp, CodeDisconnected)
	}

	// Duplicate connect surfaces invalid_request.
	connResp, err := m.handleConnect(ctx, ConnectRequest{
		ConnectionID: "conn1",
		UserID:       "u1",
		Username:     "user-u1",
	}, nil)
	if err != nil {
		t.Fatalf("handleConnect() transport error: %v", err)
	}
	if connResp.Success || connResp.Code != CodeInvalidRequest {
		t.Errorf("handleConnect() = %+v, want Code %q", connResp, CodeInvalidRequest)
	}
}

func mustConnect(m *Module, connID, userID string) {
	if err := m.Connect(domain.Session{
		ConnectionID: connID,
		UserID:       userID,
		Username:     "user-" + userID,
	}); err != nil {
		panic(err)
	}
}

func mustJoin(m *Module, connID, roomID string) {
	if _, err := m.Join(connID, roomID); err != nil {
		panic(err)
	}
}
