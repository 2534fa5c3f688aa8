package client

import (
	"encoding/json"
	"testing"
	"time"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

func envelope(t *testing.T, eventType string, payload any) domain.Envelope {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return domain.Envelope{Type: eventType, Payload: raw}
}

func receiveMessage(t *testing.T, s *RoomState, roomID, user, body string) {
	t.Helper()
	s.apply(envelope(t, domain.EventReceiveMessage, domain.ReceiveMessagePayload{
		ID:        body,
		RoomID:    roomID,
		User:      user,
		Message:   body,
		Timestamp: time.Now(),
	}))
}

func TestRoomState_MessagesArePerRoom(t *testing.T) {
	s := NewRoomState()

	receiveMessage(t, s, "general", "alice", "hello general")
	receiveMessage(t, s, "random", "bob", "hello random")
	receiveMessage(t, s, "general", "bob", "hi alice")

	general := s.Messages("general")
	if len(general) != 2 {
		t.Fatalf("Messages(general) has %d entries, want 2", len(general))
	}
	if general[0].Message != "hello general" || general[1].Message != "hi alice" {
		t.Error("Messages(general) out of arrival order")
	}

	random := s.Messages("random")
	if len(random) != 1 {
		t.Fatalf("Messages(random) has %d entries, want 1", len(random))
	}
	if random[0].Message != "hello random" {
		t.Errorf("Messages(random)[0] = %q", random[0].Message)
	}
}

func TestRoomState_HistoryReplacesView(t *testing.T) {
	s := NewRoomState()
	receiveMessage(t, s, "general", "alice", "stale message")

	// A history reply replaces the room's view wholesale; it never merges
	// with what was cached before the switch.
	s.apply(envelope(t, domain.EventHistory, domain.HistoryPayload{
		RoomID: "general",
		Messages: []domain.ReceiveMessagePayload{
			{ID: "h1", RoomID: "general", Message: "first"},
			{ID: "h2", RoomID: "general", Message: "second"},
		},
	}))

	msgs := s.Messages("general")
	if len(msgs) != 2 {
		t.Fatalf("Messages() has %d entries after history, want 2", len(msgs))
	}
	if msgs[0].ID != "h1" || msgs[1].ID != "h2" {
		t.Errorf("Messages() = [%s, %s], want [h1, h2]", msgs[0].ID, msgs[1].ID)
	}
}

func TestRoomState_MessageCacheBounded(t *testing.T) {
	s := NewRoomState()
	for i := 0; i < maxCachedMessages+10; i++ {
		receiveMessage(t, s, "general", "alice", "msg")
	}
	if got := len(s.Messages("general")); got != maxCachedMessages {
		t.Errorf("cache holds %d messages, want %d", got, maxCachedMessages)
	}
}

func TestRoomState_TypingLifecycle(t *testing.T) {
	s := NewRoomState()
	defer s.stopTimers()

	s.apply(envelope(t, domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   "general",
		Username: "alice",
		IsTyping: true,
	}))

	users := s.TypingUsers("general")
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("TypingUsers() = %v, want [alice]", users)
	}

	// Typing state is per-room.
	if got := s.TypingUsers("random"); len(got) != 0 {
		t.Errorf("TypingUsers(random) = %v, want empty", got)
	}

	// An explicit stop clears the indicator.
	s.apply(envelope(t, domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   "general",
		Username: "alice",
		IsTyping: false,
	}))
	if got := s.TypingUsers("general"); len(got) != 0 {
		t.Errorf("TypingUsers() = %v after stop, want empty", got)
	}
}

func TestRoomState_MessageClearsTyping(t *testing.T) {
	s := NewRoomState()
	defer s.stopTimers()

	s.apply(envelope(t, domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   "general",
		Username: "alice",
		IsTyping: true,
	}))
	receiveMessage(t, s, "general", "alice", "done typing")

	if got := s.TypingUsers("general"); len(got) != 0 {
		t.Errorf("TypingUsers() = %v after message, want empty", got)
	}
}

func TestRoomState_UserLeftClearsTyping(t *testing.T) {
	s := NewRoomState()
	defer s.stopTimers()

	s.apply(envelope(t, domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   "general",
		Username: "alice",
		IsTyping: true,
	}))
	s.apply(envelope(t, domain.EventUserLeft, domain.UserLeftPayload{
		RoomID:   "general",
		UserID:   "u1",
		Username: "alice",
	}))

	if got := s.TypingUsers("general"); len(got) != 0 {
		t.Errorf("TypingUsers() = %v after leave, want empty", got)
	}
}

func TestRoomState_Forget(t *testing.T) {
	s := NewRoomState()
	defer s.stopTimers()

	receiveMessage(t, s, "general", "alice", "hello")
	s.apply(envelope(t, domain.EventUserTyping, domain.UserTypingPayload{
		RoomID:   "general",
		Username: "alice",
		IsTyping: true,
	}))
	s.SetCurrent("general")

	s.Forget("general")

	if got := s.Messages("general"); len(got) != 0 {
		t.Errorf("Messages() = %d entries after Forget, want 0", len(got))
	}
	if got := s.TypingUsers("general"); len(got) != 0 {
		t.Errorf("TypingUsers() = %v after Forget, want empty", got)
	}
	if got := s.Current(); got != "" {
		t.Errorf("Current() = %q after Forget, want empty", got)
	}
}

func TestRoomState_MalformedPayloadIgnored(t *testing.T) {
	s := NewRoomState()

	s.apply(domain.Envelope{
		Type:    domain.EventReceiveMessage,
		Payload: json.RawMessage(`{not json`),
	})

	if got := s.Messages("general"); len(got) != 0 {
		t.Errorf("Messages() = %d entries after malformed frame, want 0", len(got))
	}
}
