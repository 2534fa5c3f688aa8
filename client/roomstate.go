package client

import (
	"encoding/json"
	"sync"
	"time"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// typingExpiry is how long a typing indicator stays visible without a
// follow-up signal. Covers clients that drop before sending isTyping=false.
const typingExpiry = 4 * time.Second

// maxCachedMessages bounds the per-room message cache.
const maxCachedMessages = 200

// RoomState is the client's local view of the rooms it participates in. It
// caches delivered messages per room, tracks who is typing, and swaps the
// message view wholesale when a history reply arrives, so switching rooms
// never shows one room's messages under another room's header.
type RoomState struct {
	mu       sync.RWMutex
	current  string
	messages map[string][]domain.ReceiveMessagePayload
	typing   map[string]map[string]*time.Timer // roomID -> username -> expiry
	stopped  bool
}

// NewRoomState creates an empty room state view.
func NewRoomState() *RoomState {
	return &RoomState{
		messages: make(map[string][]domain.ReceiveMessagePayload),
		typing:   make(map[string]map[string]*time.Timer),
	}
}

// SetCurrent marks a room as the one in focus. The caller pairs this with
// JoinRoom and RequestHistory; the history reply replaces the room's cached
// view.
func (s *RoomState) SetCurrent(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = roomID
}

// Current returns the room in focus.
func (s *RoomState) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Messages returns the cached messages of a room, oldest first.
func (s *RoomState) Messages(roomID string) []domain.ReceiveMessagePayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[roomID]
	out := make([]domain.ReceiveMessagePayload, len(msgs))
	copy(out, msgs)
	return out
}

// TypingUsers returns who is currently typing in a room.
func (s *RoomState) TypingUsers(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []string
	for username := range s.typing[roomID] {
		users = append(users, username)
	}
	return users
}

// Forget drops all cached state for a room. The caller pairs this with
// LeaveRoom.
func (s *RoomState) Forget(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, roomID)
	s.clearRoomTypingLocked(roomID)
	if s.current == roomID {
		s.current = ""
	}
}

// apply folds one server frame into the local view. Called from the read
// loop; unknown or malformed frames are ignored.
func (s *RoomState) apply(env domain.Envelope) {
	switch env.Type {
	case domain.EventReceiveMessage:
		var msg domain.ReceiveMessagePayload
		if json.Unmarshal(env.Payload, &msg) != nil {
			return
		}
		s.appendMessage(msg)
		// A delivered message supersedes the sender's typing indicator.
		s.clearTyping(msg.RoomID, msg.User)

	case domain.EventHistory:
		var hist domain.HistoryPayload
		if json.Unmarshal(env.Payload, &hist) != nil {
			return
		}
		s.replaceMessages(hist.RoomID, hist.Messages)

	case domain.EventUserTyping:
		var typing domain.UserTypingPayload
		if json.Unmarshal(env.Payload, &typing) != nil {
			return
		}
		if typing.IsTyping {
			s.setTyping(typing.RoomID, typing.Username)
		} else {
			s.clearTyping(typing.RoomID, typing.Username)
		}

	case domain.EventUserLeft:
		var left domain.UserLeftPayload
		if json.Unmarshal(env.Payload, &left) != nil {
			return
		}
		s.clearTyping(left.RoomID, left.Username)
	}
}

func (s *RoomState) appendMessage(msg domain.ReceiveMessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[msg.RoomID], msg)
	if len(msgs) > maxCachedMessages {
		msgs = msgs[len(msgs)-maxCachedMessages:]
	}
	s.messages[msg.RoomID] = msgs
}

func (s *RoomState) replaceMessages(roomID string, msgs []domain.ReceiveMessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replacement := make([]domain.ReceiveMessagePayload, len(msgs))
	copy(replacement, msgs)
	s.messages[roomID] = replacement
}

func (s *RoomState) setTyping(roomID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if s.typing[roomID] == nil {
		s.typing[roomID] = make(map[string]*time.Timer)
	}
	if timer, ok := s.typing[roomID][username]; ok {
		timer.Reset(typingExpiry)
		return
	}
	s.typing[roomID][username] = time.AfterFunc(typingExpiry, func() {
		s.clearTyping(roomID, username)
	})
}

func (s *RoomState) clearTyping(roomID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.typing[roomID][username]; ok {
		timer.Stop()
		delete(s.typing[roomID], username)
		if len(s.typing[roomID]) == 0 {
			delete(s.typing, roomID)
		}
	}
}

func (s *RoomState) clearRoomTypingLocked(roomID string) {
	for _, timer := range s.typing[roomID] {
		timer.Stop()
	}
	delete(s.typing, roomID)
}

func (s *RoomState) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for roomID := range s.typing {
		s.clearRoomTypingLocked(roomID)
	}
}
