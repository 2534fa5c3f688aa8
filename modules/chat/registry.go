package chat

import (
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// Registry is the authoritative mapping from rooms to live sessions. All
// membership reads and writes go through it under a single lock, so every
// broadcast snapshot is consistent: a member is either fully in or fully out
// of a given fan-out, never half of both.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*sessionState           // connectionID -> session
	rooms      map[string]*domain.Room            // roomID -> room
	members    map[string]map[string]bool         // roomID -> set of connectionIDs
	history    map[string][]domain.Message        // roomID -> recent messages
	maxHistory int
}

type sessionState struct {
	session domain.Session
	joined  map[string]bool // roomIDs
}

// NewRegistry creates an empty registry. maxHistory bounds the in-memory
// per-room message cache; values <= 0 fall back to 100.
func NewRegistry(maxHistory int) *Registry {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Registry{
		sessions:   make(map[string]*sessionState),
		rooms:      make(map[string]*domain.Room),
		members:    make(map[string]map[string]bool),
		history:    make(map[string][]domain.Message),
		maxHistory: maxHistory,
	}
}

// AddSession registers a live session. A connection ID can only ever be
// registered once; reconnects arrive with a fresh one.
func (r *Registry) AddSession(s domain.Session) error {
	if s.ConnectionID == "" || s.UserID == "" {
		return domain.ErrInvalidRequest
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ConnectionID]; exists {
		return domain.ErrInvalidRequest
	}

	r.sessions[s.ConnectionID] = &sessionState{
		session: s,
		joined:  make(map[string]bool),
	}
	return nil
}

// RemoveSession drops a session and every membership edge it holds, and
// returns the rooms it was removed from. Calling it again for the same
// connection is a no-op returning nil: disconnect teardown is idempotent.
func (r *Registry) RemoveSession(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[connectionID]
	if !ok {
		return nil
	}

	left := make([]string, 0, len(state.joined))
	for roomID := range state.joined {
		r.removeMemberLocked(roomID, connectionID)
		left = append(left, roomID)
	}
	delete(r.sessions, connectionID)

	sort.Strings(left)
	return left
}

// Session returns the identity bound to a connection.
func (r *Registry) Session(connectionID string) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[connectionID]
	if !ok {
		return domain.Session{}, false
	}
	return state.session, true
}

// Join adds a session to a room's member set, creating the room implicitly
// if the catalog does not know it. Joining an already-joined room is a
// membership no-op; alreadyJoined reports which case occurred.
func (r *Registry) Join(connectionID, roomID string) (alreadyJoined bool, err error) {
	// The ID is the map key, so "general" and " general" must not become
	// two rooms. Padded IDs are rejected rather than silently normalized.
	if roomID == "" || roomID != strings.TrimSpace(roomID) {
		return false, domain.ErrInvalidRequest
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[connectionID]
	if !ok {
		return false, domain.ErrDisconnected
	}

	if state.joined[roomID] {
		return true, nil
	}

	if _, exists := r.rooms[roomID]; !exists {
		r.rooms[roomID] = &domain.Room{
			ID:        roomID,
			Name:      roomID,
			CreatedAt: time.Now(),
			Implicit:  true,
		}
	}

	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]bool)
	}
	r.members[roomID][connectionID] = true
	state.joined[roomID] = true
	return false, nil
}

// Leave removes one membership edge. Leaving a room the session is not a
// member of is a no-op; wasMember reports which case occurred.
func (r *Registry) Leave(connectionID, roomID string) (wasMember bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sessions[connectionID]
	if !ok {
		return false, domain.ErrDisconnected
	}

	if !state.joined[roomID] {
		return false, nil
	}

	delete(state.joined, roomID)
	r.removeMemberLocked(roomID, connectionID)
	return true, nil
}

// IsMember reports whether a live session currently belongs to a room.
func (r *Registry) IsMember(connectionID, roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[connectionID]
	return ok && state.joined[roomID]
}

// MembersOf returns a snapshot of the room's current members.
func (r *Registry) MembersOf(roomID string) []domain.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.members[roomID]
	if !ok {
		return nil
	}

	result := make([]domain.Member, 0, len(set))
	for connID := range set {
		if state, ok := r.sessions[connID]; ok {
			result = append(result, domain.Member{
				ConnectionID: connID,
				UserID:       state.session.UserID,
				Username:     state.session.Username,
			})
		}
	}
	return result
}

// MemberCount returns the number of sessions currently in a room.
func (r *Registry) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}

// CreateRoom adds a room to the catalog. Explicit rooms survive their last
// member leaving; implicit rooms are garbage-collected when empty.
func (r *Registry) CreateRoom(id, name string) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[id]; ok {
		// Promote an implicit room instead of clobbering its history.
		existing.Implicit = false
		existing.Name = name
		return existing
	}

	room := &domain.Room{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}
	r.rooms[id] = room
	return room
}

// Room returns a catalog entry by ID.
func (r *Registry) Room(id string) (domain.Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return *room, true
}

// Rooms returns all rooms currently in the catalog, sorted by ID.
func (r *Registry) Rooms() []domain.Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, *room)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AddMessage appends a message to the room's bounded in-memory history.
func (r *Registry) AddMessage(msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	messages := append(r.history[msg.RoomID], msg)
	if len(messages) > r.maxHistory {
		messages = messages[len(messages)-r.maxHistory:]
	}
	r.history[msg.RoomID] = messages
}

// History returns up to limit most recent messages for a room, oldest first.
func (r *Registry) History(roomID string, limit int) []domain.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := r.history[roomID]
	if limit <= 0 || limit > len(messages) {
		limit = len(messages)
	}

	start := len(messages) - limit
	result := make([]domain.Message, limit)
	copy(result, messages[start:])
	return result
}

// removeMemberLocked drops one membership edge and garbage-collects empty
// implicit rooms. Callers must hold the write lock.
func (r *Registry) removeMemberLocked(roomID, connectionID string) {
	set := r.members[roomID]
	if set == nil {
		return
	}
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.members, roomID)
		if room, ok := r.rooms[roomID]; ok && room.Implicit {
			delete(r.rooms, roomID)
			delete(r.history, roomID)
		}
	}
}
