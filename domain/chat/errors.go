package chat

import "errors"

var (
	// ErrInvalidRequest is returned for malformed or empty payloads, such as
	// a join without a room ID or a message with an empty body.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotInRoom is returned when a session acts against a room it has not
	// joined. Sends and typing signals are rejected without any broadcast.
	ErrNotInRoom = errors.New("not a member of this room")
	// ErrDisconnected is returned when an operation references a session that
	// has already been torn down. Callers treat it as a no-op.
	ErrDisconnected = errors.New("session disconnected")
)
