package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat-demo/domain/chat"
)

// ChatPort defines the interface other modules use to access chat
// functionality. The API module drives it from websocket and REST handlers.
type ChatPort interface {
	Connect(ctx context.Context, s domain.Session) error
	Disconnect(ctx context.Context, connectionID string) ([]string, error)
	JoinRoom(ctx context.Context, connectionID, roomID string) (alreadyJoined bool, err error)
	LeaveRoom(ctx context.Context, connectionID, roomID string) error
	SendMessage(ctx context.Context, connectionID, roomID, body string) (SendMessageResponse, error)
	Typing(ctx context.Context, connectionID, roomID string, isTyping bool) error
	History(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	Members(ctx context.Context, roomID string) ([]domain.Member, error)
	ListRooms(ctx context.Context) ([]RoomInfo, error)
	CreateRoom(ctx context.Context, name string) (RoomInfo, error)
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) *ChatAdapter {
	return &ChatAdapter{
		container: container,
	}
}

var _ ChatPort = (*ChatAdapter)(nil)

// Connect registers an authenticated session.
func (a *ChatAdapter) Connect(ctx context.Context, s domain.Session) error {
	req := ConnectRequest{
		ConnectionID: s.ConnectionID,
		UserID:       s.UserID,
		Username:     s.Username,
	}
	var resp ConnectResponse

	if err := call(ctx, a, ServiceConnect, &req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return codeError(resp.Code)
	}
	return nil
}

// Disconnect tears down a session and returns the rooms it left.
func (a *ChatAdapter) Disconnect(ctx context.Context, connectionID string) ([]string, error) {
	req := DisconnectRequest{ConnectionID: connectionID}
	var resp DisconnectResponse

	if err := call(ctx, a, ServiceDisconnect, &req, &resp); err != nil {
		return nil, err
	}
	return resp.RoomsLeft, nil
}

// JoinRoom adds the session to a room.
func (a *ChatAdapter) JoinRoom(ctx context.Context, connectionID, roomID string) (bool, error) {
	req := JoinRoomRequest{ConnectionID: connectionID, RoomID: roomID}
	var resp JoinRoomResponse

	if err := call(ctx, a, ServiceJoinRoom, &req, &resp); err != nil {
		return false, err
	}
	if !resp.Success {
		return false, codeError(resp.Code)
	}
	return resp.AlreadyJoined, nil
}

// LeaveRoom removes the session from a room.
func (a *ChatAdapter) LeaveRoom(ctx context.Context, connectionID, roomID string) error {
	req := LeaveRoomRequest{ConnectionID: connectionID, RoomID: roomID}
	var resp LeaveRoomResponse

	if err := call(ctx, a, ServiceLeaveRoom, &req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return codeError(resp.Code)
	}
	return nil
}

// SendMessage relays a message to a room.
func (a *ChatAdapter) SendMessage(ctx context.Context, connectionID, roomID, body string) (SendMessageResponse, error) {
	req := SendMessageRequest{ConnectionID: connectionID, RoomID: roomID, Body: body}
	var resp SendMessageResponse

	if err := call(ctx, a, ServiceSendMessage, &req, &resp); err != nil {
		return SendMessageResponse{}, err
	}
	if !resp.Success {
		return SendMessageResponse{}, codeError(resp.Code)
	}
	return resp, nil
}

// Typing relays a typing signal to a room.
func (a *ChatAdapter) Typing(ctx context.Context, connectionID, roomID string, isTyping bool) error {
	req := TypingRequest{ConnectionID: connectionID, RoomID: roomID, IsTyping: isTyping}
	var resp TypingResponse

	if err := call(ctx, a, ServiceTyping, &req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return codeError(resp.Code)
	}
	return nil
}

// History fetches the cached recent messages of a room.
func (a *ChatAdapter) History(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := GetHistoryRequest{RoomID: roomID, Limit: limit}
	var resp GetHistoryResponse

	if err := call(ctx, a, ServiceGetHistory, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Members fetches the current member snapshot of a room.
func (a *ChatAdapter) Members(ctx context.Context, roomID string) ([]domain.Member, error) {
	req := GetMembersRequest{RoomID: roomID}
	var resp GetMembersResponse

	if err := call(ctx, a, ServiceGetMembers, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// ListRooms fetches the room catalog.
func (a *ChatAdapter) ListRooms(ctx context.Context) ([]RoomInfo, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse

	if err := call(ctx, a, ServiceListRooms, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// CreateRoom adds an explicit room to the catalog.
func (a *ChatAdapter) CreateRoom(ctx context.Context, name string) (RoomInfo, error) {
	req := CreateRoomRequest{Name: name}
	var resp CreateRoomResponse

	if err := call(ctx, a, ServiceCreateRoom, &req, &resp); err != nil {
		return RoomInfo{}, err
	}
	if !resp.Success {
		return RoomInfo{}, codeError(resp.Code)
	}
	return resp.Room, nil
}

func call[Req any, Resp any](ctx context.Context, a *ChatAdapter, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// codeError maps wire codes back to domain errors so callers keep errors.Is
// semantics across the request-reply boundary.
func codeError(code string) error {
	switch code {
	case CodeNotInRoom:
		return domain.ErrNotInRoom
	case CodeDisconnected:
		return domain.ErrDisconnected
	default:
		return domain.ErrInvalidRequest
	}
}
