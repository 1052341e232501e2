// Package session orchestrates one client connection: it hydrates presence
// on connect, decodes client events, runs them against the services and
// fans results out to the affected rooms.
//
// Every event is answered on the originating connection with the
// operation's Result under the same event name. Fanout happens only after
// the service call has returned, so subscribers never see uncommitted
// state. Fanout is best-effort; its failures are logged, never returned.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/presence"
	"github.com/tbourn/go-group-chat/internal/realtime"
	"github.com/tbourn/go-group-chat/internal/services"
)

// Client and server event names.
const (
	EventInit              = "init"
	EventCreateChatroom    = "create_chatroom"
	EventFriendRequest     = "friend_request"
	EventFriendReject      = "friend_request_reject"
	EventInviteJoin        = "invite_join_chatroom"
	EventMessage           = "message"
	EventChatRequest       = "chat_request"
	EventChatRequestAgree  = "chat_request_agree"
	EventChatRequestReject = "chat_request_reject"
	EventChatRequestReaded = "chat_request_readed"
)

// Events lists every event name the controller sends or handles.
func Events() []string {
	return []string{
		EventInit, EventCreateChatroom, EventFriendRequest, EventFriendReject, EventInviteJoin,
		EventMessage, EventChatRequest, EventChatRequestAgree, EventChatRequestReject, EventChatRequestReaded,
	}
}

// Transport is the connection side of the realtime hub.
type Transport interface {
	realtime.Broadcaster
	Register(token string, s realtime.Sender)
	Unregister(token string, s realtime.Sender)
}

// Conn is a live client connection as Serve drives it. Run on a conn that
// was closed first must still deliver what is queued and release the socket.
type Conn interface {
	realtime.Sender
	Token() string
	Run(ctx context.Context, h realtime.Handler)
}

// Controller implements realtime.Handler for every connection of the process.
type Controller struct {
	Presence  *presence.Registry
	Transport Transport
	Requests  *services.ChatRequestService
	Chatrooms *services.ChatroomService
	Friends   *services.FriendService
	Users     *services.UserService
	Log       zerolog.Logger

	handlers map[string]eventHandler
}

type eventHandler func(c *Controller, ctx context.Context, token string, uid int64, data json.RawMessage) services.Result

// New wires a Controller.
func New(reg *presence.Registry, t Transport, requests *services.ChatRequestService, chatrooms *services.ChatroomService,
	friends *services.FriendService, users *services.UserService, log zerolog.Logger) *Controller {
	return &Controller{
		Presence:  reg,
		Transport: t,
		Requests:  requests,
		Chatrooms: chatrooms,
		Friends:   friends,
		Users:     users,
		Log:       log.With().Str("component", "session").Logger(),
		handlers: map[string]eventHandler{
			EventInit:              (*Controller).onInit,
			EventCreateChatroom:    (*Controller).onCreateChatroom,
			EventFriendRequest:     (*Controller).onFriendRequest,
			EventFriendReject:      (*Controller).onFriendReject,
			EventInviteJoin:        (*Controller).onInviteJoin,
			EventMessage:           (*Controller).onMessage,
			EventChatRequest:       (*Controller).onChatRequest,
			EventChatRequestAgree:  (*Controller).onChatRequestAgree,
			EventChatRequestReject: (*Controller).onChatRequestReject,
			EventChatRequestReaded: (*Controller).onChatRequestReaded,
		},
	}
}

// Serve runs conn for userID until it ends: register, hydrate, pump
// events, then tear presence down.
func (c *Controller) Serve(ctx context.Context, conn Conn, userID int64) {
	token := conn.Token()
	c.Transport.Register(token, conn)
	defer c.Transport.Unregister(token, conn)

	if err := c.Connect(ctx, token, userID); err != nil {
		c.Log.Error().Err(err).Int64("user_id", userID).Msg("connect failed")
		c.Disconnect(token)
		// Run on the closed conn delivers the failed init, then the close frame.
		conn.Close()
		conn.Run(ctx, c)
		return
	}
	c.Log.Info().Str("conn", token).Int64("user_id", userID).Msg("connected")

	conn.Run(ctx, c)

	c.Disconnect(token)
	c.Log.Info().Str("conn", token).Int64("user_id", userID).Msg("disconnected")
}

// Connect binds token to userID, joins the rooms the user belongs in and
// sends init. Running it again for a bound token re-syncs the rooms.
func (c *Controller) Connect(ctx context.Context, token string, userID int64) error {
	c.Presence.Bind(token, userID)
	res, err := c.sync(ctx, token, userID)
	c.Transport.Send(token, EventInit, services.FromErr(res, err))
	if err != nil {
		return err
	}
	if err := c.Users.TouchLogin(ctx, userID); err != nil {
		c.Log.Warn().Err(err).Int64("user_id", userID).Msg("touch login")
	}
	return nil
}

// Disconnect drops every presence entry of token.
func (c *Controller) Disconnect(token string) {
	c.Presence.Unbind(token)
}

type initResult struct {
	UserID      int64   `json:"user_id"`
	ChatroomIDs []int64 `json:"chatroom_ids"`
}

func (c *Controller) sync(ctx context.Context, token string, userID int64) (*initResult, error) {
	ids, err := c.Users.ChatroomIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		c.Presence.JoinRoom(token, presence.ChatroomRoom(id))
	}
	c.Presence.JoinRoom(token, presence.FriendRequestRoom(userID))
	c.Presence.JoinRoom(token, presence.ChatRequestRoom(userID))
	return &initResult{UserID: userID, ChatroomIDs: ids}, nil
}

// HandleEvent implements realtime.Handler. Events from unbound tokens are
// ignored.
func (c *Controller) HandleEvent(ctx context.Context, token, event string, data json.RawMessage) {
	uid, ok := c.Presence.UserOf(token)
	if !ok {
		return
	}
	res := c.Dispatch(ctx, token, uid, event, data)
	c.Transport.Send(token, event, res)
}

// Dispatch runs event for uid and returns the Result sent back to the
// origin. Fanout to other rooms happens inside.
func (c *Controller) Dispatch(ctx context.Context, token string, uid int64, event string, data json.RawMessage) services.Result {
	h, known := c.handlers[event]
	label := event
	if !known {
		label = "unknown"
	}

	tr := otel.Tracer("session/Controller")
	ctx, span := tr.Start(ctx, "event."+label, trace.WithAttributes(
		attribute.String("conn", token),
		attribute.Int64("user.id", uid),
	))
	defer span.End()
	start := time.Now()

	var res services.Result
	if known {
		res = h(c, ctx, token, uid, data)
	} else {
		res = services.Fail(services.ErrParam)
	}

	span.SetAttributes(attribute.Int("result.code", res.Code))
	if res.Code == services.CodeUnknownError {
		span.SetStatus(codes.Error, res.Message)
	}
	socketEvents.WithLabelValues(label, outcome(res.Code)).Inc()
	socketLat.WithLabelValues(label).Observe(time.Since(start).Seconds())
	return res
}

func outcome(code int) string {
	switch code {
	case services.CodeSuccess:
		return "ok"
	case services.CodeUnknownError:
		return "error"
	default:
		return "rejected"
	}
}

// decode unmarshals an event payload. Absent payloads leave v zeroed.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return services.ErrParam
	}
	return nil
}

func (c *Controller) onInit(ctx context.Context, token string, uid int64, _ json.RawMessage) services.Result {
	res, err := c.sync(ctx, token, uid)
	return services.FromErr(res, err)
}

type createChatroomPayload struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (c *Controller) onCreateChatroom(ctx context.Context, token string, uid int64, data json.RawMessage) services.Result {
	var p createChatroomPayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	res, err := c.Chatrooms.Create(ctx, uid, p.Name, p.Description)
	if err != nil {
		return services.Fail(err)
	}
	c.Presence.JoinRoom(token, presence.ChatroomRoom(res.Chatroom.ID))
	return services.Success(res)
}

type friendRequestPayload struct {
	TargetID    int64   `json:"targetId"`
	TargetAlias *string `json:"targetAlias"`
	Reason      *string `json:"reason"`
}

func (c *Controller) onFriendRequest(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p friendRequestPayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	r, err := c.Friends.Request(ctx, uid, p.TargetID, p.Reason, p.TargetAlias)
	if err != nil {
		return services.Fail(err)
	}
	c.Transport.Publish(presence.FriendRequestRoom(r.TargetID), EventFriendRequest, services.Success(r))
	return services.Success(r)
}

type rejectPayload struct {
	RequestID int64   `json:"requestId"`
	Reason    *string `json:"reason"`
}

func (c *Controller) onFriendReject(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p rejectPayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	r, err := c.Friends.Reject(ctx, p.RequestID, uid, p.Reason)
	if err != nil {
		return services.Fail(err)
	}
	c.sendToUser(r.SelfID, EventFriendReject, services.Success(r))
	return services.Success(r)
}

type invitePayload struct {
	ChatroomID     int64   `json:"chatroomId"`
	ChatroomIDList []int64 `json:"chatroomIdList"`
}

func (c *Controller) onInviteJoin(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p invitePayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	res, err := c.Chatrooms.Invite(ctx, uid, p.ChatroomID, p.ChatroomIDList)
	if err != nil {
		return services.Fail(err)
	}
	for _, m := range res.Messages {
		c.Transport.Publish(presence.ChatroomRoom(m.ChatroomID), EventMessage, services.Success(m))
	}
	return services.Success(res)
}

type messagePayload struct {
	ChatroomID int64             `json:"chatroomId"`
	Type       domain.RecordType `json:"type"`
	Data       json.RawMessage   `json:"data"`
	ReplyID    *int64            `json:"replyId"`
}

func (c *Controller) onMessage(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p messagePayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	m, err := c.Chatrooms.SetMessage(ctx, uid, p.ChatroomID, p.Type, p.Data, p.ReplyID)
	if err != nil {
		return services.Fail(err)
	}
	c.Transport.Publish(presence.ChatroomRoom(m.ChatroomID), EventMessage, services.Success(m))
	return services.Success(m)
}

type chatRequestPayload struct {
	ChatroomID int64   `json:"chatroomId"`
	Reason     *string `json:"reason"`
}

func (c *Controller) onChatRequest(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p chatRequestPayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	d, err := c.Requests.Submit(ctx, uid, p.ChatroomID, p.Reason)
	if err != nil {
		return services.Fail(err)
	}
	c.publishToModerators(ctx, d.ChatroomID, EventChatRequest, services.Success(d))
	return services.Success(d)
}

type agreePayload struct {
	RequestID int64 `json:"requestId"`
}

func (c *Controller) onChatRequestAgree(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p agreePayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	res, err := c.Requests.Agree(ctx, p.RequestID, uid)
	if err != nil {
		return services.Fail(err)
	}
	req := res.Request
	c.publishToModerators(ctx, req.ChatroomID, EventChatRequestAgree, services.Success(req))
	if tok, ok := c.Presence.FindConnection(req.ApplicantID); ok && c.Presence.JoinRoom(tok, presence.ChatroomRoom(req.ChatroomID)) {
		c.Transport.Send(tok, EventChatRequestAgree, services.Success(res))
	}
	return services.Success(res)
}

func (c *Controller) onChatRequestReject(ctx context.Context, _ string, uid int64, data json.RawMessage) services.Result {
	var p rejectPayload
	if err := decode(data, &p); err != nil {
		return services.Fail(err)
	}
	d, err := c.Requests.Reject(ctx, p.RequestID, uid, p.Reason)
	if err != nil {
		return services.Fail(err)
	}
	c.publishToModerators(ctx, d.ChatroomID, EventChatRequestReject, services.Success(d))
	c.sendToUser(d.ApplicantID, EventChatRequestReject, services.Success(d))
	return services.Success(d)
}

func (c *Controller) onChatRequestReaded(ctx context.Context, _ string, uid int64, _ json.RawMessage) services.Result {
	return services.FromErr(nil, c.Requests.MarkAllRead(ctx, uid))
}

func (c *Controller) publishToModerators(ctx context.Context, chatroomID int64, event string, payload any) {
	mods, err := c.Requests.Moderators(ctx, chatroomID)
	if err != nil {
		c.Log.Warn().Err(err).Int64("chatroom_id", chatroomID).Str("event", event).Msg("fanout skipped")
		return
	}
	for _, uid := range mods {
		c.Transport.Publish(presence.ChatRequestRoom(uid), event, payload)
	}
}

func (c *Controller) sendToUser(userID int64, event string, payload any) {
	if tok, ok := c.Presence.FindConnection(userID); ok {
		c.Transport.Send(tok, event, payload)
	}
}
