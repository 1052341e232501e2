// Package services – ChatroomService
//
// ChatroomService owns group creation, invitations into private chats and
// message persistence. Membership-changing writes share the per-chatroom
// KeyedMutex with ChatRequestService so capacity checks stay consistent.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/repo"
	"github.com/tbourn/go-group-chat/internal/storage"
	"github.com/tbourn/go-group-chat/internal/utils"
)

// CreateResult is returned to the creator of a chatroom.
type CreateResult struct {
	Chatroom *domain.Chatroom         `json:"chatroom"`
	Session  *domain.ChatSessionDetail `json:"session"`
}

// InviteResult lists the private chatrooms that received an invitation and
// the invitation record posted to each, in the same order.
type InviteResult struct {
	ChatroomIDs []int64                `json:"chatroom_ids"`
	Messages    []domain.MessageDetail `json:"messages"`
}

// ChatroomService manages chatrooms and their records.
type ChatroomService struct {
	DB       *gorm.DB
	Storage  storage.Resolver
	Capacity int
	Locks    *KeyedMutex
	Now      func() time.Time
}

// NewChatroomService builds a ChatroomService that shares the capacity and
// lock table of requests.
func NewChatroomService(db *gorm.DB, res storage.Resolver, requests *ChatRequestService) *ChatroomService {
	return &ChatroomService{
		DB:       db,
		Storage:  res,
		Capacity: requests.Capacity,
		Locks:    requests.Locks,
		Now:      requests.Now,
	}
}

func (s *ChatroomService) millis() int64 {
	if s.Now == nil {
		return time.Now().UnixMilli()
	}
	return s.Now().UnixMilli()
}

func (s *ChatroomService) thumb(key string) string {
	if s.Storage == nil {
		return key
	}
	return s.Storage.ThumbnailURL(key)
}

func (s *ChatroomService) capacity() int64 { return effectiveCapacity(s.Capacity) }

// Create makes a group chatroom with hostID as Host and gives the host a
// chatroom session entry and a notice entry.
func (s *ChatroomService) Create(ctx context.Context, hostID int64, name string, description *string) (*CreateResult, error) {
	tr := otel.Tracer("services/ChatroomService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.Int64("user.id", hostID)))
	defer span.End()

	name = normalizeText(name)
	if name == "" || utf8.RuneCountInString(name) > MaxChatroomNameLen {
		return nil, ErrInvalidName
	}
	desc, err := normalizeOptional(description, MaxChatroomDescLen, ErrParam)
	if err != nil {
		return nil, err
	}
	host, err := repo.GetUser(ctx, s.DB, hostID)
	if err != nil {
		return nil, classify("create chatroom: load host", err)
	}

	ts := s.millis()
	room := &domain.Chatroom{
		Name:        name,
		Description: desc,
		Type:        domain.ChatroomGroup,
		CreateTime:  ts,
		UpdateTime:  ts,
	}
	var session *domain.ChatSession
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateChatroom(ctx, tx, room); err != nil {
			return err
		}
		if _, err := repo.AddMember(ctx, tx, room.ID, hostID, domain.RoleHost, host.Nickname, ts); err != nil {
			return err
		}
		cid := room.ID
		session = &domain.ChatSession{
			UserID:     hostID,
			Type:       domain.SessionChatroom,
			ChatroomID: &cid,
			Visible:    true,
			CreateTime: ts,
			UpdateTime: ts,
		}
		if err := repo.CreateSession(ctx, tx, session); err != nil {
			return err
		}
		_, err := repo.ShowNoticeSession(ctx, tx, hostID, ts)
		return err
	})
	if err != nil {
		return nil, classify("create chatroom", err)
	}
	span.SetAttributes(attribute.Int64("chatroom.id", room.ID))

	return &CreateResult{
		Chatroom: room,
		Session: &domain.ChatSessionDetail{
			ChatSession: *session,
			Title:       room.Name,
			Avatar:      s.thumb(room.Avatar),
		},
	}, nil
}

// Invite posts an invitation record for chatroomID into every chatroom of
// privateIDs that is private and has inviterID as a member. Only the Host
// may invite, and not into a full chatroom.
func (s *ChatroomService) Invite(ctx context.Context, inviterID, chatroomID int64, privateIDs []int64) (*InviteResult, error) {
	tr := otel.Tracer("services/ChatroomService")
	ctx, span := tr.Start(ctx, "Invite", trace.WithAttributes(
		attribute.Int64("user.id", inviterID),
		attribute.Int64("chatroom.id", chatroomID),
		attribute.Int("targets", len(privateIDs)),
	))
	defer span.End()

	m, err := repo.GetMember(ctx, s.DB, chatroomID, inviterID)
	if err != nil {
		return nil, classify("invite: membership", err)
	}
	if m.Role != domain.RoleHost {
		return nil, ErrParam
	}
	room, err := repo.GetChatroom(ctx, s.DB, chatroomID)
	if err != nil {
		return nil, classify("invite: chatroom", err)
	}
	if room.Type != domain.ChatroomGroup {
		return nil, ErrParam
	}
	full, err := s.IsFull(ctx, chatroomID)
	if err != nil {
		return nil, err
	}
	if full {
		return nil, ErrCapacityFull
	}

	targets, err := repo.PrivateChatroomsOf(ctx, s.DB, inviterID, privateIDs)
	if err != nil {
		return nil, classify("invite: targets", err)
	}
	body, err := json.Marshal(map[string]any{
		"chatroom_id": room.ID,
		"name":        room.Name,
		"avatar":      s.thumb(room.Avatar),
	})
	if err != nil {
		return nil, classify("invite: encode", err)
	}

	res := &InviteResult{ChatroomIDs: targets, Messages: make([]domain.MessageDetail, 0, len(targets))}
	ts := s.millis()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, cid := range targets {
			uid := inviterID
			rec := &domain.ChatRecord{
				ChatroomID: cid,
				UserID:     &uid,
				Type:       domain.RecordChatInvitation,
				Data:       datatypes.JSON(body),
				CreateTime: ts,
			}
			if err := repo.CreateChatRecord(ctx, tx, rec); err != nil {
				return err
			}
			d, err := s.messageDetail(ctx, tx, rec)
			if err != nil {
				return err
			}
			res.Messages = append(res.Messages, *d)
		}
		return nil
	})
	if err != nil {
		return nil, classify("invite", err)
	}
	return res, nil
}

// SetMessage persists a record sent by userID to chatroomID. data must be a
// JSON object.
func (s *ChatroomService) SetMessage(ctx context.Context, userID, chatroomID int64, typ domain.RecordType, data json.RawMessage, replyID *int64) (*domain.MessageDetail, error) {
	tr := otel.Tracer("services/ChatroomService")
	ctx, span := tr.Start(ctx, "SetMessage", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("chatroom.id", chatroomID),
	))
	defer span.End()

	if typ != domain.RecordText && typ != domain.RecordChatInvitation {
		return nil, ErrParam
	}
	if !isJSONObject(data) {
		return nil, ErrParam
	}
	ok, err := s.IsMember(ctx, chatroomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrParam
	}

	uid := userID
	rec := &domain.ChatRecord{
		ChatroomID: chatroomID,
		UserID:     &uid,
		Type:       typ,
		Data:       datatypes.JSON(data),
		ReplyID:    replyID,
		CreateTime: s.millis(),
	}
	if err := repo.CreateChatRecord(ctx, s.DB, rec); err != nil {
		return nil, classify("set message", err)
	}
	d, err := s.messageDetail(ctx, s.DB, rec)
	if err != nil {
		return nil, classify("set message: sender", err)
	}
	return d, nil
}

// ListMessages returns a page of chatroomID's records, newest first, to a
// member of the chatroom.
func (s *ChatroomService) ListMessages(ctx context.Context, userID, chatroomID int64, page, pageSize int) ([]domain.MessageDetail, error) {
	ok, err := s.IsMember(ctx, chatroomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrParam
	}
	pg := utils.NewPage(page, pageSize)
	recs, err := repo.ListChatRecordsPage(ctx, s.DB, chatroomID, pg.Offset(), pg.Size)
	if err != nil {
		return nil, classify("list messages", err)
	}

	// one lookup per distinct sender
	senders := map[int64]*domain.MessageDetail{}
	out := make([]domain.MessageDetail, 0, len(recs))
	for i := range recs {
		d := domain.MessageDetail{ChatRecord: recs[i]}
		if recs[i].UserID != nil {
			who, ok := senders[*recs[i].UserID]
			if !ok {
				who, err = s.messageDetail(ctx, s.DB, &recs[i])
				if err != nil {
					return nil, classify("list messages: sender", err)
				}
				senders[*recs[i].UserID] = who
			}
			d.Nickname, d.Avatar = who.Nickname, who.Avatar
		}
		out = append(out, d)
	}
	return out, nil
}

// IsMember reports whether userID belongs to chatroomID.
func (s *ChatroomService) IsMember(ctx context.Context, chatroomID, userID int64) (bool, error) {
	ok, err := repo.IsMember(ctx, s.DB, chatroomID, userID)
	if err != nil {
		return false, classify("is member", err)
	}
	return ok, nil
}

// MemberCount returns the number of members of chatroomID.
func (s *ChatroomService) MemberCount(ctx context.Context, chatroomID int64) (int64, error) {
	n, err := repo.CountMembers(ctx, s.DB, chatroomID)
	if err != nil {
		return 0, classify("member count", err)
	}
	return n, nil
}

// IsFull reports whether chatroomID has reached capacity.
func (s *ChatroomService) IsFull(ctx context.Context, chatroomID int64) (bool, error) {
	n, err := s.MemberCount(ctx, chatroomID)
	if err != nil {
		return false, err
	}
	return n >= s.capacity(), nil
}

// messageDetail attaches the sender's display name and avatar to rec. The
// chatroom nickname wins over the user nickname when set.
func (s *ChatroomService) messageDetail(ctx context.Context, db *gorm.DB, rec *domain.ChatRecord) (*domain.MessageDetail, error) {
	d := &domain.MessageDetail{ChatRecord: *rec}
	if rec.UserID == nil {
		return d, nil
	}
	u, err := repo.GetUser(ctx, db, *rec.UserID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return d, nil
	case err != nil:
		return nil, err
	}
	d.Nickname = u.Nickname
	d.Avatar = s.thumb(u.Avatar)
	if m, err := repo.GetMember(ctx, db, rec.ChatroomID, *rec.UserID); err == nil && m.Nickname != "" {
		d.Nickname = m.Nickname
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return d, nil
}

func isJSONObject(data json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return len(data) > 0 && json.Unmarshal(data, &obj) == nil && obj != nil
}
