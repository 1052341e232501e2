// Package services – ChatRequestService
//
// This file implements the join-request admission workflow: applicants
// submit requests to group chatrooms, moderators (Host or Manager) approve
// or reject them, and moderators track which requests they have read.
//
// Every state change runs in one transaction under a per-chatroom lock:
//
//	lock(chatroom) → BEGIN → touch chatroom row → re-read request FOR UPDATE
//	→ guards → conditional update (handler_id IS NULL) → side effects → COMMIT
//
// The in-process lock orders writers of the same chatroom; the conditional
// update keeps a request's handler unique even across processes.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/repo"
	"github.com/tbourn/go-group-chat/internal/storage"
	"github.com/tbourn/go-group-chat/internal/utils"
)

// DefaultCapacity is the member cap used when none is configured.
const DefaultCapacity = 200

// AgreeResult is returned to the approving moderator: the settled request
// and the applicant's new session list entry for the chatroom.
type AgreeResult struct {
	Request *domain.ChatRequestDetail `json:"request"`
	Session *domain.ChatSessionDetail `json:"session"`
}

// ChatRequestService runs the admission workflow.
type ChatRequestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Storage signs avatar keys for display. Nil leaves keys untouched.
	Storage storage.Resolver
	// Capacity caps members per chatroom; zero or less means DefaultCapacity.
	Capacity int
	// Locks serializes writers per chatroom id. Share it with ChatroomService.
	Locks *KeyedMutex
	// Now is the clock; timestamps are its Unix milliseconds.
	Now func() time.Time
}

// NewChatRequestService constructs a ChatRequestService with its own lock
// table and the wall clock.
func NewChatRequestService(db *gorm.DB, res storage.Resolver, capacity int) *ChatRequestService {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ChatRequestService{
		DB:       db,
		Storage:  res,
		Capacity: capacity,
		Locks:    NewKeyedMutex(),
		Now:      time.Now,
	}
}

func (s *ChatRequestService) millis() int64 {
	if s.Now == nil {
		return time.Now().UnixMilli()
	}
	return s.Now().UnixMilli()
}

func (s *ChatRequestService) capacity() int64 { return effectiveCapacity(s.Capacity) }

// effectiveCapacity falls back to DefaultCapacity for an unset cap.
func effectiveCapacity(n int) int64 {
	if n <= 0 {
		return DefaultCapacity
	}
	return int64(n)
}

func (s *ChatRequestService) lock(chatroomID int64) func() {
	if s.Locks == nil {
		return func() {}
	}
	return s.Locks.Lock(chatroomID)
}

// Submit files a join request from applicantID to chatroomID, reusing the
// applicant's pending or rejected request when one exists, and surfaces the
// notice entry of every moderator. Nothing is written on failure.
func (s *ChatRequestService) Submit(ctx context.Context, applicantID, chatroomID int64, reason *string) (*domain.ChatRequestDetail, error) {
	tr := otel.Tracer("services/ChatRequestService")
	ctx, span := tr.Start(ctx, "Submit", trace.WithAttributes(
		attribute.Int64("user.id", applicantID),
		attribute.Int64("chatroom.id", chatroomID),
	))
	defer span.End()

	room, err := repo.GetChatroom(ctx, s.DB, chatroomID)
	if err != nil {
		return nil, classify("submit: load chatroom", err)
	}
	if room.Type != domain.ChatroomGroup {
		return nil, ErrParam
	}
	if _, err := repo.GetUser(ctx, s.DB, applicantID); err != nil {
		return nil, classify("submit: load applicant", err)
	}

	unlock := s.lock(chatroomID)
	defer unlock()

	var requestID int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockChatroom(ctx, tx, chatroomID); err != nil {
			return err
		}
		member, err := repo.IsMember(ctx, tx, chatroomID, applicantID)
		if err != nil {
			return err
		}
		if member {
			return ErrAlreadyMember
		}
		n, err := repo.CountMembers(ctx, tx, chatroomID)
		if err != nil {
			return err
		}
		if n >= s.capacity() {
			return ErrCapacityFull
		}
		normalized, err := normalizeReason(reason)
		if err != nil {
			return err
		}

		ts := s.millis()
		existing, err := repo.FindReusableChatRequest(ctx, tx, applicantID, chatroomID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			created, err := repo.CreateChatRequest(ctx, tx, chatroomID, applicantID, normalized, ts)
			if err != nil {
				return err
			}
			requestID = created.ID
		case err != nil:
			return err
		default:
			if err := repo.ResetChatRequest(ctx, tx, existing.ID, normalized, ts); err != nil {
				return err
			}
			requestID = existing.ID
		}

		mods, err := repo.ModeratorIDs(ctx, tx, chatroomID)
		if err != nil {
			return err
		}
		for _, uid := range mods {
			if _, err := repo.ShowNoticeSession(ctx, tx, uid, ts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classify("submit", err)
	}

	detail, err := repo.GetChatRequestDetail(ctx, s.DB, requestID)
	if err != nil {
		return nil, classify("submit: reload", err)
	}
	return s.resolve(detail), nil
}

// Agree approves requestID on behalf of moderatorID: the applicant becomes a
// Member and gets a chatroom session entry with one unread.
func (s *ChatRequestService) Agree(ctx context.Context, requestID, moderatorID int64) (*AgreeResult, error) {
	tr := otel.Tracer("services/ChatRequestService")
	ctx, span := tr.Start(ctx, "Agree", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
		attribute.Int64("user.id", moderatorID),
	))
	defer span.End()

	req, err := repo.FindModeratedChatRequest(ctx, s.DB, requestID, moderatorID)
	if err != nil {
		return nil, classify("agree: authorize", err)
	}

	unlock := s.lock(req.ChatroomID)
	defer unlock()

	var session *domain.ChatSession
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockChatroom(ctx, tx, req.ChatroomID); err != nil {
			return err
		}
		cur, err := repo.GetChatRequestForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if cur.HandlerID != nil {
			return ErrAlreadyHandled
		}
		n, err := repo.CountMembers(ctx, tx, cur.ChatroomID)
		if err != nil {
			return err
		}
		if n >= s.capacity() {
			return ErrCapacityFull
		}
		member, err := repo.IsMember(ctx, tx, cur.ChatroomID, cur.ApplicantID)
		if err != nil {
			return err
		}
		if member {
			return ErrAlreadyMember
		}

		ts := s.millis()
		ok, err := repo.SettleChatRequest(ctx, tx, cur, moderatorID, domain.StatusAgree, nil, ts)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyHandled
		}

		nickname := ""
		if u, err := repo.GetUser(ctx, tx, cur.ApplicantID); err == nil {
			nickname = u.Nickname
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if _, err := repo.AddMember(ctx, tx, cur.ChatroomID, cur.ApplicantID, domain.RoleMember, nickname, ts); err != nil {
			return err
		}
		session, err = repo.BumpChatroomSession(ctx, tx, cur.ApplicantID, cur.ChatroomID, ts)
		return err
	})
	if err != nil {
		return nil, classify("agree", err)
	}

	detail, err := repo.GetChatRequestDetail(ctx, s.DB, requestID)
	if err != nil {
		return nil, classify("agree: reload", err)
	}
	room, err := repo.GetChatroom(ctx, s.DB, req.ChatroomID)
	if err != nil {
		return nil, classify("agree: load chatroom", err)
	}
	return &AgreeResult{
		Request: s.resolve(detail),
		Session: &domain.ChatSessionDetail{
			ChatSession: *session,
			Title:       room.Name,
			Avatar:      s.thumb(room.Avatar),
		},
	}, nil
}

// Reject declines requestID on behalf of moderatorID with an optional reason.
func (s *ChatRequestService) Reject(ctx context.Context, requestID, moderatorID int64, reason *string) (*domain.ChatRequestDetail, error) {
	tr := otel.Tracer("services/ChatRequestService")
	ctx, span := tr.Start(ctx, "Reject", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
		attribute.Int64("user.id", moderatorID),
	))
	defer span.End()

	normalized, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	req, err := repo.FindModeratedChatRequest(ctx, s.DB, requestID, moderatorID)
	if err != nil {
		return nil, classify("reject: authorize", err)
	}

	unlock := s.lock(req.ChatroomID)
	defer unlock()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockChatroom(ctx, tx, req.ChatroomID); err != nil {
			return err
		}
		cur, err := repo.GetChatRequestForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if cur.HandlerID != nil {
			return ErrAlreadyHandled
		}
		ok, err := repo.SettleChatRequest(ctx, tx, cur, moderatorID, domain.StatusReject, normalized, s.millis())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyHandled
		}
		return nil
	})
	if err != nil {
		return nil, classify("reject", err)
	}

	detail, err := repo.GetChatRequestDetail(ctx, s.DB, requestID)
	if err != nil {
		return nil, classify("reject: reload", err)
	}
	return s.resolve(detail), nil
}

// MarkAllRead adds userID to the read list of every request in every
// chatroom userID moderates and clears the unread counter of their notice
// entry. Repeating it changes nothing.
func (s *ChatRequestService) MarkAllRead(ctx context.Context, userID int64) error {
	ids, err := repo.ModeratedChatroomIDs(ctx, s.DB, userID)
	if err != nil {
		return classify("mark read: chatrooms", err)
	}
	for _, cid := range ids {
		if err := s.markChatroomRead(ctx, cid, userID); err != nil {
			return classify("mark read", err)
		}
	}
	if err := repo.ClearNoticeUnread(ctx, s.DB, userID); err != nil {
		return classify("mark read: notice", err)
	}
	return nil
}

func (s *ChatRequestService) markChatroomRead(ctx context.Context, chatroomID, userID int64) error {
	unlock := s.lock(chatroomID)
	defer unlock()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.LockChatroom(ctx, tx, chatroomID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			return err
		}
		reqs, err := repo.ListChatroomRequests(ctx, tx, chatroomID)
		if err != nil {
			return err
		}
		for i := range reqs {
			if !reqs[i].MarkRead(userID) {
				continue
			}
			if err := repo.SetReadedList(ctx, tx, reqs[i].ID, reqs[i].ReadedList); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListReceived returns a page of the requests userID can moderate, newest
// first, with the total count.
func (s *ChatRequestService) ListReceived(ctx context.Context, userID int64, page, pageSize int) ([]domain.ChatRequestDetail, int64, error) {
	tr := otel.Tracer("services/ChatRequestService")
	ctx, span := tr.Start(ctx, "ListReceived", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	))
	defer span.End()

	pg := utils.NewPage(page, pageSize)
	total, err := repo.CountReceivedChatRequests(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, classify("list received: count", err)
	}
	items, err := repo.ListReceivedChatRequestsPage(ctx, s.DB, userID, pg.Offset(), pg.Size)
	if err != nil {
		return nil, 0, classify("list received", err)
	}
	for i := range items {
		s.resolve(&items[i])
	}
	return items, total, nil
}

// GetReceived returns one request as seen by moderator userID. Missing and
// not-visible requests both yield ErrParam.
func (s *ChatRequestService) GetReceived(ctx context.Context, requestID, userID int64) (*domain.ChatRequestDetail, error) {
	d, err := repo.GetReceivedChatRequest(ctx, s.DB, requestID, userID)
	if err != nil {
		return nil, classify("get received", err)
	}
	return s.resolve(d), nil
}

// Moderators returns the Host and Manager ids of chatroomID.
func (s *ChatRequestService) Moderators(ctx context.Context, chatroomID int64) ([]int64, error) {
	ids, err := repo.ModeratorIDs(ctx, s.DB, chatroomID)
	if err != nil {
		return nil, classify("moderators", err)
	}
	return ids, nil
}

func (s *ChatRequestService) thumb(key string) string {
	if s.Storage == nil {
		return key
	}
	return s.Storage.ThumbnailURL(key)
}

func (s *ChatRequestService) resolve(d *domain.ChatRequestDetail) *domain.ChatRequestDetail {
	d.ApplicantAvatar = s.thumb(d.ApplicantAvatar)
	d.ChatroomAvatar = s.thumb(d.ChatroomAvatar)
	return d
}

// classify keeps typed failures, maps not-found to ErrParam and wraps the
// rest with op for logging.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, repo.ErrNotFound) {
		return ErrParam
	}
	return fmt.Errorf("%s: %w", op, err)
}
