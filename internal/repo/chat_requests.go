// Package repo implements the directory store for the group-chat backend.
// This file provides repository functions for join requests (ChatRequest).
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business rules, only persistence and documented joins.
//
// Error semantics:
//   - When a request is not found (or not visible to the caller), functions
//     return ErrNotFound.
//   - On DB errors the raw gorm error is propagated.
//
// Joins used by the read paths:
//
//	chat_requests r
//	  JOIN users a       ON a.id = r.applicant_id        (applicant)
//	  LEFT JOIN users h  ON h.id = r.handler_id          (handler, nullable)
//	  JOIN chatrooms c   ON c.id = r.chatroom_id
//	  JOIN chat_members m ON m.chatroom_id = r.chatroom_id
//	                     AND m.user_id = :moderator AND m.role IN (Host, Manager)
//
// The last join is the visibility rule: a moderator sees every request of
// every chatroom they moderate and nothing else.
package repo

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-group-chat/internal/domain"
)

const detailColumns = "r.*, " +
	"a.nickname AS applicant_nickname, a.avatar AS applicant_avatar, " +
	"h.nickname AS handler_nickname, " +
	"c.name AS chatroom_name, c.avatar AS chatroom_avatar"

func detailQuery(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Table("chat_requests AS r").
		Select(detailColumns).
		Joins("JOIN users a ON a.id = r.applicant_id").
		Joins("LEFT JOIN users h ON h.id = r.handler_id").
		Joins("JOIN chatrooms c ON c.id = r.chatroom_id")
}

func moderatedBy(q *gorm.DB, moderatorID int64) *gorm.DB {
	return q.Joins("JOIN chat_members m ON m.chatroom_id = r.chatroom_id AND m.user_id = ? AND m.role IN ?",
		moderatorID, moderatorRoles)
}

// CreateChatRequest inserts a new request in state Wait with an empty read list.
func CreateChatRequest(ctx context.Context, db *gorm.DB, chatroomID, applicantID int64, reason *string, ts int64) (*domain.ChatRequest, error) {
	r := &domain.ChatRequest{
		ChatroomID:    chatroomID,
		ApplicantID:   applicantID,
		Status:        domain.StatusWait,
		RequestReason: reason,
		ReadedList:    datatypes.JSONSlice[int64]{},
		CreateTime:    ts,
		UpdateTime:    ts,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// FindReusableChatRequest returns the most recent non-approved request of
// applicantID for chatroomID, or ErrNotFound when only approved rows (or
// none) exist.
func FindReusableChatRequest(ctx context.Context, db *gorm.DB, applicantID, chatroomID int64) (*domain.ChatRequest, error) {
	var r domain.ChatRequest
	err := db.WithContext(ctx).
		Where("applicant_id = ? AND chatroom_id = ? AND status <> ?", applicantID, chatroomID, domain.StatusAgree).
		Order("id DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResetChatRequest puts an existing request back to Wait with a fresh
// reason, clearing handler, reject reason and read list.
func ResetChatRequest(ctx context.Context, db *gorm.DB, id int64, reason *string, ts int64) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         domain.StatusWait,
			"request_reason": reason,
			"reject_reason":  nil,
			"handler_id":     nil,
			"readed_list":    datatypes.JSONSlice[int64]{},
			"update_time":    ts,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChatRequest fetches a request by id, or ErrNotFound.
func GetChatRequest(ctx context.Context, db *gorm.DB, id int64) (*domain.ChatRequest, error) {
	var r domain.ChatRequest
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// GetChatRequestForUpdate re-reads a request inside tx with SELECT ... FOR
// UPDATE. Engines without row locks ignore the clause.
func GetChatRequestForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*domain.ChatRequest, error) {
	var r domain.ChatRequest
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FindModeratedChatRequest returns request id only if moderatorID is Host or
// Manager of its chatroom. Absent and forbidden both yield ErrNotFound.
func FindModeratedChatRequest(ctx context.Context, db *gorm.DB, id, moderatorID int64) (*domain.ChatRequest, error) {
	var r domain.ChatRequest
	err := moderatedBy(db.WithContext(ctx).Table("chat_requests AS r").Select("r.*"), moderatorID).
		Where("r.id = ?", id).
		Take(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SettleChatRequest records the moderator's decision. The update only
// applies while handler_id is still NULL; it reports false when another
// handler got there first.
func SettleChatRequest(ctx context.Context, tx *gorm.DB, r *domain.ChatRequest, handlerID int64, status domain.RequestStatus, rejectReason *string, ts int64) (bool, error) {
	next := domain.ChatRequest{ReadedList: append(datatypes.JSONSlice[int64]{}, r.ReadedList...)}
	next.MarkRead(handlerID)
	list := next.ReadedList

	updates := map[string]any{
		"status":      status,
		"handler_id":  handlerID,
		"readed_list": list,
		"update_time": ts,
	}
	if status == domain.StatusReject {
		updates["reject_reason"] = rejectReason
	}
	res := tx.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("id = ? AND handler_id IS NULL", r.ID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	r.Status = status
	r.HandlerID = &handlerID
	r.ReadedList = list
	r.UpdateTime = ts
	if status == domain.StatusReject {
		r.RejectReason = rejectReason
	}
	return true, nil
}

// ListChatroomRequests returns every request of a chatroom (for read marking).
func ListChatroomRequests(ctx context.Context, db *gorm.DB, chatroomID int64) ([]domain.ChatRequest, error) {
	var out []domain.ChatRequest
	err := db.WithContext(ctx).
		Where("chatroom_id = ?", chatroomID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// SetReadedList overwrites the read list of a request.
func SetReadedList(ctx context.Context, db *gorm.DB, id int64, list datatypes.JSONSlice[int64]) error {
	return db.WithContext(ctx).
		Model(&domain.ChatRequest{}).
		Where("id = ?", id).
		UpdateColumn("readed_list", list).Error
}

// GetChatRequestDetail loads a request with its display fields, without
// visibility scoping. Used after a write by the applicant or handler.
func GetChatRequestDetail(ctx context.Context, db *gorm.DB, id int64) (*domain.ChatRequestDetail, error) {
	var out domain.ChatRequestDetail
	err := detailQuery(ctx, db).Where("r.id = ?", id).Take(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReceivedChatRequest loads request id as seen by moderatorID, or
// ErrNotFound when it does not exist or is not visible.
func GetReceivedChatRequest(ctx context.Context, db *gorm.DB, id, moderatorID int64) (*domain.ChatRequestDetail, error) {
	var out domain.ChatRequestDetail
	err := moderatedBy(detailQuery(ctx, db), moderatorID).
		Where("r.id = ?", id).
		Take(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CountReceivedChatRequests returns how many requests moderatorID can see.
func CountReceivedChatRequests(ctx context.Context, db *gorm.DB, moderatorID int64) (int64, error) {
	var n int64
	err := moderatedBy(db.WithContext(ctx).Table("chat_requests AS r"), moderatorID).Count(&n).Error
	return n, err
}

// ListReceivedChatRequestsPage returns a page of requests visible to
// moderatorID, most recently updated first.
func ListReceivedChatRequestsPage(ctx context.Context, db *gorm.DB, moderatorID int64, offset, limit int) ([]domain.ChatRequestDetail, error) {
	out := []domain.ChatRequestDetail{}
	err := moderatedBy(detailQuery(ctx, db), moderatorID).
		Order("r.update_time DESC, r.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&out).Error
	return out, err
}
