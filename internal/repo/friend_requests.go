package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// FindReusableFriendRequest returns the latest non-approved request from
// selfID to targetID, or ErrNotFound.
func FindReusableFriendRequest(ctx context.Context, db *gorm.DB, selfID, targetID int64) (*domain.FriendRequest, error) {
	var r domain.FriendRequest
	err := db.WithContext(ctx).
		Where("self_id = ? AND target_id = ? AND status <> ?", selfID, targetID, domain.StatusAgree).
		Order("id DESC").
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateFriendRequest inserts r in state Wait.
func CreateFriendRequest(ctx context.Context, db *gorm.DB, r *domain.FriendRequest) error {
	r.Status = domain.StatusWait
	return db.WithContext(ctx).Create(r).Error
}

// ResetFriendRequest puts request id back to Wait with new alias and reason.
func ResetFriendRequest(ctx context.Context, db *gorm.DB, id int64, alias, reason *string, ts int64) error {
	res := db.WithContext(ctx).
		Model(&domain.FriendRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         domain.StatusWait,
			"target_alias":   alias,
			"request_reason": reason,
			"reject_reason":  nil,
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

// GetFriendRequest fetches a friend request by id, or ErrNotFound.
func GetFriendRequest(ctx context.Context, db *gorm.DB, id int64) (*domain.FriendRequest, error) {
	var r domain.FriendRequest
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// RejectFriendRequest moves a pending request addressed to targetID to
// Reject. It reports false when the request is missing, addressed to
// someone else, or no longer pending.
func RejectFriendRequest(ctx context.Context, db *gorm.DB, id, targetID int64, reason *string, ts int64) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.FriendRequest{}).
		Where("id = ? AND target_id = ? AND status = ?", id, targetID, domain.StatusWait).
		Updates(map[string]any{
			"status":        domain.StatusReject,
			"reject_reason": reason,
			"update_time":   ts,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
