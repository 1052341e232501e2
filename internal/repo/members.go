package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// moderatorRoles are the roles allowed to handle join requests.
var moderatorRoles = []domain.Role{domain.RoleHost, domain.RoleManager}

// AddMember inserts a membership row. A duplicate (chatroom, user) pair
// violates the unique index and surfaces as a DB error.
func AddMember(ctx context.Context, db *gorm.DB, chatroomID, userID int64, role domain.Role, nickname string, ts int64) (*domain.ChatMember, error) {
	m := &domain.ChatMember{
		ChatroomID: chatroomID,
		UserID:     userID,
		Role:       role,
		Nickname:   nickname,
		CreateTime: ts,
		UpdateTime: ts,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// CountMembers returns the number of members of a chatroom.
func CountMembers(ctx context.Context, db *gorm.DB, chatroomID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chatroom_id = ?", chatroomID).
		Count(&n).Error
	return n, err
}

// GetMember fetches the membership of userID in chatroomID, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, chatroomID, userID int64) (*domain.ChatMember, error) {
	var m domain.ChatMember
	err := db.WithContext(ctx).
		Where("chatroom_id = ? AND user_id = ?", chatroomID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// IsMember reports whether userID belongs to chatroomID.
func IsMember(ctx context.Context, db *gorm.DB, chatroomID, userID int64) (bool, error) {
	_, err := GetMember(ctx, db, chatroomID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ModeratorIDs returns the user ids of the Host and Managers of a chatroom.
func ModeratorIDs(ctx context.Context, db *gorm.DB, chatroomID int64) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("chatroom_id = ? AND role IN ?", chatroomID, moderatorRoles).
		Order("role ASC, user_id ASC").
		Pluck("user_id", &out).Error
	return out, err
}

// ModeratedChatroomIDs returns the chatrooms where userID is Host or Manager.
func ModeratedChatroomIDs(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("user_id = ? AND role IN ?", userID, moderatorRoles).
		Order("chatroom_id ASC").
		Pluck("chatroom_id", &out).Error
	return out, err
}

// ChatroomIDsOf returns every chatroom userID belongs to.
func ChatroomIDsOf(ctx context.Context, db *gorm.DB, userID int64) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Model(&domain.ChatMember{}).
		Where("user_id = ?", userID).
		Order("chatroom_id ASC").
		Pluck("chatroom_id", &out).Error
	return out, err
}
