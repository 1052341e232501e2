package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// FindNoticeSession returns the ChatroomNotice entry of userID, or ErrNotFound.
func FindNoticeSession(ctx context.Context, db *gorm.DB, userID int64) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, domain.SessionChatroomNotice).
		Order("id ASC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindChatroomSession returns the Chatroom entry of userID for chatroomID,
// or ErrNotFound.
func FindChatroomSession(ctx context.Context, db *gorm.DB, userID, chatroomID int64) (*domain.ChatSession, error) {
	var s domain.ChatSession
	err := db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND chatroom_id = ?", userID, domain.SessionChatroom, chatroomID).
		Order("id ASC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts s as given.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.ChatSession) error {
	return db.WithContext(ctx).Create(s).Error
}

// ShowNoticeSession makes userID's notice entry visible with update_time
// bumped, creating it when missing.
func ShowNoticeSession(ctx context.Context, db *gorm.DB, userID, ts int64) (*domain.ChatSession, error) {
	s, err := FindNoticeSession(ctx, db, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		s = &domain.ChatSession{
			UserID:     userID,
			Type:       domain.SessionChatroomNotice,
			Visible:    true,
			CreateTime: ts,
			UpdateTime: ts,
		}
		return s, CreateSession(ctx, db, s)
	case err != nil:
		return nil, err
	}
	err = db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{"visible": true, "update_time": ts}).Error
	if err != nil {
		return nil, err
	}
	s.Visible = true
	s.UpdateTime = ts
	return s, nil
}

// BumpChatroomSession makes userID's entry for chatroomID visible, adds one
// unread and bumps update_time, creating the entry when missing.
func BumpChatroomSession(ctx context.Context, db *gorm.DB, userID, chatroomID, ts int64) (*domain.ChatSession, error) {
	s, err := FindChatroomSession(ctx, db, userID, chatroomID)
	switch {
	case errors.Is(err, ErrNotFound):
		cid := chatroomID
		s = &domain.ChatSession{
			UserID:     userID,
			Type:       domain.SessionChatroom,
			ChatroomID: &cid,
			Visible:    true,
			Unread:     1,
			CreateTime: ts,
			UpdateTime: ts,
		}
		return s, CreateSession(ctx, db, s)
	case err != nil:
		return nil, err
	}
	err = db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"visible":     true,
			"unread":      gorm.Expr("unread + 1"),
			"update_time": ts,
		}).Error
	if err != nil {
		return nil, err
	}
	s.Visible = true
	s.Unread++
	s.UpdateTime = ts
	return s, nil
}

// ClearNoticeUnread zeroes the unread counter of userID's notice entry.
// Only the counter changes, and only when it is not already zero, so the
// entry keeps its place in the session list. A missing entry is not an
// error.
func ClearNoticeUnread(ctx context.Context, db *gorm.DB, userID int64) error {
	return db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("user_id = ? AND type = ? AND unread <> 0", userID, domain.SessionChatroomNotice).
		UpdateColumn("unread", 0).Error
}
