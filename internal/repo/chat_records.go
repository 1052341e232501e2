package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// CreateChatRecord inserts rec and fills its id.
func CreateChatRecord(ctx context.Context, db *gorm.DB, rec *domain.ChatRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

// ListChatRecordsPage returns records of a chatroom, newest first.
func ListChatRecordsPage(ctx context.Context, db *gorm.DB, chatroomID int64, offset, limit int) ([]domain.ChatRecord, error) {
	var out []domain.ChatRecord
	err := db.WithContext(ctx).
		Where("chatroom_id = ?", chatroomID).
		Order("create_time DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
