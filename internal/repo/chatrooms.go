package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// CreateChatroom inserts c and fills its id.
func CreateChatroom(ctx context.Context, db *gorm.DB, c *domain.Chatroom) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetChatroom fetches a chatroom by id, or ErrNotFound.
func GetChatroom(ctx context.Context, db *gorm.DB, id int64) (*domain.Chatroom, error) {
	var c domain.Chatroom
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// LockChatroom takes the write lock on the chatroom row inside tx with a
// no-op update. Row-locking engines lock only that row; SQLite takes the
// database write lock up front, which keeps later reads in the same
// transaction from failing with SQLITE_BUSY on upgrade.
//
// Returns ErrNotFound if the chatroom does not exist.
func LockChatroom(ctx context.Context, tx *gorm.DB, id int64) error {
	res := tx.WithContext(ctx).Exec("UPDATE chatrooms SET update_time = update_time WHERE id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PrivateChatroomsOf returns the subset of ids that are private chatrooms
// userID belongs to, in ascending id order.
func PrivateChatroomsOf(ctx context.Context, db *gorm.DB, userID int64, ids []int64) ([]int64, error) {
	out := []int64{}
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Table("chatrooms AS c").
		Joins("JOIN chat_members m ON m.chatroom_id = c.id AND m.user_id = ?", userID).
		Where("c.id IN ? AND c.type = ?", ids, domain.ChatroomPrivate).
		Order("c.id ASC").
		Pluck("c.id", &out).Error
	return out, err
}
