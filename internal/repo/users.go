package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can use errors.Is either way.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateUser inserts a user row. Avatar is an object key, not a URL.
func CreateUser(ctx context.Context, db *gorm.DB, username, nickname, avatar string) (*domain.User, error) {
	u := &domain.User{Username: username, Nickname: nickname, Avatar: avatar}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// TouchLogin sets login_time for the user. Returns ErrNotFound when no row
// was updated.
func TouchLogin(ctx context.Context, db *gorm.DB, id, ts int64) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"login_time": ts, "update_time": ts})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
