package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/repo"
)

// UserService exposes the user data the session controller needs on connect.
type UserService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// ChatroomIDs returns every chatroom userID belongs to, ascending.
func (s *UserService) ChatroomIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := repo.ChatroomIDsOf(ctx, s.DB, userID)
	if err != nil {
		return nil, classify("chatroom ids", err)
	}
	return ids, nil
}

// TouchLogin records the current time as userID's last login.
func (s *UserService) TouchLogin(ctx context.Context, userID int64) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return classify("touch login", repo.TouchLogin(ctx, s.DB, userID, now().UnixMilli()))
}
