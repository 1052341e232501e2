package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/repo"
)

// stubResolver turns object keys into recognizable URLs.
type stubResolver struct{}

func (stubResolver) ThumbnailURL(key string) string { return "thumb://" + key }
func (stubResolver) OriginalURL(key string) string  { return "orig://" + key }

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fixedClock returns a clock that advances one millisecond per call.
func fixedClock() func() time.Time {
	base := time.UnixMilli(1_700_000_000_000)
	var n int64
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func newRequestService(t *testing.T, db *gorm.DB, capacity int) *ChatRequestService {
	t.Helper()
	s := NewChatRequestService(db, stubResolver{}, capacity)
	s.Now = fixedClock()
	return s
}

func seedUser(t *testing.T, db *gorm.DB, id int64, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Username: name, Nickname: name + "-nick", Avatar: "avatar/" + name}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

// seedRoom creates chatroom id with the given members.
func seedRoom(t *testing.T, db *gorm.DB, id int64, typ domain.ChatroomType, members map[int64]domain.Role) *domain.Chatroom {
	t.Helper()
	ctx := context.Background()
	c := &domain.Chatroom{ID: id, Name: "room", Type: typ, Avatar: "room/avatar"}
	if err := repo.CreateChatroom(ctx, db, c); err != nil {
		t.Fatalf("seed chatroom: %v", err)
	}
	for uid, role := range members {
		if _, err := repo.AddMember(ctx, db, c.ID, uid, role, "", 1); err != nil {
			t.Fatalf("seed member %d: %v", uid, err)
		}
	}
	return c
}

func strp(s string) *string { return &s }
