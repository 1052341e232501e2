package repo

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// newRepoDB opens a migrated temp-file database for one test.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "repo_test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u, err := CreateUser(context.Background(), db, name, name+"-nick", "avatar/"+name+".png")
	if err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func seedRoom(t *testing.T, db *gorm.DB, name string, typ domain.ChatroomType, members map[int64]domain.Role) *domain.Chatroom {
	t.Helper()
	ctx := context.Background()
	c := &domain.Chatroom{Name: name, Type: typ, Avatar: "room/" + name + ".png"}
	if err := CreateChatroom(ctx, db, c); err != nil {
		t.Fatalf("seed chatroom: %v", err)
	}
	for uid, role := range members {
		if _, err := AddMember(ctx, db, c.ID, uid, role, "", 1); err != nil {
			t.Fatalf("seed member %d: %v", uid, err)
		}
	}
	return c
}

func strp(s string) *string { return &s }
