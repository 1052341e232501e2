package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-group-chat/internal/domain"
)

func TestFriendRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "bob")
	svc := &FriendService{DB: db, Now: fixedClock()}

	if _, err := svc.Request(ctx, 1, 1, nil, nil); !errors.Is(err, ErrParam) {
		t.Fatalf("self request: %v", err)
	}
	if _, err := svc.Request(ctx, 1, 9, nil, nil); !errors.Is(err, ErrParam) {
		t.Fatalf("unknown target: %v", err)
	}
	if _, err := svc.Request(ctx, 1, 2, strp(strings.Repeat("r", 51)), nil); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("long reason: %v", err)
	}
	if _, err := svc.Request(ctx, 1, 2, nil, strp(strings.Repeat("a", MaxFriendAliasLength+1))); !errors.Is(err, ErrParam) {
		t.Fatalf("long alias: %v", err)
	}

	r, err := svc.Request(ctx, 1, 2, strp(" hello "), strp("Bobby"))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if r.Status != domain.StatusWait || *r.RequestReason != "hello" || *r.TargetAlias != "Bobby" {
		t.Fatalf("unexpected request: %+v", r)
	}

	if _, err := svc.Reject(ctx, r.ID, 1, nil); !errors.Is(err, ErrParam) {
		t.Fatalf("sender cannot reject: %v", err)
	}
	rej, err := svc.Reject(ctx, r.ID, 2, strp("who?"))
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rej.Status != domain.StatusReject || *rej.RejectReason != "who?" {
		t.Fatalf("unexpected reject: %+v", rej)
	}
	if _, err := svc.Reject(ctx, r.ID, 2, nil); !errors.Is(err, ErrParam) {
		t.Fatalf("double reject: %v", err)
	}

	again, err := svc.Request(ctx, 1, 2, nil, nil)
	if err != nil {
		t.Fatalf("re-request: %v", err)
	}
	if again.ID != r.ID || again.Status != domain.StatusWait || again.RejectReason != nil || again.TargetAlias != nil {
		t.Fatalf("rejected request not reset: %+v", again)
	}
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "alice")
	seedRoom(t, db, 5, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleMember})
	seedRoom(t, db, 3, domain.ChatroomPrivate, map[int64]domain.Role{1: domain.RoleMember})
	svc := &UserService{DB: db, Now: fixedClock()}

	ids, err := svc.ChatroomIDs(ctx, 1)
	if err != nil || len(ids) != 2 || ids[0] != 3 || ids[1] != 5 {
		t.Fatalf("ChatroomIDs: %v %v", ids, err)
	}
	if err := svc.TouchLogin(ctx, 1); err != nil {
		t.Fatalf("TouchLogin: %v", err)
	}
	var u domain.User
	db.First(&u, 1)
	if u.LoginTime == 0 {
		t.Fatalf("login_time not set")
	}
	if err := svc.TouchLogin(ctx, 42); !errors.Is(err, ErrParam) {
		t.Fatalf("unknown user: %v", err)
	}
}
