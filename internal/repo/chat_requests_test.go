package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-group-chat/internal/domain"
)

func TestChatRequest_CreateFindReset(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	host := seedUser(t, db, "host")
	app := seedUser(t, db, "app")
	room := seedRoom(t, db, "g", domain.ChatroomGroup, map[int64]domain.Role{host.ID: domain.RoleHost})

	if _, err := FindReusableChatRequest(ctx, db, app.ID, room.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any request, got %v", err)
	}

	r, err := CreateChatRequest(ctx, db, room.ID, app.ID, strp("hi"), 100)
	if err != nil {
		t.Fatalf("CreateChatRequest: %v", err)
	}
	if r.Status != domain.StatusWait || r.CreateTime != 100 || len(r.ReadedList) != 0 {
		t.Fatalf("unexpected new request %+v", r)
	}

	got, err := FindReusableChatRequest(ctx, db, app.ID, room.ID)
	if err != nil || got.ID != r.ID {
		t.Fatalf("FindReusableChatRequest: got=%+v err=%v", got, err)
	}

	ok, err := SettleChatRequest(ctx, db, got, host.ID, domain.StatusReject, strp("no"), 200)
	if err != nil || !ok {
		t.Fatalf("reject settle: ok=%v err=%v", ok, err)
	}

	if err := ResetChatRequest(ctx, db, r.ID, strp("again"), 300); err != nil {
		t.Fatalf("ResetChatRequest: %v", err)
	}
	after, err := GetChatRequest(ctx, db, r.ID)
	if err != nil {
		t.Fatalf("GetChatRequest: %v", err)
	}
	if after.Status != domain.StatusWait || after.HandlerID != nil || after.RejectReason != nil ||
		len(after.ReadedList) != 0 || after.UpdateTime != 300 || after.CreateTime != 100 ||
		after.RequestReason == nil || *after.RequestReason != "again" {
		t.Fatalf("reset did not restore Wait state: %+v", after)
	}

	if err := ResetChatRequest(ctx, db, 9999, nil, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reset of missing row: want ErrNotFound, got %v", err)
	}
}

func TestFindReusableChatRequest_SkipsApproved(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	host := seedUser(t, db, "host")
	app := seedUser(t, db, "app")
	room := seedRoom(t, db, "g", domain.ChatroomGroup, map[int64]domain.Role{host.ID: domain.RoleHost})

	r, _ := CreateChatRequest(ctx, db, room.ID, app.ID, nil, 1)
	if ok, err := SettleChatRequest(ctx, db, r, host.ID, domain.StatusAgree, nil, 2); !ok || err != nil {
		t.Fatalf("agree settle: ok=%v err=%v", ok, err)
	}
	if _, err := FindReusableChatRequest(ctx, db, app.ID, room.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("approved rows must not be reused, got %v", err)
	}
}

func TestSettleChatRequest_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	h1 := seedUser(t, db, "h1")
	h2 := seedUser(t, db, "h2")
	app := seedUser(t, db, "app")
	room := seedRoom(t, db, "g", domain.ChatroomGroup, map[int64]domain.Role{h1.ID: domain.RoleHost, h2.ID: domain.RoleManager})
	r, _ := CreateChatRequest(ctx, db, room.ID, app.ID, nil, 1)

	stale := *r
	ok, err := SettleChatRequest(ctx, db, r, h1.ID, domain.StatusAgree, nil, 2)
	if err != nil || !ok {
		t.Fatalf("first settle: ok=%v err=%v", ok, err)
	}
	if r.HandlerID == nil || *r.HandlerID != h1.ID || !r.HasRead(h1.ID) {
		t.Fatalf("in-memory request not updated: %+v", r)
	}

	ok, err = SettleChatRequest(ctx, db, &stale, h2.ID, domain.StatusReject, strp("x"), 3)
	if err != nil || ok {
		t.Fatalf("second settle must lose: ok=%v err=%v", ok, err)
	}
	got, _ := GetChatRequest(ctx, db, r.ID)
	if got.Status != domain.StatusAgree || *got.HandlerID != h1.ID || got.RejectReason != nil {
		t.Fatalf("handler changed after settle: %+v", got)
	}
}

func TestFindModeratedChatRequest_Visibility(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	host := seedUser(t, db, "host")
	mgr := seedUser(t, db, "mgr")
	mem := seedUser(t, db, "mem")
	outsider := seedUser(t, db, "out")
	app := seedUser(t, db, "app")
	room := seedRoom(t, db, "g", domain.ChatroomGroup, map[int64]domain.Role{
		host.ID: domain.RoleHost, mgr.ID: domain.RoleManager, mem.ID: domain.RoleMember,
	})
	r, _ := CreateChatRequest(ctx, db, room.ID, app.ID, nil, 1)

	for _, uid := range []int64{host.ID, mgr.ID} {
		if got, err := FindModeratedChatRequest(ctx, db, r.ID, uid); err != nil || got.ID != r.ID {
			t.Fatalf("moderator %d should see request: got=%v err=%v", uid, got, err)
		}
	}
	for _, uid := range []int64{mem.ID, outsider.ID, app.ID} {
		if _, err := FindModeratedChatRequest(ctx, db, r.ID, uid); !errors.Is(err, ErrNotFound) {
			t.Fatalf("user %d must not see request, err=%v", uid, err)
		}
	}
	if _, err := FindModeratedChatRequest(ctx, db, 9999, host.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing request: want ErrNotFound, got %v", err)
	}
}

func TestReceivedChatRequests_DetailJoinsAndPaging(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	host := seedUser(t, db, "host")
	other := seedUser(t, db, "other")
	a1 := seedUser(t, db, "a1")
	a2 := seedUser(t, db, "a2")
	a3 := seedUser(t, db, "a3")
	mine := seedRoom(t, db, "mine", domain.ChatroomGroup, map[int64]domain.Role{host.ID: domain.RoleHost})
	theirs := seedRoom(t, db, "theirs", domain.ChatroomGroup, map[int64]domain.Role{other.ID: domain.RoleHost})

	r1, _ := CreateChatRequest(ctx, db, mine.ID, a1.ID, nil, 10)
	r2, _ := CreateChatRequest(ctx, db, mine.ID, a2.ID, strp("pls"), 20)
	_, _ = CreateChatRequest(ctx, db, theirs.ID, a3.ID, nil, 30)
	if ok, err := SettleChatRequest(ctx, db, r1, host.ID, domain.StatusReject, strp("no"), 40); !ok || err != nil {
		t.Fatalf("settle: ok=%v err=%v", ok, err)
	}

	n, err := CountReceivedChatRequests(ctx, db, host.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountReceivedChatRequests = %d, %v; want 2", n, err)
	}

	page, err := ListReceivedChatRequestsPage(ctx, db, host.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListReceivedChatRequestsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != r1.ID || page[1].ID != r2.ID {
		t.Fatalf("expected [r1 r2] by update_time desc, got %+v", page)
	}
	if page[0].HandlerNickname == nil || *page[0].HandlerNickname != "host-nick" {
		t.Fatalf("handler nickname not joined: %+v", page[0])
	}
	if page[1].HandlerNickname != nil {
		t.Fatalf("unhandled request must have nil handler nickname")
	}
	if page[1].ApplicantNickname != "a2-nick" || page[1].ApplicantAvatar != "avatar/a2.png" || page[1].ChatroomName != "mine" {
		t.Fatalf("display fields not joined: %+v", page[1])
	}
	if page[0].ReadedList == nil || !page[0].HasRead(host.ID) {
		t.Fatalf("readed_list not scanned: %+v", page[0].ReadedList)
	}

	second, _ := ListReceivedChatRequestsPage(ctx, db, host.ID, 1, 1)
	if len(second) != 1 || second[0].ID != r2.ID {
		t.Fatalf("offset/limit not applied: %+v", second)
	}

	if _, err := GetReceivedChatRequest(ctx, db, r2.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other host must not see r2, got %v", err)
	}
	d, err := GetReceivedChatRequest(ctx, db, r2.ID, host.ID)
	if err != nil || d.RequestReason == nil || *d.RequestReason != "pls" {
		t.Fatalf("GetReceivedChatRequest: %+v %v", d, err)
	}
	if d, err := GetChatRequestDetail(ctx, db, r2.ID); err != nil || d.ApplicantNickname != "a2-nick" {
		t.Fatalf("GetChatRequestDetail: %+v %v", d, err)
	}
}

func TestListChatroomRequests_SetReadedList(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t)
	app := seedUser(t, db, "app")
	room := seedRoom(t, db, "g", domain.ChatroomGroup, nil)
	r, _ := CreateChatRequest(ctx, db, room.ID, app.ID, nil, 1)

	list, err := ListChatroomRequests(ctx, db, room.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListChatroomRequests: %v %v", list, err)
	}
	list[0].MarkRead(42)
	if err := SetReadedList(ctx, db, r.ID, list[0].ReadedList); err != nil {
		t.Fatalf("SetReadedList: %v", err)
	}
	got, _ := GetChatRequest(ctx, db, r.ID)
	if !got.HasRead(42) || got.UpdateTime != 1 {
		t.Fatalf("read list not persisted or update_time moved: %+v", got)
	}
}
