package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/repo"
)

func TestScenario_SubmitApproveAndLateApprove(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 2)

	got, err := svc.Submit(ctx, 7, 3, strp("  hi "))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got.Status != domain.StatusWait || got.RequestReason == nil || *got.RequestReason != "hi" {
		t.Fatalf("unexpected request: %+v", got.ChatRequest)
	}
	if got.ApplicantNickname != "alice-nick" || got.ApplicantAvatar != "thumb://avatar/alice" {
		t.Fatalf("detail not enriched: %+v", got)
	}
	notice, err := repo.FindNoticeSession(ctx, db, 1)
	if err != nil || !notice.Visible {
		t.Fatalf("host notice session not visible: %+v %v", notice, err)
	}

	res, err := svc.Agree(ctx, got.ID, 1)
	if err != nil {
		t.Fatalf("Agree: %v", err)
	}
	if res.Request.Status != domain.StatusAgree || res.Request.HandlerID == nil || *res.Request.HandlerID != 1 {
		t.Fatalf("request not settled: %+v", res.Request.ChatRequest)
	}
	if res.Request.HandlerNickname == nil || *res.Request.HandlerNickname != "host-nick" {
		t.Fatalf("handler nickname missing: %+v", res.Request.HandlerNickname)
	}
	if res.Session == nil || !res.Session.Visible || res.Session.UserID != 7 || res.Session.Unread != 1 {
		t.Fatalf("applicant session: %+v", res.Session)
	}
	if res.Session.Avatar != "thumb://room/avatar" {
		t.Fatalf("session avatar not resolved: %q", res.Session.Avatar)
	}
	if ok, _ := repo.IsMember(ctx, db, 3, 7); !ok {
		t.Fatalf("membership (3,7) not created")
	}
	m, _ := repo.GetMember(ctx, db, 3, 7)
	if m.Role != domain.RoleMember || m.Nickname != "alice-nick" {
		t.Fatalf("unexpected membership: %+v", m)
	}

	// The room is now full; a late approve still reports the handled state.
	if _, err := svc.Agree(ctx, got.ID, 1); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("late approve: want ErrAlreadyHandled, got %v", err)
	}
}

func TestSubmit_Failures(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 2, "member")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost, 2: domain.RoleMember})
	seedRoom(t, db, 4, domain.ChatroomPrivate, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 2)

	cases := []struct {
		name     string
		user     int64
		room     int64
		reason   *string
		capacity int
		want     error
	}{
		{"missing chatroom", 7, 99, nil, 10, ErrParam},
		{"private chatroom", 7, 4, nil, 10, ErrParam},
		{"unknown applicant", 42, 3, nil, 10, ErrParam},
		{"already member", 2, 3, nil, 10, ErrAlreadyMember},
		{"full", 7, 3, nil, 2, ErrCapacityFull},
		{"reason too long", 7, 3, strp(strings.Repeat("é", MaxReasonLength+1)), 10, ErrReasonTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc.Capacity = tc.capacity
			if _, err := svc.Submit(ctx, tc.user, tc.room, tc.reason); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}

	var n int64
	db.Model(&domain.ChatRequest{}).Count(&n)
	if n != 0 {
		t.Fatalf("failed submits must not write, found %d requests", n)
	}
	if _, err := repo.FindNoticeSession(ctx, db, 1); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("failed submits must not touch sessions, got %v", err)
	}
}

func TestSubmit_ReasonBoundary(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 10)

	exact := strings.Repeat("字", MaxReasonLength)
	got, err := svc.Submit(ctx, 7, 3, &exact)
	if err != nil {
		t.Fatalf("50 code points must be accepted: %v", err)
	}
	if *got.RequestReason != exact {
		t.Fatalf("reason altered: %q", *got.RequestReason)
	}

	got, err = svc.Submit(ctx, 7, 3, strp("   "))
	if err != nil {
		t.Fatalf("blank reason: %v", err)
	}
	if got.RequestReason != nil {
		t.Fatalf("blank reason should be stored as absent, got %q", *got.RequestReason)
	}
}

func TestSubmit_ReapplicationReusesRow(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 10)

	first, err := svc.Submit(ctx, 7, 3, strp("one"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	again, err := svc.Submit(ctx, 7, 3, strp("two"))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if again.ID != first.ID || *again.RequestReason != "two" || again.UpdateTime <= first.UpdateTime {
		t.Fatalf("pending request not reused: first=%+v again=%+v", first.ChatRequest, again.ChatRequest)
	}

	if _, err := svc.Reject(ctx, first.ID, 1, strp("no")); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	third, err := svc.Submit(ctx, 7, 3, nil)
	if err != nil {
		t.Fatalf("submit after reject: %v", err)
	}
	if third.ID != first.ID || third.Status != domain.StatusWait {
		t.Fatalf("rejected request not reused: %+v", third.ChatRequest)
	}
	if third.HandlerID != nil || third.RejectReason != nil || len(third.ReadedList) != 0 || third.RequestReason != nil {
		t.Fatalf("reset incomplete: %+v", third.ChatRequest)
	}

	var n int64
	db.Model(&domain.ChatRequest{}).Where("applicant_id = ? AND chatroom_id = ?", 7, 3).Count(&n)
	if n != 1 {
		t.Fatalf("want a single row, got %d", n)
	}
}

func TestAgree_AuthorizationAndCapacity(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 2, "member")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost, 2: domain.RoleMember})
	svc := newRequestService(t, db, 10)

	req, err := svc.Submit(ctx, 7, 3, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Agree(ctx, req.ID, 2); !errors.Is(err, ErrParam) {
		t.Fatalf("plain member must not approve: %v", err)
	}
	if _, err := svc.Agree(ctx, 9999, 1); !errors.Is(err, ErrParam) {
		t.Fatalf("missing request: %v", err)
	}

	svc.Capacity = 2
	if _, err := svc.Agree(ctx, req.ID, 1); !errors.Is(err, ErrCapacityFull) {
		t.Fatalf("want ErrCapacityFull, got %v", err)
	}
	cur, _ := repo.GetChatRequest(ctx, db, req.ID)
	if cur.HandlerID != nil || cur.Status != domain.StatusWait {
		t.Fatalf("request must stay untouched when full: %+v", cur)
	}

	// The applicant joined some other way meanwhile.
	svc.Capacity = 10
	if _, err := repo.AddMember(ctx, db, 3, 7, domain.RoleMember, "", 1); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := svc.Agree(ctx, req.ID, 1); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("want ErrAlreadyMember, got %v", err)
	}
}

func TestAgree_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 2, "manager")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost, 2: domain.RoleManager})

	// Two services with separate lock tables stand in for two processes.
	a := newRequestService(t, db, 10)
	b := newRequestService(t, db, 10)
	req, err := a.Submit(ctx, 7, 3, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, mod := a, int64(1)
			if i%2 == 1 {
				svc, mod = b, 2
			}
			_, errs[i] = svc.Agree(ctx, req.ID, mod)
		}(i)
	}
	wg.Wait()

	wins, handled := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyHandled):
			handled++
		default:
			t.Fatalf("losing approval must answer AlreadyHandled, got %v", err)
		}
	}
	if wins != 1 || handled != len(errs)-1 {
		t.Fatalf("want 1 winner and %d AlreadyHandled, got %d and %d (%v)", len(errs)-1, wins, handled, errs)
	}
	n, _ := repo.CountMembers(ctx, db, 3)
	if n != 3 {
		t.Fatalf("want 3 members, got %d", n)
	}
}

func TestUnsetCapacityFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})

	svc := &ChatRequestService{DB: db, Now: fixedClock()}
	req, err := svc.Submit(ctx, 7, 3, nil)
	if err != nil {
		t.Fatalf("Submit with unset capacity: %v", err)
	}
	if _, err := svc.Agree(ctx, req.ID, 1); err != nil {
		t.Fatalf("Agree with unset capacity: %v", err)
	}
	rooms := &ChatroomService{DB: db}
	if full, err := rooms.IsFull(ctx, 3); err != nil || full {
		t.Fatalf("IsFull with unset capacity = %v, %v", full, err)
	}
}

func TestAgree_CapacityUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 10)

	var ids []int64
	for uid := int64(10); uid < 16; uid++ {
		seedUser(t, db, uid, "u"+string(rune('a'+uid-10)))
		r, err := svc.Submit(ctx, uid, 3, nil)
		if err != nil {
			t.Fatalf("Submit %d: %v", uid, err)
		}
		ids = append(ids, r.ID)
	}

	svc.Capacity = 3
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = svc.Agree(ctx, id, 1)
		}(i, id)
	}
	wg.Wait()

	ok, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrCapacityFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 2 || full != 4 {
		t.Fatalf("want 2 approvals and 4 full, got %d/%d", ok, full)
	}
	if n, _ := repo.CountMembers(ctx, db, 3); n != 3 {
		t.Fatalf("capacity exceeded: %d members", n)
	}
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 7, "alice")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 10)

	req, err := svc.Submit(ctx, 7, 3, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := svc.Reject(ctx, req.ID, 1, strp(strings.Repeat("x", 51))); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("want ErrReasonTooLong, got %v", err)
	}
	got, err := svc.Reject(ctx, req.ID, 1, strp("not\tnow"))
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if got.Status != domain.StatusReject || *got.RejectReason != "not now" || !got.HasRead(1) {
		t.Fatalf("unexpected reject: %+v", got.ChatRequest)
	}
	if _, err := svc.Reject(ctx, req.ID, 1, nil); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("second reject: %v", err)
	}
	if _, err := svc.Agree(ctx, req.ID, 1); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("approve after reject: %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 2, "manager")
	seedUser(t, db, 7, "alice")
	seedUser(t, db, 8, "bob")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost, 2: domain.RoleManager})
	seedRoom(t, db, 4, domain.ChatroomGroup, map[int64]domain.Role{2: domain.RoleHost})
	svc := newRequestService(t, db, 10)

	r1, _ := svc.Submit(ctx, 7, 3, nil)
	r2, _ := svc.Submit(ctx, 8, 4, nil)
	if err := db.Model(&domain.ChatSession{}).Where("user_id = ?", 1).Update("unread", 5).Error; err != nil {
		t.Fatalf("seed unread: %v", err)
	}

	if err := svc.MarkAllRead(ctx, 1); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	firstNotice, _ := repo.FindNoticeSession(ctx, db, 1)
	firstReq, _ := repo.GetChatRequest(ctx, db, r1.ID)

	// Repeating it leaves the notice entry and the request untouched.
	if err := svc.MarkAllRead(ctx, 1); err != nil {
		t.Fatalf("MarkAllRead again: %v", err)
	}
	again, _ := repo.FindNoticeSession(ctx, db, 1)
	if *again != *firstNotice {
		t.Fatalf("notice entry changed by repeat: %+v -> %+v", firstNotice, again)
	}
	if againReq, _ := repo.GetChatRequest(ctx, db, r1.ID); againReq.UpdateTime != firstReq.UpdateTime || len(againReq.ReadedList) != len(firstReq.ReadedList) {
		t.Fatalf("request changed by repeat: %+v -> %+v", firstReq, againReq)
	}

	a, _ := repo.GetChatRequest(ctx, db, r1.ID)
	b, _ := repo.GetChatRequest(ctx, db, r2.ID)
	if len(a.ReadedList) != 1 || !a.HasRead(1) {
		t.Fatalf("want [1] once, got %v", a.ReadedList)
	}
	if b.HasRead(1) {
		t.Fatalf("request outside moderated chatrooms marked: %v", b.ReadedList)
	}
	if a.Status != domain.StatusWait {
		t.Fatalf("marking read must not settle: %+v", a)
	}
	notice, _ := repo.FindNoticeSession(ctx, db, 1)
	if notice.Unread != 0 {
		t.Fatalf("notice unread = %d", notice.Unread)
	}

	if err := svc.MarkAllRead(ctx, 2); err != nil {
		t.Fatalf("MarkAllRead manager: %v", err)
	}
	a, _ = repo.GetChatRequest(ctx, db, r1.ID)
	b, _ = repo.GetChatRequest(ctx, db, r2.ID)
	if len(a.ReadedList) != 2 || !b.HasRead(2) {
		t.Fatalf("manager reads: %v %v", a.ReadedList, b.ReadedList)
	}
}

func TestListAndGetReceived(t *testing.T) {
	ctx := context.Background()
	db := newServiceDB(t)
	seedUser(t, db, 1, "host")
	seedUser(t, db, 5, "outsider")
	seedRoom(t, db, 3, domain.ChatroomGroup, map[int64]domain.Role{1: domain.RoleHost})
	svc := newRequestService(t, db, 10)

	var last int64
	for uid := int64(10); uid < 13; uid++ {
		seedUser(t, db, uid, "u"+string(rune('a'+uid-10)))
		r, err := svc.Submit(ctx, uid, 3, nil)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		last = r.ID
	}

	items, total, err := svc.ListReceived(ctx, 1, 1, 2)
	if err != nil {
		t.Fatalf("ListReceived: %v", err)
	}
	if total != 3 || len(items) != 2 || items[0].ID != last {
		t.Fatalf("unexpected page: total=%d items=%+v", total, items)
	}
	if !strings.HasPrefix(items[0].ApplicantAvatar, "thumb://") || items[0].ChatroomName != "room" {
		t.Fatalf("items not resolved: %+v", items[0])
	}
	if _, total, _ := svc.ListReceived(ctx, 5, 1, 10); total != 0 {
		t.Fatalf("outsider sees %d requests", total)
	}

	if _, err := svc.GetReceived(ctx, last, 1); err != nil {
		t.Fatalf("GetReceived: %v", err)
	}
	if _, err := svc.GetReceived(ctx, last, 5); !errors.Is(err, ErrParam) {
		t.Fatalf("outsider GetReceived: %v", err)
	}

	mods, err := svc.Moderators(ctx, 3)
	if err != nil || len(mods) != 1 || mods[0] != 1 {
		t.Fatalf("Moderators: %v %v", mods, err)
	}
}
