package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/repo"
)

// FriendService handles friend requests between users. A pending or
// rejected request from the same sender to the same target is reused.
type FriendService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *FriendService) millis() int64 {
	if s.Now == nil {
		return time.Now().UnixMilli()
	}
	return s.Now().UnixMilli()
}

// Request files or refreshes a friend request from selfID to targetID.
func (s *FriendService) Request(ctx context.Context, selfID, targetID int64, reason, targetAlias *string) (*domain.FriendRequest, error) {
	if selfID == targetID {
		return nil, ErrParam
	}
	normalized, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	alias, err := normalizeOptional(targetAlias, MaxFriendAliasLength, ErrParam)
	if err != nil {
		return nil, err
	}
	if _, err := repo.GetUser(ctx, s.DB, targetID); err != nil {
		return nil, classify("friend request: target", err)
	}

	var id int64
	ts := s.millis()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.FindReusableFriendRequest(ctx, tx, selfID, targetID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			r := &domain.FriendRequest{
				SelfID:        selfID,
				TargetID:      targetID,
				TargetAlias:   alias,
				RequestReason: normalized,
				CreateTime:    ts,
				UpdateTime:    ts,
			}
			if err := repo.CreateFriendRequest(ctx, tx, r); err != nil {
				return err
			}
			id = r.ID
			return nil
		case err != nil:
			return err
		}
		id = existing.ID
		return repo.ResetFriendRequest(ctx, tx, existing.ID, alias, normalized, ts)
	})
	if err != nil {
		return nil, classify("friend request", err)
	}
	r, err := repo.GetFriendRequest(ctx, s.DB, id)
	if err != nil {
		return nil, classify("friend request: reload", err)
	}
	return r, nil
}

// Reject declines a pending request addressed to targetID. Missing,
// foreign and already settled requests all yield ErrParam.
func (s *FriendService) Reject(ctx context.Context, requestID, targetID int64, reason *string) (*domain.FriendRequest, error) {
	normalized, err := normalizeReason(reason)
	if err != nil {
		return nil, err
	}
	ok, err := repo.RejectFriendRequest(ctx, s.DB, requestID, targetID, normalized, s.millis())
	if err != nil {
		return nil, classify("friend reject", err)
	}
	if !ok {
		return nil, ErrParam
	}
	r, err := repo.GetFriendRequest(ctx, s.DB, requestID)
	if err != nil {
		return nil, classify("friend reject: reload", err)
	}
	return r, nil
}
