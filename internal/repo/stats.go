// Package repo implements the directory store for the group-chat backend.
// This file provides small aggregate queries used for conditional responses
// (ETag generation) in the HTTP layer.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
)

// ReceivedStats is the change signature of a moderator's request list.
type ReceivedStats struct {
	Count         int64 // visible requests
	ReadCount     int64 // visible requests whose read list holds the moderator
	MaxUpdateTime int64 // newest request update_time, 0 when Count is 0
	NoticeTime    int64 // update_time of the moderator's notice entry, 0 when absent
	NoticeUnread  int64 // unread counter of the notice entry
}

// ReceivedChatRequestsStats returns the change signature of the requests
// visible to moderatorID. Creation, reset and settlement move MaxUpdateTime;
// marking read moves ReadCount and NoticeUnread.
func ReceivedChatRequestsStats(ctx context.Context, db *gorm.DB, moderatorID int64) (ReceivedStats, error) {
	var st ReceivedStats
	q := func() *gorm.DB {
		return moderatedBy(db.WithContext(ctx).Table("chat_requests AS r"), moderatorID)
	}

	if err := q().Count(&st.Count).Error; err != nil {
		return ReceivedStats{}, err
	}
	if st.Count > 0 {
		// Latest row instead of MAX() to keep the integer type in SQLite.
		var row struct {
			UpdateTime int64
		}
		if err := q().Select("r.update_time AS update_time").Order("r.update_time DESC").Limit(1).Scan(&row).Error; err != nil {
			return ReceivedStats{}, err
		}
		st.MaxUpdateTime = row.UpdateTime

		err := q().
			Where("EXISTS (SELECT 1 FROM json_each(r.readed_list) WHERE json_each.value = ?)", moderatorID).
			Count(&st.ReadCount).Error
		if err != nil {
			return ReceivedStats{}, err
		}
	}

	var notice struct {
		UpdateTime int64
		Unread     int64
	}
	err := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Select("update_time, unread").
		Where("user_id = ? AND type = ?", moderatorID, domain.SessionChatroomNotice).
		Order("id ASC").
		Limit(1).
		Scan(&notice).Error
	if err != nil {
		return ReceivedStats{}, err
	}
	st.NoticeTime, st.NoticeUnread = notice.UpdateTime, notice.Unread
	return st, nil
}
