// Package domain defines the persistence models for users, chatrooms,
// memberships, join requests, session list entries, friend requests and
// chat records. These types are mapped with GORM and form the directory
// store of the group-chat backend.
//
// All timestamps are Unix milliseconds (int64) and all identities are int64.
package domain

import (
	"gorm.io/datatypes"
)

// Role is a member's rank inside a chatroom.
type Role int8

const (
	RoleHost    Role = 0
	RoleManager Role = 1
	RoleMember  Role = 2
)

// IsModerator reports whether the role may handle join requests.
func (r Role) IsModerator() bool { return r == RoleHost || r == RoleManager }

// RequestStatus is the lifecycle state of a join or friend request.
//
// StatusDeleted and StatusIgnored are reserved; no operation produces them.
type RequestStatus int8

const (
	StatusWait    RequestStatus = 0
	StatusAgree   RequestStatus = 1
	StatusReject  RequestStatus = 2
	StatusDeleted RequestStatus = 3
	StatusIgnored RequestStatus = 4
)

// ChatroomType distinguishes multi-member groups from two-person chats.
type ChatroomType int8

const (
	ChatroomGroup   ChatroomType = 0
	ChatroomPrivate ChatroomType = 1
)

// SessionType distinguishes a chatroom conversation entry from the
// join-request notice entry of a moderator's session list.
type SessionType int8

const (
	SessionChatroom       SessionType = 0
	SessionChatroomNotice SessionType = 1
)

// RecordType is the kind of a persisted chat record.
type RecordType int8

const (
	RecordText           RecordType = 0
	RecordChatInvitation RecordType = 1
)

// User is the collaborator identity record. Only the fields the admission
// and presence flows read are modeled.
type User struct {
	ID         int64  `json:"id"          gorm:"primaryKey;autoIncrement"`
	Username   string `json:"username"    gorm:"type:varchar(32);not null;uniqueIndex"`
	Nickname   string `json:"nickname"    gorm:"type:varchar(32);not null"`
	Avatar     string `json:"avatar"      gorm:"type:varchar(255);not null;default:''"` // object key
	LoginTime  int64  `json:"login_time"  gorm:"not null;default:0"`
	CreateTime int64  `json:"create_time" gorm:"autoCreateTime:milli"`
	UpdateTime int64  `json:"update_time" gorm:"autoUpdateTime:milli"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Chatroom is a group or private conversation.
type Chatroom struct {
	ID          int64        `json:"id"          gorm:"primaryKey;autoIncrement"`
	Name        string       `json:"name"        gorm:"type:varchar(64);not null"`
	Description *string      `json:"description" gorm:"type:varchar(255)"`
	Avatar      string       `json:"avatar"      gorm:"type:varchar(255);not null;default:''"`
	Type        ChatroomType `json:"type"        gorm:"not null;default:0;check:type IN (0,1)"`
	CreateTime  int64        `json:"create_time" gorm:"autoCreateTime:milli"`
	UpdateTime  int64        `json:"update_time" gorm:"autoUpdateTime:milli"`
}

// TableName returns the database table name for Chatroom.
func (Chatroom) TableName() string { return "chatrooms" }

// ChatMember records that a user belongs to a chatroom with a role.
// A user appears at most once per chatroom (unique index).
type ChatMember struct {
	ID         int64  `json:"id"          gorm:"primaryKey;autoIncrement"`
	ChatroomID int64  `json:"chatroom_id" gorm:"not null;uniqueIndex:ux_member_chatroom_user,priority:1"`
	UserID     int64  `json:"user_id"     gorm:"not null;index;uniqueIndex:ux_member_chatroom_user,priority:2"`
	Role       Role   `json:"role"        gorm:"not null;check:role IN (0,1,2)"`
	Nickname   string `json:"nickname"    gorm:"type:varchar(32);not null;default:''"`
	CreateTime int64  `json:"create_time" gorm:"autoCreateTime:milli"`
	UpdateTime int64  `json:"update_time" gorm:"autoUpdateTime:milli"`

	// Chatroom is the parent room. Memberships are cascade-deleted with it.
	Chatroom Chatroom `json:"-" gorm:"foreignKey:ChatroomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMember.
func (ChatMember) TableName() string { return "chat_members" }

// ChatRequest is an application to join a group chatroom.
//
// Fields:
//   - HandlerID: moderator who approved or rejected; set once, never changed.
//   - ReadedList: ids of moderators who have seen the request.
//   - RequestReason / RejectReason: normalized free text, nil when absent.
type ChatRequest struct {
	ID            int64                      `json:"id"             gorm:"primaryKey;autoIncrement"`
	ChatroomID    int64                      `json:"chatroom_id"    gorm:"not null;index:idx_request_chatroom_applicant,priority:1"`
	ApplicantID   int64                      `json:"applicant_id"   gorm:"not null;index:idx_request_chatroom_applicant,priority:2"`
	Status        RequestStatus              `json:"status"         gorm:"not null;default:0;check:status IN (0,1,2,3,4)"`
	RequestReason *string                    `json:"request_reason" gorm:"type:varchar(255)"`
	RejectReason  *string                    `json:"reject_reason"  gorm:"type:varchar(255)"`
	HandlerID     *int64                     `json:"handler_id"`
	ReadedList    datatypes.JSONSlice[int64] `json:"readed_list"`
	CreateTime    int64                      `json:"create_time"    gorm:"autoCreateTime:milli"`
	UpdateTime    int64                      `json:"update_time"    gorm:"autoUpdateTime:milli"`

	Chatroom Chatroom `json:"-" gorm:"foreignKey:ChatroomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatRequest.
func (ChatRequest) TableName() string { return "chat_requests" }

// HasRead reports whether uid is in the request's read list.
func (r *ChatRequest) HasRead(uid int64) bool {
	for _, id := range r.ReadedList {
		if id == uid {
			return true
		}
	}
	return false
}

// MarkRead appends uid to the read list if absent and reports whether it
// changed anything.
func (r *ChatRequest) MarkRead(uid int64) bool {
	if r.HasRead(uid) {
		return false
	}
	r.ReadedList = append(r.ReadedList, uid)
	return true
}

// ChatSession is one entry of a user's session list: either a chatroom
// conversation or the join-request notice feed (ChatroomID nil).
type ChatSession struct {
	ID         int64       `json:"id"          gorm:"primaryKey;autoIncrement"`
	UserID     int64       `json:"user_id"     gorm:"not null;index:idx_session_owner,priority:1"`
	Type       SessionType `json:"type"        gorm:"not null;default:0;index:idx_session_owner,priority:2"`
	ChatroomID *int64      `json:"chatroom_id" gorm:"index:idx_session_owner,priority:3"`
	Visible    bool        `json:"visible"     gorm:"not null"`
	Unread     int         `json:"unread"      gorm:"not null;default:0"`
	Sticky     bool        `json:"sticky"      gorm:"not null;default:false"`
	CreateTime int64       `json:"create_time" gorm:"autoCreateTime:milli"`
	UpdateTime int64       `json:"update_time" gorm:"autoUpdateTime:milli"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }

// FriendRequest is an application from SelfID to befriend TargetID.
type FriendRequest struct {
	ID            int64         `json:"id"             gorm:"primaryKey;autoIncrement"`
	SelfID        int64         `json:"self_id"        gorm:"not null;index:idx_friend_self_target,priority:1"`
	TargetID      int64         `json:"target_id"      gorm:"not null;index:idx_friend_self_target,priority:2"`
	TargetAlias   *string       `json:"target_alias"   gorm:"type:varchar(32)"`
	RequestReason *string       `json:"request_reason" gorm:"type:varchar(255)"`
	RejectReason  *string       `json:"reject_reason"  gorm:"type:varchar(255)"`
	Status        RequestStatus `json:"status"         gorm:"not null;default:0"`
	CreateTime    int64         `json:"create_time"    gorm:"autoCreateTime:milli"`
	UpdateTime    int64         `json:"update_time"    gorm:"autoUpdateTime:milli"`
}

// TableName returns the database table name for FriendRequest.
func (FriendRequest) TableName() string { return "friend_requests" }

// ChatRecord is a persisted chat message. Data holds the type-specific
// body as a JSON object.
type ChatRecord struct {
	ID         int64          `json:"id"          gorm:"primaryKey;autoIncrement"`
	ChatroomID int64          `json:"chatroom_id" gorm:"not null;index:idx_record_chatroom,priority:1"`
	UserID     *int64         `json:"user_id"`
	Type       RecordType     `json:"type"        gorm:"not null;default:0"`
	Data       datatypes.JSON `json:"data"`
	ReplyID    *int64         `json:"reply_id"`
	CreateTime int64          `json:"create_time" gorm:"autoCreateTime:milli;index:idx_record_chatroom,priority:2"`

	Chatroom Chatroom `json:"-" gorm:"foreignKey:ChatroomID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatRecord.
func (ChatRecord) TableName() string { return "chat_records" }

// All returns every model in migration order.
func All() []any {
	return []any{
		&User{}, &Chatroom{}, &ChatMember{}, &ChatRequest{},
		&ChatSession{}, &FriendRequest{}, &ChatRecord{},
	}
}
