// Package presence tracks which connection belongs to which user and which
// rooms each connection has joined. State is process-local and ephemeral:
// it is rebuilt from the directory store every time a client connects.
package presence

import (
	"sort"
	"strconv"
	"sync"
)

// ChatroomRoom is the room every member connection of a chatroom joins.
func ChatroomRoom(chatroomID int64) string {
	return "chatroom:" + strconv.FormatInt(chatroomID, 10)
}

// FriendRequestRoom receives friend-request notifications addressed to userID.
func FriendRequestRoom(userID int64) string {
	return "friend_request:" + strconv.FormatInt(userID, 10)
}

// ChatRequestRoom receives join-request notifications for moderator userID.
func ChatRequestRoom(userID int64) string {
	return "chat_request:" + strconv.FormatInt(userID, 10)
}

// Registry maps connection tokens to users and rooms. The zero value is not
// usable; call NewRegistry. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byToken map[string]int64               // token -> user
	byUser  map[int64]string               // user -> latest token
	rooms   map[string]map[string]struct{} // room -> tokens
	joined  map[string]map[string]struct{} // token -> rooms
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[string]int64),
		byUser:  make(map[int64]string),
		rooms:   make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Bind associates token with userID. A later Bind for the same user
// replaces the previous token as that user's connection; the old token
// keeps its rooms until it is unbound.
func (r *Registry) Bind(token string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byToken[token]; ok && prev != userID && r.byUser[prev] == token {
		delete(r.byUser, prev)
	}
	r.byToken[token] = userID
	r.byUser[userID] = token
}

// Unbind removes token, leaving every room it had joined, and returns those
// rooms sorted. Unknown tokens are a no-op.
func (r *Registry) Unbind(token string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var left []string
	for room := range r.joined[token] {
		left = append(left, room)
		r.leaveLocked(token, room)
	}
	delete(r.joined, token)

	if uid, ok := r.byToken[token]; ok {
		delete(r.byToken, token)
		if r.byUser[uid] == token {
			delete(r.byUser, uid)
		}
	}
	sort.Strings(left)
	return left
}

// FindConnection returns the current token of userID.
func (r *Registry) FindConnection(userID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byUser[userID]
	return t, ok
}

// UserOf returns the user bound to token.
func (r *Registry) UserOf(token string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uid, ok := r.byToken[token]
	return uid, ok
}

// JoinRoom adds token to room and reports whether token is bound. Joining
// twice is a no-op, and so is joining with a token already unbound, so a
// join racing a disconnect cannot leave entries behind.
func (r *Registry) JoinRoom(token, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, bound := r.byToken[token]; !bound {
		return false
	}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[token] = struct{}{}

	rs, ok := r.joined[token]
	if !ok {
		rs = make(map[string]struct{})
		r.joined[token] = rs
	}
	rs[room] = struct{}{}
	return true
}

// LeaveRoom removes token from room.
func (r *Registry) LeaveRoom(token, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(token, room)
	if rs := r.joined[token]; rs != nil {
		delete(rs, room)
		if len(rs) == 0 {
			delete(r.joined, token)
		}
	}
}

func (r *Registry) leaveLocked(token, room string) {
	members := r.rooms[room]
	if members == nil {
		return
	}
	delete(members, token)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}

// MembersOf returns a sorted snapshot of the tokens in room.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms[room]))
	for t := range r.rooms[room] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RoomsOf returns a sorted snapshot of the rooms token has joined.
func (r *Registry) RoomsOf(token string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.joined[token]))
	for room := range r.joined[token] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of bound tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}
