// Package handlers exposes the REST read side of the group chat and the
// websocket upgrade endpoint.
//
//   - GET  /chat/requests          (received join requests, paginated, ETag)
//   - GET  /chat/requests/{id}     (one received join request)
//   - PUT  /chat/requests/read     (clear the unread marker)
//   - GET  /chatrooms/{id}/messages
//   - GET  /ws                     (websocket session)
//
// Handlers are transport-thin: they validate input, call application
// services and translate results into HTTP responses. Every route expects
// middleware.Identity upstream.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/http/middleware"
	"github.com/tbourn/go-group-chat/internal/realtime"
	"github.com/tbourn/go-group-chat/internal/session"
	"github.com/tbourn/go-group-chat/internal/utils"
)

// ChatRequestService is the join-request side consumed by the handlers.
type ChatRequestService interface {
	ListReceived(ctx context.Context, userID int64, page, pageSize int) ([]domain.ChatRequestDetail, int64, error)
	GetReceived(ctx context.Context, requestID, userID int64) (*domain.ChatRequestDetail, error)
	MarkAllRead(ctx context.Context, userID int64) error
}

// ChatroomService is the message history side consumed by the handlers.
type ChatroomService interface {
	ListMessages(ctx context.Context, userID, chatroomID int64, page, pageSize int) ([]domain.MessageDetail, error)
}

// SessionServer runs one websocket session to completion.
type SessionServer interface {
	Serve(ctx context.Context, conn session.Conn, userID int64)
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	requests  ChatRequestService
	chatrooms ChatroomService
	sessions  SessionServer

	// db backs the ETag pre-check; nil disables it.
	db *gorm.DB

	upgrader *upgrader
	wsCfg    realtime.ConnConfig
}

// Options carries the optional parts of Handlers.
type Options struct {
	DB             *gorm.DB
	AllowedOrigins []string // websocket Origin allowlist; empty allows any
	Conn           realtime.ConnConfig // zero value means realtime.DefaultConnConfig
}

// New constructs Handlers bound to the given services.
func New(requests ChatRequestService, chatrooms ChatroomService, sessions SessionServer, opt Options) *Handlers {
	if opt.Conn == (realtime.ConnConfig{}) {
		opt.Conn = realtime.DefaultConnConfig()
	}
	return &Handlers{
		requests:  requests,
		chatrooms: chatrooms,
		sessions:  sessions,
		db:        opt.DB,
		upgrader:  newUpgrader(opt.AllowedOrigins),
		wsCfg:     opt.Conn,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// pageOf reads the page and page_size query params.
func pageOf(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// userID returns the identity resolved by middleware.Identity. A route
// mounted without it answers 401.
func userID(c *gin.Context) (int64, bool) {
	uid, ok := middleware.UserIDFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing user identity")
	}
	return uid, ok
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, name, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" must be a positive integer")
		return 0, false
	}
	return id, true
}
