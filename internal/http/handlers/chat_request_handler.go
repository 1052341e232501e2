package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-chat/internal/domain"
	"github.com/tbourn/go-group-chat/internal/repo"
)

// ListChatRequestsResponse wraps a page of received join requests.
type ListChatRequestsResponse struct {
	Requests   []domain.ChatRequestDetail `json:"requests"`
	Pagination Pagination                 `json:"pagination"`
}

// ListChatRequests godoc
// @ID          listChatRequests
// @Summary     List received join requests (paginated)
// @Description Returns a page of the join requests the current user can moderate, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        ChatRequests
// @Produce     json
//
// @Param       X-User-ID      header  int     true  "User ID"                      example(42)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"   example(W/\"chat_requests:42:3:1700000000000:0\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} services.Result{data=handlers.ListChatRequestsResponse}
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/requests [get]
func (h *Handlers) ListChatRequests(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	pg := pageOf(c)

	// ETag pre-check (best effort).
	if h.db != nil {
		if st, err := repo.ReceivedChatRequestsStats(ctx, h.db, uid); err == nil {
			etag := fmt.Sprintf(`W/"chat_requests:%d:%d:%d:%d:%d:%d:%d:%d"`,
				uid, st.Count, st.ReadCount, st.MaxUpdateTime, st.NoticeTime, st.NoticeUnread, pg.Number, pg.Size)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.requests.ListReceived(ctx, uid, pg.Number, pg.Size)
	if err != nil {
		result(c, nil, err)
		return
	}
	result(c, ListChatRequestsResponse{
		Requests: items,
		Pagination: Pagination{
			Page:       pg.Number,
			PageSize:   pg.Size,
			Total:      total,
			TotalPages: pg.TotalPages(total),
			HasNext:    pg.HasNext(total),
		},
	}, nil)
}

// GetChatRequest godoc
// @ID          getChatRequest
// @Summary     Get a received join request
// @Description Returns one join request the current user can moderate. Missing and not-visible requests both yield code -1.
// @Tags        ChatRequests
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "User ID"     example(42)
// @Param       id         path    int  true  "Request ID"  example(7)
//
// @Success     200  {object} services.Result{data=domain.ChatRequestDetail}
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/requests/{id} [get]
func (h *Handlers) GetChatRequest(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "request id")
	if !ok {
		return
	}
	d, err := h.requests.GetReceived(c.Request.Context(), id, uid)
	result(c, d, err)
}

// MarkChatRequestsRead godoc
// @ID          markChatRequestsRead
// @Summary     Mark received join requests as read
// @Description Adds the current user to the read list of every request in chatrooms they moderate and clears their notice unread count.
// @Tags        ChatRequests
// @Produce     json
//
// @Param       X-User-ID  header  int  true  "User ID"  example(42)
//
// @Success     200  {object} services.Result
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/requests/read [put]
func (h *Handlers) MarkChatRequestsRead(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	result(c, nil, h.requests.MarkAllRead(c.Request.Context(), uid))
}
