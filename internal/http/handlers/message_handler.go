package handlers

import (
	"github.com/gin-gonic/gin"
)

// ListMessages godoc
// @ID          listChatroomMessages
// @Summary     List chatroom messages (paginated)
// @Description Returns a page of a chatroom's records, newest first. Only members may read; others get code -1.
// @Tags        Chatrooms
// @Produce     json
//
// @Param       X-User-ID  header  int  true   "User ID"         example(42)
// @Param       id         path    int  true   "Chatroom ID"     example(3)
// @Param       page       query   int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query   int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} services.Result{data=[]domain.MessageDetail}
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatrooms/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	chatroomID, ok := pathID(c, "id", "chatroom id")
	if !ok {
		return
	}
	pg := pageOf(c)
	items, err := h.chatrooms.ListMessages(c.Request.Context(), uid, chatroomID, pg.Number, pg.Size)
	result(c, items, err)
}
