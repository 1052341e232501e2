package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-group-chat/internal/http/middleware"
	"github.com/tbourn/go-group-chat/internal/realtime"
)

type upgrader struct {
	websocket.Upgrader
}

// newUpgrader returns an upgrader that accepts requests without an Origin
// header (non-browser clients) and, when allowed is non-empty, only the
// listed browser origins.
func newUpgrader(allowed []string) *upgrader {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return &upgrader{websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(set) == 0 {
				return true
			}
			_, ok := set[strings.TrimRight(origin, "/")]
			return ok
		},
	}}
}

// Connect godoc
// @ID          connectSocket
// @Summary     Open a websocket session
// @Description Upgrades to a websocket. The server sends init first, then accepts client events as {"event","data"} frames.
// @Tags        Realtime
//
// @Param       X-User-ID  header  int  false  "User ID"                       example(42)
// @Param       uid        query   int  false  "User ID (browser clients)"     example(42)
//
// @Success     101  {string} string "Switching Protocols"
// @Failure     400  {object} handlers.ErrorResponse "Not a websocket request"
// @Failure     401  {object} handlers.ErrorResponse "Missing identity"
// @Failure     403  {string} string "Origin not allowed"
// @Router      /ws [get]
func (h *Handlers) Connect(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if !c.IsWebsocket() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "websocket upgrade required")
		return
	}

	lg := middleware.LoggerFrom(c)
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := realtime.NewConn(ws, uuid.NewString(), h.wsCfg, *lg)
	h.sessions.Serve(c.Request.Context(), conn, uid)
}
