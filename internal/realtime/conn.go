package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Handler receives decoded client events. Calls for one connection are
// sequential, in arrival order.
type Handler interface {
	HandleEvent(ctx context.Context, token, event string, data json.RawMessage)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, token, event string, data json.RawMessage)

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, token, event string, data json.RawMessage) {
	f(ctx, token, event, data)
}

// ConnConfig tunes a single connection.
type ConnConfig struct {
	SendBuffer      int
	MaxMessageBytes int64
	PingPeriod      time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	EventRPS        float64
	EventBurst      int
}

// DefaultConnConfig mirrors the config package defaults.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		SendBuffer:      256,
		MaxMessageBytes: 64 << 10,
		PingPeriod:      54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		EventRPS:        10,
		EventBurst:      20,
	}
}

// inbound is the wire shape of a client frame.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Conn is one websocket client. It owns a read pump (running in the
// goroutine that calls Run) and a write pump goroutine.
type Conn struct {
	token   string
	ws      *websocket.Conn
	cfg     ConnConfig
	log     zerolog.Logger
	limiter *rate.Limiter

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn, token string, cfg ConnConfig, log zerolog.Logger) *Conn {
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}
	return &Conn{
		token:   token,
		ws:      ws,
		cfg:     cfg,
		log:     log.With().Str("conn", token).Logger(),
		limiter: rate.NewLimiter(rate.Limit(cfg.EventRPS), cfg.EventBurst),
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}
}

// Token returns the connection's opaque id.
func (c *Conn) Token() string { return c.token }

// Enqueue implements Sender. It never blocks.
func (c *Conn) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close implements Sender. The write pump sends a close frame and tears the
// socket down, which also ends the read pump.
func (c *Conn) Close() {
	c.once.Do(func() { close(c.done) })
}

// Run pumps the connection until the client goes away, ctx is cancelled or
// Close is called. Every decoded event goes to h. Run returns after both
// pumps have stopped and the socket is closed.
//
// Run on a Conn that is already closed writes the frames still queued, sends
// the close frame and returns.
func (c *Conn) Run(ctx context.Context, h Handler) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	c.readPump(ctx, h)
	c.Close()
	wg.Wait()
}

func (c *Conn) readPump(ctx context.Context, h Handler) {
	c.ws.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.Allow() {
			wsInbound.WithLabelValues("rate_limited").Inc()
			c.log.Warn().Msg("event rate exceeded; discarding frame")
			continue
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			wsInbound.WithLabelValues("invalid").Inc()
			c.log.Debug().Err(err).Msg("invalid frame")
			continue
		}
		wsInbound.WithLabelValues("accepted").Inc()
		h.HandleEvent(ctx, c.token, msg.Event, msg.Data)
	}
}

func (c *Conn) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.cfg.MaxMessageBytes).Msg("frame exceeded read limit")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug().Msg("client closed")
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug().Msg("connection closed")
	default:
		c.log.Debug().Err(err).Msg("read error")
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(frame) {
				c.Close()
				return
			}
			// Drain what is already queued, one message per frame.
			for n := len(c.send); n > 0; n-- {
				if !c.write(<-c.send) {
					c.Close()
					return
				}
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes the frames queued before Close. Enqueue refuses new ones
// once done is closed, so the queue only shrinks here.
func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.send:
			if !c.write(frame) {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(frame []byte) bool {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Debug().Err(err).Msg("write failed")
		return false
	}
	return true
}

// shutdownPoll paces Hub.Shutdown while it waits for connections to leave.
func shutdownPoll() <-chan time.Time { return time.After(10 * time.Millisecond) }
