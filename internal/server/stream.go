package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/boincwatch/internal/broadcast"
	"github.com/rileyhilliard/boincwatch/internal/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames.
	maxMessageSize = 512
)

// Results streams every snapshot as a server-sent event whose data is the
// snapshot's JSON. The queue is attached for the lifetime of the request.
func (s *Server) Results(c *gin.Context) {
	q := s.pool.Attach()
	defer s.pool.Detach(q)
	s.log.Debug("sse subscriber %s from %s", q.ID(), c.ClientIP())

	h := c.Writer.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	var id uint64
	for {
		snap, err := q.Get(ctx)
		if err != nil {
			s.log.Debug("sse subscriber %s done: %v", q.ID(), err)
			return
		}
		id++
		if err := sse.Encode(c.Writer, sse.Event{Id: strconv.FormatUint(id, 10), Data: snap}); err != nil {
			s.log.Warn("sse subscriber %s: %s", q.ID(), errors.Summary(err))
			return
		}
		c.Writer.Flush()
	}
}

// WebSocket upgrades the request and pushes every snapshot as one JSON text
// message.
func (s *Server) WebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade from %s failed: %v", c.ClientIP(), err)
		return
	}

	q := s.pool.Attach()
	defer s.pool.Detach(q)
	s.log.Debug("ws subscriber %s from %s", q.ID(), c.ClientIP())

	sub := &subscriber{conn: conn, queue: q, server: s}
	sub.run(c.Request.Context())
}

// subscriber is one websocket connection fed from a queue.
type subscriber struct {
	conn   *websocket.Conn
	queue  *broadcast.Queue
	server *Server
}

// run blocks until the peer goes away, ctx is cancelled or a write fails.
func (sub *subscriber) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sub.readPump()
		cancel()
	}()
	sub.writePump(ctx)
}

// readPump discards incoming messages and keeps the read deadline fresh.
// It returns once the peer closes or stops answering pings.
func (sub *subscriber) readPump() {
	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sub.server.log.Debug("ws subscriber %s read error: %v", sub.queue.ID(), err)
			}
			return
		}
	}
}

func (sub *subscriber) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-sub.queue.C():
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(snap); err != nil {
				return
			}

		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = sub.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
