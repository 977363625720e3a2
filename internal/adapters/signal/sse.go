package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

// sseConn is one participant's push channel over a server-sent event
// stream. Delivery is enqueue-or-drop; a full buffer reports
// backpressure instead of blocking the sender.
type sseConn struct {
	send chan core.Event

	mu     sync.RWMutex
	closed bool
}

func newSSEConn(buffer int) *sseConn {
	return &sseConn{send: make(chan core.Event, buffer)}
}

func (c *sseConn) TrySend(ev core.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	select {
	case c.send <- ev:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *sseConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// HandleEvents serves GET /api/signal/events?userId=: the long-lived
// push channel. The channel registers on open, immediately receives a
// synthetic connected ack with a server timestamp, and unregisters on
// termination (which starts the disconnect grace timer, not a leave).
func (ctl *Controller) HandleEvents(c *gin.Context) {
	pid, err := domain.ParseParticipantID(c.Query("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}
	log.Info().Str("module", "signal.sse").Str("pid", string(pid)).Msg("push channel opened")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	conn := newSSEConn(ctl.Cfg.PushBuffer)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	ctl.Registry.Register(pid, conn, cancel)
	defer func() {
		ctl.Router.Disconnect(pid, conn)
		conn.Close()
		log.Info().Str("module", "signal.sse").Str("pid", string(pid)).Msg("push channel closed")
	}()

	w := c.Writer
	writeEvent := func(ev core.Event) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", ev); err != nil {
			return false
		}
		w.Flush()
		return true
	}

	ack, _ := json.Marshal(core.ConnectedEvent{
		Type:      core.EventConnected,
		UserID:    string(pid),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if !writeEvent(ack) {
		return
	}

	heartbeat := time.NewTicker(ctl.Cfg.HeartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.send:
			if !ok {
				return
			}
			if !writeEvent(ev) {
				return
			}
		case <-heartbeat.C:
			// SSE comment line, ignored by clients but keeps idle
			// proxies from reaping the stream
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}
