package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
	"github.com/mvolkov/huddle/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn is the websocket flavor of the push channel, for clients whose
// proxies buffer event streams. Same registry contract as sseConn.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Event

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(ev core.Event) error {
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

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleWS serves GET /api/ws/signal?userId=. The socket doubles as a
// signal submission path: inbound frames are decoded with the same
// closed union as the POST endpoint and answered in-band (join-ack or
// error events).
func (ctl *Controller) HandleWS(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		userID = c.GetString("client_token")
	}
	pid, err := domain.ParseParticipantID(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.ws").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal.ws").Str("pid", string(pid)).Msg("push channel opened")

	conn := &wsConn{conn: ws, send: make(chan core.Event, ctl.Cfg.PushBuffer)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctl.Registry.Register(pid, conn, cancel)

	ctl.sendEvent(conn, core.ConnectedEvent{
		Type:      core.EventConnected,
		UserID:    string(pid),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, pid, conn)

	ctl.Router.Disconnect(pid, conn)
	conn.Close()
	log.Info().Str("module", "signal.ws").Str("pid", string(pid)).Msg("push channel closed")
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, ev); err != nil {
				log.Warn().Err(err).Str("module", "signal.ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, pid domain.ParticipantID, c *wsConn) {
	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal.ws").Str("pid", string(pid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleInband(ctx, pid, c, data)
	}
}

func (ctl *Controller) handleInband(ctx context.Context, pid domain.ParticipantID, c *wsConn, data []byte) {
	sig, err := core.DecodeSignal(data)
	if err != nil {
		ctl.sendEvent(c, core.ErrorEvent{Type: core.EventError, Error: err.Error()})
		return
	}

	switch s := sig.(type) {
	case core.JoinSignal:
		if !ctl.joinLimiter.Allow(s.From) {
			ctl.sendEvent(c, core.ErrorEvent{Type: core.EventError, Error: "too many join attempts"})
			return
		}
		participants, err := ctl.Router.Join(ctx, s)
		if err != nil {
			ctl.sendEvent(c, core.ErrorEvent{Type: core.EventError, Error: err.Error()})
			return
		}
		out := make([]string, 0, len(participants))
		for _, p := range participants {
			out = append(out, string(p))
		}
		ctl.sendEvent(c, core.JoinAckEvent{Type: core.EventJoinAck, MeetingID: string(s.Meeting), Participants: out})

	case core.LeaveSignal:
		if err := ctl.Router.Leave(ctx, s); err != nil {
			ctl.sendEvent(c, core.ErrorEvent{Type: core.EventError, Error: err.Error()})
		}

	case core.ForwardSignal:
		ctl.Router.Forward(ctx, s)

	case core.ToggleSignal:
		if err := ctl.Router.Toggle(ctx, s); err != nil {
			ctl.sendEvent(c, core.ErrorEvent{Type: core.EventError, Error: err.Error()})
		}
	}
}

func (ctl *Controller) sendEvent(c core.PushConn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.ws").Msg("sendEvent marshal")
		return
	}
	_ = c.TrySend(core.Event(data))
}
