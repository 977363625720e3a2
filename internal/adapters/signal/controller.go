// Package signal holds the relay's boundary controllers: the HTTP signal
// submission endpoint and the two push-channel transports (SSE and
// WebSocket) that feed the connection registry.
package signal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/app"
	"github.com/mvolkov/huddle/internal/config"
	"github.com/mvolkov/huddle/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	errClosed       = errors.New("connection closed")
)

type Controller struct {
	Router    *app.Router
	Registry  *app.Registry
	Directory core.Directory
	Cfg       *config.Config

	joinLimiter *RateLimiter
}

func NewController(router *app.Router, reg *app.Registry, dir core.Directory, cfg *config.Config) *Controller {
	return &Controller{
		Router:      router,
		Registry:    reg,
		Directory:   dir,
		Cfg:         cfg,
		joinLimiter: NewRateLimiter(cfg.JoinRateLimit, cfg.JoinRateInterval),
	}
}

// HandleSignal serves POST /api/signal: decode, validate, route. The
// response is {"success":true} plus, for joins, the other participants;
// errors map to 400 (malformed), 404 (no such meeting) or 500.
func (ctl *Controller) HandleSignal(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	sig, err := core.DecodeSignal(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad signal")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	switch s := sig.(type) {
	case core.JoinSignal:
		if !ctl.joinLimiter.Allow(s.From) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many join attempts"})
			return
		}
		participants, err := ctl.Router.Join(ctx, s)
		if err != nil {
			ctl.fail(c, err, "failed to join meeting")
			return
		}
		out := make([]string, 0, len(participants))
		for _, pid := range participants {
			out = append(out, string(pid))
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "participants": out})

	case core.LeaveSignal:
		if err := ctl.Router.Leave(ctx, s); err != nil {
			ctl.fail(c, err, "failed to leave meeting")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})

	case core.ForwardSignal:
		ctl.Router.Forward(ctx, s)
		c.JSON(http.StatusOK, gin.H{"success": true})

	case core.ToggleSignal:
		if err := ctl.Router.Toggle(ctx, s); err != nil {
			ctl.fail(c, err, "failed to deliver toggle")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func (ctl *Controller) fail(c *gin.Context, err error, generic string) {
	if errors.Is(err, core.ErrMeetingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": core.ErrMeetingNotFound.Error()})
		return
	}
	log.Error().Err(err).Str("module", "signal").Msg(generic)
	c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
}
