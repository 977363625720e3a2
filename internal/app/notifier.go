package app

import (
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/domain"
)

// Notifier fans one event out to every listed participant except the
// originator. Delivery order is unspecified; a peer without a live
// channel is skipped without aborting delivery to the others.
type Notifier struct {
	reg *Registry
}

func NewNotifier(reg *Registry) *Notifier {
	return &Notifier{reg: reg}
}

func (n *Notifier) Broadcast(participants []domain.ParticipantID, exclude domain.ParticipantID, v any) {
	sent := 0
	for _, pid := range participants {
		if pid == exclude {
			continue
		}
		n.reg.Send(pid, v)
		sent++
	}
	log.Debug().Str("module", "app.notifier").Str("exclude", string(exclude)).Int("recipients", sent).Msg("fan-out")
}
