package signal

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/domain"
)

// HandleCreateMeeting serves POST /api/meetings. The host is joined to
// the new meeting in the same step, so the meeting is never empty.
func (ctl *Controller) HandleCreateMeeting(c *gin.Context) {
	var body struct {
		HostID string `json:"hostId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Host ID is required"})
		return
	}
	host, err := domain.ParseParticipantID(body.HostID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Host ID is required"})
		return
	}

	id, err := ctl.Directory.CreateMeeting(c.Request.Context(), host)
	if err != nil {
		log.Error().Err(err).Str("module", "signal.meetings").Msg("create meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create meeting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetingId": id})
}

// HandleListParticipants serves GET /api/meetings?meetingId=.
func (ctl *Controller) HandleListParticipants(c *gin.Context) {
	meetingID := c.Query("meetingId")
	if meetingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Meeting ID is required"})
		return
	}
	participants, err := ctl.Directory.ListParticipants(c.Request.Context(), domain.MeetingID(meetingID))
	if err != nil {
		log.Error().Err(err).Str("module", "signal.meetings").Msg("list participants")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get meeting participants"})
		return
	}
	out := make([]string, 0, len(participants))
	for _, pid := range participants {
		out = append(out, string(pid))
	}
	c.JSON(http.StatusOK, gin.H{"participants": out})
}
