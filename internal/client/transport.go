// Package client implements the participant side of the relay protocol:
// a signaling transport (HTTP submission plus SSE push stream) and a
// per-peer negotiation manager built on pion.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mvolkov/huddle/internal/core"
)

// signalRequest is the wire shape of a signal submission, mirroring the
// relay's envelope.
type signalRequest struct {
	Type      string                     `json:"type"`
	From      string                     `json:"from"`
	To        string                     `json:"to,omitempty"`
	MeetingID string                     `json:"meetingId,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Enabled   *bool                      `json:"enabled,omitempty"`
}

type signalResponse struct {
	Success      bool     `json:"success"`
	Participants []string `json:"participants"`
	Error        string   `json:"error"`
}

// Transport talks to one relay instance.
type Transport struct {
	BaseURL string
	HTTP    *http.Client

	// Join retry policy. Only transport-level failures are retried;
	// an error response from the relay is final.
	JoinRetries int
	JoinBackoff time.Duration

	// Delay before redialing a dropped event stream.
	ReconnectDelay time.Duration
}

func NewTransport(baseURL string) *Transport {
	return &Transport{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		HTTP:           &http.Client{Timeout: 10 * time.Second},
		JoinRetries:    3,
		JoinBackoff:    500 * time.Millisecond,
		ReconnectDelay: 5 * time.Second,
	}
}

// Send submits one signal. Negotiation messages are never retried: if
// the recipient went offline mid-exchange the session is expected to
// fail and be cleaned up, not resumed.
func (t *Transport) Send(ctx context.Context, req signalRequest) error {
	resp, err := t.post(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("signal %s rejected: %s", req.Type, resp.Error)
	}
	return nil
}

// Join submits a join-meeting request with bounded retry and backoff on
// transport failure, and returns the other participants already in the
// meeting.
func (t *Transport) Join(ctx context.Context, from, meetingID string) ([]string, error) {
	req := signalRequest{Type: string(core.KindJoinMeeting), From: from, MeetingID: meetingID}
	backoff := t.JoinBackoff
	var lastErr error
	for attempt := 0; attempt <= t.JoinRetries; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Str("module", "client.transport").Int("attempt", attempt).Msg("retrying join")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		resp, err := t.post(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("join rejected: %s", resp.Error)
		}
		return resp.Participants, nil
	}
	return nil, fmt.Errorf("could not join meeting %s: %w", meetingID, lastErr)
}

func (t *Transport) post(ctx context.Context, req signalRequest) (*signalResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/api/signal", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp signalResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode signal response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK && resp.Error == "" {
		resp.Error = httpResp.Status
	}
	return &resp, nil
}

// Listen consumes the push channel for userID, emitting one decoded
// event payload per message. A dropped stream is redialed after
// ReconnectDelay until ctx is done. Listen closes out on return.
func (t *Transport) Listen(ctx context.Context, userID string, out chan<- []byte) {
	defer close(out)
	streamURL := t.BaseURL + "/api/signal/events?userId=" + url.QueryEscape(userID)
	for {
		if err := t.stream(ctx, streamURL, out); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("module", "client.transport").Msg("event stream dropped, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.ReconnectDelay):
		}
	}
}

func (t *Transport) stream(ctx context.Context, streamURL string, out chan<- []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	// no client timeout on the long-lived stream; ctx governs its life
	httpClient := &http.Client{}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				select {
				case out <- data:
				case <-ctx.Done():
					return ctx.Err()
				}
				data = nil
			}
		case strings.HasPrefix(line, "data: "):
			data = append(data, line[len("data: "):]...)
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("event stream closed")
}
