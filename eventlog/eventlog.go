// Package eventlog records user-facing dashboard events (button clicks,
// wizard phases, payment outcomes) for product analytics. Recording is
// strictly fire-and-forget: a broken analytics pipeline must never affect a
// user action, so every failure here is swallowed after a log line.
package eventlog // import "github.com/splunklabhq/splunklab/backend/services/eventlog"

import (
	"encoding/json"
	"time"

	"github.com/lithammer/shortuuid/v3"
	"github.com/logzio/logzio-go"

	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/types"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// Event is one analytics record.
type Event struct {
	Session   types.SessionID `json:"session"`
	UserEmail types.UserEmail `json:"user_email"`
	Action    string          `json:"action"`
	Title     string          `json:"title"`
	Details   string          `json:"details,omitempty"`
	Timestamp string          `json:"timestamp"`
	Env       string          `json:"environment"`
}

// sender is how events leave the process. It reuses the Logz.io queue the
// logging pipeline already maintains.
type sender interface {
	Send(payload []byte) error
}

// Recorder tags every event with a stable session id.
type Recorder struct {
	session types.SessionID
	sender  sender
}

// NewRecorder creates a Recorder with a fresh session id. When the Logz.io
// integration is disabled (localdev, missing token) events only go to the
// local log.
func NewRecorder() *Recorder {
	r := &Recorder{
		session: types.SessionID(shortuuid.New()),
	}
	if s := logger.SharedLogzioSender(); s != nil {
		r.sender = s
	}
	return r
}

// Session returns the recorder's session id.
func (r *Recorder) Session() types.SessionID {
	return r.session
}

// Record emits one event. It never returns an error and never blocks on the
// analytics pipeline.
func (r *Recorder) Record(email types.UserEmail, action string, title string, details string) {
	event := Event{
		Session:   r.session,
		UserEmail: email,
		Action:    action,
		Title:     title,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Env:       metadata.GetAppEnvironmentLowercase(),
	}

	logger.Infof("Event [%s] %s: %s", event.Action, event.Title, event.Details)

	if r.sender == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warningf("couldn't marshal analytics event: %s", err)
		return
	}
	if err := r.sender.Send(payload); err != nil {
		logger.Warningf("couldn't send analytics event: %s", err)
	}
}

// interface check against the real Logz.io sender
var _ sender = (*logzio.LogzioSender)(nil)
