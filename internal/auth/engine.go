// Package auth implements the authentication session state machine that
// drives login, guest login, multi-step credential prompting, cancellation,
// and session start against the daemon.
//
// Exactly one logical session is active at a time. Every Login or
// LoginAsGuest call increments a sequence number and supersedes whatever
// was in progress; daemon replies tagged with an older sequence number are
// provably stale and dropped without comment.
package auth

import (
	"log/slog"

	"github.com/lumindm/greeter/internal/protocol"
)

// PromptType classifies a prompt surfaced to the caller.
type PromptType int

const (
	PromptQuestion PromptType = iota // input shown as typed
	PromptSecret                     // input hidden (passwords)
)

// MessageType classifies an informational message surfaced to the caller.
type MessageType int

const (
	MessageInfo MessageType = iota
	MessageError
)

// Events receives the engine's notifications. All callbacks run on the
// goroutine that delivered the triggering daemon message.
type Events interface {
	// ShowPrompt asks the caller to collect one input and eventually
	// call Respond with it.
	ShowPrompt(text string, t PromptType)
	// ShowMessage displays text without expecting input.
	ShowMessage(text string, t MessageType)
	// AuthenticationComplete fires after every END_AUTHENTICATION;
	// check Engine.IsAuthenticated for the outcome.
	AuthenticationComplete()
}

// Sender carries an encoded message to the daemon. Write failures are
// the sender's concern; the engine treats every send as best effort.
type Sender interface {
	Send(msg []byte) error
}

// Engine is the authentication session state machine.
type Engine struct {
	sender Sender
	events Events

	sequence      uint32
	user          string
	inProgress    bool
	authenticated bool
	cancelling    bool
}

// NewEngine returns an idle engine sending through sender and reporting
// through events.
func NewEngine(sender Sender, events Events) *Engine {
	return &Engine{sender: sender, events: events}
}

// Login starts authentication for a user. An empty username asks the
// daemon to prompt for one. Allowed in any state: a session already in
// progress is superseded, not rejected.
func (e *Engine) Login(username string) {
	e.begin(username)
	slog.Debug("starting authentication", "user", username, "sequence", e.sequence)
	e.send(protocol.NewRequest(protocol.Login).
		WriteInt(e.sequence).
		WriteString(username).
		Bytes())
}

// LoginAsGuest starts authentication for the guest account.
func (e *Engine) LoginAsGuest() {
	e.begin("")
	slog.Debug("starting guest authentication", "sequence", e.sequence)
	e.send(protocol.NewRequest(protocol.LoginAsGuest).
		WriteInt(e.sequence).
		Bytes())
}

func (e *Engine) begin(username string) {
	e.cancelling = false
	e.sequence++
	e.inProgress = true
	e.authenticated = false
	e.user = username
}

// Respond answers the most recent input prompt. Only a single response
// is ever sent per call even when a prompt batch requested several; the
// daemon pairs responses to the PAM conversation by count, so the count
// field stays at one. State is unchanged.
func (e *Engine) Respond(response string) {
	slog.Debug("providing response to daemon")
	e.send(protocol.NewRequest(protocol.ContinueAuth).
		WriteInt(1).
		WriteString(response).
		Bytes())
}

// Cancel aborts the authentication in progress. Prompts for the current
// sequence number are suppressed until the daemon acknowledges with
// END_AUTHENTICATION or a new Login supersedes the session. Safe to call
// when nothing is pending.
func (e *Engine) Cancel() {
	e.cancelling = true
	e.send(protocol.NewRequest(protocol.CancelAuth).Bytes())
}

// StartSession asks the daemon to start the named session for the
// authenticated user. An empty name selects the daemon's default.
func (e *Engine) StartSession(session string) {
	slog.Debug("starting session", "session", session)
	e.send(protocol.NewRequest(protocol.StartSession).
		WriteString(session).
		Bytes())
}

// HandlePrompt processes a PROMPT_AUTHENTICATION payload. Stale replies
// and replies received while cancelling are dropped.
func (e *Engine) HandlePrompt(d *protocol.Decoder) {
	sequence := d.ReadInt()
	if sequence != e.sequence {
		slog.Debug("ignoring prompt with stale sequence number", "sequence", sequence)
		return
	}
	if e.cancelling {
		slog.Debug("ignoring prompt while cancelling")
		return
	}

	n := d.ReadInt()
	slog.Debug("prompting user", "messages", n)
	for i := uint32(0); i < n; i++ {
		style := d.ReadInt()
		text := d.ReadString()
		if d.Truncated() {
			slog.Warn("prompt batch truncated", "index", i)
			return
		}
		switch style {
		case protocol.StyleSecret:
			e.events.ShowPrompt(text, PromptSecret)
		case protocol.StyleVisible:
			e.events.ShowPrompt(text, PromptQuestion)
		case protocol.StyleError:
			e.events.ShowMessage(text, MessageError)
		case protocol.StyleInfo:
			e.events.ShowMessage(text, MessageInfo)
		default:
			slog.Warn("unknown prompt style", "style", style)
		}
	}
}

// HandleEnd processes an END_AUTHENTICATION payload. Stale replies are
// dropped; otherwise the session terminates with authenticated set from
// the return code, the target user cleared on failure, and the
// completion event emitted before inProgress drops.
func (e *Engine) HandleEnd(d *protocol.Decoder) {
	sequence := d.ReadInt()
	code := d.ReadInt()
	if sequence != e.sequence {
		slog.Debug("ignoring end authentication with stale sequence number", "sequence", sequence)
		return
	}

	slog.Debug("authentication complete", "code", code)
	e.cancelling = false
	e.authenticated = code == 0
	if !e.authenticated {
		e.user = ""
	}
	e.events.AuthenticationComplete()
	e.inProgress = false
}

func (e *Engine) send(msg []byte) {
	if err := e.sender.Send(msg); err != nil {
		slog.Warn("error writing to daemon", "error", err)
	}
}

// InAuthentication reports whether an authentication is in progress.
func (e *Engine) InAuthentication() bool { return e.inProgress }

// IsAuthenticated reports whether the last authentication succeeded.
func (e *Engine) IsAuthenticated() bool { return e.authenticated }

// AuthenticationUser returns the user being authenticated, or the empty
// string for guest, prompted, or failed sessions.
func (e *Engine) AuthenticationUser() string { return e.user }
