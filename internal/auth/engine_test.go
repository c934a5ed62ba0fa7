package auth

import (
	"testing"

	"github.com/lumindm/greeter/internal/protocol"
)

type sentMessage struct {
	kind    protocol.RequestKind
	payload []byte
}

type recorder struct {
	sent     []sentMessage
	prompts  []string
	types    []PromptType
	messages []string
	complete int
}

func (r *recorder) Send(msg []byte) error {
	kind, payload := protocol.ParseHeader(msg)
	r.sent = append(r.sent, sentMessage{protocol.RequestKind(kind), payload})
	return nil
}

func (r *recorder) ShowPrompt(text string, t PromptType) {
	r.prompts = append(r.prompts, text)
	r.types = append(r.types, t)
}

func (r *recorder) ShowMessage(text string, t MessageType) {
	r.messages = append(r.messages, text)
}

func (r *recorder) AuthenticationComplete() { r.complete++ }

func newTestEngine() (*Engine, *recorder) {
	rec := &recorder{}
	return NewEngine(rec, rec), rec
}

func promptPayload(seq uint32, style uint32, text string) *protocol.Decoder {
	msg := protocol.NewReply(protocol.PromptAuth).
		WriteInt(seq).
		WriteInt(1).
		WriteInt(style).WriteString(text).
		Bytes()
	_, payload := protocol.ParseHeader(msg)
	return protocol.NewDecoder(payload)
}

func endPayload(seq, code uint32) *protocol.Decoder {
	msg := protocol.NewReply(protocol.EndAuth).WriteInt(seq).WriteInt(code).Bytes()
	_, payload := protocol.ParseHeader(msg)
	return protocol.NewDecoder(payload)
}

func TestLoginSendsSequencedRequest(t *testing.T) {
	e, rec := newTestEngine()
	e.Login("alice")

	if len(rec.sent) != 1 || rec.sent[0].kind != protocol.Login {
		t.Fatalf("sent = %+v, want one LOGIN", rec.sent)
	}
	d := protocol.NewDecoder(rec.sent[0].payload)
	if seq := d.ReadInt(); seq != 1 {
		t.Fatalf("sequence = %d, want 1", seq)
	}
	if user := d.ReadString(); user != "alice" {
		t.Fatalf("username = %q, want alice", user)
	}
	if !e.InAuthentication() {
		t.Fatal("engine not in authentication after Login")
	}
	if e.IsAuthenticated() {
		t.Fatal("engine authenticated before any reply")
	}
	if e.AuthenticationUser() != "alice" {
		t.Fatalf("authentication user = %q", e.AuthenticationUser())
	}
}

func TestStaleSequenceIgnored(t *testing.T) {
	e, rec := newTestEngine()
	e.Login("a") // sequence 1
	e.Login("b") // sequence 2, supersedes

	e.HandlePrompt(promptPayload(1, protocol.StyleSecret, "Password:"))
	if len(rec.prompts) != 0 {
		t.Fatalf("stale prompt produced events: %v", rec.prompts)
	}

	e.HandlePrompt(promptPayload(2, protocol.StyleSecret, "Password:"))
	if len(rec.prompts) != 1 || rec.prompts[0] != "Password:" {
		t.Fatalf("current prompt not delivered: %v", rec.prompts)
	}
	if rec.types[0] != PromptSecret {
		t.Fatalf("prompt type = %d, want secret", rec.types[0])
	}
}

func TestStaleEndIgnored(t *testing.T) {
	e, rec := newTestEngine()
	e.Login("a")
	e.Login("b")

	e.HandleEnd(endPayload(1, 0))
	if rec.complete != 0 {
		t.Fatal("stale END_AUTHENTICATION completed the session")
	}
	if e.IsAuthenticated() {
		t.Fatal("stale END_AUTHENTICATION set authenticated")
	}
}

func TestCancelSuppressesPrompts(t *testing.T) {
	e, rec := newTestEngine()
	e.Login("alice")
	e.Cancel()

	if last := rec.sent[len(rec.sent)-1]; last.kind != protocol.CancelAuth {
		t.Fatalf("last sent = %v, want CANCEL_AUTHENTICATION", last.kind)
	}
	if !e.InAuthentication() {
		t.Fatal("Cancel must not clear inProgress by itself")
	}

	// Same sequence number, but suppressed while cancelling.
	e.HandlePrompt(promptPayload(1, protocol.StyleSecret, "Password:"))
	if len(rec.prompts) != 0 {
		t.Fatalf("prompt delivered while cancelling: %v", rec.prompts)
	}

	// A fresh login clears the cancelling state.
	e.Login("bob")
	e.HandlePrompt(promptPayload(2, protocol.StyleSecret, "Password:"))
	if len(rec.prompts) != 1 {
		t.Fatalf("prompt after fresh login not delivered: %v", rec.prompts)
	}
}

func TestEndToEndLogin(t *testing.T) {
	e, rec := newTestEngine()

	e.Login("alice")
	d := protocol.NewDecoder(rec.sent[0].payload)
	if seq, user := d.ReadInt(), d.ReadString(); seq != 1 || user != "alice" {
		t.Fatalf("LOGIN = (%d, %q), want (1, alice)", seq, user)
	}

	e.HandlePrompt(promptPayload(1, protocol.StyleSecret, "Password:"))
	if len(rec.prompts) != 1 || rec.prompts[0] != "Password:" || rec.types[0] != PromptSecret {
		t.Fatalf("show-prompt = %v %v", rec.prompts, rec.types)
	}

	e.Respond("hunter2")
	last := rec.sent[len(rec.sent)-1]
	if last.kind != protocol.ContinueAuth {
		t.Fatalf("respond sent %v, want CONTINUE_AUTHENTICATION", last.kind)
	}
	d = protocol.NewDecoder(last.payload)
	if count, resp := d.ReadInt(), d.ReadString(); count != 1 || resp != "hunter2" {
		t.Fatalf("CONTINUE_AUTHENTICATION = (%d, %q), want (1, hunter2)", count, resp)
	}

	e.HandleEnd(endPayload(1, 0))
	if !e.IsAuthenticated() {
		t.Fatal("not authenticated after return code 0")
	}
	if e.InAuthentication() {
		t.Fatal("still in authentication after END_AUTHENTICATION")
	}
	if rec.complete != 1 {
		t.Fatalf("authentication-complete fired %d times, want 1", rec.complete)
	}
	if e.AuthenticationUser() != "alice" {
		t.Fatalf("authentication user = %q, want alice", e.AuthenticationUser())
	}
}

func TestFailedAuthenticationClearsUser(t *testing.T) {
	e, _ := newTestEngine()
	e.Login("alice")
	e.HandleEnd(endPayload(1, 7))

	if e.IsAuthenticated() {
		t.Fatal("authenticated after nonzero return code")
	}
	if e.AuthenticationUser() != "" {
		t.Fatalf("user = %q after failure, want empty", e.AuthenticationUser())
	}
}

func TestGuestLogin(t *testing.T) {
	e, rec := newTestEngine()
	e.LoginAsGuest()

	if rec.sent[0].kind != protocol.LoginAsGuest {
		t.Fatalf("sent %v, want LOGIN_AS_GUEST", rec.sent[0].kind)
	}
	d := protocol.NewDecoder(rec.sent[0].payload)
	if seq := d.ReadInt(); seq != 1 {
		t.Fatalf("sequence = %d, want 1", seq)
	}
	if e.AuthenticationUser() != "" {
		t.Fatalf("guest login recorded user %q", e.AuthenticationUser())
	}
}

func TestMessageStylesRouted(t *testing.T) {
	e, rec := newTestEngine()
	e.Login("alice")

	msg := protocol.NewReply(protocol.PromptAuth).
		WriteInt(1).
		WriteInt(2).
		WriteInt(protocol.StyleError).WriteString("Login incorrect").
		WriteInt(protocol.StyleInfo).WriteString("3 failed attempts").
		Bytes()
	_, payload := protocol.ParseHeader(msg)
	e.HandlePrompt(protocol.NewDecoder(payload))

	if len(rec.prompts) != 0 {
		t.Fatalf("non-input styles produced prompts: %v", rec.prompts)
	}
	if len(rec.messages) != 2 || rec.messages[0] != "Login incorrect" || rec.messages[1] != "3 failed attempts" {
		t.Fatalf("messages = %v", rec.messages)
	}
}

func TestStartSession(t *testing.T) {
	e, rec := newTestEngine()
	e.Login("alice")
	e.HandleEnd(endPayload(1, 0))
	e.StartSession("gnome")

	last := rec.sent[len(rec.sent)-1]
	if last.kind != protocol.StartSession {
		t.Fatalf("sent %v, want START_SESSION", last.kind)
	}
	d := protocol.NewDecoder(last.payload)
	if s := d.ReadString(); s != "gnome" {
		t.Fatalf("session = %q, want gnome", s)
	}
}
