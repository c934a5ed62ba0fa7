// Package protocol implements the binary wire format spoken between the
// greeter and the display manager daemon over their private channel.
//
// Every message is an 8-byte header followed by the payload:
//
//	[0-3] kind           uint32 big-endian
//	[4-7] payload_length uint32 big-endian
//
// Integers are unsigned 32-bit big-endian. Strings are a 4-byte big-endian
// length followed by that many raw bytes, no terminator. Message kinds are
// numbered independently per direction.
package protocol

// HeaderSize is the fixed size of the message header.
const HeaderSize = 8

// RequestKind identifies a greeter-to-daemon message.
type RequestKind uint32

const (
	// Connect opens the session: payload is the greeter protocol version.
	Connect RequestKind = iota
	// Login starts authentication for a user: sequence number + username.
	// An empty username asks the daemon to prompt for one.
	Login
	// LoginAsGuest starts authentication for the guest account: sequence number.
	LoginAsGuest
	// ContinueAuth answers an authentication prompt: response count + responses.
	ContinueAuth
	// StartSession starts the given session for the authenticated user.
	// An empty name selects the daemon's default.
	StartSession
	// CancelAuth aborts the authentication in progress. Empty payload.
	CancelAuth
)

// ReplyKind identifies a daemon-to-greeter message.
type ReplyKind uint32

const (
	// Connected acknowledges Connect: daemon version + hint name/value
	// pairs repeated until the end of the payload.
	Connected ReplyKind = iota
	// Quit tells the greeter to exit. Empty payload.
	Quit
	// PromptAuth delivers a batch of authentication prompts: sequence
	// number, count, then (style, text) per prompt.
	PromptAuth
	// EndAuth finishes authentication: sequence number + return code
	// (zero means authenticated).
	EndAuth
	// SessionFailed reports that the requested session did not start.
	// Empty payload.
	SessionFailed
)

// Prompt styles carried inside PromptAuth. The values are the PAM
// conversation message styles the daemon relays verbatim.
const (
	StyleSecret  uint32 = 1 // input with echo off
	StyleVisible uint32 = 2 // input with echo on
	StyleError   uint32 = 3 // error text, no input expected
	StyleInfo    uint32 = 4 // informational text, no input expected
)

func (k RequestKind) String() string {
	switch k {
	case Connect:
		return "CONNECT"
	case Login:
		return "LOGIN"
	case LoginAsGuest:
		return "LOGIN_AS_GUEST"
	case ContinueAuth:
		return "CONTINUE_AUTHENTICATION"
	case StartSession:
		return "START_SESSION"
	case CancelAuth:
		return "CANCEL_AUTHENTICATION"
	}
	return "UNKNOWN"
}

func (k ReplyKind) String() string {
	switch k {
	case Connected:
		return "CONNECTED"
	case Quit:
		return "QUIT"
	case PromptAuth:
		return "PROMPT_AUTHENTICATION"
	case EndAuth:
		return "END_AUTHENTICATION"
	case SessionFailed:
		return "SESSION_FAILED"
	}
	return "UNKNOWN"
}
