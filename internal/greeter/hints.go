package greeter

import "strconv"

// Hints is the name/value configuration the daemon sends once in the
// CONNECTED reply. It is populated during the handshake and immutable
// for the life of the connection. Accessors apply documented defaults:
// booleans are false and the autologin timeout is 0 unless the hint is
// present and valid.
type Hints map[string]string

// Get returns the raw value for a hint, or "" when unset.
func (h Hints) Get(name string) string { return h[name] }

// DefaultSession returns the session the daemon suggests by default.
func (h Hints) DefaultSession() string { return h["default-session"] }

// HideUsers reports whether the user list should not be shown.
func (h Hints) HideUsers() bool { return h["hide-users"] == "true" }

// HasGuestAccount reports whether guest sessions are supported.
func (h Hints) HasGuestAccount() bool { return h["has-guest-account"] == "true" }

// SelectUser returns the user to preselect, or "".
func (h Hints) SelectUser() string { return h["select-user"] }

// SelectGuest reports whether the guest account should be preselected.
func (h Hints) SelectGuest() bool { return h["select-guest"] == "true" }

// AutologinUser returns the account to log into when the autologin
// timer expires, or "".
func (h Hints) AutologinUser() string { return h["autologin-user"] }

// AutologinGuest reports whether the guest account should be logged
// into when the autologin timer expires.
func (h Hints) AutologinGuest() bool { return h["autologin-guest"] == "true" }

// AutologinTimeout returns the autologin delay in seconds: 0 when the
// hint is absent or malformed, and negative values clamped to 0.
func (h Hints) AutologinTimeout() int {
	value := h["autologin-timeout"]
	if value == "" {
		return 0
	}
	timeout, err := strconv.Atoi(value)
	if err != nil || timeout < 0 {
		return 0
	}
	return timeout
}
