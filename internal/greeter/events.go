package greeter

import (
	"github.com/lumindm/greeter/internal/auth"
	"github.com/lumindm/greeter/internal/users"
)

// listeners is the typed event registry of one Greeter. Any number of
// callbacks may subscribe per event; they run in registration order on
// the goroutine that produced the event, after the greeter has released
// its own lock, so callbacks may call back into the Greeter.
type listeners struct {
	connected        []func()
	showPrompt       []func(text string, t auth.PromptType)
	showMessage      []func(text string, t auth.MessageType)
	authComplete     []func()
	sessionFailed    []func()
	autologinExpired []func()
	userAdded        []func(u *users.User)
	userChanged      []func(u *users.User)
	userRemoved      []func(u *users.User)
	quit             []func()
	disconnected     []func(err error)
}

// OnConnected subscribes to the completion of the daemon handshake.
func (g *Greeter) OnConnected(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.connected = append(g.listeners.connected, f)
}

// OnShowPrompt subscribes to authentication prompts. The callback
// should collect input and call Respond.
func (g *Greeter) OnShowPrompt(f func(text string, t auth.PromptType)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.showPrompt = append(g.listeners.showPrompt, f)
}

// OnShowMessage subscribes to informational and error messages.
func (g *Greeter) OnShowMessage(f func(text string, t auth.MessageType)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.showMessage = append(g.listeners.showMessage, f)
}

// OnAuthenticationComplete subscribes to the end of authentication;
// check IsAuthenticated for the outcome.
func (g *Greeter) OnAuthenticationComplete(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.authComplete = append(g.listeners.authComplete, f)
}

// OnSessionFailed subscribes to session start failures.
func (g *Greeter) OnSessionFailed(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.sessionFailed = append(g.listeners.sessionFailed, f)
}

// OnAutologinTimerExpired subscribes to the autologin timer. The
// callback is expected to start a login for the autologin user.
func (g *Greeter) OnAutologinTimerExpired(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.autologinExpired = append(g.listeners.autologinExpired, f)
}

// OnUserAdded subscribes to accounts appearing in the user list.
func (g *Greeter) OnUserAdded(f func(u *users.User)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.userAdded = append(g.listeners.userAdded, f)
}

// OnUserChanged subscribes to account detail changes.
func (g *Greeter) OnUserChanged(f func(u *users.User)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.userChanged = append(g.listeners.userChanged, f)
}

// OnUserRemoved subscribes to accounts leaving the user list.
func (g *Greeter) OnUserRemoved(f func(u *users.User)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.userRemoved = append(g.listeners.userRemoved, f)
}

// OnQuit subscribes to the daemon's quit request. After it fires the
// greeter stops processing input; the application should exit.
func (g *Greeter) OnQuit(f func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.quit = append(g.listeners.quit, f)
}

// OnDisconnected subscribes to unexpected loss of the daemon channel
// (stream closed without a prior QUIT). Unrecoverable.
func (g *Greeter) OnDisconnected(f func(err error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners.disconnected = append(g.listeners.disconnected, f)
}
