// Package greeter is the client-side runtime a login UI builds on. A
// Greeter owns the private channel to the display manager daemon, the
// authentication engine driving the login conversation, and the cached
// host resources the UI queries (users, languages, keyboard layouts,
// sessions). It surfaces daemon activity through typed event listeners.
//
// All public operations are safe for concurrent use; event callbacks
// run one at a time, after the greeter has released its internal lock,
// so they may call back into the Greeter.
package greeter

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/lumindm/greeter/internal/auth"
	"github.com/lumindm/greeter/internal/keyboard"
	"github.com/lumindm/greeter/internal/locales"
	"github.com/lumindm/greeter/internal/power"
	"github.com/lumindm/greeter/internal/protocol"
	"github.com/lumindm/greeter/internal/sessions"
	"github.com/lumindm/greeter/internal/state"
	"github.com/lumindm/greeter/internal/transport"
	"github.com/lumindm/greeter/internal/users"
	"github.com/lumindm/greeter/internal/version"
)

// Options configures a Greeter. Zero values select the standard system
// paths and backends.
type Options struct {
	PasswdPath    string
	UsersConfPath string
	SessionsDir   string
	// Store persists UI state across logins. Optional.
	Store state.Store
	// Keyboard overrides the host layout registry. Optional.
	Keyboard keyboard.Registry
}

// Greeter is the facade over the daemon channel and the host resource
// caches.
type Greeter struct {
	mu        sync.Mutex
	listeners listeners
	// pending collects event callbacks queued while mu is held; they
	// run once the lock is released.
	pending []func()

	conn          *transport.Conn
	engine        *auth.Engine
	hints         Hints
	connectedSeen bool
	quitSeen      bool
	loginTimer    *time.Timer
	newTimer      func(d time.Duration, f func()) *time.Timer

	users    *users.Cache
	sessions *sessions.Cache
	locales  *locales.Cache
	keyboard *keyboard.Cache
	store    state.Store

	powerOnce sync.Once
	power     *power.Manager

	hostOnce sync.Once
	hostname string
}

// New returns a disconnected Greeter. Call Connect to open the daemon
// channel.
func New(opts Options) *Greeter {
	if opts.PasswdPath == "" {
		opts.PasswdPath = users.DefaultPasswdPath
	}
	if opts.UsersConfPath == "" {
		opts.UsersConfPath = users.DefaultConfPath
	}
	if opts.SessionsDir == "" {
		opts.SessionsDir = sessions.DefaultDir
	}
	if opts.Keyboard == nil {
		opts.Keyboard = &keyboard.XKBRegistry{}
	}

	g := &Greeter{
		hints:    Hints{},
		newTimer: time.AfterFunc,
		sessions: sessions.NewCache(opts.SessionsDir),
		locales:  locales.NewCache(nil),
		keyboard: keyboard.NewCache(opts.Keyboard),
		store:    opts.Store,
	}
	g.users = users.NewCache(opts.PasswdPath, opts.UsersConfPath, userEvents{g})
	return g
}

// Connect opens the daemon channel on the inherited file descriptors,
// sends the CONNECT handshake, and starts the receive loop.
func (g *Greeter) Connect() error {
	conn, err := transport.OpenFromEnv()
	if err != nil {
		return err
	}
	return g.ConnectTo(conn)
}

// ConnectTo runs the handshake over an already-open channel and starts
// the receive loop. Useful when the channel is something other than the
// inherited descriptors, such as a test harness.
func (g *Greeter) ConnectTo(conn *transport.Conn) error {
	g.attach(conn)

	slog.Debug("connecting to display manager")
	msg := protocol.NewRequest(protocol.Connect).WriteString(version.Protocol).Bytes()
	// Best effort: no retry, the daemon notices a dead greeter itself.
	if err := conn.Send(msg); err != nil {
		slog.Warn("error writing to daemon", "error", err)
	}

	go g.readLoop()
	return nil
}

func (g *Greeter) attach(conn *transport.Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn = conn
	g.engine = auth.NewEngine(conn, engineEvents{g})
}

func (g *Greeter) readLoop() {
	for {
		msg, err := g.conn.Poll()
		if err != nil {
			g.mu.Lock()
			quit := g.quitSeen
			cbs := slices.Clone(g.listeners.disconnected)
			g.mu.Unlock()
			if !quit {
				slog.Warn("lost connection to daemon", "error", err)
				for _, f := range cbs {
					f(err)
				}
			}
			return
		}
		if msg == nil {
			continue
		}
		g.dispatch(msg)

		g.mu.Lock()
		quit := g.quitSeen
		g.mu.Unlock()
		if quit {
			return
		}
	}
}

// dispatch routes one complete message. Events queued during handling
// fire after the lock is released.
func (g *Greeter) dispatch(msg []byte) {
	kind, payload := protocol.ParseHeader(msg)
	d := protocol.NewDecoder(payload)

	g.mu.Lock()
	switch protocol.ReplyKind(kind) {
	case protocol.Connected:
		g.handleConnectedLocked(d)
	case protocol.PromptAuth:
		g.engine.HandlePrompt(d)
	case protocol.EndAuth:
		g.engine.HandleEnd(d)
	case protocol.SessionFailed:
		slog.Debug("session failed to start")
		g.queueLocked(g.listeners.sessionFailed...)
	case protocol.Quit:
		slog.Debug("got quit request from daemon")
		g.quitSeen = true
		g.queueLocked(g.listeners.quit...)
	default:
		slog.Warn("unknown message from daemon", "kind", kind)
	}
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, f := range pending {
		f()
	}
}

func (g *Greeter) handleConnectedLocked(d *protocol.Decoder) {
	daemonVersion := d.ReadString()
	if g.connectedSeen {
		slog.Warn("ignoring duplicate CONNECTED from daemon")
		return
	}

	hints := Hints{}
	for d.Remaining() > 0 {
		name := d.ReadString()
		value := d.ReadString()
		if d.Truncated() {
			slog.Warn("CONNECTED hints truncated")
			break
		}
		hints[name] = value
	}
	g.hints = hints
	g.connectedSeen = true
	slog.Debug("connected to daemon", "version", daemonVersion, "hints", len(hints))

	if timeout := hints.AutologinTimeout(); timeout > 0 {
		slog.Debug("setting autologin timer", "seconds", timeout)
		g.loginTimer = g.newTimer(time.Duration(timeout)*time.Second, g.autologinExpired)
	}
	g.queueLocked(g.listeners.connected...)
}

func (g *Greeter) autologinExpired() {
	g.mu.Lock()
	g.loginTimer = nil
	cbs := slices.Clone(g.listeners.autologinExpired)
	g.mu.Unlock()
	for _, f := range cbs {
		f()
	}
}

func (g *Greeter) queueLocked(fns ...func()) {
	g.pending = append(g.pending, fns...)
}

// Login starts authentication for a user. An empty username asks the
// daemon to prompt for one. Supersedes any authentication in progress.
func (g *Greeter) Login(username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		slog.Warn("login before connect")
		return
	}
	g.engine.Login(username)
}

// LoginWithUserPrompt starts authentication, letting the daemon prompt
// for the username.
func (g *Greeter) LoginWithUserPrompt() { g.Login("") }

// LoginAsGuest starts authentication for the guest account.
func (g *Greeter) LoginAsGuest() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		slog.Warn("guest login before connect")
		return
	}
	g.engine.LoginAsGuest()
}

// Respond answers the most recent authentication prompt.
func (g *Greeter) Respond(response string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		return
	}
	g.engine.Respond(response)
}

// CancelAuthentication aborts the authentication in progress.
func (g *Greeter) CancelAuthentication() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		return
	}
	g.engine.Cancel()
}

// StartSession asks the daemon to start the named session for the
// authenticated user; an empty name selects the daemon's default. The
// choice is persisted for the user when a state store is configured.
func (g *Greeter) StartSession(session string) {
	g.mu.Lock()
	if g.engine == nil {
		g.mu.Unlock()
		return
	}
	g.engine.StartSession(session)
	username := g.engine.AuthenticationUser()
	store := g.store
	g.mu.Unlock()

	if store != nil && username != "" && session != "" {
		if err := store.SetLastSession(context.Background(), username, session); err != nil {
			slog.Warn("failed to persist session choice", "error", err)
		}
	}
}

// StartDefaultSession starts the daemon's default session.
func (g *Greeter) StartDefaultSession() { g.StartSession("") }

// CancelTimedLogin disarms the autologin timer. Idempotent.
func (g *Greeter) CancelTimedLogin() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loginTimer != nil {
		g.loginTimer.Stop()
		g.loginTimer = nil
	}
}

// InAuthentication reports whether an authentication is in progress.
func (g *Greeter) InAuthentication() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine != nil && g.engine.InAuthentication()
}

// IsAuthenticated reports whether the last authentication succeeded.
func (g *Greeter) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine != nil && g.engine.IsAuthenticated()
}

// AuthenticationUser returns the user being authenticated, or "".
func (g *Greeter) AuthenticationUser() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.engine == nil {
		return ""
	}
	return g.engine.AuthenticationUser()
}

// Hints returns the connection hints received in the handshake. Empty
// until the connected event fires. The returned map is a copy; mutating
// it does not affect the greeter.
func (g *Greeter) Hints() Hints {
	g.mu.Lock()
	defer g.mu.Unlock()
	return maps.Clone(g.hints)
}

// Users returns the login-capable accounts, sorted by display name.
func (g *Greeter) Users() []*users.User { return g.users.List() }

// NumUsers returns the number of login-capable accounts.
func (g *Greeter) NumUsers() int { return g.users.Len() }

// UserByName returns the account with the given username, or nil.
func (g *Greeter) UserByName(name string) *users.User { return g.users.ByName(name) }

// Languages returns the installed locale identifiers.
func (g *Greeter) Languages() []string { return g.locales.List() }

// DefaultLanguage returns the locale the greeter runs under.
func (g *Greeter) DefaultLanguage() string { return locales.Default() }

// Layouts returns the available keyboard layouts.
func (g *Greeter) Layouts() []keyboard.Layout { return g.keyboard.List() }

// Layout returns the active keyboard layout.
func (g *Greeter) Layout() string { return g.keyboard.Layout() }

// SetLayout asks the host to switch keyboard layout.
func (g *Greeter) SetLayout(name string) error { return g.keyboard.SetLayout(name) }

// Sessions returns the installed desktop sessions.
func (g *Greeter) Sessions() []*sessions.Session { return g.sessions.List() }

// Hostname returns the host this greeter is displaying for.
func (g *Greeter) Hostname() string {
	g.hostOnce.Do(func() {
		name, err := os.Hostname()
		if err != nil {
			slog.Warn("failed to read hostname", "error", err)
			return
		}
		g.hostname = name
	})
	return g.hostname
}

// LastUser returns the most recently authenticated user from the state
// store, or "" when no store is configured or nothing is recorded.
func (g *Greeter) LastUser() string {
	if g.store == nil {
		return ""
	}
	user, err := g.store.LastUser(context.Background())
	if err != nil {
		slog.Warn("failed to read last user", "error", err)
		return ""
	}
	return user
}

// LastSession returns the session the user last started, or "".
func (g *Greeter) LastSession(username string) string {
	if g.store == nil {
		return ""
	}
	session, err := g.store.LastSession(context.Background(), username)
	if err != nil {
		slog.Warn("failed to read last session", "error", err)
		return ""
	}
	return session
}

func (g *Greeter) powerManager() *power.Manager {
	g.powerOnce.Do(func() {
		if g.power == nil {
			g.power = power.Connect()
		}
	})
	return g.power
}

// CanSuspend reports whether the greeter may suspend the system.
func (g *Greeter) CanSuspend() bool { return g.powerManager().CanSuspend() }

// Suspend triggers a system suspend.
func (g *Greeter) Suspend() { g.powerManager().Suspend() }

// CanHibernate reports whether the greeter may hibernate the system.
func (g *Greeter) CanHibernate() bool { return g.powerManager().CanHibernate() }

// Hibernate triggers a system hibernate.
func (g *Greeter) Hibernate() { g.powerManager().Hibernate() }

// CanRestart reports whether the greeter may restart the system.
func (g *Greeter) CanRestart() bool { return g.powerManager().CanRestart() }

// Restart triggers a system restart.
func (g *Greeter) Restart() { g.powerManager().Restart() }

// CanShutdown reports whether the greeter may shut the system down.
func (g *Greeter) CanShutdown() bool { return g.powerManager().CanShutdown() }

// Shutdown triggers a system shutdown.
func (g *Greeter) Shutdown() { g.powerManager().Shutdown() }

// Close releases the caches and the daemon channel.
func (g *Greeter) Close() error {
	g.CancelTimedLogin()
	g.users.Close() //nolint:errcheck
	if g.power != nil {
		g.power.Close() //nolint:errcheck
	}
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// engineEvents adapts engine notifications to queued greeter events.
// Methods run while the greeter lock is held by dispatch.
type engineEvents struct{ g *Greeter }

func (e engineEvents) ShowPrompt(text string, t auth.PromptType) {
	g := e.g
	for _, f := range g.listeners.showPrompt {
		g.queueLocked(func() { f(text, t) })
	}
}

func (e engineEvents) ShowMessage(text string, t auth.MessageType) {
	g := e.g
	for _, f := range g.listeners.showMessage {
		g.queueLocked(func() { f(text, t) })
	}
}

func (e engineEvents) AuthenticationComplete() {
	g := e.g
	if g.store != nil && g.engine.IsAuthenticated() {
		if username := g.engine.AuthenticationUser(); username != "" {
			store := g.store
			g.queueLocked(func() {
				if err := store.SetLastUser(context.Background(), username); err != nil {
					slog.Warn("failed to persist last user", "error", err)
				}
			})
		}
	}
	g.queueLocked(g.listeners.authComplete...)
}

// userEvents adapts user cache notifications to greeter events. The
// cache notifies without holding its own lock or the greeter's.
type userEvents struct{ g *Greeter }

func (e userEvents) UserAdded(u *users.User) {
	for _, f := range e.g.userListeners().userAdded {
		f(u)
	}
}

func (e userEvents) UserChanged(u *users.User) {
	for _, f := range e.g.userListeners().userChanged {
		f(u)
	}
}

func (e userEvents) UserRemoved(u *users.User) {
	for _, f := range e.g.userListeners().userRemoved {
		f(u)
	}
}

func (g *Greeter) userListeners() listeners {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listeners
}
