// Package power exposes the system power operations a greeter offers on
// its login screen: suspend and hibernate via UPower, restart and
// shutdown via ConsoleKit, both over the system bus. A missing bus or
// service degrades every capability to "not allowed"; nothing here is
// fatal to the greeter.
package power

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	upowerDest = "org.freedesktop.UPower"
	upowerPath = "/org/freedesktop/UPower"
	upowerIfc  = "org.freedesktop.UPower"

	consolekitDest = "org.freedesktop.ConsoleKit"
	consolekitPath = "/org/freedesktop/ConsoleKit/Manager"
	consolekitIfc  = "org.freedesktop.ConsoleKit.Manager"
)

// Manager issues power queries and actions over the system bus.
type Manager struct {
	conn *dbus.Conn
}

// Connect opens the system bus. The returned Manager is usable even
// when the bus is unavailable; all capabilities then report false.
func Connect() *Manager {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		slog.Warn("failed to connect to system bus", "error", err)
		return &Manager{}
	}
	return &Manager{conn: conn}
}

// Close releases the bus connection.
func (m *Manager) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// CanSuspend reports whether the greeter may suspend the system.
func (m *Manager) CanSuspend() bool {
	return m.query(upowerDest, upowerPath, upowerIfc, "SuspendAllowed")
}

// Suspend triggers a system suspend. Fire and forget.
func (m *Manager) Suspend() {
	m.call(upowerDest, upowerPath, upowerIfc, "Suspend")
}

// CanHibernate reports whether the greeter may hibernate the system.
func (m *Manager) CanHibernate() bool {
	return m.query(upowerDest, upowerPath, upowerIfc, "HibernateAllowed")
}

// Hibernate triggers a system hibernate. Fire and forget.
func (m *Manager) Hibernate() {
	m.call(upowerDest, upowerPath, upowerIfc, "Hibernate")
}

// CanRestart reports whether the greeter may restart the system.
func (m *Manager) CanRestart() bool {
	return m.query(consolekitDest, consolekitPath, consolekitIfc, "CanRestart")
}

// Restart triggers a system restart. Fire and forget.
func (m *Manager) Restart() {
	m.call(consolekitDest, consolekitPath, consolekitIfc, "Restart")
}

// CanShutdown reports whether the greeter may shut the system down.
func (m *Manager) CanShutdown() bool {
	return m.query(consolekitDest, consolekitPath, consolekitIfc, "CanStop")
}

// Shutdown triggers a system shutdown. Fire and forget.
func (m *Manager) Shutdown() {
	m.call(consolekitDest, consolekitPath, consolekitIfc, "Stop")
}

func (m *Manager) query(dest, path, ifc, method string) bool {
	if m.conn == nil {
		return false
	}
	var allowed bool
	obj := m.conn.Object(dest, dbus.ObjectPath(path))
	if err := obj.Call(ifc+"."+method, 0).Store(&allowed); err != nil {
		slog.Warn("power capability query failed", "method", method, "error", err)
		return false
	}
	return allowed
}

func (m *Manager) call(dest, path, ifc, method string) {
	if m.conn == nil {
		return
	}
	obj := m.conn.Object(dest, dbus.ObjectPath(path))
	if call := obj.Call(ifc+"."+method, 0); call.Err != nil {
		slog.Warn("power action failed", "method", method, "error", call.Err)
	}
}
