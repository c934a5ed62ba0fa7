// Package state defines the persistence interface for greeter UI state:
// the user selected at the last successful login and the session each
// user last started. Implementations satisfy the Store interface so the
// greeter can swap backends without changing behavior.
package state

import "context"

// Store is the persistence interface for greeter state.
// Implementations must be safe for concurrent use.
type Store interface {
	// SetLastUser records the user of the most recent successful
	// authentication.
	SetLastUser(ctx context.Context, username string) error
	// LastUser returns the most recently authenticated user, or ""
	// when none has been recorded.
	LastUser(ctx context.Context) (string, error)

	// SetLastSession records the session a user started.
	SetLastSession(ctx context.Context, username, session string) error
	// LastSession returns the session the user last started, or ""
	// when none has been recorded.
	LastSession(ctx context.Context, username string) (string, error)

	// Close releases database resources.
	Close() error
}
