// Package keyboard maintains the cache of keyboard layouts the greeter
// offers, backed by the host's layout registry. Enumeration happens once;
// switching the active layout is a side-effecting host operation that only
// updates the cached value when the host accepts it.
package keyboard

import (
	"fmt"
	"log/slog"
	"sync"
)

// Layout is one entry of the host's layout registry.
type Layout struct {
	Name        string // registry identifier, e.g. "us"
	Description string // human-readable, e.g. "English (US)"
}

// Registry is the host keyboard configuration. Implementations must not
// cache; the Cache does.
type Registry interface {
	// Layouts enumerates the available layouts.
	Layouts() ([]Layout, error)
	// Active returns the identifier of the active layout.
	Active() (string, error)
	// Activate asks the host to switch to the named layout.
	Activate(name string) error
}

// Cache is the lazily-populated layout list plus the active layout.
// Safe for concurrent use.
type Cache struct {
	registry Registry

	mu      sync.Mutex
	loaded  bool
	layouts []Layout
	current string
}

// NewCache returns an unpopulated cache over registry.
func NewCache(registry Registry) *Cache {
	return &Cache{registry: registry}
}

// List returns the available layouts in registry order. A failing
// registry yields an empty list, not an error.
func (c *Cache) List() []Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	out := make([]Layout, len(c.layouts))
	copy(out, c.layouts)
	return out
}

// Layout returns the identifier of the active layout.
func (c *Cache) Layout() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	return c.current
}

// SetLayout asks the host to activate the named layout. On success the
// cached active layout updates; on failure it is retained and the error
// is logged as a warning (the only observable effect) and returned.
func (c *Cache) SetLayout(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()

	slog.Debug("setting keyboard layout", "layout", name)
	if err := c.registry.Activate(name); err != nil {
		slog.Warn("failed to activate keyboard layout", "layout", name, "error", err)
		return fmt.Errorf("keyboard: activate %s: %w", name, err)
	}
	c.current = name
	return nil
}

func (c *Cache) ensureLoadedLocked() {
	if c.loaded {
		return
	}
	layouts, err := c.registry.Layouts()
	if err != nil {
		slog.Warn("failed to enumerate keyboard layouts", "error", err)
	}
	c.layouts = layouts

	current, err := c.registry.Active()
	if err != nil {
		slog.Warn("failed to query active keyboard layout", "error", err)
	}
	c.current = current
	c.loaded = true
}
