// Package locales enumerates the locales installed on the host, once,
// by asking the system locale tool.
package locales

import (
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Runner abstracts the host command invocation so tests can substitute
// canned output.
type Runner func() ([]byte, error)

// localeList invokes the system locale tool.
func localeList() ([]byte, error) {
	return exec.Command("locale", "-a").Output()
}

// Cache is the lazily-populated locale list. Safe for concurrent use.
type Cache struct {
	run Runner

	mu      sync.Mutex
	loaded  bool
	locales []string
}

// NewCache returns an unpopulated cache. run may be nil to use the
// system locale tool.
func NewCache(run Runner) *Cache {
	if run == nil {
		run = localeList
	}
	return &Cache{run: run}
}

// List returns the installed locale identifiers in discovery order,
// excluding the C and POSIX sentinels. A failing locale tool yields an
// empty list, not an error.
func (c *Cache) List() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.locales = c.enumerate()
		c.loaded = true
	}
	out := make([]string, len(c.locales))
	copy(out, c.locales)
	return out
}

func (c *Cache) enumerate() []string {
	output, err := c.run()
	if err != nil {
		slog.Warn("failed to enumerate locales", "error", err)
		return nil
	}

	var out []string
	for _, line := range strings.FieldsFunc(string(output), func(r rune) bool { return r == '\n' || r == '\r' }) {
		code := strings.TrimSpace(line)
		if code == "" || code == "C" || code == "POSIX" {
			continue
		}
		out = append(out, code)
	}
	return out
}

// Default returns the locale the greeter itself runs under: $LANG,
// falling back to "C".
func Default() string {
	if lang := os.Getenv("LANG"); lang != "" {
		return lang
	}
	return "C"
}
