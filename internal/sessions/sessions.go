// Package sessions enumerates the desktop sessions a user can log into,
// scanning a directory of .desktop descriptor files once and serving the
// result from memory.
package sessions

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

// DefaultDir is where session descriptors live on most hosts.
const DefaultDir = "/usr/share/xsessions"

// Session is one installed desktop session.
type Session struct {
	Key     string // descriptor filename without .desktop
	Name    string // localized display name
	Comment string // localized description, may be empty
}

// Cache is the lazily-populated session list. Safe for concurrent use.
type Cache struct {
	dir string

	mu       sync.Mutex
	loaded   bool
	sessions []*Session
}

// NewCache returns an unpopulated cache scanning dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// List returns the sessions sorted by display name. A missing or
// unreadable directory yields an empty list, not an error.
func (c *Cache) List() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.sessions = scan(c.dir)
		c.loaded = true
	}
	out := make([]*Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// ByKey returns the session with the given descriptor key, or nil.
func (c *Cache) ByKey(key string) *Session {
	for _, s := range c.List() {
		if s.Key == key {
			return s
		}
	}
	return nil
}

func scan(dir string) []*Session {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("failed to open sessions directory", "dir", dir, "error", err)
		return nil
	}

	var out []*Session
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".desktop") {
			continue
		}
		path := filepath.Join(dir, name)
		slog.Debug("loading session", "path", path)

		s, ok := parseDescriptor(path)
		if ok {
			out = append(out, s)
		}
	}
	sortByName(out)
	return out
}

// parseDescriptor loads one .desktop file. Descriptors flagged NoDisplay
// are skipped silently; descriptors without a resolvable Name are
// skipped with a warning.
func parseDescriptor(path string) (*Session, bool) {
	cfg, err := ini.Load(path)
	if err != nil {
		slog.Warn("failed to load session file", "path", path, "error", err)
		return nil, false
	}

	entry := cfg.Section("Desktop Entry")
	if entry.Key("NoDisplay").MustBool(false) {
		return nil, false
	}

	name := localizedValue(entry, "Name")
	if name == "" {
		slog.Warn("session has no name", "path", path)
		return nil, false
	}
	comment := localizedValue(entry, "Comment")

	key := strings.TrimSuffix(filepath.Base(path), ".desktop")
	slog.Debug("loaded session", "key", key, "name", name)
	return &Session{Key: key, Name: name, Comment: comment}, true
}

// localizedValue resolves a localizable key against the current locale:
// Key[ll_CC] first, then Key[ll], then the unlocalized Key.
func localizedValue(section *ini.Section, key string) string {
	locale := os.Getenv("LC_MESSAGES")
	if locale == "" {
		locale = os.Getenv("LANG")
	}
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}

	if locale != "" {
		if v := section.Key(key + "[" + locale + "]").String(); v != "" {
			return v
		}
		if i := strings.Index(locale, "_"); i >= 0 {
			if v := section.Key(key + "[" + locale[:i] + "]").String(); v != "" {
				return v
			}
		}
	}
	return section.Key(key).String()
}

func sortByName(list []*Session) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}
