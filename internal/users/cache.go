package users

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Default system paths. Overridable for tests and non-standard hosts.
const (
	DefaultPasswdPath = "/etc/passwd"
	DefaultConfPath   = "/etc/lumin/users.conf"
)

// debounce coalesces the burst of write events a password database
// update produces into a single reload.
const debounce = 100 * time.Millisecond

// Listener receives account change notifications. Reloads emit added,
// then changed, then removed, each group sorted by display name. The
// very first population emits nothing.
type Listener interface {
	UserAdded(u *User)
	UserChanged(u *User)
	UserRemoved(u *User)
}

// Cache is the lazily-populated account list. Safe for concurrent use.
type Cache struct {
	passwdPath string
	confPath   string
	listener   Listener

	mu      sync.Mutex
	loaded  bool
	users   []*User
	watcher *fsnotify.Watcher
}

// NewCache returns an unpopulated cache reading from passwdPath and
// filtering per confPath. listener may be nil.
func NewCache(passwdPath, confPath string, listener Listener) *Cache {
	return &Cache{passwdPath: passwdPath, confPath: confPath, listener: listener}
}

// EnsureLoaded populates the cache if it has never been loaded and
// starts watching the account database for changes. Errors reading the
// database leave the cache empty, not failed. The first population
// notifies nothing.
func (c *Cache) EnsureLoaded() {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return
	}
	c.reloadLocked()
	c.watchLocked()
	c.loaded = true
	c.mu.Unlock()
}

// List returns the accounts sorted by display name. The returned slice
// is the caller's; the *User values stay owned by the cache.
func (c *Cache) List() []*User {
	c.EnsureLoaded()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*User, len(c.users))
	copy(out, c.users)
	return out
}

// Len returns the number of login-capable accounts.
func (c *Cache) Len() int {
	c.EnsureLoaded()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.users)
}

// ByName returns the account with the given username, or nil.
func (c *Cache) ByName(name string) *User {
	c.EnsureLoaded()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// Reload re-scans the account database immediately and notifies the
// listener of differences. Used by the watcher and by tests. The
// listener runs without the cache lock held, so it may call back in.
func (c *Cache) Reload() {
	c.mu.Lock()
	added, changed, removed := c.reloadLocked()
	c.mu.Unlock()
	c.notify(added, changed, removed)
}

// Close stops the database watch.
func (c *Cache) Close() error {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (c *Cache) reloadLocked() (added, changed, removed []*User) {
	filter := LoadFilter(c.confPath)
	scanned, err := scanPasswd(c.passwdPath, filter)
	if err != nil {
		slog.Warn("failed to read account database", "path", c.passwdPath, "error", err)
		return nil, nil, nil
	}

	var current []*User
	for _, u := range scanned {
		if existing := c.findLocked(u.Name); existing != nil {
			if existing.update(u) {
				changed = append(changed, existing)
			}
			current = append(current, existing)
			continue
		}
		if c.loaded {
			added = append(added, u)
		}
		current = append(current, u)
	}

	for _, old := range c.users {
		if !containsUser(current, old) {
			removed = append(removed, old)
		}
	}

	sortByDisplayName(current)
	c.users = current

	sortByDisplayName(added)
	sortByDisplayName(changed)
	sortByDisplayName(removed)
	return added, changed, removed
}

func (c *Cache) notify(added, changed, removed []*User) {
	if c.listener == nil {
		return
	}
	for _, u := range added {
		slog.Debug("user added", "user", u.Name)
		c.listener.UserAdded(u)
	}
	for _, u := range changed {
		slog.Debug("user changed", "user", u.Name)
		c.listener.UserChanged(u)
	}
	for _, u := range removed {
		slog.Debug("user removed", "user", u.Name)
		c.listener.UserRemoved(u)
	}
}

func (c *Cache) findLocked(name string) *User {
	for _, u := range c.users {
		if u.Name == name {
			return u
		}
	}
	return nil
}

func containsUser(list []*User, u *User) bool {
	for _, v := range list {
		if v == u {
			return true
		}
	}
	return false
}

func sortByDisplayName(list []*User) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].DisplayName() < list[j].DisplayName()
	})
}

// watchLocked arms the fsnotify watch on the account database. The
// watch is on the parent directory, not the file: tools like vipw and
// useradd replace the database by renaming a new file over it, which
// would kill a watch on the file's own inode. Reload happens after a
// quiet period so a burst of writes triggers once.
func (c *Cache) watchLocked() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("cannot watch account database", "error", err)
		return
	}
	dir := filepath.Dir(c.passwdPath)
	if err := watcher.Add(dir); err != nil {
		slog.Warn("cannot watch account database", "dir", dir, "error", err)
		watcher.Close() //nolint:errcheck
		return
	}
	c.watcher = watcher

	go func() {
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.passwdPath) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					slog.Debug("account database changed, reloading user list", "path", c.passwdPath)
					c.Reload()
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("account database watch error", "error", err)
			}
		}
	}()
}

// scanPasswd parses the account database and returns the entries that
// pass the filter. Malformed lines are skipped.
func scanPasswd(path string, filter Filter) ([]*User, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []*User
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// name:password:uid:gid:gecos:home:shell
		fields := strings.Split(line, ":")
		if len(fields) < 7 {
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		name, gecos, home, shell := fields[0], fields[4], fields[5], fields[6]
		if !filter.allows(name, uid, shell) {
			continue
		}

		realName := ""
		if i := strings.Index(gecos, ","); i >= 0 {
			realName = gecos[:i]
		} else {
			realName = gecos
		}

		out = append(out, &User{
			Name:     name,
			RealName: realName,
			Home:     home,
			Image:    avatarURI(home),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
