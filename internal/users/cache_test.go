package users

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type diffRecorder struct {
	added, changed, removed []string
}

func (r *diffRecorder) UserAdded(u *User)   { r.added = append(r.added, u.Name) }
func (r *diffRecorder) UserChanged(u *User) { r.changed = append(r.changed, u.Name) }
func (r *diffRecorder) UserRemoved(u *User) { r.removed = append(r.removed, u.Name) }

func writePasswd(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write passwd: %v", err)
	}
}

// newLoadedCache populates a cache from content without starting a
// watcher, so tests control reloads explicitly.
func newLoadedCache(t *testing.T, content string, rec Listener) (*Cache, string) {
	t.Helper()
	dir := t.TempDir()
	passwd := filepath.Join(dir, "passwd")
	writePasswd(t, passwd, content)

	c := NewCache(passwd, filepath.Join(dir, "users.conf"), rec)
	c.mu.Lock()
	c.reloadLocked()
	c.loaded = true
	c.mu.Unlock()
	return c, passwd
}

const basePasswd = `root:x:0:0:root:/root:/bin/bash
daemon:x:1:1:daemon:/usr/sbin:/usr/sbin/nologin
nobody:x:65534:65534:nobody:/nonexistent:/bin/sh
alice:x:1000:1000:Alice Jones,,,:/home/alice:/bin/bash
bob:x:1001:1001::/home/bob:/bin/zsh
`

func TestFiltering(t *testing.T) {
	c, _ := newLoadedCache(t, basePasswd, nil)

	list := c.List()
	if len(list) != 2 {
		t.Fatalf("got %d users, want 2 (alice, bob): %+v", len(list), list)
	}
	// Sorted by display name: "Alice Jones" < "bob".
	if list[0].Name != "alice" || list[1].Name != "bob" {
		t.Fatalf("order = %s, %s", list[0].Name, list[1].Name)
	}
	if list[0].RealName != "Alice Jones" {
		t.Fatalf("gecos display name = %q", list[0].RealName)
	}
	if list[1].DisplayName() != "bob" {
		t.Fatalf("empty gecos fallback = %q", list[1].DisplayName())
	}
}

func TestHiddenShellFilter(t *testing.T) {
	content := basePasswd + "svc:x:1002:1002:Service:/home/svc:/usr/sbin/nologin\n"
	c, _ := newLoadedCache(t, content, nil)
	if c.ByName("svc") != nil {
		t.Fatal("account with hidden shell not filtered")
	}
}

func TestHiddenUserFilter(t *testing.T) {
	content := "noaccess:x:1005:1005::/home/noaccess:/bin/bash\n"
	c, _ := newLoadedCache(t, content, nil)
	if c.Len() != 0 {
		t.Fatal("built-in hidden user not filtered")
	}
}

func TestFilterConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	conf := filepath.Join(dir, "users.conf")
	if err := os.WriteFile(conf, []byte("[UserAccounts]\nminimum-uid=2000\nhidden-shells=/bin/zsh\n"), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	f := LoadFilter(conf)
	if f.MinimumUID != 2000 {
		t.Fatalf("minimum-uid = %d, want 2000", f.MinimumUID)
	}
	if len(f.HiddenShells) != 1 || f.HiddenShells[0] != "/bin/zsh" {
		t.Fatalf("hidden-shells = %v", f.HiddenShells)
	}
	// Keys not set keep their defaults.
	if len(f.HiddenUsers) != 3 {
		t.Fatalf("hidden-users = %v, want built-in defaults", f.HiddenUsers)
	}
}

func TestFilterMissingConfigUsesDefaults(t *testing.T) {
	f := LoadFilter(filepath.Join(t.TempDir(), "absent.conf"))
	if f.MinimumUID != 500 {
		t.Fatalf("minimum-uid = %d, want 500", f.MinimumUID)
	}
}

func TestDiffOnReload(t *testing.T) {
	rec := &diffRecorder{}
	content := `alice:x:1000:1000:Alice:/home/alice:/bin/bash
bob:x:1001:1001:Bob:/home/bob:/bin/bash
`
	c, passwd := newLoadedCache(t, content, rec)

	if len(rec.added) != 0 {
		t.Fatalf("first population emitted added: %v", rec.added)
	}

	before := c.ByName("alice")

	// alice moves home, carol appears, bob disappears.
	writePasswd(t, passwd, `alice:x:1000:1000:Alice:/home/alice2:/bin/bash
carol:x:1002:1002:Carol:/home/carol:/bin/bash
`)
	c.Reload()

	if len(rec.added) != 1 || rec.added[0] != "carol" {
		t.Fatalf("added = %v, want [carol]", rec.added)
	}
	if len(rec.changed) != 1 || rec.changed[0] != "alice" {
		t.Fatalf("changed = %v, want [alice]", rec.changed)
	}
	if len(rec.removed) != 1 || rec.removed[0] != "bob" {
		t.Fatalf("removed = %v, want [bob]", rec.removed)
	}

	// Identity preserved: the held pointer observes the new home.
	if after := c.ByName("alice"); after != before {
		t.Fatal("alice identity not preserved across reload")
	}
	if before.Home != "/home/alice2" {
		t.Fatalf("held user home = %q, want /home/alice2", before.Home)
	}

	list := c.List()
	if len(list) != 2 || list[0].Name != "alice" || list[1].Name != "carol" {
		t.Fatalf("list after reload = %+v", list)
	}
}

func TestReloadNoChangesEmitsNothing(t *testing.T) {
	rec := &diffRecorder{}
	c, _ := newLoadedCache(t, basePasswd, rec)
	c.Reload()

	if len(rec.added)+len(rec.changed)+len(rec.removed) != 0 {
		t.Fatalf("no-op reload notified: %+v", rec)
	}
}

func TestAvatarProbe(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, ".face.icon"), []byte("x"), 0644); err != nil {
		t.Fatalf("write avatar: %v", err)
	}

	uri := avatarURI(home)
	want := "file://" + filepath.Join(home, ".face.icon")
	if uri != want {
		t.Fatalf("avatar URI = %q, want %q", uri, want)
	}

	// .face wins over .face.icon.
	if err := os.WriteFile(filepath.Join(home, ".face"), []byte("x"), 0644); err != nil {
		t.Fatalf("write avatar: %v", err)
	}
	want = "file://" + filepath.Join(home, ".face")
	if uri := avatarURI(home); uri != want {
		t.Fatalf("avatar URI = %q, want %q", uri, want)
	}

	if uri := avatarURI(filepath.Join(home, "missing")); uri != "" {
		t.Fatalf("avatar URI for bare home = %q, want empty", uri)
	}
}

func TestMissingPasswdLeavesCacheEmpty(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(filepath.Join(dir, "nope"), filepath.Join(dir, "users.conf"), nil)
	c.EnsureLoaded()
	if c.Len() != 0 {
		t.Fatal("cache not empty after unreadable database")
	}
	c.Close() //nolint:errcheck
}

// signalRecorder forwards account changes to a channel so watcher
// tests can wait on them.
type signalRecorder struct{ ch chan string }

func (r *signalRecorder) UserAdded(u *User)   { r.ch <- "added:" + u.Name }
func (r *signalRecorder) UserChanged(u *User) { r.ch <- "changed:" + u.Name }
func (r *signalRecorder) UserRemoved(u *User) { r.ch <- "removed:" + u.Name }

func waitEvent(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("event = %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func TestWatchSurvivesRenameOver(t *testing.T) {
	rec := &signalRecorder{ch: make(chan string, 16)}
	dir := t.TempDir()
	passwd := filepath.Join(dir, "passwd")
	writePasswd(t, passwd, basePasswd)

	c := NewCache(passwd, filepath.Join(dir, "users.conf"), rec)
	c.EnsureLoaded()
	defer c.Close() //nolint:errcheck
	if c.Len() != 2 {
		t.Fatalf("initial load got %d users, want 2", c.Len())
	}

	// vipw-style update: write a new database and rename it over the
	// old one, replacing the inode.
	carol := basePasswd + "carol:x:1002:1002:Carol:/home/carol:/bin/bash\n"
	next := filepath.Join(dir, "passwd.new")
	writePasswd(t, next, carol)
	if err := os.Rename(next, passwd); err != nil {
		t.Fatalf("rename: %v", err)
	}
	waitEvent(t, rec.ch, "added:carol")

	// A plain in-place write afterwards must still trigger a reload.
	writePasswd(t, passwd, carol+"dave:x:1003:1003:Dave:/home/dave:/bin/bash\n")
	waitEvent(t, rec.ch, "added:dave")
}
