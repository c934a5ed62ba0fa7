// Package users maintains the cache of login-capable accounts shown by the
// greeter. The cache populates lazily from the system account database,
// filters out system and disabled accounts per the users configuration
// file, and re-populates when the database changes, diffing against the
// previous snapshot and notifying listeners of added, changed, and removed
// entries.
package users

import (
	"net/url"
	"os"
	"path/filepath"
)

// User is one login-capable account. Instances are owned by the Cache
// and updated in place on re-population, so a caller holding a *User
// observes changes across reloads. Identity is the Name.
type User struct {
	Name     string // username, unique key
	RealName string // first gecos field, may be empty
	Home     string
	Image    string // file:// URI of the avatar, empty if none
	LoggedIn bool
}

// DisplayName returns the real name, falling back to the username.
func (u *User) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Name
}

// update copies the mutable fields from src and reports whether
// anything changed.
func (u *User) update(src *User) bool {
	if u.RealName == src.RealName && u.Home == src.Home &&
		u.Image == src.Image && u.LoggedIn == src.LoggedIn {
		return false
	}
	u.RealName = src.RealName
	u.Home = src.Home
	u.Image = src.Image
	u.LoggedIn = src.LoggedIn
	return true
}

// avatarFilenames are probed under the home directory, in order.
var avatarFilenames = []string{".face", ".face.icon"}

// avatarURI returns a file:// URI for the account's avatar, or the
// empty string when no avatar file exists.
func avatarURI(home string) string {
	for _, name := range avatarFilenames {
		path := filepath.Join(home, name)
		if _, err := os.Stat(path); err == nil {
			u := url.URL{Scheme: "file", Path: path}
			return u.String()
		}
	}
	return ""
}
