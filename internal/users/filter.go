package users

import (
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/ini.v1"
)

// Built-in filter defaults, applied when the users configuration file is
// absent or a key is unset.
const (
	defaultMinimumUID   = 500
	defaultHiddenUsers  = "nobody nobody4 noaccess"
	defaultHiddenShells = "/bin/false /usr/sbin/nologin"
)

// Filter decides which account database entries the greeter shows.
// Accounts below MinimumUID are system accounts; HiddenShells marks
// accounts disabled by their login shell.
type Filter struct {
	MinimumUID   int
	HiddenUsers  []string
	HiddenShells []string
}

// LoadFilter reads the [UserAccounts] section of the users configuration
// file. A missing file is expected and yields the defaults; a malformed
// one logs a warning and yields the defaults.
func LoadFilter(path string) Filter {
	f := Filter{
		MinimumUID:   defaultMinimumUID,
		HiddenUsers:  strings.Fields(defaultHiddenUsers),
		HiddenShells: strings.Fields(defaultHiddenShells),
	}

	cfg, err := ini.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to load users configuration", "path", path, "error", err)
		}
		return f
	}

	section := cfg.Section("UserAccounts")
	if key := section.Key("minimum-uid"); key.String() != "" {
		f.MinimumUID = key.MustInt(defaultMinimumUID)
	}
	if key := section.Key("hidden-users"); key.String() != "" {
		f.HiddenUsers = strings.Fields(key.String())
	}
	if key := section.Key("hidden-shells"); key.String() != "" {
		f.HiddenShells = strings.Fields(key.String())
	}
	return f
}

// allows reports whether a passwd entry passes the filter.
func (f Filter) allows(name string, uid int, shell string) bool {
	if uid < f.MinimumUID {
		return false
	}
	if slices.Contains(f.HiddenUsers, name) {
		return false
	}
	if shell != "" && slices.Contains(f.HiddenShells, shell) {
		return false
	}
	return true
}
