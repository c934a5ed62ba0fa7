package keyboard

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// rulesFile is the XKB registry shipped with the X server.
const rulesFile = "/usr/share/X11/xkb/rules/base.lst"

// XKBRegistry implements Registry with the XKB rules database for
// enumeration and setxkbmap for querying and switching.
type XKBRegistry struct {
	// RulesPath overrides the registry file location; empty means the
	// system default.
	RulesPath string
}

// Layouts parses the "! layout" section of the XKB rules list.
func (x *XKBRegistry) Layouts() ([]Layout, error) {
	path := x.RulesPath
	if path == "" {
		path = rulesFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keyboard: open rules: %w", err)
	}
	defer f.Close()

	var out []Layout
	inSection := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "!") {
			inSection = strings.TrimSpace(line) == "! layout"
			continue
		}
		if !inSection {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		out = append(out, Layout{
			Name:        fields[0],
			Description: strings.Join(fields[1:], " "),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("keyboard: read rules: %w", err)
	}
	return out, nil
}

// Active parses the layout line of `setxkbmap -query`.
func (x *XKBRegistry) Active() (string, error) {
	output, err := exec.Command("setxkbmap", "-query").Output()
	if err != nil {
		return "", fmt.Errorf("keyboard: setxkbmap -query: %w", err)
	}
	for _, line := range strings.Split(string(output), "\n") {
		if name, ok := strings.CutPrefix(line, "layout:"); ok {
			// Only the first layout of a multi-layout config counts.
			name = strings.TrimSpace(name)
			if i := strings.Index(name, ","); i >= 0 {
				name = name[:i]
			}
			return name, nil
		}
	}
	return "", fmt.Errorf("keyboard: no layout in setxkbmap output")
}

// Activate switches the layout via setxkbmap.
func (x *XKBRegistry) Activate(name string) error {
	if err := exec.Command("setxkbmap", name).Run(); err != nil {
		return fmt.Errorf("keyboard: setxkbmap %s: %w", name, err)
	}
	return nil
}
