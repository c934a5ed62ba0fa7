// Package version provides build-time version information
// injected via ldflags during compilation.
package version

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Protocol is the greeter protocol version announced in the
// CONNECT handshake. The daemon currently only logs it.
const Protocol = "1.0"
