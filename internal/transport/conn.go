package transport

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Environment variables carrying the file descriptor numbers of the
// private channel to the daemon. The daemon sets both before spawning
// the greeter.
const (
	ToServerFdEnv   = "LUMIN_TO_SERVER_FD"
	FromServerFdEnv = "LUMIN_FROM_SERVER_FD"
)

// Conn is the duplex message channel to the daemon: a Reader assembling
// inbound messages and a writer for outbound ones.
type Conn struct {
	w      io.Writer
	src    io.Reader
	reader *Reader
	closer []io.Closer
}

// New wraps an already-open duplex byte stream.
func New(src io.Reader, w io.Writer) *Conn {
	return &Conn{w: w, src: src, reader: NewReader()}
}

// OpenFromEnv opens the channel on the file descriptors named by
// LUMIN_TO_SERVER_FD and LUMIN_FROM_SERVER_FD.
func OpenFromEnv() (*Conn, error) {
	to, err := fdFromEnv(ToServerFdEnv)
	if err != nil {
		return nil, err
	}
	from, err := fdFromEnv(FromServerFdEnv)
	if err != nil {
		to.Close() //nolint:errcheck
		return nil, err
	}
	c := New(from, to)
	c.closer = []io.Closer{to, from}
	return c, nil
}

func fdFromEnv(name string) (*os.File, error) {
	value := os.Getenv(name)
	if value == "" {
		return nil, fmt.Errorf("transport: %s not set", name)
	}
	fd, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("transport: bad fd in %s: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Send writes one complete message to the daemon. Best effort: there is
// no retry and no queueing; the caller logs a warning on failure.
func (c *Conn) Send(msg []byte) error {
	if _, err := c.w.Write(msg); err != nil {
		return fmt.Errorf("transport: write to daemon: %w", err)
	}
	return nil
}

// Poll advances message assembly on the inbound stream. See Reader.Poll.
func (c *Conn) Poll() ([]byte, error) {
	return c.reader.Poll(c.src)
}

// Close releases the underlying descriptors, if this Conn owns any.
func (c *Conn) Close() error {
	var first error
	for _, cl := range c.closer {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
