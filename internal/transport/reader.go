// Package transport turns the byte stream from the daemon into discrete
// whole messages and carries outgoing messages back. The channel itself is
// a pair of file descriptors inherited from the daemon; discovery happens
// via environment variables so any duplex stream (socketpair, pipes, an
// in-memory test harness) works the same way.
package transport

import (
	"errors"
	"io"

	"github.com/lumindm/greeter/internal/protocol"
)

// ErrNoData is returned by a Source when no bytes are currently
// available. It lets a readiness-driven reactor hand the stream to Poll
// repeatedly without blocking; sources backed by blocking descriptors
// never return it.
var ErrNoData = errors.New("transport: no data available")

// Reader accumulates bytes from a stream until one complete message
// (header plus declared payload) is held. It buffers exactly one message
// at a time: the accumulation count resets after each delivered message,
// and it never reads past the end of the message it is assembling.
type Reader struct {
	buf []byte
	n   int
}

// NewReader returns a Reader ready to assemble messages.
func NewReader() *Reader {
	return &Reader{buf: make([]byte, protocol.HeaderSize)}
}

// Poll reads from src until a full message is buffered or src runs dry.
// It returns the complete message (header included) once assembled, or
// (nil, nil) when src reported ErrNoData mid-message; call Poll again on
// the next readiness event. Any other read error, including io.EOF, is
// returned as-is with the accumulation discarded.
func (r *Reader) Poll(src io.Reader) ([]byte, error) {
	for {
		target := protocol.HeaderSize
		if r.n >= protocol.HeaderSize {
			target = protocol.HeaderSize + int(protocol.PayloadLength(r.buf))
		}
		if len(r.buf) < target {
			grown := make([]byte, target)
			copy(grown, r.buf[:r.n])
			r.buf = grown
		}

		for r.n < target {
			m, err := src.Read(r.buf[r.n:target])
			r.n += m
			if r.n >= target {
				break
			}
			if err != nil {
				if errors.Is(err, ErrNoData) {
					return nil, nil
				}
				r.n = 0
				return nil, err
			}
		}

		// Header complete; rerun for the payload if there is one.
		if r.n == protocol.HeaderSize && protocol.PayloadLength(r.buf) > 0 {
			continue
		}

		msg := make([]byte, target)
		copy(msg, r.buf[:target])
		r.n = 0
		return msg, nil
	}
}
