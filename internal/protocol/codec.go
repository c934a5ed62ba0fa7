package protocol

import "encoding/binary"

// Builder assembles an outgoing message. The payload buffer grows as
// needed; the historical fixed 1024-byte cap (which silently truncated
// oversized messages) is deliberately not carried over.
type Builder struct {
	kind    uint32
	payload []byte
}

// NewRequest starts a greeter-to-daemon message of the given kind.
func NewRequest(kind RequestKind) *Builder {
	return &Builder{kind: uint32(kind)}
}

// NewReply starts a daemon-to-greeter message of the given kind.
// Used by the daemon stub and by tests standing in for the daemon.
func NewReply(kind ReplyKind) *Builder {
	return &Builder{kind: uint32(kind)}
}

// WriteInt appends an unsigned 32-bit big-endian integer.
func (b *Builder) WriteInt(v uint32) *Builder {
	b.payload = binary.BigEndian.AppendUint32(b.payload, v)
	return b
}

// WriteString appends a length-prefixed string.
func (b *Builder) WriteString(s string) *Builder {
	b.WriteInt(uint32(len(s)))
	b.payload = append(b.payload, s...)
	return b
}

// Bytes returns the complete wire message, header included.
func (b *Builder) Bytes() []byte {
	msg := make([]byte, HeaderSize+len(b.payload))
	binary.BigEndian.PutUint32(msg[0:4], b.kind)
	binary.BigEndian.PutUint32(msg[4:8], uint32(len(b.payload)))
	copy(msg[HeaderSize:], b.payload)
	return msg
}

// Decoder reads fields out of a received payload. Short reads do not
// abort: an int past the end decodes as zero, a string past the end
// decodes as empty, and Truncated reports that it happened. The caller
// logs and drops the message; the connection stays up.
type Decoder struct {
	buf       []byte
	off       int
	truncated bool
}

// NewDecoder decodes the payload of a received message (header stripped).
func NewDecoder(payload []byte) *Decoder {
	return &Decoder{buf: payload}
}

// ReadInt consumes an unsigned 32-bit big-endian integer.
func (d *Decoder) ReadInt() uint32 {
	if d.off+4 > len(d.buf) {
		d.truncated = true
		return 0
	}
	v := binary.BigEndian.Uint32(d.buf[d.off : d.off+4])
	d.off += 4
	return v
}

// ReadString consumes a length-prefixed string.
func (d *Decoder) ReadString() string {
	n := int(d.ReadInt())
	if d.truncated || d.off+n > len(d.buf) {
		d.truncated = true
		return ""
	}
	s := string(d.buf[d.off : d.off+n])
	d.off += n
	return s
}

// Remaining reports how many payload bytes are left to consume.
func (d *Decoder) Remaining() int {
	if d.off > len(d.buf) {
		return 0
	}
	return len(d.buf) - d.off
}

// Truncated reports whether any read ran past the end of the payload.
func (d *Decoder) Truncated() bool { return d.truncated }

// ParseHeader splits a wire message into kind and payload. The header
// length field is trusted to match len(msg)-HeaderSize; the transport
// only delivers complete messages.
func ParseHeader(msg []byte) (kind uint32, payload []byte) {
	kind = binary.BigEndian.Uint32(msg[0:4])
	return kind, msg[HeaderSize:]
}

// PayloadLength extracts the declared payload length from a complete
// 8-byte header.
func PayloadLength(header []byte) uint32 {
	return binary.BigEndian.Uint32(header[4:8])
}
