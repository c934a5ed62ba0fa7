package transport

import (
	"bytes"
	"io"
	"testing"

	"github.com/lumindm/greeter/internal/protocol"
)

// drainReader offers its bytes in chunks and reports ErrNoData between
// them, modelling a non-blocking stream that runs dry mid-message.
type drainReader struct {
	chunks [][]byte
	dry    bool
}

func (d *drainReader) Read(p []byte) (int, error) {
	if len(d.chunks) == 0 {
		if d.dry {
			return 0, ErrNoData
		}
		return 0, io.EOF
	}
	if d.dry {
		// Alternate: deliver one chunk, then report dry once.
		d.dry = false
		return 0, ErrNoData
	}
	n := copy(p, d.chunks[0])
	if n == len(d.chunks[0]) {
		d.chunks = d.chunks[1:]
	} else {
		d.chunks[0] = d.chunks[0][n:]
	}
	d.dry = true
	return n, nil
}

func TestPollWholeMessage(t *testing.T) {
	msg := protocol.NewRequest(protocol.Login).WriteInt(1).WriteString("alice").Bytes()

	r := NewReader()
	got, err := r.Poll(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("assembled message differs:\n got %v\nwant %v", got, msg)
	}
}

func TestPollEverySplitBoundary(t *testing.T) {
	msg := protocol.NewReply(protocol.PromptAuth).
		WriteInt(1).
		WriteInt(1).
		WriteInt(protocol.StyleSecret).WriteString("Password:").
		Bytes()

	for split := 0; split <= len(msg); split++ {
		src := &drainReader{}
		if split == 0 || split == len(msg) {
			src.chunks = [][]byte{msg}
		} else {
			src.chunks = [][]byte{msg[:split], msg[split:]}
		}

		r := NewReader()
		var got []byte
		for i := 0; i < 2*len(msg)+4 && got == nil; i++ {
			frame, err := r.Poll(src)
			if err != nil {
				t.Fatalf("split %d: Poll: %v", split, err)
			}
			got = frame
		}
		if !bytes.Equal(got, msg) {
			t.Fatalf("split %d: assembled message differs:\n got %v\nwant %v", split, got, msg)
		}
	}
}

func TestPollEmptyPayload(t *testing.T) {
	msg := protocol.NewReply(protocol.Quit).Bytes()

	r := NewReader()
	got, err := r.Poll(bytes.NewReader(msg))
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("assembled message = %v, want %v", got, msg)
	}
}

func TestPollSequentialMessages(t *testing.T) {
	first := protocol.NewReply(protocol.SessionFailed).Bytes()
	second := protocol.NewReply(protocol.EndAuth).WriteInt(1).WriteInt(0).Bytes()

	src := bytes.NewReader(append(append([]byte{}, first...), second...))
	r := NewReader()

	got, err := r.Poll(src)
	if err != nil {
		t.Fatalf("first Poll: %v", err)
	}
	if !bytes.Equal(got, first) {
		t.Fatalf("first message = %v, want %v", got, first)
	}

	got, err = r.Poll(src)
	if err != nil {
		t.Fatalf("second Poll: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Fatalf("second message = %v, want %v", got, second)
	}
}

func TestPollDryStreamReturnsNothing(t *testing.T) {
	src := &drainReader{dry: true}
	r := NewReader()
	got, err := r.Poll(src)
	if err != nil {
		t.Fatalf("Poll on dry stream: %v", err)
	}
	if got != nil {
		t.Fatalf("Poll on dry stream returned %v", got)
	}
}

func TestPollClosedMidMessage(t *testing.T) {
	msg := protocol.NewRequest(protocol.Login).WriteInt(1).WriteString("alice").Bytes()

	r := NewReader()
	_, err := r.Poll(bytes.NewReader(msg[:5]))
	if err != io.EOF {
		t.Fatalf("Poll on closed stream = %v, want io.EOF", err)
	}
}

func TestConnSend(t *testing.T) {
	var out bytes.Buffer
	c := New(bytes.NewReader(nil), &out)

	msg := protocol.NewRequest(protocol.Connect).WriteString("1.0").Bytes()
	if err := c.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(out.Bytes(), msg) {
		t.Fatalf("written bytes = %v, want %v", out.Bytes(), msg)
	}
}
