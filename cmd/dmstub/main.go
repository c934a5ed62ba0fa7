// Command dmstub plays the daemon side of the greeter channel for
// development. It spawns a greeter with the channel descriptors
// inherited, answers the handshake with configurable hints, runs a
// single-password authentication conversation, and quits once a
// session start is requested.
package main

import (
	"flag"
	"log"
	"os"
	"os/exec"
	"strconv"

	"github.com/lumindm/greeter/internal/protocol"
	"github.com/lumindm/greeter/internal/transport"
)

func main() {
	password := flag.String("password", "secret", "Password that authenticates any user")
	defaultSession := flag.String("default-session", "console", "Value of the default-session hint")
	autologinUser := flag.String("autologin-user", "", "Value of the autologin-user hint")
	autologinTimeout := flag.Int("autologin-timeout", 0, "Value of the autologin-timeout hint, in seconds")
	guest := flag.Bool("guest", false, "Advertise a guest account")
	failSession := flag.Bool("fail-session", false, "Reject the session start request")
	flag.Parse()

	if flag.NArg() == 0 {
		log.Fatal("usage: dmstub [flags] greeter-command [args]")
	}

	// The descriptor names are from the greeter's point of view: it
	// writes to the "to server" pipe and reads from the "from server"
	// pipe.
	fromGreeter, greeterWrites, err := os.Pipe()
	if err != nil {
		log.Fatalf("pipe: %v", err)
	}
	greeterReads, toGreeter, err := os.Pipe()
	if err != nil {
		log.Fatalf("pipe: %v", err)
	}

	cmd := exec.Command(flag.Arg(0), flag.Args()[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{greeterWrites, greeterReads}
	cmd.Env = append(os.Environ(),
		transport.ToServerFdEnv+"="+strconv.Itoa(3),
		transport.FromServerFdEnv+"="+strconv.Itoa(4))
	if err := cmd.Start(); err != nil {
		log.Fatalf("starting greeter: %v", err)
	}
	greeterWrites.Close()
	greeterReads.Close()

	d := &daemon{
		conn:     transport.New(fromGreeter, toGreeter),
		password: *password,
		hints:    map[string]string{"default-session": *defaultSession},
		fail:     *failSession,
	}
	if *guest {
		d.hints["has-guest-account"] = "true"
	}
	if *autologinUser != "" {
		d.hints["autologin-user"] = *autologinUser
		d.hints["autologin-timeout"] = strconv.Itoa(*autologinTimeout)
	}

	d.serve()
	cmd.Wait() //nolint:errcheck
}

// daemon is the stub display manager state for one greeter.
type daemon struct {
	conn     *transport.Conn
	password string
	hints    map[string]string
	fail     bool
	sequence uint32
	user     string
}

func (d *daemon) serve() {
	for {
		msg, err := d.conn.Poll()
		if err != nil {
			log.Printf("greeter channel closed: %v", err)
			return
		}
		if msg == nil {
			continue
		}
		if done := d.handle(msg); done {
			return
		}
	}
}

func (d *daemon) handle(msg []byte) bool {
	kind, payload := protocol.ParseHeader(msg)
	dec := protocol.NewDecoder(payload)

	switch protocol.RequestKind(kind) {
	case protocol.Connect:
		log.Printf("greeter connected, protocol %s", dec.ReadString())
		b := protocol.NewReply(protocol.Connected).WriteString("stub")
		for name, value := range d.hints {
			b.WriteString(name).WriteString(value)
		}
		d.send(b.Bytes())

	case protocol.Login:
		d.sequence = dec.ReadInt()
		d.user = dec.ReadString()
		log.Printf("authenticating %q", d.user)
		d.send(protocol.NewReply(protocol.PromptAuth).
			WriteInt(d.sequence).
			WriteInt(1).
			WriteInt(protocol.StyleSecret).
			WriteString("Password:").
			Bytes())

	case protocol.LoginAsGuest:
		d.sequence = dec.ReadInt()
		d.user = "guest"
		log.Print("authenticating guest")
		d.endAuthentication(0)

	case protocol.ContinueAuth:
		count := dec.ReadInt()
		var response string
		for i := uint32(0); i < count; i++ {
			response = dec.ReadString()
		}
		if response == d.password {
			d.endAuthentication(0)
		} else {
			d.send(protocol.NewReply(protocol.PromptAuth).
				WriteInt(d.sequence).
				WriteInt(1).
				WriteInt(protocol.StyleError).
				WriteString("Sorry, try again.").
				Bytes())
			d.endAuthentication(7)
		}

	case protocol.CancelAuth:
		log.Print("authentication cancelled")

	case protocol.StartSession:
		session := dec.ReadString()
		if session == "" {
			session = d.hints["default-session"]
		}
		if d.fail {
			log.Printf("refusing session %q", session)
			d.send(protocol.NewReply(protocol.SessionFailed).Bytes())
			return false
		}
		log.Printf("would start session %q for %q", session, d.user)
		d.send(protocol.NewReply(protocol.Quit).Bytes())
		return true

	default:
		log.Printf("unknown message kind %d", kind)
	}
	return false
}

func (d *daemon) endAuthentication(code uint32) {
	d.send(protocol.NewReply(protocol.EndAuth).
		WriteInt(d.sequence).
		WriteInt(code).
		Bytes())
}

func (d *daemon) send(msg []byte) {
	if err := d.conn.Send(msg); err != nil {
		log.Printf("write to greeter failed: %v", err)
	}
}
