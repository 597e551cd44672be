// Package sh is an interactive shell which plays the microcontroller
// against a running bridge.
package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mcubridge/pkg/host"
	"github.com/robotalks/mcubridge/pkg/transport"
	"github.com/robotalks/mcubridge/pkg/transport/dial"
)

// DefaultLinkURL is the link used when none is specified.
const DefaultLinkURL = "tcp://localhost:7000"

// ErrNotConnected is reported by commands requiring a link.
var ErrNotConnected = errors.New("not connected")

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	// Wait is how long to keep printing events after a command in
	// non-interactive mode.
	Wait time.Duration

	Shell *ishell.Shell
	Link  *LinkLoop
}

// LinkLoop is a running host over an open link.
type LinkLoop struct {
	URL    string
	Cancel func()
	Conn   transport.Conn
	Host   *host.Host
	MQTT   *host.MQTT
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
	eventQueueSize    = 64
)

var (
	// flags

	evalOnly bool
	linkURL  = DefaultLinkURL
	waitFor  time.Duration
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.StringVar(&linkURL, "link", linkURL, "Link URL to the bridge.")
	flag.DurationVar(&waitFor, "wait", waitFor, "Time to print events after the command in evaluation mode.")
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Wait:        waitFor,
		Shell:       ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context, l *LinkLoop) error) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		l := ShellFrom(c).Link
		if l == nil {
			c.Err(ErrNotConnected)
			return
		}
		if err := fn(c, l); err != nil {
			c.Err(err)
		}
	}
}

// Connect opens the link and starts receiving frames.
func (s *Shell) Connect(url string) error {
	conn, err := dial.Dial(url)
	if err != nil {
		return err
	}
	l := &LinkLoop{URL: url, Conn: conn, Host: host.New(conn)}
	l.MQTT = host.NewMQTT(l.Host, eventQueueSize)
	var ctx context.Context
	ctx, l.Cancel = context.WithCancel(context.Background())
	s.Disconnect()
	s.Link = l
	go func() {
		err := l.Host.Run(ctx)
		conn.Close()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.Shell.Printf("link %s closed: %v\n", url, err)
		}
	}()
	go s.printEvents(ctx, l)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", url))
	return nil
}

// Disconnect closes current link.
func (s *Shell) Disconnect() {
	if s.Link != nil {
		s.Link.Cancel()
		s.Link.Conn.Close()
		s.Link = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

func (s *Shell) printEvents(ctx context.Context, l *LinkLoop) {
	for {
		select {
		case ev := <-l.MQTT.Events():
			s.Shell.Printf("EVENT %s\n", ev)
		case f := <-l.Host.Unrouted():
			s.Shell.Printf("FRAME cmd=%d dst=%#x flags=%#x chunks=%d\n",
				f.Cmd, uint32(f.Dst), f.Flags, len(f.Body))
		case <-ctx.Done():
			return
		}
	}
}

// Run runs the shell.
func (s *Shell) Run(link string, args ...string) {
	if link != "" {
		if err := s.Connect(link); err != nil {
			log.Fatalf("connect %s failed: %v", link, err)
		}
	}
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		if s.Wait > 0 {
			time.Sleep(s.Wait)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(linkURL, flag.Args()...)
}
