package sh

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/mcubridge/pkg/wire"
)

// ErrMissingArgs is reported when a command lacks required arguments.
var ErrMissingArgs = errors.New("missing arguments")

var commands = []*ishell.Cmd{
	&ConnectCmd,
	&DisconnectCmd,
	&InitCmd,
	&MQTTConnectCmd,
	&MQTTDisconnectCmd,
	&PublishCmd,
	&SubscribeCmd,
	&UnsubscribeCmd,
	&LwtCmd,
	&TeardownCmd,
	&RawCmd,
}

var (
	// ConnectCmd opens a link.
	ConnectCmd = ishell.Cmd{
		Name:    "link",
		Aliases: []string{"l"},
		Help:    "URL",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(ErrMissingArgs)
				return
			}
			if err := ShellFrom(c).Connect(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes the link.
	DisconnectCmd = ishell.Cmd{
		Name:    "unlink",
		Aliases: []string{"ul"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// InitCmd registers the MQTT callbacks.
	InitCmd = ishell.Cmd{
		Name:    "init",
		Aliases: []string{"i"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			return l.MQTT.Init()
		}),
	}

	// MQTTConnectCmd connects to the broker.
	MQTTConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			return l.MQTT.Connect()
		}),
	}

	// MQTTDisconnectCmd disconnects from the broker.
	MQTTDisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			return l.MQTT.Disconnect()
		}),
	}

	// PublishCmd publishes a message.
	PublishCmd = ishell.Cmd{
		Name:    "publish",
		Aliases: []string{"pub"},
		Help:    "TOPIC PAYLOAD [QOS] [retain]",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			if len(c.Args) < 2 {
				return ErrMissingArgs
			}
			qos, retain, err := parseQoSRetain(c.Args[2:])
			if err != nil {
				return err
			}
			return l.MQTT.Publish(c.Args[0], []byte(c.Args[1]), qos, retain)
		}),
	}

	// SubscribeCmd subscribes a topic.
	SubscribeCmd = ishell.Cmd{
		Name:    "subscribe",
		Aliases: []string{"sub"},
		Help:    "TOPIC [QOS]",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			if len(c.Args) < 1 {
				return ErrMissingArgs
			}
			qos, _, err := parseQoSRetain(c.Args[1:])
			if err != nil {
				return err
			}
			return l.MQTT.Subscribe(c.Args[0], qos)
		}),
	}

	// UnsubscribeCmd drops a subscription.
	UnsubscribeCmd = ishell.Cmd{
		Name:    "unsubscribe",
		Aliases: []string{"unsub"},
		Help:    "TOPIC",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			if len(c.Args) < 1 {
				return ErrMissingArgs
			}
			return l.MQTT.Unsubscribe(c.Args[0])
		}),
	}

	// LwtCmd sets the last will.
	LwtCmd = ishell.Cmd{
		Name: "lwt",
		Help: "TOPIC MESSAGE [QOS] [retain]",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			if len(c.Args) < 2 {
				return ErrMissingArgs
			}
			qos, retain, err := parseQoSRetain(c.Args[2:])
			if err != nil {
				return err
			}
			return l.MQTT.Lwt(c.Args[0], []byte(c.Args[1]), qos, retain)
		}),
	}

	// TeardownCmd ends the MQTT session.
	TeardownCmd = ishell.Cmd{
		Name: "teardown",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			return l.MQTT.Teardown()
		}),
	}

	// RawCmd sends an arbitrary request.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "CMD [u8:N|u16:N|u32:N|hex:HEX|STRING]...",
		Func: MustBeConnected(func(c *ishell.Context, l *LinkLoop) error {
			if len(c.Args) < 1 {
				return ErrMissingArgs
			}
			cmd, err := strconv.ParseUint(c.Args[0], 0, 16)
			if err != nil {
				return fmt.Errorf("invalid CMD: %w", err)
			}
			args, err := parseArgs(c.Args[1:])
			if err != nil {
				return err
			}
			return l.Host.Send(wire.CommandID(cmd), args...)
		}),
	}
)

func parseQoSRetain(args []string) (qos byte, retain bool, err error) {
	if len(args) > 0 {
		val, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil || val > 2 {
			return 0, false, fmt.Errorf("invalid QOS: %q", args[0])
		}
		qos = byte(val)
	}
	if len(args) > 1 {
		retain = args[1] == "retain"
	}
	return
}

func parseArgs(args []string) ([][]byte, error) {
	encoded := make([][]byte, 0, len(args))
	for _, arg := range args {
		val, err := parseArg(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", arg, err)
		}
		encoded = append(encoded, val)
	}
	return encoded, nil
}

func parseArg(arg string) ([]byte, error) {
	pos := strings.Index(arg, ":")
	if pos < 0 {
		return []byte(arg), nil
	}
	typ, val := arg[:pos], arg[pos+1:]
	var bits int
	switch typ {
	case "hex":
		return hex.DecodeString(val)
	case "u8":
		bits = 8
	case "u16":
		bits = 16
	case "u32":
		bits = 32
	default:
		return []byte(arg), nil
	}
	n, err := strconv.ParseUint(val, 0, bits)
	if err != nil {
		return nil, err
	}
	switch bits {
	case 8:
		return wire.Uint8(uint8(n)), nil
	case 16:
		return wire.Uint16(uint16(n)), nil
	}
	return wire.Uint32(uint32(n)), nil
}
