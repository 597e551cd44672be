// Package serial opens the UART connected to the microcontroller.
package serial

import (
	"fmt"
	"net/url"
	"strconv"

	"go.bug.st/serial"

	"github.com/robotalks/mcubridge/pkg/transport/slip"
)

// DefaultBaudRate is used when the URL doesn't specify one.
const DefaultBaudRate = 115200

// Config describes a serial port.
type Config struct {
	Device   string
	BaudRate int
}

// ConfigFromURL parses serial:///dev/ttyUSB0?baud=115200.
func ConfigFromURL(u *url.URL) (Config, error) {
	conf := Config{Device: u.Path, BaudRate: DefaultBaudRate}
	if conf.Device == "" {
		conf.Device = u.Opaque
	}
	if conf.Device == "" {
		return conf, fmt.Errorf("serial device required")
	}
	if baud := u.Query().Get("baud"); baud != "" {
		rate, err := strconv.Atoi(baud)
		if err != nil || rate <= 0 {
			return conf, fmt.Errorf("invalid baud rate %q", baud)
		}
		conf.BaudRate = rate
	}
	return conf, nil
}

// Open opens the port and wraps it with SLIP framing.
func Open(conf Config) (*slip.Conn, error) {
	port, err := serial.Open(conf.Device, &serial.Mode{
		BaudRate: conf.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Device, err)
	}
	return slip.New(port), nil
}
