// Package dial opens the link to the microcontroller from a URL.
package dial

import (
	"fmt"
	"net"
	"net/url"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/transport"
	"github.com/robotalks/mcubridge/pkg/transport/serial"
	"github.com/robotalks/mcubridge/pkg/transport/slip"
	"github.com/robotalks/mcubridge/pkg/transport/stream"
	"github.com/robotalks/mcubridge/pkg/transport/websocket"
)

// Supported URL forms:
//
//	serial:///dev/ttyUSB0?baud=115200   SLIP over a UART
//	slip+tcp://host:port                SLIP over TCP (e.g. ser2net)
//	tcp://host:port                     length-prefixed packets over TCP
//	ws://host:port/path                 one packet per websocket message
//
// TCP links accept a single connection instead of dialing when the
// query has listen=true.

// Dial opens the link described by rawURL.
func Dial(rawURL string) (transport.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL: %w", err)
	}
	glog.V(1).Infof("dial %s", rawURL)
	switch u.Scheme {
	case "serial":
		conf, err := serial.ConfigFromURL(u)
		if err != nil {
			return nil, err
		}
		conn, err := serial.Open(conf)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "slip+tcp":
		conn, err := dialTCP(u)
		if err != nil {
			return nil, err
		}
		return slip.New(conn), nil
	case "tcp":
		conn, err := dialTCP(u)
		if err != nil {
			return nil, err
		}
		return transport.Buffered(stream.New(conn)), nil
	case "ws", "wss":
		origin := "http://" + u.Host
		if u.Scheme == "wss" {
			origin = "https://" + u.Host
		}
		rw, err := websocket.Dial(rawURL, origin)
		if err != nil {
			return nil, err
		}
		return transport.Buffered(rw), nil
	default:
		return nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
	}
}

func dialTCP(u *url.URL) (net.Conn, error) {
	if u.Query().Get("listen") != "true" {
		return net.Dial("tcp", u.Host)
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	glog.Infof("waiting for connection on %s", ln.Addr())
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	glog.Infof("accepted %s", conn.RemoteAddr())
	return conn, nil
}
