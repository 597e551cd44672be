package dial

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcubridge/pkg/transport"
	"github.com/robotalks/mcubridge/pkg/transport/slip"
	"github.com/robotalks/mcubridge/pkg/transport/stream"
)

func TestDialErrors(t *testing.T) {
	_, err := Dial("bogus://x")
	require.Error(t, err)
	_, err = Dial("serial://")
	require.Error(t, err)
	_, err = Dial("::")
	require.Error(t, err)
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := Dial("tcp://" + ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	peer := stream.New(<-accepted)
	defer peer.Close()

	require.NoError(t, peer.WritePacket([]byte{1, 2}))
	pkt, err := conn.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, pkt)

	conn.Write([]byte{3})
	conn.Write([]byte{4})
	require.NoError(t, conn.Flush())
	frame, err := transport.ReadFrame(peer)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, frame)
}

func TestDialSlipTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := Dial("slip+tcp://" + ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	peer := slip.New(<-accepted)
	defer peer.Close()

	require.NoError(t, peer.WritePacket([]byte{0xc0, 1}))
	pkt, err := conn.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte{0xc0, 1}, pkt)
}

func TestDialListen(t *testing.T) {
	// reserve a port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	connCh, errCh := make(chan transport.Conn, 1), make(chan error, 1)
	go func() {
		conn, err := Dial("tcp://" + addr + "?listen=true")
		if err != nil {
			errCh <- err
			return
		}
		connCh <- conn
	}()

	var peer net.Conn
	for i := 0; i < 100; i++ {
		if peer, err = net.Dial("tcp", addr); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer peer.Close()

	select {
	case conn := <-connCh:
		conn.Close()
	case err := <-errCh:
		t.Fatal(err)
	}
}
