// Package transport defines how packets and frames travel between the
// microcontroller and the bridge.
package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrPacketTooLarge is returned by readers which skipped a packet over
// their limit. The link stays usable.
var ErrPacketTooLarge = errors.New("packet too large")

// PacketReader reads packets in bytes.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// FrameReader reads complete response frames, trailer included.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

// ReadFrame reads a response frame from r. Transports which don't
// distinguish frames from packets deliver them with ReadPacket.
func ReadFrame(r PacketReader) ([]byte, error) {
	if fr, ok := r.(FrameReader); ok {
		return fr.ReadFrame()
	}
	return r.ReadPacket()
}

// PacketReadWriter reads/writes packets in bytes.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// FrameBuffer collects a response frame and writes it as one packet on
// Flush. It adapts message oriented transports to wire.FrameWriter.
type FrameBuffer struct {
	Writer PacketWriter

	buf  bytes.Buffer
	lock sync.Mutex
}

// NewFrameBuffer creates a FrameBuffer.
func NewFrameBuffer(w PacketWriter) *FrameBuffer {
	return &FrameBuffer{Writer: w}
}

// Write implements io.Writer.
func (f *FrameBuffer) Write(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.buf.Write(p)
}

// Flush implements wire.FrameWriter.
func (f *FrameBuffer) Flush() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	pkt := make([]byte, f.buf.Len())
	copy(pkt, f.buf.Bytes())
	f.buf.Reset()
	return f.Writer.WritePacket(pkt)
}

// Conn is a link to the microcontroller: request packets are read from
// it and response frames streamed into it (see wire.FrameWriter).
type Conn interface {
	PacketReadWriter
	io.Writer
	Flush() error
	io.Closer
}

type bufferedConn struct {
	PacketReadWriter
	*FrameBuffer
}

// Buffered adapts a message oriented PacketReadWriter into a Conn,
// each response frame is sent as one packet.
func Buffered(rw PacketReadWriter) Conn {
	return &bufferedConn{PacketReadWriter: rw, FrameBuffer: NewFrameBuffer(rw)}
}

// Close implements io.Closer.
func (c *bufferedConn) Close() error {
	if closer, ok := c.PacketReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
