package slip

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/wire"
)

// ErrChecksum indicates a frame whose CRC trailer doesn't match.
var ErrChecksum = errors.New("slip: checksum mismatch")

// Conn sends and receives SLIP frames over a byte stream.
// It implements transport.PacketReadWriter, where packets are frame
// content without the CRC trailer, and wire.FrameWriter for streaming
// frames which already carry their trailer.
type Conn struct {
	Decoder Decoder

	rw      io.ReadWriter
	r       *bufio.Reader
	w       *bufio.Writer
	inFrame bool
	rlock   sync.Mutex
	wlock   sync.Mutex
}

// New creates a Conn over rw.
func New(rw io.ReadWriter) *Conn {
	return &Conn{
		rw: rw,
		r:  bufio.NewReader(rw),
		w:  bufio.NewWriter(rw),
	}
}

// ReadFrame returns the next complete frame as received.
// Dropped frames are logged and skipped.
func (c *Conn) ReadFrame() ([]byte, error) {
	c.rlock.Lock()
	defer c.rlock.Unlock()
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, err
		}
		frame, err := c.Decoder.Parse(b)
		if err != nil {
			glog.Warningf("%v", err)
			continue
		}
		if frame != nil {
			return frame, nil
		}
	}
}

// ReadPacket implements PacketReader.
// Frames failing the CRC check are logged and skipped.
func (c *Conn) ReadPacket() ([]byte, error) {
	for {
		frame, err := c.ReadFrame()
		if err != nil {
			return nil, err
		}
		pkt, err := StripChecksum(frame)
		if err != nil {
			glog.Warningf("drop %d bytes frame: %v", len(frame), err)
			continue
		}
		return pkt, nil
	}
}

// WritePacket implements PacketWriter, appending the CRC trailer.
func (c *Conn) WritePacket(pkt []byte) error {
	var trailer [wire.ChecksumSize]byte
	binary.LittleEndian.PutUint16(trailer[:], uint16(wire.ComputeChecksum(pkt)))
	c.wlock.Lock()
	defer c.wlock.Unlock()
	if err := c.writeEscaped(pkt); err != nil {
		return err
	}
	if err := c.writeEscaped(trailer[:]); err != nil {
		return err
	}
	return c.endFrame()
}

// Write implements io.Writer, appending to the current frame.
func (c *Conn) Write(p []byte) (int, error) {
	c.wlock.Lock()
	defer c.wlock.Unlock()
	if err := c.writeEscaped(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush implements wire.FrameWriter, terminating the current frame.
func (c *Conn) Flush() error {
	c.wlock.Lock()
	defer c.wlock.Unlock()
	return c.endFrame()
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	if closer, ok := c.rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) writeEscaped(p []byte) error {
	if !c.inFrame {
		// a leading END flushes line noise on the receiver
		c.w.WriteByte(END)
		c.inFrame = true
	}
	for _, b := range p {
		switch b {
		case END:
			c.w.WriteByte(ESC)
			c.w.WriteByte(ESCEND)
		case ESC:
			c.w.WriteByte(ESC)
			c.w.WriteByte(ESCESC)
		default:
			c.w.WriteByte(b)
		}
	}
	// bufio.Writer keeps the first error
	_, err := c.w.Write(nil)
	if err != nil {
		c.abort()
	}
	return err
}

func (c *Conn) endFrame() error {
	if !c.inFrame {
		c.w.WriteByte(END)
	}
	c.w.WriteByte(END)
	c.inFrame = false
	err := c.w.Flush()
	if err != nil {
		c.abort()
	}
	return err
}

func (c *Conn) abort() {
	c.inFrame = false
	c.w.Reset(c.rw)
}

// StripChecksum verifies and removes the CRC trailer of frame.
func StripChecksum(frame []byte) ([]byte, error) {
	if len(frame) < wire.ChecksumSize {
		return nil, wire.ErrTruncatedPacket
	}
	content := frame[:len(frame)-wire.ChecksumSize]
	if wire.ComputeChecksum(content) != wire.Checksum(binary.LittleEndian.Uint16(frame[len(content):])) {
		return nil, ErrChecksum
	}
	return content, nil
}
