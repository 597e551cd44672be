// Package stream carries packets over a reliable byte stream (e.g. TCP)
// where SLIP escaping and CRCs are unnecessary.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"sync"

	"github.com/robotalks/mcubridge/pkg/transport"
	"github.com/robotalks/mcubridge/pkg/wire"
)

// DefaultMaxPacketLen limits the size of a received packet.
const DefaultMaxPacketLen = wire.MaxFrameLen

// ReadWriter implements PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	MaxPacketLen uint32

	wlock sync.Mutex
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, MaxPacketLen: DefaultMaxPacketLen}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if p.MaxPacketLen > 0 && size > p.MaxPacketLen {
		if _, err := io.CopyN(ioutil.Discard, p.ReadWriter, int64(size)); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", transport.ErrPacketTooLarge, size, p.MaxPacketLen)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.ReadWriter, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	p.wlock.Lock()
	defer p.wlock.Unlock()
	_, err := p.ReadWriter.Write(buf)
	return err
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
