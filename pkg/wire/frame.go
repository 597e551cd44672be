package wire

import "encoding/binary"

// Frame is a decoded response frame.
type Frame struct {
	Cmd   CommandID
	Dst   Handle
	Flags uint32
	Body  [][]byte
}

// ParseFrame decodes a complete response frame and verifies its trailer.
// Body chunks alias b.
func ParseFrame(b []byte) (*Frame, error) {
	if len(b) < ResponseHeaderSize+ChecksumSize {
		return nil, ErrTruncatedPacket
	}
	content := b[:len(b)-ChecksumSize]
	if ComputeChecksum(content) != Checksum(binary.LittleEndian.Uint16(b[len(content):])) {
		return nil, ErrChecksumMismatch
	}
	f := &Frame{
		Cmd:   CommandID(binary.LittleEndian.Uint16(content[0:])),
		Dst:   Handle(binary.LittleEndian.Uint32(content[2:])),
		Flags: binary.LittleEndian.Uint32(content[6:]),
	}
	count := int(binary.LittleEndian.Uint16(content[10:]))
	off := ResponseHeaderSize
	for i := 0; i < count; i++ {
		chunk, next, err := DecodeArg(content, off)
		if err != nil {
			return nil, err
		}
		f.Body = append(f.Body, chunk)
		off = next
	}
	if off != len(content) {
		return nil, ErrTrailingData
	}
	return f, nil
}
