package wire

import (
	"encoding/binary"
	"io"
)

// Handle is an opaque callback handle owned by the microcontroller.
// Zero means absent.
type Handle uint32

// ResponseHeaderSize is the size of the response header.
const ResponseHeaderSize = 12

// ChecksumSize is the size of the frame trailer.
const ChecksumSize = 2

// FrameWriter receives the bytes of a response frame as they are built.
// Flush marks the end of the frame.
type FrameWriter interface {
	io.Writer
	Flush() error
}

// Builder streams one response frame at a time into a FrameWriter.
// Call Start, then Body exactly as many times as declared, then End.
// Calls out of that order panic with *ContractError.
type Builder struct {
	w FrameWriter

	started  bool
	declared int
	written  int
	err      error
}

// NewBuilder creates a Builder writing into w.
func NewBuilder(w FrameWriter) *Builder {
	return &Builder{w: w}
}

// Start writes the header and returns the checksum covering it.
func (b *Builder) Start(cmd CommandID, dst Handle, flags uint32, chunks int) Checksum {
	if b.started {
		violation("Start called with %d of %d chunks pending", b.declared-b.written, b.declared)
	}
	if chunks < 0 || chunks > 0xffff {
		violation("invalid chunk count %d", chunks)
	}
	b.started, b.declared, b.written, b.err = true, chunks, 0, nil

	var hdr [ResponseHeaderSize]byte
	binary.LittleEndian.PutUint16(hdr[0:], uint16(cmd))
	binary.LittleEndian.PutUint32(hdr[2:], uint32(dst))
	binary.LittleEndian.PutUint32(hdr[6:], flags)
	binary.LittleEndian.PutUint16(hdr[10:], uint16(chunks))
	return b.write(newChecksum(), hdr[:])
}

// Body appends one length-prefixed chunk.
func (b *Builder) Body(crc Checksum, chunk []byte) Checksum {
	if !b.started {
		violation("Body called before Start")
	}
	if b.written >= b.declared {
		violation("more than %d chunks written", b.declared)
	}
	if len(chunk) > MaxArgLen {
		violation("chunk of %d bytes exceeds %d", len(chunk), MaxArgLen)
	}
	b.written++
	var l [ArgLenSize]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(chunk)))
	crc = b.write(crc, l[:])
	return b.write(crc, chunk)
}

// End appends the checksum trailer and flushes the frame.
// The first error from the underlying writer is returned here.
func (b *Builder) End(crc Checksum) error {
	if !b.started {
		violation("End called before Start")
	}
	if b.written != b.declared {
		violation("End called after %d of %d chunks", b.written, b.declared)
	}
	b.started = false

	var trailer [ChecksumSize]byte
	binary.LittleEndian.PutUint16(trailer[:], uint16(crc.complete()))
	b.write(crc, trailer[:])
	if b.err != nil {
		return b.err
	}
	return b.w.Flush()
}

func (b *Builder) write(crc Checksum, p []byte) Checksum {
	if b.err == nil && len(p) > 0 {
		_, b.err = b.w.Write(p)
	}
	return crc.update(p)
}
