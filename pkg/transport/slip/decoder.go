// Package slip frames packets on a byte stream (e.g. a UART) using SLIP
// (RFC 1055). Every frame ends with a CRC-16 of its content.
package slip

import (
	"errors"

	"github.com/robotalks/mcubridge/pkg/wire"
)

// SLIP special bytes.
const (
	END    byte = 0xc0
	ESC    byte = 0xdb
	ESCEND byte = 0xdc
	ESCESC byte = 0xdd
)

// DefaultMaxFrameLen is the default limit of a decoded frame, trailer
// included.
const DefaultMaxFrameLen = wire.MaxFrameLen

var (
	// ErrFrameTooLong indicates a frame exceeding the decoder limit was dropped.
	ErrFrameTooLong = errors.New("slip: frame too long")
	// ErrBadEscape indicates an invalid escape sequence, the frame was dropped.
	ErrBadEscape = errors.New("slip: bad escape")
)

type decodeState int

const (
	stateData    decodeState = iota // collecting frame bytes
	stateEscaped                    // ESC received
	stateDiscard                    // dropping bytes until END
)

// Decoder reassembles frames one byte at a time.
// Its zero value is ready to use with DefaultMaxFrameLen.
type Decoder struct {
	MaxFrameLen int

	state decodeState
	buf   []byte
	err   error
}

// Parse consumes one byte. It returns the frame when b completes one,
// or the reason a frame was dropped. Empty frames are ignored.
func (d *Decoder) Parse(b byte) ([]byte, error) {
	if b == END {
		return d.endFrame()
	}
	switch d.state {
	case stateData:
		if b == ESC {
			d.state = stateEscaped
			return nil, nil
		}
		d.append(b)
	case stateEscaped:
		switch b {
		case ESCEND:
			d.state = stateData
			d.append(END)
		case ESCESC:
			d.state = stateData
			d.append(ESC)
		default:
			d.discard(ErrBadEscape)
		}
	}
	return nil, nil
}

// Reset drops the partially received frame.
func (d *Decoder) Reset() {
	d.state, d.buf, d.err = stateData, nil, nil
}

func (d *Decoder) append(b byte) {
	max := d.MaxFrameLen
	if max <= 0 {
		max = DefaultMaxFrameLen
	}
	if len(d.buf) >= max {
		d.discard(ErrFrameTooLong)
		return
	}
	d.buf = append(d.buf, b)
}

func (d *Decoder) discard(err error) {
	d.state, d.buf, d.err = stateDiscard, nil, err
}

func (d *Decoder) endFrame() (frame []byte, err error) {
	frame, err = d.buf, d.err
	d.Reset()
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, nil
	}
	return frame, nil
}
