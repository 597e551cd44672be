package wire

import "encoding/binary"

// CommandID identifies a command or an event class.
type CommandID uint16

// RequestHeaderSize is the size of the request header.
const RequestHeaderSize = 4

// Request is a read cursor over an inbound packet.
// The packet is borrowed, not copied, so it must not be modified
// while the Request is in use.
type Request struct {
	pkt       []byte
	cmd       CommandID
	argc      int
	remaining int
	off       int
}

// ParseRequest decodes the request header and positions the cursor
// at the first argument.
func ParseRequest(pkt []byte) (*Request, error) {
	if len(pkt) < RequestHeaderSize {
		return nil, ErrTruncatedPacket
	}
	argc := int(binary.LittleEndian.Uint16(pkt[2:]))
	return &Request{
		pkt:       pkt,
		cmd:       CommandID(binary.LittleEndian.Uint16(pkt)),
		argc:      argc,
		remaining: argc,
		off:       RequestHeaderSize,
	}, nil
}

// EncodeRequest builds a request packet.
func EncodeRequest(cmd CommandID, args ...[]byte) []byte {
	size := RequestHeaderSize
	for _, arg := range args {
		size += ArgLenSize + len(arg)
	}
	pkt := make([]byte, RequestHeaderSize, size)
	binary.LittleEndian.PutUint16(pkt, uint16(cmd))
	binary.LittleEndian.PutUint16(pkt[2:], uint16(len(args)))
	for _, arg := range args {
		pkt = AppendArg(pkt, arg)
	}
	return pkt
}

// Cmd returns the command id.
func (r *Request) Cmd() CommandID {
	return r.cmd
}

// ArgCount returns the number of arguments the packet declares,
// regardless of how many have been popped.
func (r *Request) ArgCount() int {
	return r.argc
}

// Remaining returns the number of declared arguments not popped yet.
func (r *Request) Remaining() int {
	return r.remaining
}

// ExpectArgs fails with *ArgCountError unless the packet declares exactly n arguments.
// Handlers call it before popping anything.
func (r *Request) ExpectArgs(n int) error {
	if r.argc != n {
		return &ArgCountError{Want: n, Got: r.argc}
	}
	return nil
}

// ArgLen peeks the length of the next argument.
func (r *Request) ArgLen() (int, error) {
	if r.remaining <= 0 {
		return 0, ErrNoMoreArgs
	}
	return argLen(r.pkt, r.off)
}

// PopBytes pops the next argument into a freshly allocated buffer.
// max is a safety ceiling, NoLimit disables it.
// The cursor doesn't move if an error is returned.
func (r *Request) PopBytes(max int) ([]byte, error) {
	if r.remaining <= 0 {
		return nil, ErrNoMoreArgs
	}
	l, err := argLen(r.pkt, r.off)
	if err != nil {
		return nil, err
	}
	if max >= 0 && l > max {
		return nil, ErrArgumentTooLarge
	}
	arg, next, err := DecodeArg(r.pkt, r.off)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(arg))
	copy(out, arg)
	r.advance(next)
	return out, nil
}

// PopString pops the next argument as a string.
func (r *Request) PopString(max int) (string, error) {
	b, err := r.PopBytes(max)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PopUint8 pops a 1-byte scalar.
func (r *Request) PopUint8() (uint8, error) {
	b, err := r.popScalar(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// PopUint16 pops a 2-byte scalar.
func (r *Request) PopUint16() (uint16, error) {
	b, err := r.popScalar(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// PopUint32 pops a 4-byte scalar.
func (r *Request) PopUint32() (uint32, error) {
	b, err := r.popScalar(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Request) popScalar(size int) ([]byte, error) {
	if r.remaining <= 0 {
		return nil, ErrNoMoreArgs
	}
	arg, next, err := DecodeArg(r.pkt, r.off)
	if err != nil {
		return nil, err
	}
	if len(arg) != size {
		return nil, ErrMalformedScalar
	}
	r.advance(next)
	return arg, nil
}

func (r *Request) advance(next int) {
	r.off = next
	r.remaining--
}
