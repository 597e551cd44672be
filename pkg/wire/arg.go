package wire

import "encoding/binary"

const (
	// ArgLenSize is the size of the length field preceding each argument.
	ArgLenSize = 2
	// MaxArgLen is the largest argument the length field can describe.
	MaxArgLen = 0xffff
	// NoLimit disables the caller ceiling in PopBytes.
	NoLimit = -1
)

// AppendArg appends arg as a length-prefixed argument to dst.
// It panics if arg is longer than MaxArgLen.
func AppendArg(dst, arg []byte) []byte {
	if len(arg) > MaxArgLen {
		panic(ErrArgumentTooLarge)
	}
	var l [ArgLenSize]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(arg)))
	dst = append(dst, l[:]...)
	return append(dst, arg...)
}

// DecodeArg decodes the argument at off in buf. The returned slice
// aliases buf; next is the offset of the following argument.
func DecodeArg(buf []byte, off int) (arg []byte, next int, err error) {
	l, err := argLen(buf, off)
	if err != nil {
		return nil, off, err
	}
	start := off + ArgLenSize
	return buf[start : start+l], start + l, nil
}

func argLen(buf []byte, off int) (int, error) {
	if off < 0 || off+ArgLenSize > len(buf) {
		return 0, ErrTruncatedPacket
	}
	l := int(binary.LittleEndian.Uint16(buf[off:]))
	if off+ArgLenSize+l > len(buf) {
		return 0, ErrTruncatedPacket
	}
	return l, nil
}

// Uint8 encodes v as a 1-byte scalar argument value.
func Uint8(v uint8) []byte {
	return []byte{v}
}

// Uint16 encodes v as a 2-byte scalar argument value.
func Uint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// Uint32 encodes v as a 4-byte scalar argument value.
func Uint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
