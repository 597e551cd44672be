package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type frameBuffer struct {
	bytes.Buffer
	frames [][]byte
}

func (b *frameBuffer) Flush() error {
	b.frames = append(b.frames, append([]byte(nil), b.Bytes()...))
	b.Reset()
	return nil
}

type failingWriter struct {
	err     error
	flushed bool
}

func (w *failingWriter) Write(p []byte) (int, error) { return 0, w.err }
func (w *failingWriter) Flush() error                { w.flushed = true; return nil }

func requirePanicContract(t *testing.T, fn func()) {
	defer func() {
		r := recover()
		require.NotNil(t, r, "expect panic")
		_, ok := r.(*ContractError)
		require.True(t, ok, "expect *ContractError, got %v", r)
	}()
	fn()
}

func TestBuilder(t *testing.T) {
	testCases := []struct {
		name   string
		cmd    CommandID
		dst    Handle
		flags  uint32
		chunks [][]byte
		expect []byte
	}{
		{
			name: "no body",
			cmd:  0x0d, dst: 0x1001,
			expect: []byte{0x0d, 0, 0x01, 0x10, 0, 0, 0, 0, 0, 0, 0, 0},
		},
		{
			name: "two chunks",
			cmd:  0x0d, dst: 0x1001, flags: 1,
			chunks: [][]byte{[]byte("t"), []byte("v")},
			expect: []byte{
				0x0d, 0, 0x01, 0x10, 0, 0, 1, 0, 0, 0, 2, 0,
				1, 0, 't',
				1, 0, 'v',
			},
		},
		{
			name: "empty chunk",
			cmd:  1, dst: 0xffffffff,
			chunks: [][]byte{{}},
			expect: []byte{1, 0, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0, 1, 0, 0, 0},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var w frameBuffer
			b := NewBuilder(&w)
			crc := b.Start(tc.cmd, tc.dst, tc.flags, len(tc.chunks))
			for _, chunk := range tc.chunks {
				crc = b.Body(crc, chunk)
			}
			require.NoError(t, b.End(crc))
			require.Len(t, w.frames, 1)
			frame := w.frames[0]
			require.Equal(t, tc.expect, frame[:len(frame)-ChecksumSize])
			trailer := Checksum(binary.LittleEndian.Uint16(frame[len(frame)-ChecksumSize:]))
			require.Equal(t, ComputeChecksum(tc.expect), trailer)

			f, err := ParseFrame(frame)
			require.NoError(t, err)
			require.Equal(t, tc.cmd, f.Cmd)
			require.Equal(t, tc.dst, f.Dst)
			require.Equal(t, tc.flags, f.Flags)
			require.Len(t, f.Body, len(tc.chunks))
			for i, chunk := range tc.chunks {
				require.Equal(t, chunk, f.Body[i])
			}
		})
	}
}

func TestBuilderReuse(t *testing.T) {
	var w frameBuffer
	b := NewBuilder(&w)
	for i := 0; i < 3; i++ {
		crc := b.Start(1, Handle(i+1), 0, 1)
		crc = b.Body(crc, []byte{byte(i)})
		require.NoError(t, b.End(crc))
	}
	require.Len(t, w.frames, 3)
	for i, frame := range w.frames {
		f, err := ParseFrame(frame)
		require.NoError(t, err)
		require.Equal(t, Handle(i+1), f.Dst)
	}
}

func TestBuilderContract(t *testing.T) {
	testCases := []struct {
		name string
		fn   func(b *Builder)
	}{
		{"body before start", func(b *Builder) { b.Body(0, nil) }},
		{"end before start", func(b *Builder) { b.End(0) }},
		{"too many chunks", func(b *Builder) {
			crc := b.Start(1, 1, 0, 1)
			crc = b.Body(crc, nil)
			b.Body(crc, nil)
		}},
		{"too few chunks", func(b *Builder) {
			crc := b.Start(1, 1, 0, 2)
			crc = b.Body(crc, nil)
			b.End(crc)
		}},
		{"start twice", func(b *Builder) {
			b.Start(1, 1, 0, 1)
			b.Start(1, 1, 0, 1)
		}},
		{"negative count", func(b *Builder) { b.Start(1, 1, 0, -1) }},
		{"oversized chunk", func(b *Builder) {
			crc := b.Start(1, 1, 0, 1)
			b.Body(crc, make([]byte, MaxArgLen+1))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var w frameBuffer
			b := NewBuilder(&w)
			requirePanicContract(t, func() { tc.fn(b) })
			require.Empty(t, w.frames)
		})
	}
}

func TestBuilderWriteError(t *testing.T) {
	errBroken := errors.New("broken")
	w := &failingWriter{err: errBroken}
	b := NewBuilder(w)
	crc := b.Start(1, 1, 0, 1)
	crc = b.Body(crc, []byte("x"))
	require.Equal(t, errBroken, b.End(crc))
	require.False(t, w.flushed)

	// builder is usable again after a failed frame
	w.err = nil
	crc = b.Start(1, 1, 0, 0)
	require.NoError(t, b.End(crc))
	require.True(t, w.flushed)
}

func TestParseFrameErrors(t *testing.T) {
	var w frameBuffer
	b := NewBuilder(&w)
	crc := b.Start(1, 2, 0, 1)
	crc = b.Body(crc, []byte("abc"))
	require.NoError(t, b.End(crc))
	frame := w.frames[0]

	_, err := ParseFrame(frame[:ResponseHeaderSize])
	require.Equal(t, ErrTruncatedPacket, err)

	corrupted := append([]byte(nil), frame...)
	corrupted[ResponseHeaderSize+ArgLenSize] ^= 0xff
	_, err = ParseFrame(corrupted)
	require.Equal(t, ErrChecksumMismatch, err)

	// count says 2 but only one chunk present
	lying := append([]byte(nil), frame[:len(frame)-ChecksumSize]...)
	lying[10] = 2
	lying = append(lying, Uint16(uint16(ComputeChecksum(lying)))...)
	_, err = ParseFrame(lying)
	require.Equal(t, ErrTruncatedPacket, err)

	// count says 0 but a chunk follows
	lying[10] = 0
	lying = append(lying[:len(lying)-ChecksumSize], Uint16(uint16(ComputeChecksum(lying[:len(lying)-ChecksumSize])))...)
	_, err = ParseFrame(lying)
	require.Equal(t, ErrTrailingData, err)
}

func TestChecksumXMODEM(t *testing.T) {
	// CRC-16/XMODEM check value
	require.Equal(t, Checksum(0x31c3), ComputeChecksum([]byte("123456789")))
}
