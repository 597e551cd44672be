package relay

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcubridge/pkg/wire"
)

type frameRecorder struct {
	bytes.Buffer
	frames [][]byte
	err    error
}

func (r *frameRecorder) Write(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.Buffer.Write(p)
}

func (r *frameRecorder) Flush() error {
	r.frames = append(r.frames, append([]byte(nil), r.Bytes()...))
	r.Reset()
	return nil
}

func (r *frameRecorder) decoded(t *testing.T) []*wire.Frame {
	frames := make([]*wire.Frame, 0, len(r.frames))
	for _, b := range r.frames {
		f, err := wire.ParseFrame(b)
		require.NoError(t, err)
		frames = append(frames, f)
	}
	return frames
}

func newTestRelay() (*Relay, *frameRecorder) {
	rec := &frameRecorder{}
	return New(&Registry{}, wire.NewBuilder(rec)), rec
}

func TestRelayUnregistered(t *testing.T) {
	r, rec := newTestRelay()
	require.NoError(t, r.Connected())
	require.NoError(t, r.Disconnected())
	require.NoError(t, r.Published())
	require.NoError(t, r.Data([]byte("t"), []byte("v")))
	require.Empty(t, rec.frames)
}

func TestRelayEvents(t *testing.T) {
	r, rec := newTestRelay()
	r.Registry.Register(Callbacks{Connected: 0x10, Disconnected: 0x20, Published: 0x30, Data: 0x1001})

	require.NoError(t, r.Connected())
	require.NoError(t, r.Published())
	require.NoError(t, r.Data([]byte("t"), []byte("v")))
	require.NoError(t, r.Disconnected())

	frames := rec.decoded(t)
	require.Len(t, frames, 4)
	for _, f := range frames {
		require.Equal(t, CmdEvents, f.Cmd)
	}
	require.Equal(t, wire.Handle(0x10), frames[0].Dst)
	require.Empty(t, frames[0].Body)
	require.Equal(t, wire.Handle(0x30), frames[1].Dst)
	require.Empty(t, frames[1].Body)
	require.Equal(t, wire.Handle(0x1001), frames[2].Dst)
	require.Equal(t, [][]byte{[]byte("t"), []byte("v")}, frames[2].Body)
	require.Equal(t, wire.Handle(0x20), frames[3].Dst)
}

func TestRelayDataFrameBytes(t *testing.T) {
	r, rec := newTestRelay()
	r.Registry.Register(Callbacks{Data: 0x1001})
	require.NoError(t, r.Data([]byte("t"), []byte("v")))
	require.Len(t, rec.frames, 1)

	content := []byte{
		0x0a, 0x00,
		0x01, 0x10, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x02, 0x00,
		0x01, 0x00, 't',
		0x01, 0x00, 'v',
	}
	expect := append(append([]byte(nil), content...), wire.Uint16(uint16(wire.ComputeChecksum(content)))...)
	require.Equal(t, expect, rec.frames[0])
}

func TestRelayPartialRegistration(t *testing.T) {
	r, rec := newTestRelay()
	r.Registry.Register(Callbacks{Published: 5})
	require.NoError(t, r.Connected())
	require.NoError(t, r.Data(nil, nil))
	require.NoError(t, r.Published())
	frames := rec.decoded(t)
	require.Len(t, frames, 1)
	require.Equal(t, wire.Handle(5), frames[0].Dst)
}

func TestRelayTransportError(t *testing.T) {
	r, rec := newTestRelay()
	r.Registry.Register(Callbacks{Connected: 1})
	errBroken := errors.New("broken")
	rec.err = errBroken
	err := r.Connected()
	require.True(t, errors.Is(err, errBroken))
	require.Empty(t, rec.frames)

	// no retry: next event is a fresh frame
	rec.err = nil
	require.NoError(t, r.Connected())
	require.Len(t, rec.frames, 1)
}

func TestRelayOversizedPayload(t *testing.T) {
	r, rec := newTestRelay()
	r.Registry.Register(Callbacks{Data: 1})
	err := r.Data([]byte("t"), make([]byte, wire.MaxArgLen+1))
	require.True(t, errors.Is(err, wire.ErrArgumentTooLarge))
	require.Empty(t, rec.frames)
	require.Zero(t, rec.Len())
}

func TestRelayFrameLimit(t *testing.T) {
	r, rec := newTestRelay()
	r.Registry.Register(Callbacks{Data: 1})

	payload := make([]byte, 3000)
	require.NoError(t, r.Data([]byte("t"), payload))
	require.Len(t, rec.frames, 1)
	require.True(t, len(rec.frames[0]) <= wire.MaxFrameLen)

	room := wire.MaxFrameLen - wire.FrameLen([]byte("t"), nil)
	require.NoError(t, r.Data([]byte("t"), make([]byte, room)))
	require.Len(t, rec.frames, 2)
	require.Len(t, rec.frames[1], wire.MaxFrameLen)

	err := r.Data([]byte("t"), make([]byte, room+1))
	require.True(t, errors.Is(err, wire.ErrFrameTooLarge))
	require.Len(t, rec.frames, 2)
	require.Zero(t, rec.Len())
}
