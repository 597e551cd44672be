package dispatch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcubridge/pkg/wire"
)

type chanReader struct {
	pkts   chan []byte
	closed bool
}

func newChanReader() *chanReader {
	return &chanReader{pkts: make(chan []byte, 8)}
}

func (r *chanReader) ReadPacket() ([]byte, error) {
	pkt, ok := <-r.pkts
	if !ok {
		return nil, io.EOF
	}
	return pkt, nil
}

func (r *chanReader) Close() error {
	r.closed = true
	return nil
}

func TestBridgeOrdering(t *testing.T) {
	var trace []string
	table := NewTable().RegisterFunc(1, func(req *wire.Request) (uint32, error) {
		trace = append(trace, "cmd")
		return StatusOK, nil
	})
	r := newChanReader()
	b := NewBridge(table, r)
	statuses := make(chan uint32, 4)
	b.Done = func(pkt []byte, status uint32) { statuses <- status }

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()

	r.pkts <- wire.EncodeRequest(1)
	assert.Equal(t, StatusOK, <-statuses)
	r.pkts <- wire.EncodeRequest(2)
	assert.Equal(t, StatusFailed, <-statuses)

	posted := make(chan struct{})
	b.Post(func() { trace = append(trace, "event1") })
	b.Post(func() { trace = append(trace, "event2"); close(posted) })
	<-posted

	close(r.pkts)
	select {
	case err := <-errCh:
		assert.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
	assert.Equal(t, []string{"cmd", "event1", "event2"}, trace)
	assert.True(t, r.closed)
}

func TestBridgeCancel(t *testing.T) {
	r := newChanReader()
	b := NewBridge(NewTable(), r)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()
	cancel()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestBridgePostFromHandlerWithFullQueue(t *testing.T) {
	r := newChanReader()
	table := NewTable()
	b := NewBridgeSize(table, r, 1)
	handlerEvents := make(chan int, 8)
	table.RegisterFunc(1, func(req *wire.Request) (uint32, error) {
		for i := 0; i < 3; i++ {
			n := i
			b.Post(func() { handlerEvents <- n })
		}
		return StatusOK, nil
	})
	statuses := make(chan uint32, 1)
	b.Done = func(pkt []byte, status uint32) { statuses <- status }

	// keep the queue full from another goroutine
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				b.Post(func() {})
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	r.pkts <- wire.EncodeRequest(1)

	select {
	case status := <-statuses:
		assert.Equal(t, StatusOK, status)
	case <-time.After(time.Second):
		t.Fatal("bridge blocked posting to its own queue")
	}
	for i := 0; i < 3; i++ {
		select {
		case n := <-handlerEvents:
			assert.Equal(t, i, n)
		case <-time.After(time.Second):
			t.Fatalf("event %d not run", i)
		}
	}
}

func TestBridgePostAfterStop(t *testing.T) {
	b := NewBridgeSize(NewTable(), newChanReader(), 1)
	b.Post(func() {})
	waiting := make(chan struct{})
	go func() {
		b.Post(func() {})
		close(waiting)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, errors.Is(b.Run(ctx), context.Canceled))

	posted := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Post(func() { t.Error("event ran after stop") })
		}
		close(posted)
	}()
	for _, ch := range []chan struct{}{waiting, posted} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("Post blocked after the bridge stopped")
		}
	}
}
