package dispatch

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/transport"
)

// DefaultEventQueueSize is the default capacity of the posted event queue.
const DefaultEventQueueSize = 64

// Bridge runs command dispatch and posted network events on a single
// goroutine. Posted events run in the order they were posted.
type Bridge struct {
	Table  *Table
	Reader transport.PacketReader

	// Done is called with the status of each dispatched packet if set.
	Done func(pkt []byte, status uint32)

	queueSize int
	queue     []func()
	inLoop    bool
	stopped   bool
	notify    chan struct{}
	lock      sync.Mutex
	space     *sync.Cond
}

// NewBridge creates a Bridge.
func NewBridge(table *Table, r transport.PacketReader) *Bridge {
	return NewBridgeSize(table, r, DefaultEventQueueSize)
}

// NewBridgeSize creates a Bridge queueing up to queueSize posted events
// before posters outside the bridge goroutine wait.
func NewBridgeSize(table *Table, r transport.PacketReader, queueSize int) *Bridge {
	b := &Bridge{
		Table:     table,
		Reader:    r,
		queueSize: queueSize,
		notify:    make(chan struct{}, 1),
	}
	b.space = sync.NewCond(&b.lock)
	return b
}

// Post queues fn to run on the bridge goroutine.
// It is safe to call from any goroutine. While the queue is full it waits
// for room, except when called from work running on the bridge goroutine,
// which never waits on its own queue. Once Run returns, fn is dropped.
func (b *Bridge) Post(fn func()) {
	b.lock.Lock()
	for !b.stopped && !b.inLoop && len(b.queue) >= b.queueSize {
		b.space.Wait()
	}
	if b.stopped {
		b.lock.Unlock()
		glog.V(2).Info("bridge stopped, event dropped")
		return
	}
	b.queue = append(b.queue, fn)
	b.lock.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.close()
	pktCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.readLoop(subCtx, pktCh, errCh)
	for {
		select {
		case pkt := <-pktCh:
			b.setInLoop(true)
			status := b.Table.Dispatch(pkt)
			if b.Done != nil {
				b.Done(pkt, status)
			}
			b.setInLoop(false)
		case <-b.notify:
			b.runQueued()
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Bridge) runQueued() {
	b.lock.Lock()
	batch := b.queue
	b.queue = nil
	b.inLoop = true
	b.space.Broadcast()
	b.lock.Unlock()
	for _, fn := range batch {
		fn()
	}
	b.setInLoop(false)
}

func (b *Bridge) setInLoop(inLoop bool) {
	b.lock.Lock()
	b.inLoop = inLoop
	b.lock.Unlock()
}

func (b *Bridge) readLoop(ctx context.Context, pktCh chan []byte, errCh chan error) {
	for {
		pkt, err := b.Reader.ReadPacket()
		if errors.Is(err, transport.ErrPacketTooLarge) {
			glog.Warningf("drop packet: %v", err)
			continue
		}
		if err != nil {
			errCh <- err
			return
		}
		glog.V(3).Infof("RCV %d bytes", len(pkt))
		select {
		case pktCh <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bridge) close() {
	b.lock.Lock()
	b.stopped = true
	if n := len(b.queue); n > 0 {
		glog.V(2).Infof("bridge stopped, %d events dropped", n)
	}
	b.queue = nil
	b.space.Broadcast()
	b.lock.Unlock()
	if closer, ok := b.Reader.(io.Closer); ok {
		closer.Close()
	}
}
