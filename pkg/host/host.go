// Package host plays the microcontroller side of the link: it encodes
// requests and routes response frames to callbacks by handle.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/transport"
	"github.com/robotalks/mcubridge/pkg/wire"
)

// ErrClosed is returned by Send after the Host stops running.
var ErrClosed = errors.New("host closed")

// Callback receives a response frame addressed to its handle.
type Callback func(*wire.Frame)

// Host sends requests and receives response frames over a link.
type Host struct {
	conn      transport.PacketReadWriter
	callbacks map[wire.Handle]Callback
	next      wire.Handle
	unrouted  chan *wire.Frame
	closed    bool
	lock      sync.Mutex
	sendLock  sync.Mutex
}

// New creates a Host over conn.
func New(conn transport.PacketReadWriter) *Host {
	return &Host{
		conn:      conn,
		callbacks: make(map[wire.Handle]Callback),
		unrouted:  make(chan *wire.Frame, 16),
	}
}

// Allocate registers cb and returns its handle, never 0.
func (h *Host) Allocate(cb Callback) wire.Handle {
	h.lock.Lock()
	defer h.lock.Unlock()
	for {
		h.next++
		if _, exists := h.callbacks[h.next]; !exists && h.next != 0 {
			break
		}
	}
	h.callbacks[h.next] = cb
	return h.next
}

// Release drops the callback of handle.
func (h *Host) Release(handle wire.Handle) {
	h.lock.Lock()
	delete(h.callbacks, handle)
	h.lock.Unlock()
}

// Unrouted retrieves the chan of frames addressed to unknown handles.
// Frames are dropped when nobody drains it.
func (h *Host) Unrouted() <-chan *wire.Frame {
	return h.unrouted
}

// Send encodes and sends a request.
func (h *Host) Send(cmd wire.CommandID, args ...[]byte) error {
	h.lock.Lock()
	closed := h.closed
	h.lock.Unlock()
	if closed {
		return ErrClosed
	}
	pkt := wire.EncodeRequest(cmd, args...)
	if size := len(pkt) + wire.ChecksumSize; size > wire.MaxFrameLen {
		return fmt.Errorf("command %d: %d bytes: %w", cmd, size, wire.ErrFrameTooLarge)
	}
	glog.V(3).Infof("SND cmd=%d %d bytes", cmd, len(pkt))
	h.sendLock.Lock()
	defer h.sendLock.Unlock()
	return h.conn.WritePacket(pkt)
}

// Run implements Runnable.
func (h *Host) Run(ctx context.Context) error {
	defer h.close()
	frameCh, errCh := make(chan []byte), make(chan error, 1)
	go func() {
		for {
			raw, err := transport.ReadFrame(h.conn)
			if errors.Is(err, transport.ErrPacketTooLarge) {
				glog.Warningf("drop frame: %v", err)
				continue
			}
			if err != nil {
				errCh <- err
				return
			}
			select {
			case frameCh <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case raw := <-frameCh:
			h.route(raw)
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Host) route(raw []byte) {
	frame, err := wire.ParseFrame(raw)
	if err != nil {
		glog.Warningf("drop frame: %v", err)
		return
	}
	h.lock.Lock()
	cb := h.callbacks[frame.Dst]
	h.lock.Unlock()
	if cb != nil {
		cb(frame)
		return
	}
	select {
	case h.unrouted <- frame:
	default:
		glog.V(2).Infof("drop frame to unknown handle %#x", uint32(frame.Dst))
	}
}

func (h *Host) close() {
	h.lock.Lock()
	h.closed = true
	h.lock.Unlock()
}
