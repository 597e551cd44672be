// Package relay forwards asynchronous network events to the callback
// handles registered by the microcontroller.
package relay

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/wire"
)

// CmdEvents is the command id of relayed event frames.
const CmdEvents wire.CommandID = 10

// Relay emits one response frame per event whose handle is registered.
// It is stateless apart from the Registry, and never retries: errors
// from the transport are returned to the caller.
type Relay struct {
	Registry *Registry
	Builder  *wire.Builder
	// MaxFrameLen is the largest frame the link carries. Events which
	// don't fit are rejected instead of being dropped by the receiver.
	MaxFrameLen int
}

// New creates a Relay.
func New(reg *Registry, b *wire.Builder) *Relay {
	return &Relay{Registry: reg, Builder: b, MaxFrameLen: wire.MaxFrameLen}
}

// Connected relays the connected event.
func (r *Relay) Connected() error {
	return r.emit(EventConnected)
}

// Disconnected relays the disconnected event.
func (r *Relay) Disconnected() error {
	return r.emit(EventDisconnected)
}

// Published relays the publish acknowledgement.
func (r *Relay) Published() error {
	return r.emit(EventPublished)
}

// Data relays an inbound message as two body chunks: topic and payload.
func (r *Relay) Data(topic, payload []byte) error {
	return r.emit(EventData, topic, payload)
}

func (r *Relay) emit(kind EventKind, chunks ...[]byte) error {
	h, ok := r.Registry.Lookup(kind)
	if !ok {
		glog.V(3).Infof("relay %s: no callback", kind)
		return nil
	}
	for _, chunk := range chunks {
		if len(chunk) > wire.MaxArgLen {
			return fmt.Errorf("relay %s: %d bytes: %w", kind, len(chunk), wire.ErrArgumentTooLarge)
		}
	}
	if size := wire.FrameLen(chunks...); r.MaxFrameLen > 0 && size > r.MaxFrameLen {
		return fmt.Errorf("relay %s: %d bytes: %w", kind, size, wire.ErrFrameTooLarge)
	}
	glog.V(2).Infof("relay %s -> %#x", kind, uint32(h))
	crc := r.Builder.Start(CmdEvents, h, 0, len(chunks))
	for _, chunk := range chunks {
		crc = r.Builder.Body(crc, chunk)
	}
	if err := r.Builder.End(crc); err != nil {
		return fmt.Errorf("relay %s: %w", kind, err)
	}
	return nil
}
