package host

import (
	"fmt"

	"github.com/robotalks/mcubridge/pkg/mqttcmd"
	"github.com/robotalks/mcubridge/pkg/relay"
	"github.com/robotalks/mcubridge/pkg/wire"
)

// Message is a received MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Event is an MQTT event delivered by the bridge.
type Event struct {
	Kind    relay.EventKind
	Message *Message
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e.Message != nil {
		return fmt.Sprintf("%s %s %q", e.Kind, e.Message.Topic, e.Message.Payload)
	}
	return e.Kind.String()
}

// MQTT issues MQTT commands the way a microcontroller library does.
type MQTT struct {
	Host *Host

	handles [4]wire.Handle
	events  chan Event
}

// NewMQTT creates an MQTT over h. Events are buffered up to queueSize
// and dropped beyond that.
func NewMQTT(h *Host, queueSize int) *MQTT {
	return &MQTT{Host: h, events: make(chan Event, queueSize)}
}

// Events retrieves the event chan.
func (m *MQTT) Events() <-chan Event {
	return m.events
}

// Init allocates the callback handles and sends Init.
func (m *MQTT) Init() error {
	kinds := []relay.EventKind{relay.EventConnected, relay.EventDisconnected, relay.EventPublished, relay.EventData}
	args := make([][]byte, len(kinds))
	for n, kind := range kinds {
		if m.handles[n] == 0 {
			m.handles[n] = m.Host.Allocate(m.callback(kind))
		}
		args[n] = wire.Uint32(uint32(m.handles[n]))
	}
	return m.Host.Send(mqttcmd.CmdInit, args...)
}

// Connect sends Connect.
func (m *MQTT) Connect() error {
	return m.Host.Send(mqttcmd.CmdConnect, m.client())
}

// Disconnect sends Disconnect.
func (m *MQTT) Disconnect() error {
	return m.Host.Send(mqttcmd.CmdDisconnect, m.client())
}

// Publish sends Publish.
func (m *MQTT) Publish(topic string, payload []byte, qos byte, retain bool) error {
	return m.Host.Send(mqttcmd.CmdPublish, m.client(),
		[]byte(topic), payload, wire.Uint32(uint32(len(payload))),
		wire.Uint32(uint32(qos)), boolArg(retain))
}

// Subscribe sends Subscribe.
func (m *MQTT) Subscribe(topic string, qos byte) error {
	return m.Host.Send(mqttcmd.CmdSubscribe, m.client(), []byte(topic), wire.Uint32(uint32(qos)))
}

// Unsubscribe sends Unsubscribe.
func (m *MQTT) Unsubscribe(topic string) error {
	return m.Host.Send(mqttcmd.CmdUnsubscribe, m.client(), []byte(topic))
}

// Lwt sends Lwt.
func (m *MQTT) Lwt(topic string, message []byte, qos byte, retain bool) error {
	return m.Host.Send(mqttcmd.CmdLwt, m.client(),
		[]byte(topic), message, wire.Uint32(uint32(qos)), boolArg(retain))
}

// Teardown sends Teardown and releases the callback handles.
func (m *MQTT) Teardown() error {
	err := m.Host.Send(mqttcmd.CmdTeardown, m.client())
	for n, handle := range m.handles {
		if handle != 0 {
			m.Host.Release(handle)
			m.handles[n] = 0
		}
	}
	return err
}

func (m *MQTT) client() []byte {
	return wire.Uint32(mqttcmd.InitToken)
}

func (m *MQTT) callback(kind relay.EventKind) Callback {
	return func(f *wire.Frame) {
		ev := Event{Kind: kind}
		if kind == relay.EventData && len(f.Body) == 2 {
			payload := make([]byte, len(f.Body[1]))
			copy(payload, f.Body[1])
			ev.Message = &Message{Topic: string(f.Body[0]), Payload: payload}
		}
		select {
		case m.events <- ev:
		default:
		}
	}
}

func boolArg(v bool) []byte {
	if v {
		return wire.Uint32(1)
	}
	return wire.Uint32(0)
}
