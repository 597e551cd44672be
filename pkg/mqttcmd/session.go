package mqttcmd

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/dispatch"
	"github.com/robotalks/mcubridge/pkg/relay"
	"github.com/robotalks/mcubridge/pkg/wire"
)

// Command ids.
const (
	CmdInit        wire.CommandID = 4
	CmdConnect     wire.CommandID = 5
	CmdDisconnect  wire.CommandID = 6
	CmdPublish     wire.CommandID = 7
	CmdSubscribe   wire.CommandID = 8
	CmdLwt         wire.CommandID = 9
	CmdUnsubscribe wire.CommandID = 16
	CmdTeardown    wire.CommandID = 17
)

// InitToken is returned by Init and identifies the session's client
// in subsequent commands.
const InitToken uint32 = 0xf00df00d

// Default ceilings applied to variable-length arguments.
const (
	DefaultMaxTopicLen   = 128
	DefaultMaxPayloadLen = 1024
)

var (
	// ErrUnknownClient indicates the client handle argument isn't InitToken.
	ErrUnknownClient = errors.New("unknown client")
	// ErrInvalidQoS indicates a QoS above 2.
	ErrInvalidQoS = errors.New("invalid qos")
)

// MaxRequestLen returns the size of the largest request the commands
// accept under the given ceilings, link trailer included.
func MaxRequestLen(maxTopicLen, maxPayloadLen int) int {
	size := wire.RequestLen(4, maxTopicLen, maxPayloadLen, 4, 4, 4)
	if lwt := wire.RequestLen(4, maxTopicLen, maxTopicLen, 4, 4); lwt > size {
		size = lwt
	}
	return size + wire.ChecksumSize
}

// Session binds a Client, the callbacks registered by the
// microcontroller and the relay emitting events back to it.
type Session struct {
	Client   Client
	Registry *relay.Registry
	Relay    *relay.Relay

	// Post schedules hook work on the dispatch goroutine.
	// Hooks run inline if it's nil.
	Post func(func())

	MaxTopicLen   int
	MaxPayloadLen int
}

// NewSession creates a Session emitting event frames with b.
func NewSession(client Client, b *wire.Builder) *Session {
	reg := &relay.Registry{}
	return &Session{
		Client:        client,
		Registry:      reg,
		Relay:         relay.New(reg, b),
		MaxTopicLen:   DefaultMaxTopicLen,
		MaxPayloadLen: DefaultMaxPayloadLen,
	}
}

// RegisterTo installs the command handlers into t.
func (s *Session) RegisterTo(t *dispatch.Table) *dispatch.Table {
	return t.RegisterFunc(CmdInit, s.Init).
		RegisterFunc(CmdConnect, s.Connect).
		RegisterFunc(CmdDisconnect, s.Disconnect).
		RegisterFunc(CmdPublish, s.Publish).
		RegisterFunc(CmdSubscribe, s.Subscribe).
		RegisterFunc(CmdUnsubscribe, s.Unsubscribe).
		RegisterFunc(CmdLwt, s.Lwt).
		RegisterFunc(CmdTeardown, s.Teardown)
}

// Init registers the four callback handles and installs the client hooks.
// Args: connected, disconnected, published, data handles.
func (s *Session) Init(req *wire.Request) (uint32, error) {
	if err := req.ExpectArgs(4); err != nil {
		return dispatch.StatusFailed, err
	}
	var cbs relay.Callbacks
	for _, h := range []*wire.Handle{&cbs.Connected, &cbs.Disconnected, &cbs.Published, &cbs.Data} {
		v, err := req.PopUint32()
		if err != nil {
			return dispatch.StatusFailed, err
		}
		*h = wire.Handle(v)
	}
	glog.V(1).Infof("MQTT: init connected=%#x disconnected=%#x published=%#x data=%#x",
		uint32(cbs.Connected), uint32(cbs.Disconnected), uint32(cbs.Published), uint32(cbs.Data))
	s.Registry.Register(cbs)
	s.Client.SetHooks(Hooks{
		Connected:    s.hook(s.Relay.Connected),
		Disconnected: s.hook(s.Relay.Disconnected),
		Published:    s.hook(s.Relay.Published),
		Data: func(topic string, payload []byte) {
			s.post(func() {
				if err := s.Relay.Data([]byte(topic), payload); err != nil {
					glog.Errorf("MQTT: %v", err)
				}
			})
		},
	})
	return InitToken, nil
}

// Connect connects the client. Args: client.
func (s *Session) Connect(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 1); err != nil {
		return dispatch.StatusFailed, err
	}
	glog.V(1).Info("MQTT: connect")
	return status(s.Client.Connect())
}

// Disconnect disconnects the client. Args: client.
func (s *Session) Disconnect(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 1); err != nil {
		return dispatch.StatusFailed, err
	}
	glog.V(1).Info("MQTT: disconnect")
	return status(s.Client.Disconnect())
}

// Publish publishes a message.
// Args: client, topic, payload, payload length, qos, retain.
// The payload length is carried for the benefit of C strings on the
// microcontroller side and is ignored here.
func (s *Session) Publish(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 6); err != nil {
		return dispatch.StatusFailed, err
	}
	topic, err := req.PopString(s.MaxTopicLen)
	if err != nil {
		return dispatch.StatusFailed, fmt.Errorf("topic: %w", err)
	}
	payload, err := req.PopBytes(s.MaxPayloadLen)
	if err != nil {
		return dispatch.StatusFailed, fmt.Errorf("payload: %w", err)
	}
	if _, err = req.PopUint32(); err != nil {
		return dispatch.StatusFailed, fmt.Errorf("payload length: %w", err)
	}
	qos, retain, err := popQoSRetain(req)
	if err != nil {
		return dispatch.StatusFailed, err
	}
	glog.V(1).Infof("MQTT: publish topic=%s len=%d qos=%d retain=%v", topic, len(payload), qos, retain)
	return status(s.Client.Publish(topic, payload, qos, retain))
}

// Subscribe subscribes a topic. Args: client, topic, qos.
func (s *Session) Subscribe(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 3); err != nil {
		return dispatch.StatusFailed, err
	}
	topic, err := req.PopString(s.MaxTopicLen)
	if err != nil {
		return dispatch.StatusFailed, fmt.Errorf("topic: %w", err)
	}
	qos, err := popQoS(req)
	if err != nil {
		return dispatch.StatusFailed, err
	}
	glog.V(1).Infof("MQTT: subscribe topic=%s qos=%d", topic, qos)
	return status(s.Client.Subscribe(topic, qos))
}

// Unsubscribe drops a subscription. Args: client, topic.
func (s *Session) Unsubscribe(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 2); err != nil {
		return dispatch.StatusFailed, err
	}
	topic, err := req.PopString(s.MaxTopicLen)
	if err != nil {
		return dispatch.StatusFailed, fmt.Errorf("topic: %w", err)
	}
	glog.V(1).Infof("MQTT: unsubscribe topic=%s", topic)
	return status(s.Client.Unsubscribe(topic))
}

// Lwt sets the last will and reconnects so it takes effect.
// Args: client, topic, message, qos, retain.
func (s *Session) Lwt(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 5); err != nil {
		return dispatch.StatusFailed, err
	}
	topic, err := req.PopString(s.MaxTopicLen)
	if err != nil {
		return dispatch.StatusFailed, fmt.Errorf("will topic: %w", err)
	}
	msg, err := req.PopBytes(s.MaxTopicLen)
	if err != nil {
		return dispatch.StatusFailed, fmt.Errorf("will message: %w", err)
	}
	qos, retain, err := popQoSRetain(req)
	if err != nil {
		return dispatch.StatusFailed, err
	}
	glog.V(1).Infof("MQTT: lwt topic=%s message=%q qos=%d retain=%v", topic, msg, qos, retain)
	s.Client.SetWill(topic, msg, qos, retain)
	return status(s.Client.Reconnect())
}

// Teardown ends the session: callbacks are dropped and the client
// disconnected. Args: client.
func (s *Session) Teardown(req *wire.Request) (uint32, error) {
	if err := s.popClient(req, 1); err != nil {
		return dispatch.StatusFailed, err
	}
	glog.V(1).Info("MQTT: teardown")
	s.Registry.Clear()
	s.Client.SetHooks(Hooks{})
	return status(s.Client.Disconnect())
}

func (s *Session) popClient(req *wire.Request, argc int) error {
	if err := req.ExpectArgs(argc); err != nil {
		return err
	}
	client, err := req.PopUint32()
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if client != InitToken {
		return fmt.Errorf("%w: %#x", ErrUnknownClient, client)
	}
	return nil
}

func (s *Session) hook(fn func() error) func() {
	return func() {
		s.post(func() {
			if err := fn(); err != nil {
				glog.Errorf("MQTT: %v", err)
			}
		})
	}
}

func (s *Session) post(fn func()) {
	if s.Post != nil {
		s.Post(fn)
	} else {
		fn()
	}
}

func popQoS(req *wire.Request) (byte, error) {
	qos, err := req.PopUint32()
	if err != nil {
		return 0, fmt.Errorf("qos: %w", err)
	}
	if qos > 2 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	return byte(qos), nil
}

func popQoSRetain(req *wire.Request) (byte, bool, error) {
	qos, err := popQoS(req)
	if err != nil {
		return 0, false, err
	}
	retain, err := req.PopUint32()
	if err != nil {
		return 0, false, fmt.Errorf("retain: %w", err)
	}
	return qos, retain != 0, nil
}

func status(err error) (uint32, error) {
	if err != nil {
		return dispatch.StatusFailed, err
	}
	return dispatch.StatusOK, nil
}
