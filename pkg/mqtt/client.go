// Package mqtt implements the MQTT client driven by the bridge on top of
// the paho client.
package mqtt

import (
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/mcubridge/pkg/mqttcmd"
)

// DefaultDisconnectQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
const DefaultDisconnectQuiesce = 250

// Client implements mqttcmd.Client using paho.
// Operations don't block: completion and failures are reported through
// the hooks and the log.
type Client struct {
	TopicPrefix string

	options *paho.ClientOptions
	client  paho.Client
	hooks   mqttcmd.Hooks
	subs    map[string]byte
	lock    sync.RWMutex
}

// NewClient creates a Client.
func NewClient(options *paho.ClientOptions, topicPrefix string) *Client {
	c := &Client{
		TopicPrefix: topicPrefix,
		options:     options,
		subs:        make(map[string]byte),
	}
	options.SetOnConnectHandler(c.onConnect)
	options.SetConnectionLostHandler(c.onConnectionLost)
	// Subscriptions register no per-filter routes, so paho hands every
	// message to the default handler exactly once even when filters overlap.
	options.SetDefaultPublishHandler(c.dispatch)
	c.client = paho.NewClient(options)
	return c
}

// NewClientFromURL creates a Client from broker URL.
func NewClientFromURL(brokerURL string) (*Client, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return NewClient(opts, topicPrefix), nil
}

// SetHooks implements mqttcmd.Client.
func (c *Client) SetHooks(hooks mqttcmd.Hooks) {
	c.lock.Lock()
	c.hooks = hooks
	c.lock.Unlock()
}

// Connect implements mqttcmd.Client.
func (c *Client) Connect() error {
	c.track("connect", c.paho().Connect(), nil)
	return nil
}

// Disconnect implements mqttcmd.Client.
func (c *Client) Disconnect() error {
	if client := c.paho(); client.IsConnected() {
		client.Disconnect(DefaultDisconnectQuiesce)
	}
	glog.Info("disconnected")
	if h := c.currentHooks().Disconnected; h != nil {
		h()
	}
	return nil
}

// Reconnect implements mqttcmd.Client.
// The paho client is rebuilt so option changes like the will take effect.
func (c *Client) Reconnect() error {
	c.lock.Lock()
	old := c.client
	c.client = paho.NewClient(c.options)
	c.lock.Unlock()
	if old.IsConnected() {
		old.Disconnect(DefaultDisconnectQuiesce)
	}
	return c.Connect()
}

// SetWill implements mqttcmd.Client.
func (c *Client) SetWill(topic string, payload []byte, qos byte, retain bool) {
	c.lock.Lock()
	c.options.SetBinaryWill(c.TopicPrefix+topic, payload, qos, retain)
	c.lock.Unlock()
}

// Publish implements mqttcmd.Client.
func (c *Client) Publish(topic string, payload []byte, qos byte, retain bool) error {
	glog.V(2).Infof("PUB %q", c.TopicPrefix+topic)
	token := c.paho().Publish(c.TopicPrefix+topic, qos, retain, payload)
	c.track("publish "+topic, token, func() {
		if h := c.currentHooks().Published; h != nil {
			h()
		}
	})
	return nil
}

// Subscribe implements mqttcmd.Client.
func (c *Client) Subscribe(topic string, qos byte) error {
	c.lock.Lock()
	c.subs[topic] = qos
	c.lock.Unlock()
	glog.V(2).Infof("SUB %q", c.TopicPrefix+topic)
	c.track("subscribe "+topic, c.paho().Subscribe(c.TopicPrefix+topic, qos, nil), nil)
	return nil
}

// Unsubscribe implements mqttcmd.Client.
func (c *Client) Unsubscribe(topic string) error {
	c.lock.Lock()
	delete(c.subs, topic)
	c.lock.Unlock()
	glog.V(2).Infof("UNSUB %q", c.TopicPrefix+topic)
	c.track("unsubscribe "+topic, c.paho().Unsubscribe(c.TopicPrefix+topic), nil)
	return nil
}

// Close implements io.Closer.
func (c *Client) Close() error {
	if client := c.paho(); client.IsConnected() {
		client.Disconnect(0)
	}
	return nil
}

// Resubscribe subscribes all existing topics, used after (re)connect.
func (c *Client) Resubscribe() paho.Token {
	filters := make(map[string]byte)
	c.lock.RLock()
	for topic, qos := range c.subs {
		filters[c.TopicPrefix+topic] = qos
	}
	c.lock.RUnlock()
	if len(filters) == 0 {
		return &paho.DummyToken{}
	}
	if glog.V(2) {
		for key := range filters {
			glog.Infof("SUB %q", key)
		}
	}
	return c.paho().SubscribeMultiple(filters, nil)
}

func (c *Client) paho() paho.Client {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.client
}

func (c *Client) currentHooks() mqttcmd.Hooks {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.hooks
}

func (c *Client) track(op string, token paho.Token, onDone func()) {
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			glog.Errorf("%s: %v", op, err)
			return
		}
		if onDone != nil {
			onDone()
		}
	}()
}

func (c *Client) onConnect(paho.Client) {
	glog.Info("connected")
	c.Resubscribe()
	if h := c.currentHooks().Connected; h != nil {
		h()
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("connection lost: %v", err)
	if h := c.currentHooks().Disconnected; h != nil {
		h()
	}
}

func (c *Client) dispatch(_ paho.Client, msg paho.Message) {
	c.deliver(msg.Topic(), msg.Payload())
}

func (c *Client) deliver(topic string, payload []byte) {
	if !strings.HasPrefix(topic, c.TopicPrefix) {
		return
	}
	topic = topic[len(c.TopicPrefix):]
	if !c.subscribed(topic) {
		glog.V(2).Infof("RCV %q: not subscribed", topic)
		return
	}
	glog.V(2).Infof("RCV %q", topic)
	if h := c.currentHooks().Data; h != nil {
		h(topic, payload)
	}
}

func (c *Client) subscribed(topic string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for filter := range c.subs {
		if MatchTopic(topic, filter) {
			return true
		}
	}
	return false
}
