package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/mcubridge/pkg/mqttcmd"
)

type delivered struct {
	topic   string
	payload string
}

func newTestClient(t *testing.T, prefix string, filters ...string) (*Client, *[]delivered) {
	c, err := NewClientFromURL("mqtt://127.0.0.1:1/" + prefix)
	require.NoError(t, err)
	for _, filter := range filters {
		c.subs[filter] = 0
	}
	var msgs []delivered
	c.SetHooks(mqttcmd.Hooks{
		Data: func(topic string, payload []byte) {
			msgs = append(msgs, delivered{topic, string(payload)})
		},
	})
	return c, &msgs
}

func TestDeliverStripsPrefix(t *testing.T) {
	c, msgs := newTestClient(t, "dev/", "#")
	c.deliver("dev/a/b", []byte("hi"))
	c.deliver("other/a/b", []byte("ignored"))
	c.deliver("dev/", []byte{})
	require.Equal(t, []delivered{{"a/b", "hi"}, {"", ""}}, *msgs)
}

func TestDeliverWithoutHooks(t *testing.T) {
	c, msgs := newTestClient(t, "", "#")
	c.SetHooks(mqttcmd.Hooks{})
	c.deliver("a", []byte("x"))
	require.Empty(t, *msgs)
}

func TestSetWill(t *testing.T) {
	c, _ := newTestClient(t, "dev/")
	c.SetWill("status", []byte("offline"), 1, true)
	require.True(t, c.options.WillEnabled)
	require.Equal(t, "dev/status", c.options.WillTopic)
	require.Equal(t, []byte("offline"), c.options.WillPayload)
	require.Equal(t, byte(1), c.options.WillQos)
	require.True(t, c.options.WillRetained)
}

func TestDisconnectRaisesHook(t *testing.T) {
	c, _ := newTestClient(t, "")
	var disconnected int
	c.SetHooks(mqttcmd.Hooks{Disconnected: func() { disconnected++ }})
	require.NoError(t, c.Disconnect())
	require.Equal(t, 1, disconnected)
}

func TestResubscribeNothing(t *testing.T) {
	c, _ := newTestClient(t, "")
	token := c.Resubscribe()
	require.True(t, token.Wait())
	require.NoError(t, token.Error())
}

func TestDeliverOnlySubscribed(t *testing.T) {
	c, msgs := newTestClient(t, "dev/", "led/+", "led/#", "cfg")
	c.deliver("dev/led/1", []byte("on"))
	c.deliver("dev/led", []byte("all"))
	c.deliver("dev/cfg", []byte("x"))
	c.deliver("dev/cfg/extra", []byte("dropped"))
	c.deliver("dev/other", []byte("dropped"))
	require.Equal(t, []delivered{{"led/1", "on"}, {"led", "all"}, {"cfg", "x"}}, *msgs)

	c.lock.Lock()
	delete(c.subs, "led/#")
	delete(c.subs, "led/+")
	c.lock.Unlock()
	c.deliver("dev/led/1", []byte("late"))
	require.Len(t, *msgs, 3)
}

func TestDefaultPublishHandler(t *testing.T) {
	c, _ := newTestClient(t, "")
	require.NotNil(t, c.options.DefaultPublishHandler)
}
