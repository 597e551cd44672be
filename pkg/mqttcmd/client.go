// Package mqttcmd implements the MQTT commands a microcontroller issues
// over the serial link, and relays MQTT events back to it.
package mqttcmd

// Client is the MQTT client driven by the commands.
type Client interface {
	Connect() error
	Disconnect() error
	Publish(topic string, payload []byte, qos byte, retain bool) error
	Subscribe(topic string, qos byte) error
	Unsubscribe(topic string) error
	// SetWill changes the last will, effective on the next connect.
	SetWill(topic string, payload []byte, qos byte, retain bool)
	Reconnect() error
	// SetHooks installs the event notifications, replacing previous ones.
	// Hooks may be invoked from any goroutine, nil hooks are skipped.
	SetHooks(Hooks)
}

// Hooks are event notifications raised by a Client.
type Hooks struct {
	Connected    func()
	Disconnected func()
	Published    func()
	Data         func(topic string, payload []byte)
}
