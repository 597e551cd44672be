// Package env loads the bridge configuration from defaults, an optional
// TOML file, MCUBRIDGE_* environment variables and command line flags,
// later sources overriding earlier ones.
package env

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/mcubridge/pkg/dispatch"
	"github.com/robotalks/mcubridge/pkg/mqttcmd"
	"github.com/robotalks/mcubridge/pkg/wire"
)

// EnvPrefix prefixes the environment variables, e.g. MCUBRIDGE_LINK.
const EnvPrefix = "MCUBRIDGE_"

// Config is the bridge configuration.
type Config struct {
	// Link is the URL of the link to the microcontroller.
	// e.g. serial:///dev/ttyUSB0?baud=115200, slip+tcp://host:port
	Link string `toml:"link"`
	// MQTTURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL  string `toml:"mqtt"`
	ClientID string `toml:"client-id"`

	MaxTopicLen    int `toml:"max-topic-len"`
	MaxPayloadLen  int `toml:"max-payload-len"`
	EventQueueSize int `toml:"event-queue"`
}

// ErrUnknownKey indicates a configuration key which doesn't exist.
var ErrUnknownKey = errors.New("unknown config key")

type option struct {
	key   string
	usage string
}

var options = []option{
	{"link", "Link URL to the microcontroller"},
	{"mqtt", "MQTT broker URL"},
	{"client-id", "MQTT client ID"},
	{"max-topic-len", "Max length of topics from the microcontroller"},
	{"max-payload-len", "Max length of payloads from the microcontroller"},
	{"event-queue", "Capacity of the network event queue"},
}

// Default creates a Config with default configurations.
func Default() *Config {
	return &Config{
		Link:           "serial:///dev/ttyUSB0",
		MQTTURL:        "mqtt://localhost:1883/mcu/",
		MaxTopicLen:    mqttcmd.DefaultMaxTopicLen,
		MaxPayloadLen:  mqttcmd.DefaultMaxPayloadLen,
		EventQueueSize: dispatch.DefaultEventQueueSize,
	}
}

// Set sets the value of key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "link":
		c.Link = value
	case "mqtt":
		c.MQTTURL = value
	case "client-id":
		c.ClientID = value
	case "max-topic-len":
		return setInt(&c.MaxTopicLen, key, value)
	case "max-payload-len":
		return setInt(&c.MaxPayloadLen, key, value)
	case "event-queue":
		return setInt(&c.EventQueueSize, key, value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// Get gets the value of key as a string.
func (c *Config) Get(key string) string {
	switch key {
	case "link":
		return c.Link
	case "mqtt":
		return c.MQTTURL
	case "client-id":
		return c.ClientID
	case "max-topic-len":
		return strconv.Itoa(c.MaxTopicLen)
	case "max-payload-len":
		return strconv.Itoa(c.MaxPayloadLen)
	case "event-queue":
		return strconv.Itoa(c.EventQueueSize)
	}
	return ""
}

// LoadFile merges a TOML file into the config.
func (c *Config) LoadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load %s: %w: %s", path, ErrUnknownKey, undecoded[0].String())
	}
	return nil
}

// LoadEnv merges the MCUBRIDGE_* variables returned by getenv.
func (c *Config) LoadEnv(getenv func(string) string) error {
	for _, opt := range options {
		if val := getenv(envName(opt.key)); val != "" {
			if err := c.Set(opt.key, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validate checks the config and fills in the derived defaults.
func (c *Config) Validate() error {
	if c.Link == "" {
		return errors.New("link URL must be specified")
	}
	if c.MQTTURL == "" {
		return errors.New("MQTT broker URL must be specified")
	}
	if c.MaxTopicLen <= 0 || c.MaxPayloadLen <= 0 || c.EventQueueSize <= 0 {
		return errors.New("limits must be positive")
	}
	if size := mqttcmd.MaxRequestLen(c.MaxTopicLen, c.MaxPayloadLen); size > wire.MaxFrameLen {
		return fmt.Errorf("max-topic-len %d with max-payload-len %d needs %d bytes requests: %w (%d)",
			c.MaxTopicLen, c.MaxPayloadLen, size, wire.ErrFrameTooLarge, wire.MaxFrameLen)
	}
	if c.ClientID == "" {
		c.ClientID = DefaultClientID()
	}
	return nil
}

// Loader collects the flags of a FlagSet and loads the Config.
type Loader struct {
	Flags  *flag.FlagSet
	Getenv func(string) string

	configFile string
}

// NewLoader registers the config flags in fs.
func NewLoader(fs *flag.FlagSet) *Loader {
	l := &Loader{Flags: fs, Getenv: os.Getenv}
	defaults := Default()
	fs.StringVar(&l.configFile, "config", "", "Config file in TOML, also "+envName("config"))
	for _, opt := range options {
		fs.String(opt.key, defaults.Get(opt.key), opt.usage+", also "+envName(opt.key))
	}
	return l
}

// Load builds the Config, Flags must have been parsed.
func (l *Loader) Load() (*Config, error) {
	conf := Default()
	path := l.configFile
	if path == "" {
		path = l.Getenv(envName("config"))
	}
	if path != "" {
		if err := conf.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := conf.LoadEnv(l.Getenv); err != nil {
		return nil, err
	}
	var err error
	l.Flags.Visit(func(f *flag.Flag) {
		if err == nil && isOption(f.Name) {
			err = conf.Set(f.Name, f.Value.String())
		}
	})
	if err == nil {
		err = conf.Validate()
	}
	if err != nil {
		return nil, err
	}
	return conf, nil
}

func isOption(key string) bool {
	for _, opt := range options {
		if opt.key == key {
			return true
		}
	}
	return false
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.Replace(key, "-", "_", -1))
}

func setInt(p *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*p = n
	return nil
}
