package videocall

import (
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/videocall/transport"
)

// Default values of client settings.
const (
	DefaultHeartbeatPeriod   = time.Second
	DefaultPeerMonitorPeriod = 5 * time.Second
	DefaultPeerTimeout       = 15 * time.Second
	DefaultReconnectDelay    = time.Second
	DefaultMaxMessageSize    = 1024 * 1024
)

// ClientConfig is the config of call client.
type ClientConfig struct {
	UserID         string `yaml:"user_id"`
	WebSocketURL   string `yaml:"websocket_url"`
	StreamAddr     string `yaml:"stream_addr"`
	UseStream      bool   `yaml:"use_stream"`
	MaxMessageSize uint64 `yaml:"max_message_size"`

	HeartbeatPeriod   time.Duration `yaml:"heartbeat_period"`
	PeerMonitorPeriod time.Duration `yaml:"peer_monitor_period"`
	PeerTimeout       time.Duration `yaml:"peer_timeout"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`

	Transport  transport.Transport   `yaml:"-"`
	Clock      clock.Clock           `yaml:"-"`
	Registerer prometheus.Registerer `yaml:"-"`
}

// DefaultClientConfig returns client config with default settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxMessageSize:    DefaultMaxMessageSize,
		HeartbeatPeriod:   DefaultHeartbeatPeriod,
		PeerMonitorPeriod: DefaultPeerMonitorPeriod,
		PeerTimeout:       DefaultPeerTimeout,
		ReconnectDelay:    DefaultReconnectDelay,
	}
}

// LoadClientConfig reads client config from YAML file. Missing settings take default values.
func LoadClientConfig(path string) (ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, errors.WithStack(err)
	}

	config := DefaultClientConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return ClientConfig{}, errors.Wrapf(err, "parsing config %q failed", path)
	}
	if err := config.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return config, nil
}

// Validate verifies that config is usable.
func (c ClientConfig) Validate() error {
	switch {
	case c.UserID == "":
		return errors.New("user ID not specified")
	case c.UseStream && c.StreamAddr == "":
		return errors.New("stream address not specified")
	case !c.UseStream && c.WebSocketURL == "":
		return errors.New("websocket URL not specified")
	case c.MaxMessageSize == 0:
		return errors.New("max message size must be positive")
	case c.HeartbeatPeriod <= 0:
		return errors.New("heartbeat period must be positive")
	case c.PeerMonitorPeriod <= 0:
		return errors.New("peer monitor period must be positive")
	case c.PeerTimeout <= 0:
		return errors.New("peer timeout must be positive")
	case c.ReconnectDelay <= 0:
		return errors.New("reconnect delay must be positive")
	}
	return nil
}

func (c ClientConfig) withDefaults() ClientConfig {
	defaults := DefaultClientConfig()
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.HeartbeatPeriod == 0 {
		c.HeartbeatPeriod = defaults.HeartbeatPeriod
	}
	if c.PeerMonitorPeriod == 0 {
		c.PeerMonitorPeriod = defaults.PeerMonitorPeriod
	}
	if c.PeerTimeout == 0 {
		c.PeerTimeout = defaults.PeerTimeout
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = defaults.ReconnectDelay
	}
	if c.Transport == nil {
		c.Transport = transport.NewDialer()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	return c
}
