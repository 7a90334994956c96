package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"roomlink/pkg/utils"
	"roomlink/pkg/validation"
)

type Config struct {
	Room struct {
		ID                string `yaml:"id"`
		SignalingEndpoint string `yaml:"signaling_endpoint"`
		AuthToken         string `yaml:"auth_token"`
		// AllowInsecure permits ws:// endpoints; meant for local tests
		// against an in-process relay only.
		AllowInsecure bool `yaml:"allow_insecure"`
	} `yaml:"room"`

	Media struct {
		EnableAudio bool   `yaml:"enable_audio"`
		EnableVideo bool   `yaml:"enable_video"`
		DeviceID    string `yaml:"device_id"`
	} `yaml:"media"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Signaling struct {
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		SendRate     float64       `yaml:"send_rate"`
		SendBurst    int           `yaml:"send_burst"`
		EventBuffer  int           `yaml:"event_buffer"`
	} `yaml:"signaling"`

	Status struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
	} `yaml:"status"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
// Note the auth token is deliberately not validated here: a missing token is
// a join-time AuthenticationRequired error, not a config-load error.
func (c *Config) Validate() error {
	if c.Room.ID == "" {
		return fmt.Errorf("room.id must not be empty")
	}
	if err := validation.ValidateRoomID(c.Room.ID); err != nil {
		return fmt.Errorf("room.id: %w", err)
	}
	if err := validation.ValidateSignalingEndpoint(c.Room.SignalingEndpoint, c.Room.AllowInsecure); err != nil {
		return fmt.Errorf("room.signaling_endpoint: %w", err)
	}

	if !c.Media.EnableAudio && !c.Media.EnableVideo {
		return fmt.Errorf("media: at least one of enable_audio/enable_video must be set")
	}

	if c.Signaling.PingInterval <= 0 {
		return fmt.Errorf("signaling.ping_interval must be > 0")
	}
	if c.Signaling.PongTimeout <= 0 {
		return fmt.Errorf("signaling.pong_timeout must be > 0")
	}
	if c.Signaling.WriteTimeout <= 0 {
		return fmt.Errorf("signaling.write_timeout must be > 0")
	}
	if c.Signaling.SendRate <= 0 {
		return fmt.Errorf("signaling.send_rate must be > 0")
	}
	if c.Signaling.SendBurst <= 0 {
		return fmt.Errorf("signaling.send_burst must be > 0")
	}
	if c.Signaling.EventBuffer <= 0 {
		return fmt.Errorf("signaling.event_buffer must be > 0")
	}

	if c.Status.Enabled && c.Status.Address == "" {
		return fmt.Errorf("status.address must not be empty when status.enabled=true")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate <= 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in (0, 1]")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults. The room ID
// defaults to a securely random 40-hex-digit value.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Room.ID = utils.GenerateRoomID()
	cfg.Room.SignalingEndpoint = "wss://localhost:8443/ws"
	cfg.Room.AllowInsecure = false

	cfg.Media.EnableAudio = true
	cfg.Media.EnableVideo = true

	cfg.Signaling.PingInterval = 30 * time.Second
	cfg.Signaling.PongTimeout = 60 * time.Second
	cfg.Signaling.WriteTimeout = 10 * time.Second
	cfg.Signaling.SendRate = 50
	cfg.Signaling.SendBurst = 100
	cfg.Signaling.EventBuffer = 64

	cfg.Status.Enabled = true
	cfg.Status.Address = ":8082"

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if roomID := os.Getenv("ROOMLINK_ROOM_ID"); roomID != "" {
		c.Room.ID = roomID
	}
	if endpoint := os.Getenv("ROOMLINK_SIGNALING_ENDPOINT"); endpoint != "" {
		c.Room.SignalingEndpoint = endpoint
	}
	if token := os.Getenv("ROOMLINK_AUTH_TOKEN"); token != "" {
		c.Room.AuthToken = token
	}
	if level := os.Getenv("ROOMLINK_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("ROOMLINK_STATUS_ADDRESS"); addr != "" {
		c.Status.Address = addr
	}
}
