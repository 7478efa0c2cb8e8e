package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	TypingTTL           time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	TypingSweepInterval time.Duration `mapstructure:"typing_sweep_interval" yaml:"typing_sweep_interval"`
	PresenceGrace       time.Duration `mapstructure:"presence_grace" yaml:"presence_grace"`
	CallRingTimeout     time.Duration `mapstructure:"call_ring_timeout" yaml:"call_ring_timeout"`
	EndedCallRetention  time.Duration `mapstructure:"ended_call_retention" yaml:"ended_call_retention"`

	OutboundBuffer     int   `mapstructure:"outbound_buffer" yaml:"outbound_buffer"`
	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxContentLength   int   `mapstructure:"max_content_length" yaml:"max_content_length"`
	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	Push    PushConfig    `mapstructure:"push" yaml:"push"`
	LiveKit LiveKitConfig `mapstructure:"livekit" yaml:"livekit"`
}

// PushConfig points the offline notifier at a redis list. Empty RedisAddr disables push.
type PushConfig struct {
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisList string        `mapstructure:"redis_list" yaml:"redis_list"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LiveKitConfig enables media credentials for calls when URL is set.
type LiveKitConfig struct {
	URL       string `mapstructure:"url" yaml:"url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                ":8080",
		ReadHeaderTimeout:   5 * time.Second,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
		LogFormat:           "console",
		DatabasePath:        "huddle.db",
		JWTIssuer:           "huddle",
		JWTAudience:         "huddle-clients",
		TypingTTL:           2 * time.Second,
		TypingSweepInterval: 250 * time.Millisecond,
		PresenceGrace:       3 * time.Second,
		CallRingTimeout:     45 * time.Second,
		EndedCallRetention:  10 * time.Minute,
		OutboundBuffer:      64,
		MaxMessageBytes:     1 << 20,
		MaxContentLength:    4000,
		RateLimitPerMinute:  600,
		Push: PushConfig{
			RedisList: "huddle:push",
			Timeout:   5 * time.Second,
		},
	}
}

// UpdateFrom overwrites the server fields that command-line flags can set.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
}
