package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	Stream   StreamConfig   `yaml:"stream"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Relay    RelayConfig    `yaml:"relay"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this streamer.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// TwitterConfig holds the OAuth1 credential set. All four values are required.
type TwitterConfig struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

// StreamConfig holds streaming endpoint and connection supervision settings.
type StreamConfig struct {
	Host           string        `yaml:"host"`   // Streaming API host
	Scheme         string        `yaml:"scheme"` // "https" or "http"
	Port           int           `yaml:"port"`
	Path           string        `yaml:"path"` // Request path, may carry a query string
	Clean          bool          `yaml:"clean"`
	UserAgent      string        `yaml:"user_agent"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	StallTimeout   time.Duration `yaml:"stall_timeout"` // Max silence before forced reconnect
}

// ArchiveConfig holds the optional Postgres archiver settings.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RelayConfig holds the optional WebSocket fan-out settings.
type RelayConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Port         int           `yaml:"port"`
	Path         string        `yaml:"path"`
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MetricsConfig holds Prometheus metrics and health server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
