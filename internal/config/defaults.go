package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultStreamHost     = "stream.twitter.com"
	DefaultStreamScheme   = "https"
	DefaultStreamPort     = 443
	DefaultUserAgent      = "twitterstream"
	DefaultConnectTimeout = 30 * time.Second
	DefaultStallTimeout   = 90 * time.Second
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultBatchSize      = 500
	DefaultFlushInterval  = 1 * time.Second
	DefaultBufferSize     = 10000
	DefaultRelayPort      = 8081
	DefaultRelayPath      = "/stream"
	DefaultSendBuffer     = 256
	DefaultWriteTimeout   = 5 * time.Second
	DefaultMetricsPort    = 9090
	DefaultMetricsPath    = "/metrics"
)

func (c *StreamerConfig) applyDefaults() {
	// Stream defaults
	if c.Stream.Host == "" {
		c.Stream.Host = DefaultStreamHost
	}
	if c.Stream.Scheme == "" {
		c.Stream.Scheme = DefaultStreamScheme
	}
	if c.Stream.Port == 0 {
		c.Stream.Port = DefaultStreamPort
	}
	if c.Stream.UserAgent == "" {
		c.Stream.UserAgent = DefaultUserAgent
	}
	if c.Stream.ConnectTimeout == 0 {
		c.Stream.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Stream.StallTimeout == 0 {
		c.Stream.StallTimeout = DefaultStallTimeout
	}

	// Archive defaults
	applyDBDefaults(&c.Archive.Database)
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultBufferSize
	}

	// Relay defaults
	if c.Relay.Port == 0 {
		c.Relay.Port = DefaultRelayPort
	}
	if c.Relay.Path == "" {
		c.Relay.Path = DefaultRelayPath
	}
	if c.Relay.SendBuffer == 0 {
		c.Relay.SendBuffer = DefaultSendBuffer
	}
	if c.Relay.WriteTimeout == 0 {
		c.Relay.WriteTimeout = DefaultWriteTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
