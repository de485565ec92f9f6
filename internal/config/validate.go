package config

import (
	"errors"
	"fmt"
)

// ErrMissingCredential indicates a required Twitter credential is absent.
var ErrMissingCredential = errors.New("missing credential")

// Validate checks that all required fields are set and values are valid.
func (c *StreamerConfig) Validate() error {
	if err := c.Twitter.validate(); err != nil {
		return err
	}

	if c.Stream.Scheme != "https" && c.Stream.Scheme != "http" {
		return fmt.Errorf("stream.scheme must be \"https\" or \"http\", got %q", c.Stream.Scheme)
	}
	if c.Stream.Port < 1 || c.Stream.Port > 65535 {
		return fmt.Errorf("stream.port must be between 1 and 65535, got %d", c.Stream.Port)
	}
	if c.Stream.Path == "" {
		return errors.New("stream.path is required")
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
	}

	if c.Relay.Enabled {
		if c.Relay.Port < 1 || c.Relay.Port > 65535 {
			return fmt.Errorf("relay.port must be between 1 and 65535, got %d", c.Relay.Port)
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (t *TwitterConfig) validate() error {
	required := []struct {
		key, value string
	}{
		{"twitter.consumer_key", t.ConsumerKey},
		{"twitter.consumer_secret", t.ConsumerSecret},
		{"twitter.access_token", t.AccessToken},
		{"twitter.access_token_secret", t.AccessTokenSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredential, r.key)
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
