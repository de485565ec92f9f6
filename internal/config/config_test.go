package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streamer.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
instance:
  id: test-streamer
twitter:
  consumer_key: ck
  consumer_secret: cs
  access_token: at
  access_token_secret: as
stream:
  path: /1.1/statuses/filter.json?track=golang
`

func TestLoad(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-streamer" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-streamer")
	}
	if cfg.Twitter.ConsumerKey != "ck" {
		t.Errorf("Twitter.ConsumerKey = %q, want %q", cfg.Twitter.ConsumerKey, "ck")
	}
	if cfg.Stream.Path != "/1.1/statuses/filter.json?track=golang" {
		t.Errorf("Stream.Path = %q", cfg.Stream.Path)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_CONSUMER_SECRET", "secret123")

	yaml := `
twitter:
  consumer_key: ck
  consumer_secret: ${TEST_CONSUMER_SECRET}
  access_token: at
  access_token_secret: as
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Twitter.ConsumerSecret != "secret123" {
		t.Errorf("Twitter.ConsumerSecret = %q, want %q", cfg.Twitter.ConsumerSecret, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, validYAML)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Stream.Host != DefaultStreamHost {
		t.Errorf("Stream.Host = %q, want %q", cfg.Stream.Host, DefaultStreamHost)
	}
	if cfg.Stream.Scheme != "https" {
		t.Errorf("Stream.Scheme = %q, want %q", cfg.Stream.Scheme, "https")
	}
	if cfg.Stream.Port != 443 {
		t.Errorf("Stream.Port = %d, want 443", cfg.Stream.Port)
	}
	if cfg.Stream.StallTimeout != 90*time.Second {
		t.Errorf("Stream.StallTimeout = %v, want 90s", cfg.Stream.StallTimeout)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Relay.Path != DefaultRelayPath {
		t.Errorf("Relay.Path = %q, want %q", cfg.Relay.Path, DefaultRelayPath)
	}
}

func TestValidate_MissingCredential(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing consumer_key",
			yaml: `
twitter:
  consumer_secret: cs
  access_token: at
  access_token_secret: as
`,
		},
		{
			name: "missing access_token_secret",
			yaml: `
twitter:
  consumer_key: ck
  consumer_secret: cs
  access_token: at
`,
		},
		{
			name: "empty twitter section",
			yaml: `
instance:
  id: x
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.yaml)
			_, err := LoadAndValidate(path)
			if !errors.Is(err, ErrMissingCredential) {
				t.Errorf("LoadAndValidate error = %v, want ErrMissingCredential", err)
			}
		})
	}
}

func TestValidate_ArchiveRequiresDatabase(t *testing.T) {
	yaml := validYAML + `
archive:
  enabled: true
`
	path := writeTempFile(t, yaml)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error for archive without database")
	}
}

func TestValidate_BadScheme(t *testing.T) {
	yaml := validYAML + `
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	cfg.Stream.Scheme = "ftp"

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for scheme ftp")
	}
}
