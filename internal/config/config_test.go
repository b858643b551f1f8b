package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:         "8080",
		DatabasePath: "./data/postforge.db",
		BlobBackend:  "file",
		AIApiKey:     "test-key",
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	cases := map[string]func(*Config){
		"port":          func(c *Config) { c.Port = "" },
		"database path": func(c *Config) { c.DatabasePath = "" },
		"ai api key":    func(c *Config) { c.AIApiKey = "" },
		"blob backend":  func(c *Config) { c.BlobBackend = "dynamo" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateS3RequiresBucket(t *testing.T) {
	cfg := validConfig()
	cfg.BlobBackend = "s3"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for s3 backend without a bucket")
	}

	cfg.BlobBucket = "content"
	if err := cfg.Validate(); err != nil {
		t.Errorf("s3 backend with bucket rejected: %v", err)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	if got := getEnvAsDuration("TEST_DURATION", time.Second); got != 45*time.Second {
		t.Errorf("got %v", got)
	}
	if got := getEnvAsDuration("TEST_DURATION_ABSENT", time.Second); got != time.Second {
		t.Errorf("default not applied: %v", got)
	}
	t.Setenv("TEST_DURATION_BAD", "soon")
	if got := getEnvAsDuration("TEST_DURATION_BAD", 2*time.Second); got != 2*time.Second {
		t.Errorf("invalid value did not fall back: %v", got)
	}
}
