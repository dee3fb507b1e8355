package gateway

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate cleanly, got %v", err)
	}
}

func TestConfigAddressAndTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Server.Host = "127.0.0.1"
	config.Server.Port = 9090
	config.PLC.TimeoutSeconds = 3

	if got, want := config.Address(), "127.0.0.1:9090"; got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
	if got, want := config.Timeout().Seconds(), 3.0; got != want {
		t.Errorf("Timeout() = %v seconds, want %v", got, want)
	}
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"empty PLC target", func(c *Config) { c.PLC.Target = "" }},
		{"zero timeout", func(c *Config) { c.PLC.TimeoutSeconds = 0 }},
		{"zero max batch size", func(c *Config) { c.Middleware.MaxBatchSize = 0 }},
		{"zero max subscriptions", func(c *Config) { c.Middleware.MaxSubscriptions = 0 }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			if err := config.Validate(); err == nil {
				t.Error("Validate() expected an error, got nil")
			}
		})
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := SaveExample(path); err != nil {
		t.Fatalf("SaveExample() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := DefaultConfig()
	if loaded.Server.Port != want.Server.Port {
		t.Errorf("Server.Port = %d, want %d", loaded.Server.Port, want.Server.Port)
	}
	if loaded.PLC.Target != want.PLC.Target {
		t.Errorf("PLC.Target = %q, want %q", loaded.PLC.Target, want.PLC.Target)
	}
	if loaded.Middleware.MaxBatchSize != want.Middleware.MaxBatchSize {
		t.Errorf("Middleware.MaxBatchSize = %d, want %d", loaded.Middleware.MaxBatchSize, want.Middleware.MaxBatchSize)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() on a missing file expected an error, got nil")
	}
}
