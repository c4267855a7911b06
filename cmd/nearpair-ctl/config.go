package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration file layout.
type FileConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// EventLog is the path of the binary protocol event log. Empty
	// disables event logging.
	EventLog string `yaml:"event_log"`

	// StateDir holds the persistent account key store. Empty keeps keys
	// in memory only.
	StateDir string `yaml:"state_dir"`

	Scan ScanConfig `yaml:"scan"`

	// RoundTripTimeout bounds each handshake characteristic round trip,
	// as a Go duration string ("5s"). Empty keeps the protocol default.
	RoundTripTimeout string `yaml:"round_trip_timeout"`

	// Devices is the simulated fleet served by the in-memory transport.
	Devices []DeviceConfig `yaml:"devices"`
}

// ScanConfig tunes advertisement classification.
type ScanConfig struct {
	// DisableNameFallback turns off the low-confidence local-name rule.
	DisableNameFallback bool `yaml:"disable_name_fallback"`

	// Keywords overrides the name-fallback keyword list.
	Keywords []string `yaml:"keywords"`
}

// DeviceConfig describes one simulated device.
type DeviceConfig struct {
	Address string `yaml:"address"`
	ModelID string `yaml:"model_id"`
	Name    string `yaml:"name"`
	RSSI    int16  `yaml:"rssi"`
	Battery uint8  `yaml:"battery"`
}

// defaultDevices is the demo fleet used when no config file is given.
var defaultDevices = []DeviceConfig{
	{Address: "AA:BB:CC:DD:EE:01", ModelID: "72CF9C", Name: "NP Buds Pro", RSSI: -48, Battery: 85},
	{Address: "AA:BB:CC:DD:EE:02", ModelID: "0A1B2C", Name: "NP Over-Ear Headphones", RSSI: -60, Battery: 62},
	{Address: "AA:BB:CC:DD:EE:03", ModelID: "F00D42", Name: "NP Portable Speaker", RSSI: -72, Battery: 97},
}

// loadConfig reads a YAML config file and overlays it on the defaults.
func loadConfig(path string) (*FileConfig, error) {
	cfg := &FileConfig{
		LogLevel: "info",
		Devices:  defaultDevices,
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// roundTripTimeout parses the configured round-trip timeout.
// Zero means "keep the default".
func (c *FileConfig) roundTripTimeout() (time.Duration, error) {
	if c.RoundTripTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RoundTripTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid round_trip_timeout: %w", err)
	}
	return d, nil
}
