package beacon

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for configuration by default
const DefaultConfigPath = "config.yaml"

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		Registration: DefaultRegistrationConfig(),
		Reference:    0,
		Source: SourceConfig{
			MaxBytes:       DefaultMaxReportBytes,
			Accept:         DefaultAccept,
			TimeoutSeconds: int(DefaultFetchTimeout / time.Second),
			Attempts:       DefaultFetchAttempts,
		},
		MQTT: MQTTConfig{
			PublishPrefix: "beaconmesh",
			ReportTopic:   "beaconmesh/report",
			ClientID:      "beaconmesh",
		},
		Render: RenderConfig{
			Padding:     250,
			GridSpacing: 500,
			Resolution:  96,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	r := c.Registration
	if r.OverlapThreshold < 1 {
		return fmt.Errorf("registration.overlapThreshold must be at least 1, got %d", r.OverlapThreshold)
	}
	if r.SensingRange < 1 {
		return fmt.Errorf("registration.sensingRange must be positive, got %d", r.SensingRange)
	}
	if r.Workers < 0 {
		return fmt.Errorf("registration.workers must not be negative, got %d", r.Workers)
	}
	if r.MaxCandidates < 0 {
		return fmt.Errorf("registration.maxCandidates must not be negative, got %d", r.MaxCandidates)
	}
	if c.Reference < 0 {
		return fmt.Errorf("reference must not be negative, got %d", c.Reference)
	}
	if c.Source.MaxBytes < 0 {
		return fmt.Errorf("source.maxBytes must not be negative, got %d", c.Source.MaxBytes)
	}
	if c.Source.TimeoutSeconds < 0 {
		return fmt.Errorf("source.timeoutSeconds must not be negative, got %d", c.Source.TimeoutSeconds)
	}
	if c.Source.Attempts < 0 {
		return fmt.Errorf("source.attempts must not be negative, got %d", c.Source.Attempts)
	}
	if c.Render.GridSpacing < 0 {
		return fmt.Errorf("render.gridSpacing must not be negative")
	}
	for i, hex := range c.Render.Colors {
		if _, err := parseHexColor(hex); err != nil {
			return fmt.Errorf("render.colors[%d]: %w", i, err)
		}
	}
	return nil
}

// LoadConfigOrDefault loads path, falling back to DefaultConfig when the file
// is absent. Any other read or validation error is returned.
func LoadConfigOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), false, nil
	}
	config, err := LoadConfig(path)
	if err != nil {
		return nil, false, err
	}
	return config, true, nil
}
