package scull

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultInstances is the number of channels created when unset.
	DefaultInstances = 2
	// DefaultCapacity is the size of each channel in bytes when unset.
	DefaultCapacity = 1024
	// DefaultPrefix names channels "channel-0", "channel-1", ...
	DefaultPrefix = "channel"
)

// Config holds the table parameters fixed at creation.
type Config struct {
	// Instances is the number of channels. Must be positive.
	Instances int `yaml:"num_instances" json:"num_instances"`

	// Capacity is the size of every channel in bytes. Must be positive.
	Capacity int `yaml:"capacity_bytes" json:"capacity_bytes"`

	// Prefix is the name prefix for channels.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// DefaultConfig returns two channels of 1024 bytes each.
func DefaultConfig() Config {
	return Config{
		Instances: DefaultInstances,
		Capacity:  DefaultCapacity,
		Prefix:    DefaultPrefix,
	}
}

// fileConfig distinguishes absent keys from explicit zero values.
type fileConfig struct {
	Instances *int    `yaml:"num_instances"`
	Capacity  *int    `yaml:"capacity_bytes"`
	Prefix    *string `yaml:"prefix"`
}

// LoadConfig reads a YAML config file. Absent keys keep their defaults;
// unknown keys are rejected. The result is not validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("scull: read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data the same way LoadConfig does.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var fc fileConfig
	if err := yaml.UnmarshalWithOptions(data, &fc, yaml.DisallowUnknownField()); err != nil {
		return Config{}, fmt.Errorf("scull: decode config: %w", err)
	}
	if fc.Instances != nil {
		cfg.Instances = *fc.Instances
	}
	if fc.Capacity != nil {
		cfg.Capacity = *fc.Capacity
	}
	if fc.Prefix != nil {
		cfg.Prefix = *fc.Prefix
	}
	return cfg, nil
}

// Validate reports the first invalid value, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Instances <= 0 {
		return fmt.Errorf("%w: num_instances must be positive, got %d", ErrInvalidConfig, c.Instances)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity_bytes must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix must not be empty", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.Prefix, "/: ") {
		return fmt.Errorf("%w: prefix %q must not contain '/', ':' or spaces", ErrInvalidConfig, c.Prefix)
	}
	return nil
}
