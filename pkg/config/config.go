package config

import (
	"fmt"
	"os"
	"time"

	"github.com/partypool/partypool/pkg/types"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML decoding ("30m", "1h15m")
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// File is the on-disk configuration schema
type File struct {
	Cluster struct {
		MinimumCount    int      `yaml:"minimumCount"`
		MaximumCount    int      `yaml:"maximumCount"`
		MaximumUsers    int      `yaml:"maximumUsers"`
		MaximumUptime   Duration `yaml:"maximumUptime"`
		HighThreshold   float64  `yaml:"userCapacityHighThreshold"`
		LowThreshold    float64  `yaml:"userCapacityLowThreshold"`
		RefreshInterval Duration `yaml:"refreshInterval"`
	} `yaml:"cluster"`

	Packages []struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
		Path    string `yaml:"path"`
	} `yaml:"packages"`

	Operators struct {
		Provisioner        string `yaml:"provisioner"`
		ApplicationManager string `yaml:"applicationManager"`
	} `yaml:"operators"`
}

// Config is the validated, in-memory configuration
type Config struct {
	Cluster   types.ClusterConfig
	Packages  []types.ApplicationPackage
	Operators struct {
		Provisioner        string
		ApplicationManager string
	}
}

// Load reads and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration bytes
func Parse(data []byte) (*Config, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{
		Cluster: types.ClusterConfig{
			MinimumClusterCount:       file.Cluster.MinimumCount,
			MaximumClusterCount:       file.Cluster.MaximumCount,
			MaximumUsersPerCluster:    file.Cluster.MaximumUsers,
			MaximumClusterUptime:      time.Duration(file.Cluster.MaximumUptime),
			UserCapacityHighThreshold: file.Cluster.HighThreshold,
			UserCapacityLowThreshold:  file.Cluster.LowThreshold,
			RefreshInterval:           time.Duration(file.Cluster.RefreshInterval),
		},
	}
	for _, p := range file.Packages {
		cfg.Packages = append(cfg.Packages, types.ApplicationPackage{
			Name:    p.Name,
			Version: p.Version,
			Path:    p.Path,
		})
	}
	cfg.Operators.Provisioner = file.Operators.Provisioner
	cfg.Operators.ApplicationManager = file.Operators.ApplicationManager

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration sanity
func Validate(cfg *Config) error {
	c := cfg.Cluster
	if c.MinimumClusterCount < 0 {
		return fmt.Errorf("minimumCount must not be negative")
	}
	if c.MinimumClusterCount > c.MaximumClusterCount {
		return fmt.Errorf("minimumCount %d exceeds maximumCount %d",
			c.MinimumClusterCount, c.MaximumClusterCount)
	}
	if c.MaximumUsersPerCluster <= 0 {
		return fmt.Errorf("maximumUsers must be positive")
	}
	if c.MaximumClusterUptime <= 0 {
		return fmt.Errorf("maximumUptime must be positive")
	}
	if c.UserCapacityHighThreshold <= 0 || c.UserCapacityHighThreshold > 1 {
		return fmt.Errorf("userCapacityHighThreshold must be in (0, 1]")
	}
	if c.UserCapacityLowThreshold < 0 || c.UserCapacityLowThreshold >= c.UserCapacityHighThreshold {
		return fmt.Errorf("userCapacityLowThreshold must be in [0, high)")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refreshInterval must be positive")
	}
	for i, p := range cfg.Packages {
		if p.Name == "" || p.Version == "" || p.Path == "" {
			return fmt.Errorf("package %d: name, version, and path are required", i)
		}
	}
	return nil
}
