package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Linking    LinkingConfig    `yaml:"linking"`
	Inspection InspectionConfig `yaml:"inspection"`
	Session    SessionConfig    `yaml:"session"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

// PathsConfig describes the two filesystem roots the engine works against and the
// prefix under which clients see the shared workspace.
type PathsConfig struct {
	// ConfigRoot holds products/{name}/rois_config_{name}.json etc.
	ConfigRoot string `yaml:"config_root"`
	// SharedRoot holds sessions/{id}/input and sessions/{id}/output.
	SharedRoot string `yaml:"shared_root"`
	// ClientMountPrefix replaces SharedRoot in paths returned to clients.
	ClientMountPrefix string `yaml:"client_mount_prefix"`
}

type LinkingConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type InspectionConfig struct {
	// MaxWorkers caps the ROI worker pool. 0 means use the CPU count.
	MaxWorkers       int `yaml:"max_workers"`
	BarcodeTimeoutMs int `yaml:"barcode_timeout_ms"`
}

type SessionConfig struct {
	IdleExpiryMinutes    int `yaml:"idle_expiry_minutes"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "dev"},
		Paths: PathsConfig{
			ConfigRoot:        "./data",
			SharedRoot:        "./shared",
			ClientMountPrefix: "./shared",
		},
		Linking:    LinkingConfig{TimeoutSeconds: 3},
		Inspection: InspectionConfig{BarcodeTimeoutMs: 2000},
		Session:    SessionConfig{IdleExpiryMinutes: 60, SweepIntervalMinutes: 5},
	}
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault falls back to defaults (plus env overrides) when the file is missing.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if os.IsNotExist(err) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PANELSIGHT_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("PANELSIGHT_CONFIG_ROOT"); v != "" {
		c.Paths.ConfigRoot = v
	}
	if v := os.Getenv("PANELSIGHT_SHARED_ROOT"); v != "" {
		c.Paths.SharedRoot = v
	}
	if v := os.Getenv("PANELSIGHT_LINKING_URL"); v != "" {
		c.Linking.URL = v
	}
}

func (c *Config) LinkingTimeout() time.Duration {
	if c.Linking.TimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.Linking.TimeoutSeconds) * time.Second
}

func (c *Config) BarcodeTimeout() time.Duration {
	if c.Inspection.BarcodeTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Inspection.BarcodeTimeoutMs) * time.Millisecond
}

func (c *Config) SessionIdleExpiry() time.Duration {
	if c.Session.IdleExpiryMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Session.IdleExpiryMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	if c.Session.SweepIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Session.SweepIntervalMinutes) * time.Minute
}
