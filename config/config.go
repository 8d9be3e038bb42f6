package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Server
	ServerPort string

	// Tracking server
	TrackingURI          string
	TrackingExperimentID string

	// Loop pacing
	EpochDuration time.Duration
	TrialDuration time.Duration

	// Monitoring
	MonitorInterval time.Duration

	// Auth, disabled when the secret is empty
	AuthSecret   string
	AuthIssuer   string
	AuthAudience string
}

// fileConfig mirrors Config for the optional YAML config file
type fileConfig struct {
	ServerPort           string `yaml:"server_port"`
	TrackingURI          string `yaml:"tracking_uri"`
	TrackingExperimentID string `yaml:"tracking_experiment_id"`
	EpochDuration        string `yaml:"epoch_duration"`
	TrialDuration        string `yaml:"trial_duration"`
	MonitorInterval      string `yaml:"monitor_interval"`
	AuthSecret           string `yaml:"auth_secret"`
	AuthIssuer           string `yaml:"auth_issuer"`
	AuthAudience         string `yaml:"auth_audience"`
}

// Load builds the configuration from defaults, then an optional YAML
// file named by CONFIG_FILE, then environment variable overrides.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:           "8080",
		TrackingURI:          "http://mlflow:5000",
		TrackingExperimentID: "0",
		EpochDuration:        time.Second,
		TrialDuration:        2 * time.Second,
		MonitorInterval:      30 * time.Second,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ServerPort, fc.ServerPort)
	setString(&c.TrackingURI, fc.TrackingURI)
	setString(&c.TrackingExperimentID, fc.TrackingExperimentID)
	setString(&c.AuthSecret, fc.AuthSecret)
	setString(&c.AuthIssuer, fc.AuthIssuer)
	setString(&c.AuthAudience, fc.AuthAudience)
	if err := setDuration(&c.EpochDuration, fc.EpochDuration); err != nil {
		return fmt.Errorf("config file epoch_duration: %w", err)
	}
	if err := setDuration(&c.TrialDuration, fc.TrialDuration); err != nil {
		return fmt.Errorf("config file trial_duration: %w", err)
	}
	if err := setDuration(&c.MonitorInterval, fc.MonitorInterval); err != nil {
		return fmt.Errorf("config file monitor_interval: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.ServerPort, os.Getenv("SERVER_PORT"))
	setString(&c.TrackingURI, os.Getenv("MLFLOW_TRACKING_URI"))
	setString(&c.TrackingExperimentID, os.Getenv("MLFLOW_EXPERIMENT_ID"))
	setString(&c.AuthSecret, os.Getenv("AUTH_SECRET"))
	setString(&c.AuthIssuer, os.Getenv("AUTH_ISSUER"))
	setString(&c.AuthAudience, os.Getenv("AUTH_AUDIENCE"))
	if err := setDuration(&c.EpochDuration, os.Getenv("EPOCH_DURATION")); err != nil {
		return fmt.Errorf("EPOCH_DURATION: %w", err)
	}
	if err := setDuration(&c.TrialDuration, os.Getenv("TRIAL_DURATION")); err != nil {
		return fmt.Errorf("TRIAL_DURATION: %w", err)
	}
	if err := setDuration(&c.MonitorInterval, os.Getenv("MONITOR_INTERVAL")); err != nil {
		return fmt.Errorf("MONITOR_INTERVAL: %w", err)
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
