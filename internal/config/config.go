package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines the monitoring run configuration.
type Config struct {
	APIBaseURL     string `yaml:"api_base_url"`
	APIKey         string `yaml:"api_key"`
	APICredentials string `yaml:"api_credentials"`
	SettingsURL    string `yaml:"settings_url"`

	// Organizations maps an organization display name to the equipment
	// channel names monitored for it.
	Organizations map[string][]string `yaml:"organizations"`

	ReportsDir  string `yaml:"reports_dir"`
	SummaryPath string `yaml:"summary_path"`
	DatabaseURL string `yaml:"database_url"`

	ListenAddr string `yaml:"listen_addr"`
	DailyAt    string `yaml:"daily_at"`

	ResolutionSeconds int `yaml:"resolution_seconds"`
}

// Load reads configuration from the yaml file named by ENERGYWATCH_CONFIG,
// with environment fallbacks for every scalar setting.
func Load() (Config, error) {
	cfg := Config{
		APIBaseURL:        getenvDefault("ENERGYWATCH_API_URL", "https://core.example-metering.com/v1"),
		APIKey:            os.Getenv("ENERGYWATCH_API_KEY"),
		APICredentials:    os.Getenv("ENERGYWATCH_API_CREDENTIALS"),
		SettingsURL:       getenvDefault("ENERGYWATCH_SETTINGS_URL", "https://analytics.example-metering.com"),
		ReportsDir:        getenvDefault("ENERGYWATCH_REPORTS_DIR", filepath.FromSlash("reports")),
		SummaryPath:       getenvDefault("ENERGYWATCH_SUMMARY_PATH", filepath.FromSlash("reports/alarms_summary.xlsx")),
		DatabaseURL:       os.Getenv("ENERGYWATCH_DATABASE_URL"),
		ListenAddr:        getenvDefault("ENERGYWATCH_LISTEN_ADDR", ":9180"),
		DailyAt:           getenvDefault("ENERGYWATCH_DAILY_AT", "06:00"),
		ResolutionSeconds: getenvIntDefault("ENERGYWATCH_RESOLUTION", 60),
	}

	if path := os.Getenv("ENERGYWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}

	if cfg.APIBaseURL == "" {
		return cfg, errors.New("config: api base url required")
	}
	if len(cfg.Organizations) == 0 {
		return cfg, errors.New("config: no organizations to monitor")
	}
	if cfg.ResolutionSeconds <= 0 {
		cfg.ResolutionSeconds = 60
	}
	return cfg, nil
}

// OrganizationNames returns the configured organization names in stable order.
func (c Config) OrganizationNames() []string {
	names := make([]string, 0, len(c.Organizations))
	for name := range c.Organizations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
