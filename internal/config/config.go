package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/claim-router/pkg/core/allocator"
	"github.com/jakechorley/claim-router/pkg/core/workperiod"
)

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"required,oneof=postgres sqlite"`
	// URL is a Postgres connection string or a SQLite file path
	URL string `yaml:"url" validate:"required"`
}

// AssignmentConfig tunes the claim assignment engine
type AssignmentConfig struct {
	// WorkloadPeriod is an RRULE whose occurrences start each accounting period (default FREQ=DAILY)
	WorkloadPeriod string `yaml:"workloadPeriod,omitempty"`
	// Timezone is the IANA zone used for period boundaries and patient ages (default UTC)
	Timezone string `yaml:"timezone,omitempty"`
	// RulePrecedence is lastMatchWins (default) or firstMatchWins
	RulePrecedence     string `yaml:"rulePrecedence,omitempty"`
	SeniorBillersFirst bool   `yaml:"seniorBillersFirst,omitempty"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `yaml:"addr,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" validate:"dive,required"`
}

// SheetsConfig points at the Google Sheets used for importing claims and publishing plans
type SheetsConfig struct {
	ClaimsSheetID string `yaml:"claimsSheetID,omitempty"`
	ClaimsTab     string `yaml:"claimsTab,omitempty"`
	PlanSheetID   string `yaml:"planSheetID,omitempty"`
	PlanTab       string `yaml:"planTab,omitempty"`
}

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig   `yaml:"database" validate:"required"`
	Assignment AssignmentConfig `yaml:"assignment,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
	Sheets     SheetsConfig     `yaml:"sheets,omitempty"`
}

const (
	DefaultServerAddr = ":8080"
	DefaultClaimsTab  = "Claims"
	DefaultPlanTab    = "Plan"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads the configuration from claim_router_config.yaml
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads and validates the configuration for an environment.
// For example, env="test" looks for claim_router_config.test.yaml in the current
// directory first, then in the user's home directory.
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate validates the configuration struct and checks the assignment settings parse
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := workperiod.Validate(cfg.Assignment.WorkloadPeriod); err != nil {
		return fmt.Errorf("invalid assignment.workloadPeriod: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Assignment.Timezone); err != nil {
		return fmt.Errorf("invalid assignment.timezone: %w", err)
	}

	if _, err := allocator.ParsePrecedencePolicy(cfg.Assignment.RulePrecedence); err != nil {
		return fmt.Errorf("invalid assignment.rulePrecedence: %w", err)
	}

	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Assignment.WorkloadPeriod == "" {
		cfg.Assignment.WorkloadPeriod = workperiod.DefaultRule
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Sheets.ClaimsTab == "" {
		cfg.Sheets.ClaimsTab = DefaultClaimsTab
	}
	if cfg.Sheets.PlanTab == "" {
		cfg.Sheets.PlanTab = DefaultPlanTab
	}
}

// Location returns the configured timezone. Empty means UTC.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Assignment.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Precedence returns the configured rule precedence policy
func (cfg *Config) Precedence() allocator.PrecedencePolicy {
	policy, _ := allocator.ParsePrecedencePolicy(cfg.Assignment.RulePrecedence)
	return policy
}

// findConfigFile searches for the config file in the current directory and home directory
func findConfigFile(env string) (string, error) {
	return findEnvFile("claim_router_config", ".yaml", env)
}

// findEnvFile looks for <base>[.<env>]<ext> in the current directory, then the home directory
func findEnvFile(base, ext, env string) (string, error) {
	name := base + ext
	if env != "" {
		name = base + "." + env + ext
	}

	candidates := []string{name}
	if homeDir, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(homeDir, name))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}
