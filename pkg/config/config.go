package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	// Database Configurations
	DBHost     string `mapstructure:"DB_HOST"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`

	// Server Configurations
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	// Authentication
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	AdminUser            string `mapstructure:"DIAG_ADMIN_USER"`
	AdminHash            string `mapstructure:"DIAG_ADMIN_HASH"`
	SessionDurationHours int    `mapstructure:"SESSION_DURATION_HOURS"`

	// Fleet scan settings
	FleetBatchSize   int `mapstructure:"FLEET_BATCH_SIZE"`
	EventFetchLimit  int `mapstructure:"EVENT_FETCH_LIMIT"`
	RecentIssueLimit int `mapstructure:"RECENT_ISSUE_LIMIT"`

	// Detection thresholds. Defaults follow the documented tiers; override
	// only when a deployment's event cadence genuinely differs.
	GapFloorMinutes         int     `mapstructure:"GAP_FLOOR_MINUTES"`
	RapidIntervalSeconds    int     `mapstructure:"RAPID_INTERVAL_SECONDS"`
	RetriggerSeconds        int     `mapstructure:"RETRIGGER_SECONDS"`
	FailureCountThreshold   int     `mapstructure:"FAILURE_COUNT_THRESHOLD"`
	StormWindowSeconds      int     `mapstructure:"STORM_WINDOW_SECONDS"`
	StormCountThreshold     int     `mapstructure:"STORM_COUNT_THRESHOLD"`
	BatteryCriticalPercent  float64 `mapstructure:"BATTERY_CRITICAL_PERCENT"`
	BatteryLowPercent       float64 `mapstructure:"BATTERY_LOW_PERCENT"`
	BatteryWarningThreshold float64 `mapstructure:"BATTERY_WARNING_THRESHOLD"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "fleetdiag")
	v.SetDefault("DB_PASSWORD", "fleetdiag")
	v.SetDefault("DB_NAME", "fleetdiag")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("JWT_SECRET", "default-insecure-secret-change-me")
	v.SetDefault("DIAG_ADMIN_USER", "admin")
	v.SetDefault("DIAG_ADMIN_HASH", "$2a$10$BST/uOdLLXUyqO4fN.b9cuwVwoXEJWWFzpc4iirHiu3GcgbuJqtdu")
	v.SetDefault("SESSION_DURATION_HOURS", 24)
	v.SetDefault("FLEET_BATCH_SIZE", 10)
	v.SetDefault("EVENT_FETCH_LIMIT", 200)
	v.SetDefault("RECENT_ISSUE_LIMIT", 10)
	v.SetDefault("GAP_FLOOR_MINUTES", 60)
	v.SetDefault("RAPID_INTERVAL_SECONDS", 10)
	v.SetDefault("RETRIGGER_SECONDS", 5)
	v.SetDefault("FAILURE_COUNT_THRESHOLD", 3)
	v.SetDefault("STORM_WINDOW_SECONDS", 60)
	v.SetDefault("STORM_COUNT_THRESHOLD", 20)
	v.SetDefault("BATTERY_CRITICAL_PERCENT", 10.0)
	v.SetDefault("BATTERY_LOW_PERCENT", 20.0)
	v.SetDefault("BATTERY_WARNING_THRESHOLD", 20.0)

	// 2. Read app.yaml if exists
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 3. Read .env if exists (overriding app.yaml)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Ignore if .env is missing
		}
	}

	// 4. Allow Viper to read Environment Variables (highest priority)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
