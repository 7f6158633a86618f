package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DataDir  string `mapstructure:"data_dir"`
	FrameDir string `mapstructure:"frame_dir"` // Where audit copies of uploaded frames are kept
	Timezone string `mapstructure:"timezone"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DBConfig holds database settings.
type DBConfig struct {
	File string `mapstructure:"file"` // Path to the SQLite database file
}

// RecognizerConfig holds settings for the external face detector/encoder service.
type RecognizerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	URL              string  `mapstructure:"url"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	DetProbThreshold float64 `mapstructure:"det_prob_threshold"`
}

// AttendanceConfig holds the matching and session defaults.
type AttendanceConfig struct {
	MatchThreshold         float64 `mapstructure:"match_threshold"`          // Max Euclidean distance for a usable match
	DefaultDurationMinutes int     `mapstructure:"default_duration_minutes"` // Session marking window
	RegistrationSamples    int     `mapstructure:"registration_samples"`     // Target sample count during registration
}

// MQTTConfig holds the MQTT publisher settings.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

// CleanupConfig holds settings for the audit-frame retention sweep.
type CleanupConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// Load reads the configuration from file, environment variables and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			log.Warnf("Config file %s does not exist, using defaults", configPath)
		} else {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", configPath)
		}
	}

	// Environment variables overlay the file values
	v.AutomaticEnv()
	v.SetEnvPrefix("FACEMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ensureDirectories(&cfg); err != nil {
		return nil, fmt.Errorf("failed to create required directories: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.data_dir", "/data")
	v.SetDefault("server.frame_dir", "/data/frames")
	v.SetDefault("server.timezone", "UTC")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "/data/logs/facemark.log")

	// DB defaults
	v.SetDefault("db.file", "/data/facemark.db")

	// Recognizer defaults
	v.SetDefault("recognizer.enabled", true)
	v.SetDefault("recognizer.url", "http://recognizer:18081")
	v.SetDefault("recognizer.timeout_seconds", 30)
	v.SetDefault("recognizer.det_prob_threshold", 0.8)

	// Attendance defaults
	v.SetDefault("attendance.match_threshold", 0.6)
	v.SetDefault("attendance.default_duration_minutes", 10)
	v.SetDefault("attendance.registration_samples", 40)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "facemark-go")
	v.SetDefault("mqtt.topic", "facemark/attendance")

	// Cleanup defaults
	v.SetDefault("cleanup.retention_days", 30)
}

// ensureDirectories makes sure all required directories exist.
func ensureDirectories(cfg *Config) error {
	if cfg.Server.DataDir != "" {
		if err := os.MkdirAll(cfg.Server.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	if cfg.Server.FrameDir != "" {
		if err := os.MkdirAll(cfg.Server.FrameDir, 0755); err != nil {
			return fmt.Errorf("failed to create frame directory: %w", err)
		}
	}

	logDir := filepath.Dir(cfg.Log.File)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if cfg.DB.File != "" {
		dbDir := filepath.Dir(cfg.DB.File)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}
