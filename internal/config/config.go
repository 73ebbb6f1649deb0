package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Timezone is the single zone every wall-clock time is read in.
	Timezone string `yaml:"timezone"`
	// TimezoneOffsetHours is used when the tz database lacks Timezone.
	TimezoneOffsetHours int `yaml:"timezone_offset_hours"`

	RoomsConfigPath string `yaml:"rooms_config_path"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Schedule      string `yaml:"schedule"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	AMQP struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`

	API struct {
		Port        int     `yaml:"port"`
		RateLimit   float64 `yaml:"rate_limit"`
		RateBurst   int     `yaml:"rate_burst"`
		UserHeader  string  `yaml:"user_header"`
		CORSOrigins string  `yaml:"cors_origins"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		SeriesThreshold int `yaml:"series_threshold"`
		// InferLegacySeries groups bookings without a stored series by content.
		InferLegacySeries *bool  `yaml:"infer_legacy_series"`
		MaxOccurrences    int    `yaml:"max_occurrences"`
		RetentionDays     int    `yaml:"retention_days"`
		PurgeSchedule     string `yaml:"purge_schedule"`
		CalendarFirstHour int    `yaml:"calendar_first_hour"`
		CalendarLastHour  int    `yaml:"calendar_last_hour"`
	} `yaml:"booking"`

	Admins []string `yaml:"admins"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Baku"
		if c.TimezoneOffsetHours == 0 {
			c.TimezoneOffsetHours = 4
		}
	}
	if c.RoomsConfigPath == "" {
		c.RoomsConfigPath = "configs/rooms.yaml"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/roombook.db"
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 3 * * *"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "backups"
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 14
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 5
	}
	if c.API.RateBurst <= 0 {
		c.API.RateBurst = 10
	}
	if c.API.UserHeader == "" {
		c.API.UserHeader = "X-User-ID"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.SeriesThreshold <= 0 {
		c.Booking.SeriesThreshold = 4
	}
	if c.Booking.InferLegacySeries == nil {
		infer := true
		c.Booking.InferLegacySeries = &infer
	}
	if c.Booking.MaxOccurrences <= 0 {
		c.Booking.MaxOccurrences = 366
	}
	if c.Booking.PurgeSchedule == "" {
		c.Booking.PurgeSchedule = "30 3 * * *"
	}
	if c.Booking.CalendarFirstHour == 0 && c.Booking.CalendarLastHour == 0 {
		c.Booking.CalendarFirstHour = 8
		c.Booking.CalendarLastHour = 19
	}
}

// Validate checks values that defaults can't repair.
func (c *Config) Validate() error {
	if c.TimezoneOffsetHours < -12 || c.TimezoneOffsetHours > 14 {
		return fmt.Errorf("timezone_offset_hours must be within -12..14, got %d", c.TimezoneOffsetHours)
	}
	b := c.Booking
	if b.CalendarFirstHour < 0 || b.CalendarLastHour > 23 || b.CalendarFirstHour > b.CalendarLastHour {
		return fmt.Errorf("booking.calendar hours must satisfy 0 <= first <= last <= 23")
	}
	if b.RetentionDays < 0 {
		return fmt.Errorf("booking.retention_days cannot be negative")
	}
	if c.AMQP.Enabled && c.AMQP.URL == "" {
		return fmt.Errorf("amqp.url is required when amqp is enabled")
	}
	return nil
}

// TimezoneOffset returns the fallback offset as a duration.
func (c *Config) TimezoneOffset() time.Duration {
	return time.Duration(c.TimezoneOffsetHours) * time.Hour
}

// CacheTTL returns the Redis cache lifetime; zero disables caching.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

// BookingRetention returns how long ended bookings are kept; zero keeps them forever.
func (c *Config) BookingRetention() time.Duration {
	return time.Duration(c.Booking.RetentionDays) * 24 * time.Hour
}
