package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	"github.com/jwalitptl/chairside/pkg/messaging/redis"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Redis         RedisConfig        `mapstructure:"redis"`
	Log           LogConfig          `mapstructure:"log"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Clinic        ClinicConfig       `mapstructure:"clinic"`
	Suggestions   SuggestionConfig   `mapstructure:"suggestions"`
	Reminders     ReminderConfig     `mapstructure:"reminders"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	CORS          CORSConfig         `mapstructure:"cors"`
	Worker        WorkerConfig       `mapstructure:"worker"`
	Secrets       Secrets            `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Mode           string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory store is for local runs
	// and loses everything on restart.
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	QueueDB      int           `mapstructure:"queue_db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type AuthConfig struct {
	// Provider is "firebase" or "jwt".
	Provider        string `mapstructure:"provider"`
	Issuer          string `mapstructure:"issuer"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type ClinicConfig struct {
	Timezone            string             `mapstructure:"timezone"`
	WorkingHours        model.WorkingHours `mapstructure:"working_hours"`
	SlotMinutes         int                `mapstructure:"slot_minutes"`
	AppointmentMinutes  int                `mapstructure:"appointment_minutes"`
	Services            []string           `mapstructure:"services"`
	DefaultName         string             `mapstructure:"default_name"`
	DefaultContactPhone string             `mapstructure:"default_contact_phone"`
}

type SuggestionConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxResults  int           `mapstructure:"max_results"`
}

type ReminderConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Offsets []time.Duration `mapstructure:"offsets"`
}

type NotificationConfig struct {
	UpcomingWindow time.Duration `mapstructure:"upcoming_window"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SMS            SMSConfig     `mapstructure:"sms"`
	SMTP           SMTPConfig    `mapstructure:"smtp"`
	Push           PushConfig    `mapstructure:"push"`
}

type SMSConfig struct {
	GatewayURL string        `mapstructure:"gateway_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	From     string `mapstructure:"from"`
}

type PushConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	// HealthPort serves probes and metrics for the worker process.
	HealthPort int `mapstructure:"health_port"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Secrets never live in the config file.
type Secrets struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	SMSGatewayToken  string `envconfig:"SMS_GATEWAY_TOKEN"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "chairside")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.queue_db", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("auth.provider", "firebase")
	v.SetDefault("auth.issuer", "chairside")
	v.SetDefault("auth.credentials_file", "")

	v.SetDefault("clinic.timezone", "Local")
	v.SetDefault("clinic.working_hours.start_hour", 9)
	v.SetDefault("clinic.working_hours.end_hour", 17)
	v.SetDefault("clinic.slot_minutes", 30)
	v.SetDefault("clinic.appointment_minutes", 30)
	v.SetDefault("clinic.services", []string{"Check-up", "Cleaning", "Filling", "Extraction", "Root Canal", "Whitening", "Consultation"})
	v.SetDefault("clinic.default_name", "Your Clinic")
	v.SetDefault("clinic.default_contact_phone", "your contact number")

	v.SetDefault("suggestions.enabled", true)
	v.SetDefault("suggestions.model", "gemini-1.5-flash")
	v.SetDefault("suggestions.temperature", 0.2)
	v.SetDefault("suggestions.timeout", "20s")
	v.SetDefault("suggestions.max_results", 3)

	v.SetDefault("reminders.enabled", true)
	v.SetDefault("reminders.offsets", []string{"24h"})

	v.SetDefault("notifications.upcoming_window", "30m")
	v.SetDefault("notifications.poll_interval", "1m")
	v.SetDefault("notifications.sms.gateway_url", "")
	v.SetDefault("notifications.sms.timeout", "10s")
	v.SetDefault("notifications.smtp.host", "")
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.username", "")
	v.SetDefault("notifications.smtp.from", "")
	v.SetDefault("notifications.push.enabled", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.health_port", 8081)
}

// LoadConfig reads path, or config.yaml from the usual locations when path is
// empty. A missing file is fine; everything has a default. Environment
// variables override file values as CHAIRSIDE_<SECTION>_<KEY>.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvPrefix("CHAIRSIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if _, err := c.GridConfig(); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Clinic.AppointmentMinutes <= 0 {
		return fmt.Errorf("clinic.appointment_minutes must be positive, got %d", c.Clinic.AppointmentMinutes)
	}
	switch c.Auth.Provider {
	case "firebase":
	case "jwt":
		if c.Secrets.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when auth.provider is jwt")
		}
	default:
		return fmt.Errorf("unknown auth.provider %q", c.Auth.Provider)
	}
	for _, off := range c.Reminders.Offsets {
		if off <= 0 {
			return fmt.Errorf("reminders.offsets must be positive, got %s", off)
		}
	}
	if c.Suggestions.MaxResults < 0 {
		return fmt.Errorf("suggestions.max_results must not be negative")
	}
	if c.Notifications.UpcomingWindow <= 0 || c.Notifications.PollInterval <= 0 {
		return fmt.Errorf("notifications.upcoming_window and poll_interval must be positive")
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Clinic.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid clinic.timezone %q: %w", c.Clinic.Timezone, err)
	}
	return loc, nil
}

// GridConfig validates the clinic's working hours by building a grid config.
func (c *Config) GridConfig() (slotgrid.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return slotgrid.Config{}, err
	}
	cfg := slotgrid.Config{
		WorkingHours: c.Clinic.WorkingHours,
		SlotMinutes:  c.Clinic.SlotMinutes,
		Location:     loc,
	}
	if _, err := slotgrid.New(cfg); err != nil {
		return slotgrid.Config{}, err
	}
	return cfg, nil
}

func (c *Config) AppointmentDuration() time.Duration {
	return time.Duration(c.Clinic.AppointmentMinutes) * time.Minute
}

func (c *DatabaseConfig) DSN(password string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, password, c.Name, c.SSLMode)
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
