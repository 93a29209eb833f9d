package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"courtbook/internal/calendar"
	"courtbook/internal/clock"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath            = "configs/config.yaml"
	DefaultPort            = 10000
	DefaultWindowDays      = 30
	DefaultCustomerName    = "Guest"
	DefaultStorageBackend  = BackendFile
	DefaultDataFile        = "data/slots.json"
	DefaultSQLitePath      = "data/courtbook.db"
	DefaultBackupSchedule  = "0 3 * * *"
	DefaultReportSchedule  = "0 1 1 * *"
	DefaultFrontendOrigin  = "http://localhost:3000"
	DefaultEventQueueSize  = 256
	DefaultRecheckInterval = time.Minute
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	CORS       CORSConfig       `yaml:"cors"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Report     ReportConfig     `yaml:"report"`
	Events     EventsConfig     `yaml:"events"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port                int     `yaml:"port"`
	ReadTimeoutSeconds  int     `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `yaml:"write_timeout_seconds"`
	BookRatePerSecond   float64 `yaml:"book_rate_per_second"`
	BookBurst           int     `yaml:"book_burst"`
}

type CORSConfig struct {
	FrontendURL    string   `yaml:"frontend_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowAll       bool     `yaml:"allow_all"`
}

type LedgerConfig struct {
	WindowDays          int    `yaml:"window_days"`
	ClosedWeekday       string `yaml:"closed_weekday"`
	DefaultCustomerName string `yaml:"default_customer_name"`
	Timezone            string `yaml:"timezone"`
}

type StorageConfig struct {
	Backend     string        `yaml:"backend"`
	FilePath    string        `yaml:"file_path"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresURL string        `yaml:"postgres_url"`
	Replica     ReplicaConfig `yaml:"replica"`
}

// ReplicaConfig mirrors every committed document to Redis.
type ReplicaConfig struct {
	Enabled        bool `yaml:"enabled"`
	RecheckSeconds int  `yaml:"recheck_seconds"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type ReportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Schedule  string `yaml:"schedule"`
	OutputDir string `yaml:"output_dir"`
}

type EventsConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

type GoogleConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
}

type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type MonitoringConfig struct {
	PrometheusEnabled  bool `yaml:"prometheus_enabled"`
	PrometheusPort     int  `yaml:"prometheus_port"`
	GRPCHealthPort     int  `yaml:"grpc_health_port"`
	HealthCheckSeconds int  `yaml:"health_check_seconds"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envOverrides are applied on top of the YAML file. Empty values are ignored.
type envOverrides struct {
	Port           int    `envconfig:"PORT"`
	FrontendURL    string `envconfig:"FRONTEND_URL"`
	StorageBackend string `envconfig:"STORAGE_BACKEND"`
	DataFile       string `envconfig:"DATA_FILE"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	TelegramToken  string `envconfig:"TELEGRAM_BOT_TOKEN"`
	RabbitURL      string `envconfig:"RABBIT_URL"`
	Timezone       string `envconfig:"COURTBOOK_TIMEZONE"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
}

// Load reads the YAML config at path (COURTBOOK_CONFIG or configs/config.yaml
// when empty). A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("COURTBOOK_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.FrontendURL != "" {
		c.CORS.FrontendURL = env.FrontendURL
	}
	if env.StorageBackend != "" {
		c.Storage.Backend = env.StorageBackend
	}
	if env.DataFile != "" {
		c.Storage.FilePath = env.DataFile
	}
	if env.DatabaseURL != "" {
		c.Storage.PostgresURL = env.DatabaseURL
	}
	if env.RedisAddr != "" {
		c.Redis.Address = env.RedisAddr
	}
	if env.RedisPassword != "" {
		c.Redis.Password = env.RedisPassword
	}
	if env.TelegramToken != "" {
		c.Telegram.BotToken = env.TelegramToken
	}
	if env.RabbitURL != "" {
		c.RabbitMQ.URL = env.RabbitURL
	}
	if env.Timezone != "" {
		c.Ledger.Timezone = env.Timezone
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ReadTimeoutSeconds <= 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds <= 0 {
		c.Server.WriteTimeoutSeconds = 30
	}
	if c.Server.BookRatePerSecond <= 0 {
		c.Server.BookRatePerSecond = 5
	}
	if c.Server.BookBurst <= 0 {
		c.Server.BookBurst = 10
	}

	if c.Ledger.WindowDays == 0 {
		c.Ledger.WindowDays = DefaultWindowDays
	}
	if c.Ledger.ClosedWeekday == "" {
		c.Ledger.ClosedWeekday = "monday"
	}
	if strings.TrimSpace(c.Ledger.DefaultCustomerName) == "" {
		c.Ledger.DefaultCustomerName = DefaultCustomerName
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Storage.FilePath == "" {
		c.Storage.FilePath = DefaultDataFile
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = DefaultSQLitePath
	}
	if c.Storage.Replica.RecheckSeconds <= 0 {
		c.Storage.Replica.RecheckSeconds = int(DefaultRecheckInterval / time.Second)
	}

	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}

	if c.Backup.Schedule == "" {
		c.Backup.Schedule = DefaultBackupSchedule
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Report.Schedule == "" {
		c.Report.Schedule = DefaultReportSchedule
	}
	if c.Report.OutputDir == "" {
		c.Report.OutputDir = "data/reports"
	}
	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = DefaultEventQueueSize
	}

	if c.Google.SheetName == "" {
		c.Google.SheetName = "Bookings"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "courtbook.events"
	}

	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Monitoring.HealthCheckSeconds <= 0 {
		c.Monitoring.HealthCheckSeconds = 15
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Ledger.WindowDays <= 0 {
		return fmt.Errorf("ledger.window_days must be positive, got %d", c.Ledger.WindowDays)
	}
	if _, err := c.ClosedWeekday(); err != nil {
		return fmt.Errorf("ledger.closed_weekday: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("ledger.timezone: %w", err)
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("storage.postgres_url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required when telegram is enabled")
	}
	if c.Google.Enabled && (c.Google.CredentialsFile == "" || c.Google.SpreadsheetID == "") {
		return errors.New("google.credentials_file and google.spreadsheet_id are required when google is enabled")
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return errors.New("rabbitmq.url is required when rabbitmq is enabled")
	}
	return nil
}

// ClosedWeekday parses ledger.closed_weekday.
func (c *Config) ClosedWeekday() (time.Weekday, error) {
	return calendar.ParseWeekday(c.Ledger.ClosedWeekday)
}

// Location resolves ledger.timezone; empty means the host zone.
func (c *Config) Location() (*time.Location, error) {
	return clock.LoadLocation(c.Ledger.Timezone)
}

// AllowedOrigins returns the CORS allow-list: the local frontend, the
// configured frontend URL and any extra origins, without duplicates.
func (c *Config) AllowedOrigins() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(origin string) {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" || seen[origin] {
			return
		}
		seen[origin] = true
		out = append(out, origin)
	}

	add(DefaultFrontendOrigin)
	add(c.CORS.FrontendURL)
	for _, o := range c.CORS.AllowedOrigins {
		add(o)
	}
	return out
}

func (c *Config) ReplicaRecheck() time.Duration {
	return time.Duration(c.Storage.Replica.RecheckSeconds) * time.Second
}

func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.Monitoring.HealthCheckSeconds) * time.Second
}
