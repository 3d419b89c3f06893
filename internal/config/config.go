package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Notification channels
const (
	ChannelLark = "lark"
	ChannelLog  = "log"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Lark         LarkConfig         `mapstructure:"lark"`
	Notification NotificationConfig `mapstructure:"notification"`
	Workers      WorkersConfig      `mapstructure:"workers"`
	Export       ExportConfig       `mapstructure:"export"`
	Bootstrap    BootstrapConfig    `mapstructure:"bootstrap"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// NotificationConfig selects the delivery channel and recipients
type NotificationConfig struct {
	Channel        string        `mapstructure:"channel"`
	ApproverRole   string        `mapstructure:"approver_role"`
	NotifyOnReject bool          `mapstructure:"notify_on_reject"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// WorkersConfig holds background worker configuration
type WorkersConfig struct {
	BudgetExpiryInterval time.Duration `mapstructure:"budget_expiry_interval"`
	BudgetExpiryTimeout  time.Duration `mapstructure:"budget_expiry_timeout"`
}

// ExportConfig holds spreadsheet export configuration
type ExportConfig struct {
	SheetName string `mapstructure:"sheet_name"`
}

// BootstrapConfig provisions the first CEO account on an empty database
type BootstrapConfig struct {
	CEOName         string `mapstructure:"ceo_name"`
	CEOEmail        string `mapstructure:"ceo_email"`
	CEODepartmentID int64  `mapstructure:"ceo_department_id"`
}

// Load loads configuration from an optional YAML file, a .env file and the
// environment. An empty configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "data/payments.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("notification.channel", ChannelLog)
	v.SetDefault("notification.approver_role", "CEO")
	v.SetDefault("notification.notify_on_reject", false)
	v.SetDefault("notification.handler_timeout", 30*time.Second)

	v.SetDefault("workers.budget_expiry_interval", time.Hour)
	v.SetDefault("workers.budget_expiry_timeout", 30*time.Second)

	v.SetDefault("export.sheet_name", "Payment Requests")

	v.SetDefault("bootstrap.ceo_name", "CEO")
	v.SetDefault("bootstrap.ceo_department_id", 1)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":         "LARK_APP_ID",
		"lark.app_secret":     "LARK_APP_SECRET",
		"database.path":       "DATABASE_PATH",
		"server.port":         "PORT",
		"bootstrap.ceo_email": "CEO_EMAIL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Notification.Channel {
	case ChannelLog:
	case ChannelLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required for the lark notification channel")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required for the lark notification channel")
		}
	default:
		return fmt.Errorf("notification.channel must be %q or %q", ChannelLark, ChannelLog)
	}

	if c.Workers.BudgetExpiryInterval <= 0 {
		return fmt.Errorf("workers.budget_expiry_interval must be positive")
	}
	if c.Bootstrap.CEOEmail != "" && c.Bootstrap.CEODepartmentID <= 0 {
		return fmt.Errorf("bootstrap.ceo_department_id must be positive")
	}

	return nil
}
