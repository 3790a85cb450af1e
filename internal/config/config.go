// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"storefront/internal/channel"
	"storefront/pkg/db" // Import db package for its Config struct
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	Environment string           `mapstructure:"environment"`
	ServerPort  string           `mapstructure:"server_port"`
	DB          db.Config        `mapstructure:"db"`
	Channel     channel.Config   `mapstructure:"channel"`
	Query       QueryConfig      `mapstructure:"query"`
	Settlement  SettlementConfig `mapstructure:"settlement"`
	Log         LogConfig        `mapstructure:"log"`
}

// QueryConfig points the ingress proxy at the Query Service.
type QueryConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// SettlementConfig selects the settlement commit mode ("independent" or "guarded").
type SettlementConfig struct {
	Mode string `mapstructure:"mode"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "local")
	v.SetDefault("config_dir", "config")
	v.SetDefault("server_port", "8080")

	v.SetDefault("db.host", "localhost")    // Default to localhost for local development
	v.SetDefault("db.port", 5432)           // Default PostgreSQL port
	v.SetDefault("db.user", "user")         // Default user for local development
	v.SetDefault("db.password", "password") // Default password for local development
	v.SetDefault("db.name", "storefront")   // Default database name for local development
	v.SetDefault("db.sslmode", "disable")   // Default to disable for local development
	v.SetDefault("db.migrate", true)

	v.SetDefault("channel.topic", "purchases")
	v.SetDefault("channel.group_id", "fulfillment")
	v.SetDefault("channel.properties_file", "")
	v.SetDefault("channel.brokers", []string{"localhost:9092"})

	v.SetDefault("query.base_url", "http://localhost:8081")
	v.SetDefault("settlement.mode", "independent")
	v.SetDefault("log.level", "info")
}

// LoadConfig loads configuration from defaults, an optional
// <CONFIG_DIR>/config-<ENVIRONMENT>.yaml file and environment variables, in
// increasing order of precedence. DB_HOST overrides db.host and so on.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(v.GetString("config_dir"), fmt.Sprintf("config-%s.yaml", v.GetString("environment")))
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c *AppConfig) Validate() error {
	port, err := strconv.Atoi(c.ServerPort)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %q", c.ServerPort)
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		return fmt.Errorf("invalid DB_PORT: %d", c.DB.Port)
	}
	if c.DB.Host == "" || c.DB.DBName == "" {
		return fmt.Errorf("DB_HOST and DB_NAME must be set")
	}
	if strings.TrimSpace(c.Channel.Topic) == "" {
		return fmt.Errorf("CHANNEL_TOPIC must be set")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Log.Level)
	}
	return nil
}
