package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// envPrefix is the prefix of every environment override.
const envPrefix = "DEVICEHEALTH_"

// Config is the root configuration structure for the device health service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation in logs and notifications.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains device store settings.
type DatabaseConfig struct {
	// Driver selects the backing store: "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored for postgres.
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string. Ignored for sqlite.
	DSN string `yaml:"dsn"`

	WALMode     bool `yaml:"wal_mode"`
	BusyTimeout int  `yaml:"busy_timeout"`

	// QueryTimeout bounds every store operation (seconds).
	QueryTimeout int `yaml:"query_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir serves the dashboard from disk instead of the embedded copy.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket feed settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// AlertsConfig contains alert dispatcher and notification channel settings.
type AlertsConfig struct {
	Workers     int `yaml:"workers"`
	QueueSize   int `yaml:"queue_size"`
	SendTimeout int `yaml:"send_timeout"` // seconds per notification

	Email EmailConfig     `yaml:"email"`
	MQTT  MQTTAlertConfig `yaml:"mqtt"`
}

// EmailConfig contains SMTP relay settings for alert emails.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`

	// TLS is one of "none", "opportunistic" or "mandatory".
	TLS string `yaml:"tls"`
}

// MQTTAlertConfig controls publishing alert events to the MQTT bus.
type MQTTAlertConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load builds a Config in four layers, each overriding the last: built-in
// defaults, the YAML file at path, a .env file in the working directory
// (which never replaces variables already set) and DEVICEHEALTH_*
// variables. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{ID: "site-001", Name: "Device Health"},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "./data/devicehealth.db",
			WALMode:      true,
			BusyTimeout:  5,
			QueryTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker:      MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "devicehealth-core"},
			QoS:         1,
			Reconnect:   MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
			TopicPrefix: "devicehealth",
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8000,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Alerts: AlertsConfig{
			Workers:     2,
			QueueSize:   256,
			SendTimeout: 10,
			Email:       EmailConfig{Port: 587, TLS: "opportunistic"},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// envOverrides maps each supported variable, without the DEVICEHEALTH_
// prefix, to the field it sets. Empty values are ignored, as are values
// that fail to parse.
var envOverrides = map[string]func(*Config, string){
	"DATABASE_DRIVER": func(c *Config, v string) { c.Database.Driver = v },
	"DATABASE_PATH":   func(c *Config, v string) { c.Database.Path = v },
	"DATABASE_DSN":    func(c *Config, v string) { c.Database.DSN = v },

	"MQTT_ENABLED": func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.MQTT.Enabled = b
		}
	},
	"MQTT_HOST":     func(c *Config, v string) { c.MQTT.Broker.Host = v },
	"MQTT_USERNAME": func(c *Config, v string) { c.MQTT.Auth.Username = v },
	"MQTT_PASSWORD": func(c *Config, v string) { c.MQTT.Auth.Password = v },

	"API_HOST": func(c *Config, v string) { c.API.Host = v },
	"API_PORT": func(c *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	},
	"PANEL_DIR": func(c *Config, v string) { c.API.PanelDir = v },

	"SMTP_HOST":      func(c *Config, v string) { c.Alerts.Email.Host = v },
	"SMTP_USERNAME":  func(c *Config, v string) { c.Alerts.Email.Username = v },
	"SMTP_PASSWORD":  func(c *Config, v string) { c.Alerts.Email.Password = v },
	"ALERT_EMAIL_TO": func(c *Config, v string) { c.Alerts.Email.To = splitList(v) },
}

func applyEnvOverrides(cfg *Config) {
	for key, set := range envOverrides {
		if v := os.Getenv(envPrefix + key); v != "" {
			set(cfg, v)
		}
	}
}

// Validate reports every problem at once, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Site.ID == "" {
		fail("site.id is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			fail("database.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			fail("database.dsn is required for the postgres driver")
		}
	default:
		fail("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver)
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		fail("mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		fail("mqtt.topic_prefix is required when mqtt is enabled")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		fail("api.port must be between 1 and 65535")
	}
	if c.Alerts.Workers < 1 {
		fail("alerts.workers must be at least 1")
	}
	if c.Alerts.QueueSize < 1 {
		fail("alerts.queue_size must be at least 1")
	}

	if email := c.Alerts.Email; email.Enabled {
		if email.Host == "" {
			fail("alerts.email.host is required when email alerts are enabled")
		}
		if email.From == "" {
			fail("alerts.email.from is required when email alerts are enabled")
		}
		if len(email.To) == 0 {
			fail("alerts.email.to needs at least one recipient")
		}
		switch email.TLS {
		case "none", "opportunistic", "mandatory":
		default:
			fail("alerts.email.tls must be none, opportunistic or mandatory")
		}
	}
	if c.Alerts.MQTT.Enabled && !c.MQTT.Enabled {
		fail("alerts.mqtt.enabled requires mqtt.enabled")
	}

	return errors.Join(errs...)
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// GetReadTimeout is api.timeouts.read.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout is api.timeouts.write.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout is api.timeouts.idle.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }

// GetQueryTimeout bounds a single store operation.
func (c *Config) GetQueryTimeout() time.Duration { return seconds(c.Database.QueryTimeout) }

// GetSendTimeout bounds a single notification delivery.
func (c *Config) GetSendTimeout() time.Duration { return seconds(c.Alerts.SendTimeout) }

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
