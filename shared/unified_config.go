package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL            = "http://127.0.0.1:8000"
	DefaultHTTPRequestTimeout = 30 * time.Second
	DefaultDismissAfter       = 4000 * time.Millisecond
	DefaultServiceName        = "ipo-admin"
)

// UnifiedConfiguration holds all configuration parameters for the client
type UnifiedConfiguration struct {
	Service      ServiceConfig      `json:"service"`
	Database     DatabaseConfig     `json:"database"`
	Notification NotificationConfig `json:"notification"`
	Refresh      RefreshConfig      `json:"refresh"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServiceConfig holds remote API configuration
type ServiceConfig struct {
	BaseURL            string        `json:"base_url"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	EnableMetrics      bool          `json:"enable_metrics"`
}

// DatabaseConfig holds database connection configuration for the shared credential store
type DatabaseConfig struct {
	URL             string        `json:"url"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// NotificationConfig holds status message configuration
type NotificationConfig struct {
	DismissAfter time.Duration `json:"dismiss_after"`
}

// RefreshConfig holds periodic dashboard refresh configuration. Zero disables it.
type RefreshConfig struct {
	Interval time.Duration `json:"interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `json:"level"`
	Format      string `json:"format"`
	ServiceName string `json:"service_name"`
}

// NewDefaultUnifiedConfiguration returns default configuration
func NewDefaultUnifiedConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		Service: ServiceConfig{
			BaseURL:            DefaultBaseURL,
			HTTPRequestTimeout: DefaultHTTPRequestTimeout,
			EnableMetrics:      true,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Notification: NotificationConfig{
			DismissAfter: DefaultDismissAfter,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "text",
			ServiceName: DefaultServiceName,
		},
	}
}

// ValidateAndApplyDefaults validates configuration and applies defaults for invalid values
func (c *UnifiedConfiguration) ValidateAndApplyDefaults() {
	logger := logrus.WithField("component", "UnifiedConfiguration")

	if c.Service.BaseURL == "" {
		c.Service.BaseURL = DefaultBaseURL
		logger.Debug("Applied default Service.BaseURL")
	}

	if c.Service.HTTPRequestTimeout <= 0 {
		c.Service.HTTPRequestTimeout = DefaultHTTPRequestTimeout
		logger.Debug("Applied default Service.HTTPRequestTimeout")
	}

	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 4
		logger.Debug("Applied default Database.MaxOpenConns")
	}

	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 2
		logger.Debug("Applied default Database.MaxIdleConns")
	}

	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 5 * time.Minute
		logger.Debug("Applied default Database.ConnMaxLifetime")
	}

	if c.Database.PingTimeout <= 0 {
		c.Database.PingTimeout = 5 * time.Second
		logger.Debug("Applied default Database.PingTimeout")
	}

	if c.Notification.DismissAfter <= 0 {
		c.Notification.DismissAfter = DefaultDismissAfter
		logger.Debug("Applied default Notification.DismissAfter")
	}

	if c.Refresh.Interval < 0 {
		c.Refresh.Interval = 0
		logger.Debug("Disabled negative Refresh.Interval")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
		logger.Debug("Applied default Logging.Level")
	}

	if c.Logging.Format == "" {
		c.Logging.Format = "text"
		logger.Debug("Applied default Logging.Format")
	}

	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = DefaultServiceName
		logger.Debug("Applied default Logging.ServiceName")
	}
}

// ToJSON serializes the configuration to JSON
func (c *UnifiedConfiguration) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// LoadFromJSON deserializes configuration from JSON
func (c *UnifiedConfiguration) LoadFromJSON(jsonData []byte) error {
	if err := json.Unmarshal(jsonData, c); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.ValidateAndApplyDefaults()
	return nil
}
