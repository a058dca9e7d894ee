package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Token store backends selectable with IPO_TOKEN_STORE
const (
	TokenStoreFile     = "file"
	TokenStoreMemory   = "memory"
	TokenStorePostgres = "postgres"
)

type Config struct {
	APIBaseURL             string
	HTTPTimeoutSeconds     string
	TokenStore             string
	TokenFile              string
	TokenProfile           string
	DatabaseURL            string
	LogLevel               string
	LogFormat              string
	NotifyTTLMillis        string
	RefreshIntervalSeconds string
	MockServerPort         string
}

// GetHTTPTimeout returns the per-request timeout from environment or default
func (c *Config) GetHTTPTimeout() time.Duration {
	return secondsOrDefault("IPO_HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds, shared.DefaultHTTPRequestTimeout)
}

// GetNotifyTTL returns how long a notification stays visible
func (c *Config) GetNotifyTTL() time.Duration {
	if c.NotifyTTLMillis == "" {
		return shared.DefaultDismissAfter
	}

	millis, err := strconv.Atoi(c.NotifyTTLMillis)
	if err != nil || millis <= 0 {
		logrus.Warnf("Invalid IPO_NOTIFY_TTL_MS value: %s, using default %v", c.NotifyTTLMillis, shared.DefaultDismissAfter)
		return shared.DefaultDismissAfter
	}

	return time.Duration(millis) * time.Millisecond
}

// GetRefreshInterval returns the watch refresh period, zero when disabled
func (c *Config) GetRefreshInterval() time.Duration {
	return secondsOrDefault("IPO_REFRESH_INTERVAL_SECONDS", c.RefreshIntervalSeconds, 0)
}

// Unified converts the environment view into the typed configuration
func (c *Config) Unified() *shared.UnifiedConfiguration {
	unified := shared.NewDefaultUnifiedConfiguration()
	unified.Service.BaseURL = strings.TrimRight(c.APIBaseURL, "/")
	unified.Service.HTTPRequestTimeout = c.GetHTTPTimeout()
	unified.Database.URL = c.DatabaseURL
	unified.Notification.DismissAfter = c.GetNotifyTTL()
	unified.Refresh.Interval = c.GetRefreshInterval()
	unified.Logging.Level = c.LogLevel
	unified.Logging.Format = c.LogFormat
	unified.ValidateAndApplyDefaults()
	return unified
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Debug("No .env file found, using system environment variables")
	}

	return &Config{
		APIBaseURL:             getEnv("IPO_API_BASE_URL", shared.DefaultBaseURL),
		HTTPTimeoutSeconds:     getEnv("IPO_HTTP_TIMEOUT_SECONDS", "30"),
		TokenStore:             getEnv("IPO_TOKEN_STORE", TokenStoreFile),
		TokenFile:              getEnv("IPO_TOKEN_FILE", defaultTokenFile()),
		TokenProfile:           getEnv("IPO_TOKEN_PROFILE", "default"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		LogLevel:               getEnv("LOG_LEVEL", "warn"),
		LogFormat:              getEnv("LOG_FORMAT", "text"),
		NotifyTTLMillis:        getEnv("IPO_NOTIFY_TTL_MS", "4000"),
		RefreshIntervalSeconds: getEnv("IPO_REFRESH_INTERVAL_SECONDS", "0"),
		MockServerPort:         getEnv("MOCK_SERVER_PORT", "8000"),
	}
}

// ConfigureLogging applies level and format to the standard logrus logger
func ConfigureLogging(level, format string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", level)
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ipoadmin", "credentials.yaml")
	}
	return filepath.Join(home, ".ipoadmin", "credentials.yaml")
}

func secondsOrDefault(name, value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}

	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		logrus.Warnf("Invalid %s value: %s, using default %v", name, value, fallback)
		return fallback
	}
	if seconds == 0 && fallback > 0 {
		return fallback
	}

	return time.Duration(seconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
