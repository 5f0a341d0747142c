package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DB       DBConfig
	JWT      JWTConfig
	Server   ServerConfig
	Mail     MailConfig
	Calendar CalendarConfig
	Google   GoogleConfig
	Audit    AuditConfig
	Seed     SeedConfig
}

type DBConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	UseTLS    bool
	Timeout   time.Duration
	QueueSize int
}

// Enabled reports whether an SMTP relay is configured. Without one,
// notifications are written to the log instead of being sent.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}

type CalendarConfig struct {
	Timezone       string
	RequestTimeout time.Duration
	CalDAVEndpoint string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

type GoogleConfig struct {
	ClientID string
}

type AuditConfig struct {
	QueueSize int
}

type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding variables already present in the environment. Missing files are
// ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "groupcal"),
			Password:   getEnv("DB_PASSWORD", "groupcal_secret"),
			Name:       getEnv("DB_NAME", "groupcal"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("DB_SQLITE_PATH", "groupcal.db"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173"),
		},
		Mail: MailConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getEnvAsInt("SMTP_PORT", 587),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			From:      getEnv("MAIL_FROM", "groupcal@localhost"),
			UseTLS:    getEnvAsBool("SMTP_TLS", true),
			Timeout:   getEnvAsDuration("SMTP_TIMEOUT", 15*time.Second),
			QueueSize: getEnvAsInt("MAIL_QUEUE_SIZE", 256),
		},
		Calendar: CalendarConfig{
			Timezone:       getEnv("CALENDAR_TIMEZONE", "Europe/Budapest"),
			RequestTimeout: getEnvAsDuration("CALENDAR_REQUEST_TIMEOUT", 20*time.Second),
			CalDAVEndpoint: getEnv("CALDAV_ENDPOINT", ""),
			CalDAVUsername: getEnv("CALDAV_USERNAME", ""),
			CalDAVPassword: getEnv("CALDAV_PASSWORD", ""),
			CalDAVCalendar: getEnv("CALDAV_CALENDAR", "GroupCal"),
		},
		Google: GoogleConfig{
			ClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		},
		Audit: AuditConfig{
			QueueSize: getEnvAsInt("AUDIT_QUEUE_SIZE", 1000),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@groupcal.local"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
