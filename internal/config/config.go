// internal/config/config.go
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/unclebandit/mailinglist/internal/db"
	"github.com/unclebandit/mailinglist/internal/model"
)

type Config struct {
	HTTPAddr    string
	Environment string
	LogLevel    string
	SentryDSN   string

	DB db.Config

	TenantID        int64
	ListShortname   string
	FieldMap        model.FieldMap
	AvailabilityTTL time.Duration
	ContactLink     string

	ResendAPIKey     string
	ResendAudienceID string
	ResendFrom       string
	ResendReplyTo    string
	WelcomeSubject   string
	WelcomeText      string
	WelcomeHTML      string

	AMQPURL    string
	QueueName  string
	RedisURL   string
	DrainBatch int
	// DrainSchedule is a cron expression or descriptor for the periodic drain.
	DrainSchedule string

	TemplateDir      string
	BaseHref         string
	ResourceBaseHref string
	UTMSource        string
}

// Load reads .env when present, then the process environment.
func Load(log *slog.Logger) Config {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, relying on OS environment variables")
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		DB: db.Config{
			URL:           os.Getenv("DATABASE_URL"),
			User:          os.Getenv("DB_USER"),
			Password:      os.Getenv("DB_PASSWORD"),
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			Name:          os.Getenv("DB_NAME"),
			RetryAttempts: getInt("DB_RETRY_ATTEMPTS", 3),
			RetryInterval: getDuration("DB_RETRY_INTERVAL", time.Second),
		},

		TenantID:        int64(getInt("TENANT_ID", 1)),
		ListShortname:   getEnv("LIST_SHORTNAME", "newsletter"),
		FieldMap:        parseFieldMap(os.Getenv("LIST_FIELD_MAP")),
		AvailabilityTTL: getDuration("LIST_AVAILABILITY_TTL", 5*time.Second),
		ContactLink:     getEnv("CONTACT_LINK", "about/contact"),

		ResendAPIKey:     os.Getenv("RESEND_API_KEY"),
		ResendAudienceID: os.Getenv("RESEND_AUDIENCE_ID"),
		ResendFrom:       os.Getenv("RESEND_FROM"),
		ResendReplyTo:    os.Getenv("RESEND_REPLY_TO"),
		WelcomeSubject:   os.Getenv("WELCOME_SUBJECT"),
		WelcomeText:      os.Getenv("WELCOME_TEXT"),
		WelcomeHTML:      os.Getenv("WELCOME_HTML"),

		AMQPURL:    os.Getenv("AMQP_URL"),
		QueueName:  getEnv("AMQP_QUEUE", "mailing_list_queue"),
		RedisURL:   os.Getenv("REDIS_URL"),
		DrainBatch: getInt("DRAIN_BATCH", 100),

		DrainSchedule: getEnv("DRAIN_SCHEDULE", "@every 30s"),

		TemplateDir:      getEnv("TEMPLATE_DIR", "campaigns"),
		BaseHref:         getEnv("BASE_HREF", "http://localhost:8080"),
		ResourceBaseHref: os.Getenv("RESOURCE_BASE_HREF"),
		UTMSource:        os.Getenv("UTM_SOURCE"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// parseFieldMap reads "first:first_name,last:last_name".
func parseFieldMap(s string) model.FieldMap {
	m := model.FieldMap{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || k == "" || v == "" {
			continue
		}
		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return m
}
