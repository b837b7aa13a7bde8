package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	JWTTTL             time.Duration
	Environment        string
	LogLevel           slog.Level
	SeedAdminEmail     string
	SeedAdminPassword  string
	RunMigrations      bool
	RunSeed            bool
	EmailFrom          string
	EmailEnabled       bool
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPUseTLS         bool
	MaxBodyBytes       int64
	CORSAllowedOrigins []string
	MetricsEnabled     bool
	RedisURL           string
	AuditKafkaBrokers  []string
	AuditKafkaTopic    string
	LoginRateLimit     int
	DispatchRateLimit  int
	TracingExporter    string
	ServiceName        string

	Compliance Compliance
}

// Compliance holds the company-level defaults used by classification and
// notification dispatch.
type Compliance struct {
	TrainingExpiryWarningDays int
	NotificationDedupeWindow  time.Duration
	NotifyEmployee            bool
	NotifyAdmin               bool
	SupervisionDueSoonDays    int
	SupervisionMonthsBack     int
	SupervisionMonthsForward  int
	AppraisalReviewsBack      int
	AppraisalReviewsForward   int
	TransitiveReports         bool
	DispatchLockTTL           time.Duration
}

func Load() Config {
	return Config{
		Addr:               getEnv("APP_ADDR", ":8080"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", "migrations"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             getEnvDuration("JWT_TTL", 12*time.Hour),
		Environment:        getEnv("APP_ENV", "development"),
		LogLevel:           getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		SeedAdminEmail:     getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:  getEnv("SEED_ADMIN_PASSWORD", ""),
		RunMigrations:      getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:            getEnvBool("RUN_SEED", true),
		EmailFrom:          getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:       getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:         getEnvBool("SMTP_USE_TLS", true),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		RedisURL:           getEnv("REDIS_URL", ""),
		AuditKafkaBrokers:  getEnvList("AUDIT_KAFKA_BROKERS", nil),
		AuditKafkaTopic:    getEnv("AUDIT_KAFKA_TOPIC", "employeehub.audit"),
		LoginRateLimit:     getEnvInt("LOGIN_RATE_LIMIT", 10),
		DispatchRateLimit:  getEnvInt("DISPATCH_RATE_LIMIT", 3),
		TracingExporter:    strings.ToLower(getEnv("TRACING_EXPORTER", "none")),
		ServiceName:        getEnv("OTEL_SERVICE_NAME", "employeehub"),
		Compliance: Compliance{
			TrainingExpiryWarningDays: getEnvInt("TRAINING_EXPIRY_WARNING_DAYS", 30),
			NotificationDedupeWindow:  getEnvDuration("NOTIFICATION_DEDUPE_WINDOW", 7*24*time.Hour),
			NotifyEmployee:            getEnvBool("NOTIFY_EMPLOYEE", true),
			NotifyAdmin:               getEnvBool("NOTIFY_ADMIN", true),
			SupervisionDueSoonDays:    getEnvInt("SUPERVISION_DUE_SOON_DAYS", 7),
			SupervisionMonthsBack:     getEnvInt("SUPERVISION_MONTHS_BACK", 9),
			SupervisionMonthsForward:  getEnvInt("SUPERVISION_MONTHS_FORWARD", 3),
			AppraisalReviewsBack:      getEnvInt("APPRAISAL_REVIEWS_BACK", 2),
			AppraisalReviewsForward:   getEnvInt("APPRAISAL_REVIEWS_FORWARD", 2),
			TransitiveReports:         getEnvBool("SCOPE_TRANSITIVE_REPORTS", false),
			DispatchLockTTL:           getEnvDuration("DISPATCH_LOCK_TTL", 5*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return fallback
	}
	return level
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	if c.Compliance.TrainingExpiryWarningDays < 0 {
		return fmt.Errorf("TRAINING_EXPIRY_WARNING_DAYS must not be negative")
	}
	if c.Compliance.NotificationDedupeWindow <= 0 {
		return fmt.Errorf("NOTIFICATION_DEDUPE_WINDOW must be positive")
	}
	if c.Compliance.SupervisionMonthsBack < 0 || c.Compliance.SupervisionMonthsForward < 0 {
		return fmt.Errorf("SUPERVISION_MONTHS_BACK and SUPERVISION_MONTHS_FORWARD must not be negative")
	}
	if c.Compliance.AppraisalReviewsBack < 0 || c.Compliance.AppraisalReviewsForward < 0 {
		return fmt.Errorf("APPRAISAL_REVIEWS_BACK and APPRAISAL_REVIEWS_FORWARD must not be negative")
	}
	switch c.TracingExporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("TRACING_EXPORTER must be none or stdout")
	}
	if len(c.AuditKafkaBrokers) > 0 && strings.TrimSpace(c.AuditKafkaTopic) == "" {
		return fmt.Errorf("AUDIT_KAFKA_TOPIC must be set when AUDIT_KAFKA_BROKERS is set")
	}
	return nil
}
