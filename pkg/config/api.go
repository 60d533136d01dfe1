package config

import (
	"strings"
	"time"
)

// Pending store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// APIConfig holds runtime configuration for the onboarding API service.
type APIConfig struct {
	Environment    string
	Addr           string
	LogLevel       string
	AppName        string
	FrontendURL    string
	BackendURL     string
	AdminJWTSecret string
	TrustedProxies []string

	ServiceNowURL      string
	ServiceNowUser     string
	ServiceNowPassword string
	ServiceNowTimeout  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPTimeout  time.Duration

	GeocodeURL     string
	GeocodeContact string
	GeocodeTimeout time.Duration

	PendingStore        string
	PendingTTL          time.Duration
	PendingCleanupSlack time.Duration
	PendingSweepEvery   time.Duration
	DatabaseURL         string
	MigrationsDir       string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	RateLimitRedis      bool
	PendingSealKey      string

	MongoURI      string
	MongoDatabase string

	PartialFailurePolicy string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:    GetString("APP_ENV", "development"),
		Addr:           GetString("API_ADDR", ":5000"),
		LogLevel:       GetString("LOG_LEVEL", "info"),
		AppName:        GetString("APP_NAME", "Customer Portal"),
		FrontendURL:    strings.TrimRight(GetString("FRONTEND_URL", "http://localhost:3000"), "/"),
		BackendURL:     strings.TrimRight(GetString("BACKEND_URL", "http://localhost:5000"), "/"),
		AdminJWTSecret: GetString("ADMIN_JWT_SECRET", ""),
		TrustedProxies: GetList("TRUSTED_PROXIES"),

		ServiceNowURL:      strings.TrimRight(GetString("SERVICENOW_URL", ""), "/"),
		ServiceNowUser:     GetString("SERVICENOW_USER", ""),
		ServiceNowPassword: GetString("SERVICENOW_PASSWORD", ""),
		ServiceNowTimeout:  GetSeconds("SERVICENOW_TIMEOUT_SECONDS", 15*time.Second),

		SMTPHost:     GetString("SMTP_HOST", ""),
		SMTPPort:     GetInt("SMTP_PORT", 587),
		SMTPUser:     GetString("SMTP_USER", ""),
		SMTPPassword: GetString("SMTP_PASSWORD", ""),
		SMTPFrom:     GetString("SMTP_FROM", ""),
		SMTPTimeout:  GetSeconds("SMTP_TIMEOUT_SECONDS", 20*time.Second),

		GeocodeURL:     strings.TrimRight(GetString("GEOCODE_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeocodeContact: GetString("GEOCODE_CONTACT", "admin@example.com"),
		GeocodeTimeout: GetSeconds("GEOCODE_TIMEOUT_SECONDS", 10*time.Second),

		PendingStore:        strings.ToLower(GetString("PENDING_STORE", StoreMemory)),
		PendingTTL:          time.Duration(GetInt("PENDING_TTL_MINUTES", 60)) * time.Minute,
		PendingCleanupSlack: time.Duration(GetInt("PENDING_CLEANUP_SLACK_MINUTES", 5)) * time.Minute,
		PendingSweepEvery:   GetSeconds("PENDING_SWEEP_INTERVAL_SECONDS", 10*time.Minute),
		DatabaseURL:         GetString("DATABASE_URL", ""),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		RedisAddr:           GetString("REDIS_ADDR", ""),
		RedisPassword:       GetString("REDIS_PASSWORD", ""),
		RedisDB:             GetInt("REDIS_DB", 0),
		RateLimitRedis:      GetBool("RATE_LIMIT_REDIS", false),
		PendingSealKey:      GetString("PENDING_ENCRYPTION_KEY", ""),

		MongoURI:      GetString("MONGO_URI", ""),
		MongoDatabase: GetString("MONGO_DATABASE", "onboard"),

		PartialFailurePolicy: GetString("PROVISION_PARTIAL_FAILURE_POLICY", "leave_orphans"),
	}
}

// ServiceNowConfigured reports whether the ServiceNow connection group is complete.
func (c APIConfig) ServiceNowConfigured() bool {
	return c.ServiceNowURL != "" && c.ServiceNowUser != "" && c.ServiceNowPassword != ""
}

// MailConfigured reports whether outbound email can be sent.
func (c APIConfig) MailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPassword != "" && c.SMTPFrom != ""
}

// ConfirmationURL builds the link embedded in confirmation emails.
func (c APIConfig) ConfirmationURL() string {
	return c.BackendURL + "/api/confirm-creation"
}

// LoginURL is where the success page sends the freshly provisioned user.
func (c APIConfig) LoginURL() string {
	return c.FrontendURL + "/login"
}
