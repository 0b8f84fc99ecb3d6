package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-budget-api/internal/pkg/validate"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverMemory  = "memory"
	DriverLevelDB = "leveldb"
	DriverDynamo  = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string `validate:"required,numeric"`
	AppEnv  string

	StoreDriver    string `validate:"oneof=memory leveldb dynamo"`
	LevelDBPath    string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoRowTable string
	S3BucketName   string // empty disables snapshots
	Sheets         Sheets

	OTPTTL      time.Duration `validate:"gt=0"`
	OTPCooldown time.Duration `validate:"gte=0"`
	SessionTTL  time.Duration `validate:"gt=0"`

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string `validate:"required,email"`
	SMTPFromName string
	SMTPUsername string
	SMTPPassword string

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64  `validate:"gt=0"`
	RateLimitBurst int      `validate:"gte=1"`
	// Honour X-Forwarded-For for rate limiting. Enable only behind a proxy
	// that overwrites it.
	TrustProxyHeaders bool

	SweepSchedule    string
	SnapshotSchedule string // empty disables snapshots
}

// Sheets holds the collection name for each entity.
type Sheets struct {
	Users      string
	BudgetData string
	OTP        string
	Sessions   string
	Bills      string
}

// All returns every collection name.
func (s Sheets) All() []string {
	return []string{s.Users, s.BudgetData, s.OTP, s.Sessions, s.Bills}
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		StoreDriver:    getEnv("STORE_DRIVER", DriverMemory),
		LevelDBPath:    getEnv("LEVELDB_PATH", "./data/rows"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoRowTable: getEnv("DYNAMO_TABLE_ROWS", "sheet_rows"),
		S3BucketName:   getEnv("S3_BUCKET_NAME", ""),
		Sheets: Sheets{
			Users:      getEnv("SHEET_USERS", "Users"),
			BudgetData: getEnv("SHEET_BUDGET_DATA", "BudgetData"),
			OTP:        getEnv("SHEET_OTP", "OTPStore"),
			Sessions:   getEnv("SHEET_SESSIONS", "Sessions"),
			Bills:      getEnv("SHEET_BILLS", "Bills"),
		},
		OTPTTL:            getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPCooldown:       getEnvDuration("OTP_COOLDOWN", 60*time.Second),
		SessionTTL:        getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPFromName:      getEnv("SMTP_FROM_NAME", "SmartBudget Pro"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
		SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@every 1h"),
		SnapshotSchedule:  getEnv("SNAPSHOT_SCHEDULE", ""),
	}
}

// Validate checks the loaded values. A bad STORE_DRIVER or a zero TTL fails
// here instead of on the first request.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Production reports whether the app runs with APP_ENV=production.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("10m", "168h").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
