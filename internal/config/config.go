// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-atelier-secret"

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Admin       AdminConfig
	Webhook     WebhookConfig
	Rings       RingsConfig
	AWS         AWSConfig
	Email       EmailConfig
	I18n        I18nConfig
	CORS        CORSConfig
	Log         LogConfig
	Frontend    FrontendConfig
	Transient   TransientConfig
}

type FrontendConfig struct {
	BaseURL    string
	ProjectURL string
}

type TransientConfig struct {
	Driver string // memory or database
}

type ServerConfig struct {
	Port         string
	Host         string
	PublicURL    string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	// Requests per second allowed per IP on public routes.
	PublicRateLimit float64
	PublicRateBurst int
	// Proxies whose X-Forwarded-For is honoured. Empty trusts none.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Driver       string // postgres or sqlite
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	SQLitePath   string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey        string
	AccessTokenTTL   int // in hours
	CustomerTokenTTL int // in hours
	Issuer           string
}

type AdminConfig struct {
	Username   string
	APIKeyHash string // bcrypt
	Email      string
}

type WebhookConfig struct {
	Secret          string
	Debug           bool
	AllowedIPs      []string
	SecurityAlerts  bool
	RateLimit       int
	RateWindow      int // in seconds
	ReplayWindow    int // in seconds
	MaxBodyBytes    int64
	SignatureHeader string
	TimestampHeader string
}

type RingsConfig struct {
	TemplateProductID   int64
	AllowVirtualProduct bool
	ConfigTTL           int // in seconds
	SummaryURL          string
	ConfiguratorURL     string
	ConfiguratorPageURL string
	CartURL             string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
	UploadsDir      string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

type I18nConfig struct {
	DefaultLocale string
}

type CORSConfig struct {
	AllowOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "localhost"),
			PublicURL:       getEnv("SERVER_PUBLIC_URL", "http://localhost:8080"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:     getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			PublicRateLimit: getEnvAsFloat("PUBLIC_RATE_LIMIT", 10),
			PublicRateBurst: getEnvAsInt("PUBLIC_RATE_BURST", 20),
			TrustedProxies:  getEnvAsList("TRUSTED_PROXIES", nil),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "bigdiamond_atelier"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "atelier.db"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:        getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenTTL:   getEnvAsInt("JWT_ACCESS_TTL", 12),
			CustomerTokenTTL: getEnvAsInt("JWT_CUSTOMER_TTL", 720),
			Issuer:           getEnv("JWT_ISSUER", "bigdiamond-atelier"),
		},
		Admin: AdminConfig{
			Username:   getEnv("ADMIN_USERNAME", "atelier"),
			APIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),
			Email:      getEnv("ADMIN_EMAIL", "kontakt@bigdiamond.pl"),
		},
		Webhook: WebhookConfig{
			Secret:          getEnv("WEBHOOK_SECRET", ""),
			Debug:           getEnvAsBool("WEBHOOK_DEBUG", false),
			AllowedIPs:      getEnvAsList("WEBHOOK_ALLOWED_IPS", nil),
			SecurityAlerts:  getEnvAsBool("WEBHOOK_SECURITY_ALERTS", false),
			RateLimit:       getEnvAsInt("WEBHOOK_RATE_LIMIT", 60),
			RateWindow:      getEnvAsInt("WEBHOOK_RATE_WINDOW", 60),
			ReplayWindow:    getEnvAsInt("WEBHOOK_REPLAY_WINDOW", 300),
			MaxBodyBytes:    int64(getEnvAsInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
			SignatureHeader: getEnv("WEBHOOK_SIGNATURE_HEADER", "X-Signature"),
			TimestampHeader: getEnv("WEBHOOK_TIMESTAMP_HEADER", "X-Timestamp"),
		},
		Rings: RingsConfig{
			TemplateProductID:   int64(getEnvAsInt("RINGS_TEMPLATE_PRODUCT_ID", 0)),
			AllowVirtualProduct: getEnvAsBool("RINGS_ALLOW_VIRTUAL_PRODUCT", false),
			ConfigTTL:           getEnvAsInt("RINGS_CONFIG_TTL", 3600),
			SummaryURL:          getEnv("RINGS_SUMMARY_URL", "https://bigdiamond.pl/konfigurator-obraczek/podsumowanie"),
			ConfiguratorURL:     getEnv("RINGS_CONFIGURATOR_URL", ""),
			ConfiguratorPageURL: getEnv("RINGS_CONFIGURATOR_PAGE_URL", "https://bigdiamond.pl/konfigurator-obraczek"),
			CartURL:             getEnv("RINGS_CART_URL", "https://bigdiamond.pl/koszyk"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-central-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "bigdiamond-atelier"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
			UploadsDir:      getEnv("UPLOADS_DIR", "./uploads"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "noreply@bigdiamond.pl"),
			FromName:     getEnv("FROM_NAME", "BigDIAMOND Kraków"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "pl"),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"https://bigdiamond.pl"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		Frontend: FrontendConfig{
			BaseURL:    getEnv("FRONTEND_URL", "https://bigdiamond.pl"),
			ProjectURL: getEnv("FRONTEND_PROJECT_URL", "https://bigdiamond.pl/projekt-na-zamowienie"),
		},
		Transient: TransientConfig{
			Driver: getEnv("TRANSIENT_STORE", "database"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Environment != "production" {
		return nil
	}

	if c.JWT.SecretKey == defaultJWTSecret {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Driver == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required in production")
	}

	if c.Webhook.Debug {
		return fmt.Errorf("webhook debug mode cannot be enabled in production")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
