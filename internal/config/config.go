package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/honesta/lostfound-api/internal/secrets"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Claims    ClaimsConfig
	AI        AIConfig
	Images    ImagesConfig
	Storage   StorageConfig
	Mirror    MirrorConfig
	Secrets   SecretsConfig
	Logging   LoggingConfig
	Server    ServerConfig
	CORS      CORSConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	// Driver is either "postgres" or "sqlite"
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// AutoMigrate runs gorm AutoMigrate on startup (development only)
	AutoMigrate bool
}

// AuthConfig holds token and campus account rules
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	// TokenTTL is the lifetime of issued tokens in minutes
	TokenTTL           int
	StudentEmailDomain string
	FacultyEmailDomain string
	MinPhoneLength     int
}

// ClaimsConfig controls ownership verification attempts
type ClaimsConfig struct {
	// MaxAttempts is the number of failed attempts allowed inside one lockout window
	MaxAttempts int
	// LockoutMinutes is how long a claimant is locked out after MaxAttempts failures
	LockoutMinutes int
	// AttemptRetentionHours is how long unverified attempt logs are kept
	AttemptRetentionHours int
	// CleanupCron schedules purging of stale attempt logs
	CleanupCron string
}

// AIConfig configures the hosted model used for questions and answer matching
type AIConfig struct {
	Enabled        bool
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// ImagesConfig controls the public and original photo renditions
type ImagesConfig struct {
	PublicMaxDim    int
	OriginalMaxDim  int
	JPEGQuality     int
	MaxUploadSizeMB int64
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
}

// MirrorConfig configures the legacy JSON blob document
type MirrorConfig struct {
	Enabled         bool
	URL             string
	CachePath       string
	ImportOnStartup bool
	ExportCron      string
	TimeoutSeconds  int
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	// "auto" uses environment in development, vault in staging/production
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	// AllowedOrigins is a list of allowed origins for CORS requests
	// Use "*" to allow all origins (not recommended for production)
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the max age (in seconds) for preflight cache
	MaxAge int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	XSSProtection         string
	ReferrerPolicy        string
	PermissionsPolicy     string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute is the default rate limit for unauthenticated requests (per IP)
	RequestsPerMinute int
	// RequestsPerMinuteAuth is the rate limit for authenticated requests (per user)
	RequestsPerMinuteAuth int
	// ClaimsPerMinute limits verification submissions per user
	ClaimsPerMinute int
	WhitelistIPs    []string
	WhitelistPaths  []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// TokenTTLDuration returns the token lifetime as duration
func (a *AuthConfig) TokenTTLDuration() time.Duration {
	return time.Duration(a.TokenTTL) * time.Minute
}

// LockoutDuration returns the lockout window as duration
func (c *ClaimsConfig) LockoutDuration() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}

// RetentionDuration returns how long stale attempt logs are kept
func (c *ClaimsConfig) RetentionDuration() time.Duration {
	return time.Duration(c.AttemptRetentionHours) * time.Hour
}

// TimeoutDuration returns the model call timeout
func (a *AIConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// TimeoutDuration returns the per-request timeout for the mirror endpoint
func (m *MirrorConfig) TimeoutDuration() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload limit in bytes
func (i *ImagesConfig) MaxUploadBytes() int64 {
	return i.MaxUploadSizeMB << 20
}

// Load loads configuration from file and environment variables
// This is a basic load that doesn't fetch secrets from vault
// Use LoadWithSecrets for full secret resolution
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = v.GetString("GEMINI_API_KEY")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source
// In development (or when secrets.source = "environment"), secrets come from env vars
// In staging/production (or when secrets.source = "vault"), secrets come from Azure Key Vault
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SecretSource(cfg.Secrets.Source),
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	if !provider.IsVaultEnabled() {
		logger.Info("Using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		if err := cfg.validateSecrets(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	logger.Info("Loading secrets from Azure Key Vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	if err := ApplySecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault successfully")
	return cfg, cfg.validateSecrets()
}

// SecretSource is the subset of the secrets provider used by ApplySecrets
type SecretSource interface {
	GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error)
}

// ApplySecrets overlays vault-held values onto cfg. Missing secrets leave the
// existing value untouched.
func ApplySecrets(ctx context.Context, cfg *Config, src SecretSource) error {
	overlay := []struct {
		secret string
		env    string
		target *string
	}{
		{"jwt-signing-key", "JWT_SECRET", &cfg.Auth.JWTSecret},
		{"POSTGRES-MAIN-HOST", "DATABASE_HOST", &cfg.Database.Host},
		{"POSTGRES-MAIN-USER", "DATABASE_USER", &cfg.Database.User},
		{"POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD", &cfg.Database.Password},
		{"gemini-api-key", "GEMINI_API_KEY", &cfg.AI.APIKey},
		{"storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING", &cfg.Storage.CloudConnectionString},
		{"mirror-url", "MIRROR_URL", &cfg.Mirror.URL},
	}

	for _, o := range overlay {
		if value, err := src.GetSecretOrEnv(ctx, o.secret, o.env); err == nil && value != "" {
			*o.target = value
		}
	}

	// Database name varies per environment and never lives in the vault
	if defaultDB := os.Getenv("DEFAULT_DATABASE"); defaultDB != "" {
		cfg.Database.Name = defaultDB
	}

	return nil
}

func (c *Config) validateSecrets() error {
	if c.Auth.JWTSecret == "" {
		if c.App.Environment == "production" || c.App.Environment == "staging" {
			return fmt.Errorf("JWT_SECRET is required in %s", c.App.Environment)
		}
		// Development convenience only
		c.Auth.JWTSecret = "honesta-development-secret"
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when ai.enabled=true")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "HONESTA Lost & Found API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "honesta")
	v.SetDefault("database.user", "honesta_user")
	v.SetDefault("database.password", "honesta_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.sqlitePath", "./honesta.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.autoMigrate", false)

	// Auth defaults
	v.SetDefault("auth.issuer", "honesta")
	v.SetDefault("auth.tokenTTL", 60*24*7) // one week
	v.SetDefault("auth.studentEmailDomain", "cmrithyderabad.edu.in")
	v.SetDefault("auth.facultyEmailDomain", "cmritonline.ac.in")
	v.SetDefault("auth.minPhoneLength", 10)

	// Claim defaults
	v.SetDefault("claims.maxAttempts", 3)
	v.SetDefault("claims.lockoutMinutes", 60)
	v.SetDefault("claims.attemptRetentionHours", 24*7)
	v.SetDefault("claims.cleanupCron", "0 0 3 * * *")

	// AI defaults
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeoutSeconds", 20)

	// Image defaults
	v.SetDefault("images.publicMaxDim", 500)
	v.SetDefault("images.originalMaxDim", 600)
	v.SetDefault("images.jpegQuality", 60)
	v.SetDefault("images.maxUploadSizeMB", 10)

	// Storage defaults
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "found-items")

	// Mirror defaults
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.cachePath", "./honesta_emergency_cache.json")
	v.SetDefault("mirror.importOnStartup", false)
	v.SetDefault("mirror.exportCron", "0 */10 * * * *")
	v.SetDefault("mirror.timeoutSeconds", 15)

	// Secrets defaults
	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Server defaults
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.requestTimeout", 60)

	// CORS defaults - restrictive by default
	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID", "Retry-After"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	// Security header defaults
	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.hstsPreload", false)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.xssProtection", "1; mode=block")
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=()")

	// Rate limiting defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.claimsPerMinute", 5)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})
}
