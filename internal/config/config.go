// Package config provides configuration management for the SpotifyScope
// backend. It supports environment variable-based configuration with
// validation and default values for all service components including the
// HTTP server, Redis, PostgreSQL, the Spotify provider, JWT sessions,
// security, and logging settings.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// MinJWTSecretLength is the minimum required length for the JWT secret.
	MinJWTSecretLength = 32
	// MinPortNumber is the minimum valid port number.
	MinPortNumber = 1
	// MaxPortNumber is the maximum valid port number.
	MaxPortNumber = 65535
	// MaxAudioFeatureBatchSize is the provider's ceiling for a single bulk
	// audio-features lookup.
	MaxAudioFeatureBatchSize = 100
)

// Config represents the complete configuration for the SpotifyScope backend,
// aggregating all component-specific configurations.
type Config struct {
	// Environment holds environment-specific settings.
	Environment EnvironmentConfig `envconfig:"ENVIRONMENT"`
	// Server contains HTTP server configuration including ports, timeouts, and TLS settings.
	Server ServerConfig `envconfig:"SERVER"`
	// Redis contains Redis connection and pool configuration.
	Redis RedisConfig `envconfig:"REDIS"`
	// Database contains PostgreSQL database configuration.
	Database DatabaseConfig `envconfig:"POSTGRES"`
	// Spotify contains provider API credentials and client settings.
	Spotify SpotifyConfig `envconfig:"SPOTIFY"`
	// JWT contains session token generation and validation settings.
	JWT JWTConfig `envconfig:"JWT"`
	// Security contains security-related settings like CORS and rate limiting.
	Security SecurityConfig `envconfig:"SECURITY"`
	// Logging contains logging configuration.
	Logging LoggingConfig `envconfig:"LOGGING"`
}

type Environment string

const (
	Local   Environment = "LOCAL"
	NonProd Environment = "NONPROD"
	Prod    Environment = "PROD"
)

// EnvironmentConfig holds environment-specific settings.
type EnvironmentConfig struct {
	// Environment indicates the current running environment (LOCAL, NONPROD, PROD).
	Environment Environment `envconfig:"ENV" default:"LOCAL"`
}

// ServerConfig holds HTTP server configuration including network settings,
// timeouts, and TLS certificate paths.
type ServerConfig struct {
	// Port is the HTTP server listening port.
	Port int `envconfig:"PORT"             default:"8080"`
	// Host is the network interface to bind to.
	Host string `envconfig:"HOST"             default:"0.0.0.0"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"     default:"15s"`
	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT"    default:"30s"`
	// IdleTimeout is the maximum amount of time to wait for keep-alive connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"     default:"60s"`
	// ShutdownTimeout is the maximum time to wait for graceful server shutdown.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// TLSCert is the path to the TLS certificate file for HTTPS.
	TLSCert string `envconfig:"TLS_CERT"`
	// TLSKey is the path to the TLS private key file for HTTPS.
	TLSKey string `envconfig:"TLS_KEY"`
}

// RedisConfig contains Redis connection configuration including
// connection pool settings and timeouts.
type RedisConfig struct {
	// URL is the Redis connection URL.
	URL string `envconfig:"URL"           default:"redis://localhost:6379"`
	// Password is the Redis authentication password.
	Password string `envconfig:"PASSWORD"`
	// DB is the Redis database number to use.
	DB int `envconfig:"DB"            default:"0"`
	// MaxRetries is the maximum number of retry attempts for failed operations.
	MaxRetries int `envconfig:"MAX_RETRIES"   default:"3"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `envconfig:"POOL_SIZE"     default:"10"`
	// MinIdleConn is the minimum number of idle connections.
	MinIdleConn int `envconfig:"MIN_IDLE_CONN" default:"5"`
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT"  default:"5s"`
	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"  default:"3s"`
	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	// PoolTimeout is the amount of time client waits for connection.
	PoolTimeout time.Duration `envconfig:"POOL_TIMEOUT"  default:"4s"`
	// IdleTimeout is the amount of time after which client closes idle connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"  default:"300s"`
}

// DatabaseConfig contains PostgreSQL database connection configuration
// including connection pool settings and health check parameters.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `envconfig:"HOST"                default:"localhost"`
	// Port is the PostgreSQL server port.
	Port int `envconfig:"PORT"                default:"5432"`
	// Database is the PostgreSQL database name.
	Database string `envconfig:"DB"                  default:"spotifyscope"`
	// Schema is the PostgreSQL schema name.
	Schema string `envconfig:"SCHEMA"              default:"public"`
	// User is the database username.
	User string `envconfig:"USER"`
	// Password is the database password.
	Password string `envconfig:"PASSWORD"`
	// SSLMode is the SSL connection mode (disable, require, verify-ca, verify-full).
	SSLMode string `envconfig:"SSL_MODE"            default:"require"`
	// MaxConn is the maximum number of connections in the pool.
	MaxConn int32 `envconfig:"MAX_CONN"            default:"25"`
	// MinConn is the minimum number of connections in the pool.
	MinConn int32 `envconfig:"MIN_CONN"            default:"5"`
	// MaxConnLifetime is the maximum lifetime of a connection.
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME"   default:"1h"`
	// MaxConnIdleTime is the maximum idle time for a connection.
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME"  default:"30m"`
	// HealthCheckPeriod is how often to check database connectivity.
	HealthCheckPeriod time.Duration `envconfig:"HEALTH_CHECK_PERIOD" default:"30s"`
	// ConnectTimeout is the timeout for establishing connections.
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT"     default:"10s"`
}

// SpotifyConfig contains the Spotify application credentials and provider
// client settings.
type SpotifyConfig struct {
	// ClientID is the Spotify application client ID.
	ClientID string `envconfig:"CLIENT_ID"`
	// ClientSecret is the Spotify application client secret.
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	// RedirectURI must match the callback registered in the Spotify
	// developer dashboard.
	RedirectURI string `envconfig:"REDIRECT_URI"   default:"http://localhost:8080/api/auth/spotify/callback"`
	// FrontendURL is the base URL the callback redirects to after login.
	FrontendURL string `envconfig:"FRONTEND_URL"   default:"http://localhost:3000"`
	// RequestTimeout is the per-call timeout for outbound provider requests.
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	// AudioFeatureBatchSize is the number of track IDs per bulk
	// audio-features request. Never exceeds the provider ceiling of 100.
	AudioFeatureBatchSize int `envconfig:"AUDIO_FEATURE_BATCH_SIZE" default:"100"`
	// Scopes are the OAuth scopes requested during user login. Populated
	// by Load when unset.
	Scopes []string `envconfig:"SCOPES"`
}

// JWTConfig contains session token signing settings.
type JWTConfig struct {
	// Secret is the HMAC signing secret for session tokens.
	Secret string `envconfig:"SECRET"`
	// SessionExpiry is the lifetime of an issued session token.
	SessionExpiry time.Duration `envconfig:"SESSION_EXPIRY" default:"168h"`
	// Issuer is the "iss" claim stamped on issued tokens.
	Issuer string `envconfig:"ISSUER"         default:"spotifyscope"`
	// Algorithm is the JWT signing algorithm.
	Algorithm string `envconfig:"ALGORITHM"      default:"HS256"`
}

// SecurityConfig contains CORS and rate limiting settings.
type SecurityConfig struct {
	// AllowedOrigins lists origins permitted by CORS.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	// AllowedMethods lists HTTP methods permitted by CORS.
	AllowedMethods []string `envconfig:"ALLOWED_METHODS" default:"GET,POST,OPTIONS"`
	// AllowedHeaders lists request headers permitted by CORS.
	AllowedHeaders []string `envconfig:"ALLOWED_HEADERS" default:"Authorization,Content-Type,X-Request-ID"`
	// ExposedHeaders lists response headers exposed to browsers.
	ExposedHeaders []string `envconfig:"EXPOSED_HEADERS" default:"X-Request-ID"`
	// AllowCredentials permits cookies on cross-origin requests.
	AllowCredentials bool `envconfig:"ALLOW_CREDENTIALS" default:"true"`
	// MaxAge is the CORS preflight cache duration in seconds.
	MaxAge int `envconfig:"MAX_AGE"          default:"600"`
	// RateLimitRPS is the per-client request rate limit.
	RateLimitRPS int `envconfig:"RATE_LIMIT_RPS"   default:"10"`
	// TrustedProxies lists IPs exempt from rate limiting.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `envconfig:"LEVEL"  default:"info"`
	// Format is the log output format (json, text).
	Format string `envconfig:"FORMAT" default:"json"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `envconfig:"OUTPUT" default:"stdout"`
}

// defaultSpotifyScopes are the provider scopes requested during user login.
var defaultSpotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-top-read",
	"user-read-recently-played",
	"playlist-read-private",
	"user-library-read",
	"user-read-playback-state",
	"user-read-currently-playing",
}

// Load reads configuration from the optional YAML overlay and the
// environment, applies defaults, and validates the result.
func Load() (*Config, error) {
	var cfg Config

	// The YAML overlay is optional operational configuration; environment
	// variables processed afterwards always win.
	if err := applyYAMLOverlay(); err != nil {
		return nil, fmt.Errorf("failed to load YAML configuration: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(cfg.Spotify.Scopes) == 0 {
		cfg.Spotify.Scopes = defaultSpotifyScopes
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate performs comprehensive validation of all configuration values,
// ensuring they meet security and operational requirements.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required")
	}

	if len(c.JWT.Secret) < MinJWTSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters long", MinJWTSecretLength)
	}

	if c.Server.Port < MinPortNumber || c.Server.Port > MaxPortNumber {
		return errors.New("server port must be between 1 and 65535")
	}

	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return errors.New("Spotify client ID and secret are required")
	}

	if c.JWT.SessionExpiry < time.Hour {
		return errors.New("session expiry must be at least 1 hour")
	}

	if c.Spotify.AudioFeatureBatchSize < 1 || c.Spotify.AudioFeatureBatchSize > MaxAudioFeatureBatchSize {
		return fmt.Errorf("audio feature batch size must be between 1 and %d", MaxAudioFeatureBatchSize)
	}

	validAlgorithms := map[string]bool{
		"HS256": true, "HS384": true, "HS512": true,
	}
	if !validAlgorithms[c.JWT.Algorithm] {
		return fmt.Errorf("unsupported JWT algorithm: %s", c.JWT.Algorithm)
	}

	return nil
}

// ServerAddr returns the formatted server address string in host:port format.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsTLSEnabled returns true if both TLS certificate and key paths are configured.
func (c *Config) IsTLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// IsDevelopment reports whether the service runs in the local environment.
// Error responses include upstream detail only in development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(string(c.Environment.Environment), string(Local))
}

// IsDatabaseConfigured returns true when PostgreSQL credentials are present.
func (c *Config) IsDatabaseConfigured() bool {
	return c.Database.User != "" && c.Database.Password != ""
}
