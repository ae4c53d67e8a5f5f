// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	// TimeZone is used when formatting interview times for candidates.
	TimeZone string `mapstructure:"time_zone"`
}

type ServerConfig struct {
	Port              int    `mapstructure:"port"`
	ReadTimeout       int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout      int    `mapstructure:"write_timeout"` // milliseconds
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout"`
	CORSAllowedOrigin string `mapstructure:"cors_allowed_origin"`
	CookieSecure      bool   `mapstructure:"cookie_secure"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// BackendConfig describes the external recruitment backend.
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	DefaultTimeout int    `mapstructure:"default_timeout"` // milliseconds
	UploadTimeout  int    `mapstructure:"upload_timeout"`  // milliseconds
}

// CacheConfig holds the query cache policy.
type CacheConfig struct {
	StaleTime  int  `mapstructure:"stale_time"`  // milliseconds
	RetryDelay int  `mapstructure:"retry_delay"` // milliseconds
	GCTime     int  `mapstructure:"gc_time"`     // milliseconds
	Mirror     bool `mapstructure:"mirror"`      // write fresh results through to Redis
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds settings for the identity provider.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"keycloak"`

	SessionTTL int `mapstructure:"session_ttl"` // seconds

	// RevalidateAfter is how long a resolved identity is trusted before the
	// next request checks it again.
	RevalidateAfter int `mapstructure:"revalidate_after"` // milliseconds

	IdleTimeout int `mapstructure:"idle_timeout"` // milliseconds
}

// RateLimitConfig applies to the public routes addressed by email or exam token.
type RateLimitConfig struct {
	PublicPerMinute int `mapstructure:"public_per_minute"`
	PublicBurst     int `mapstructure:"public_burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds metrics and tracing settings.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
