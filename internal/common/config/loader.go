// internal/common/config/loader.go
package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges configs/config.<APP_ENVIRONMENT>.yaml,
// applies environment overrides and defaults, then validates.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	for _, dir := range []string{"./configs", "../../configs", "."} {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName("config." + env)
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

// newViper loads .env and returns a viper that reads YAML with PORTAL_*
// overrides, so PORTAL_BACKEND_BASE_URL sets backend.base_url.
func newViper() *viper.Viper {
	loadEnvFile()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AutomaticEnv only applies to keys viper already knows about, so the keys that are
// commonly supplied purely from the environment are bound explicitly.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"backend.base_url",
		"redis.address",
		"redis.password",
		"auth.keycloak.url",
		"auth.keycloak.realm",
		"auth.keycloak.client_id",
		"auth.keycloak.client_secret",
		"observability.jaeger_endpoint",
	} {
		_ = v.BindEnv(key)
	}
}

// loadEnvFile loads the first .env found next to the binary's working
// directory, two levels up, or at the module root.
func loadEnvFile() {
	candidates := []string{".env", "../.env", "../../.env"}
	if root := moduleRoot(); root != "" {
		candidates = append(candidates, filepath.Join(root, ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if godotenv.Load(path) == nil {
			return
		}
	}
}

// moduleRoot walks up from the working directory to the nearest go.mod.
func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for parent := filepath.Dir(dir); ; dir, parent = parent, filepath.Dir(parent) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		if parent == dir {
			return ""
		}
	}
}

// expandEnvVars replaces ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "recruit-portal"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.TimeZone == "" {
		cfg.App.TimeZone = "Local"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.CORSAllowedOrigin == "" {
		cfg.Server.CORSAllowedOrigin = "*"
	}

	// Backend deadlines: 5s for JSON calls, 10s for resume uploads.
	if cfg.Backend.DefaultTimeout == 0 {
		cfg.Backend.DefaultTimeout = 5000
	}
	if cfg.Backend.UploadTimeout == 0 {
		cfg.Backend.UploadTimeout = 10000
	}

	if cfg.Cache.StaleTime == 0 {
		cfg.Cache.StaleTime = 30000
	}
	if cfg.Cache.RetryDelay == 0 {
		cfg.Cache.RetryDelay = 1000
	}
	if cfg.Cache.GCTime == 0 {
		cfg.Cache.GCTime = 300000
	}

	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 3600
	}
	if cfg.Auth.RevalidateAfter == 0 {
		cfg.Auth.RevalidateAfter = 60000
	}
	if cfg.Auth.IdleTimeout == 0 {
		cfg.Auth.IdleTimeout = 1800000
	}

	if cfg.RateLimit.PublicPerMinute == 0 {
		cfg.RateLimit.PublicPerMinute = 60
	}
	if cfg.RateLimit.PublicBurst == 0 {
		cfg.RateLimit.PublicBurst = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL")
	}
	if cfg.Backend.DefaultTimeout < 0 || cfg.Backend.UploadTimeout < 0 {
		return fmt.Errorf("backend timeouts must be positive")
	}

	if cfg.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}

	if cfg.Auth.Keycloak.URL == "" {
		return fmt.Errorf("auth.keycloak.url is required")
	}
	if cfg.Auth.Keycloak.Realm == "" {
		return fmt.Errorf("auth.keycloak.realm is required")
	}
	if cfg.Auth.Keycloak.ClientID == "" {
		return fmt.Errorf("auth.keycloak.client_id is required")
	}

	if _, err := time.LoadLocation(cfg.App.TimeZone); err != nil {
		return fmt.Errorf("app.time_zone: %w", err)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
