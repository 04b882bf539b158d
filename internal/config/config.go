package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cookie    CookieConfig
	Auth      AuthConfig
	GitHub    GitHubConfig
	Argon2    Argon2Config
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port        string
	Environment string // "development" or "production"
	// PublicBaseURL is where this API is reachable (verification links,
	// OAuth redirect URI). WebAppURL is the browser frontend.
	PublicBaseURL string
	WebAppURL     string
	// CORSOrigins is a comma-separated allow list. Empty disables CORS.
	CORSOrigins []string
}

type DatabaseConfig struct {
	// URL empty selects the in-memory store (development only).
	URL string
}

type RedisConfig struct {
	// URL empty selects log-only email delivery.
	URL string
}

type CookieConfig struct {
	Name   string
	Secret string
}

type AuthConfig struct {
	SignupEnabled   bool
	SessionTTLHours int
}

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
}

type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

type RateLimitConfig struct {
	// Blanket per-IP rate ("100-M"). Empty disables.
	RatePerIP string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		viper.SetConfigFile(p)
		_ = viper.ReadInConfig()
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnvOrDefault("PORT", "8080"),
			Environment:   getEnvOrDefault("ENVIRONMENT", "development"),
			PublicBaseURL: getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"),
			WebAppURL:     getEnvOrDefault("WEB_APP_URL", "http://localhost:3000"),
			CORSOrigins:   splitList(os.Getenv("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Cookie: CookieConfig{
			Name:   getEnvOrDefault("COOKIE_NAME", "testpulse_session"),
			Secret: os.Getenv("COOKIE_SECRET"),
		},
		Auth: AuthConfig{
			SignupEnabled:   getEnvBoolDefault("SIGNUP_ENABLED", true),
			SessionTTLHours: viper.GetInt("SESSION_TTL_HOURS"),
		},
		GitHub: GitHubConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
		Argon2: Argon2Config{
			Memory:      uint32(viper.GetInt("ARGON2_MEMORY")),
			Iterations:  uint32(viper.GetInt("ARGON2_ITERATIONS")),
			Parallelism: uint8(viper.GetInt("ARGON2_PARALLELISM")),
		},
		RateLimit: RateLimitConfig{
			RatePerIP: os.Getenv("RATE_PER_IP"),
		},
	}
	if cfg.Auth.SessionTTLHours <= 0 {
		cfg.Auth.SessionTTLHours = 30 * 24
	}
	if cfg.Argon2.Memory == 0 {
		cfg.Argon2.Memory = 64 * 1024
	}
	if cfg.Argon2.Iterations == 0 {
		cfg.Argon2.Iterations = 3
	}
	if cfg.Argon2.Parallelism == 0 {
		cfg.Argon2.Parallelism = 2
	}
	if cfg.Cookie.Secret == "" {
		if cfg.Server.Environment != "development" {
			return nil, fmt.Errorf("COOKIE_SECRET is required outside development")
		}
		cfg.Cookie.Secret = "testpulse-dev-cookie-secret-do-not-use"
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// SecureCookies reports whether cookies must carry the Secure flag. It
// mirrors whether the public base URL is https.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.PublicBaseURL, "https://")
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
