package config

import (
	"github.com/oarkflow/whitebox/pkg/objects"
)

type Config struct{}

func (a *Config) Prefix() string {
	return "auth"
}

// Load registers the app.* and auth.* keys, taking overrides from the
// environment.
func (a *Config) Load() {
	c := objects.Config
	c.Add("app", map[string]any{
		"name":         c.Env("APP_NAME", "Whitebox"),
		"version":      "1.0.0",
		"env":          c.Env("APP_ENV", "production"),
		"https":        c.Env("APP_HTTPS", false),
		"addr":         c.Env("APP_ADDR", ":3000"),
		"proxy_header": c.Env("APP_PROXY_HEADER", ""),
	})
	c.Add("db", map[string]any{
		"driver":   c.Env("DB_DRIVER", "sqlite"),
		"path":     c.Env("DB_PATH", "whitebox.db"),
		"host":     c.Env("DB_HOST", "localhost"),
		"port":     c.Env("DB_PORT", 5432),
		"user":     c.Env("DB_USER", "postgres"),
		"password": c.Env("DB_PASSWORD", ""),
		"name":     c.Env("DB_NAME", "whitebox"),
	})
	c.Add(a.Prefix(), map[string]any{
		"secret":               c.Env("AUTH_SECRET", "OdR4DlWhZk6osDd0qXLdVT88lHOvj14L"),
		"session_name":         c.Env("AUTH_SESSION_NAME", "auth_session"),
		"session_lifetime":     c.Env("AUTH_SESSION_LIFETIME", "720h"),
		"session_renew_within": c.Env("AUTH_SESSION_RENEW_WITHIN", "360h"),

		"argon_memory":      c.Env("AUTH_ARGON_MEMORY", 19456),
		"argon_time":        c.Env("AUTH_ARGON_TIME", 2),
		"argon_parallelism": c.Env("AUTH_ARGON_PARALLELISM", 1),

		"totp_issuer":        c.Env("AUTH_TOTP_ISSUER", "Whitebox"),
		"totp_skew":          c.Env("AUTH_TOTP_SKEW", 1),
		"min_password_score": c.Env("AUTH_MIN_PASSWORD_SCORE", 4),

		"rate_limit_backend": c.Env("AUTH_RATE_LIMIT_BACKEND", "memory"),
		"redis_addr":         c.Env("AUTH_REDIS_ADDR", "localhost:6379"),

		"rate_signup_ipua":        c.Env("AUTH_RATE_SIGNUP_IPUA", "2/15m"),
		"rate_signup_ip":          c.Env("AUTH_RATE_SIGNUP_IP", "10/1h"),
		"rate_login_username":     c.Env("AUTH_RATE_LOGIN_USERNAME", "5/15m"),
		"rate_login_ipua":         c.Env("AUTH_RATE_LOGIN_IPUA", "5/15m"),
		"rate_login_ip":           c.Env("AUTH_RATE_LOGIN_IP", "10/1h"),
		"rate_signup_factor_user": c.Env("AUTH_RATE_SIGNUP_FACTOR_USERNAME", "5/15m"),
		"rate_signup_factor_ipua": c.Env("AUTH_RATE_SIGNUP_FACTOR_IPUA", "5/15m"),
		"rate_signup_factor_ip":   c.Env("AUTH_RATE_SIGNUP_FACTOR_IP", "10/1h"),
		"rate_login_factor_user":  c.Env("AUTH_RATE_LOGIN_FACTOR_USERNAME", "5/1h"),
		"rate_login_factor_ipua":  c.Env("AUTH_RATE_LOGIN_FACTOR_IPUA", "5/15m"),
		"rate_login_factor_ip":    c.Env("AUTH_RATE_LOGIN_FACTOR_IP", "10/1h"),
	})
}
