package libs

import (
	"errors"
	"fmt"

	"github.com/oarkflow/whitebox/pkg/contracts"
	"github.com/oarkflow/whitebox/pkg/password"
	"github.com/oarkflow/whitebox/pkg/ratelimit"
	"github.com/oarkflow/whitebox/pkg/session"
)

type Config struct {
	AppName          string
	Env              string
	HTTPS            bool
	Secret           []byte
	SessionName      string
	Session          session.Config
	Argon            password.Config
	TOTPIssuer       string
	TOTPSkew         uint
	MinPasswordScore int
	RateLimitBackend string
	RedisAddr        string
	Rules            RuleSets
}

// RuleSets holds the limiter rules of each credential sensitive action.
type RuleSets struct {
	Signup       []ratelimit.Rule
	Login        []ratelimit.Rule
	SignupFactor []ratelimit.Rule
	LoginFactor  []ratelimit.Rule
}

// DefaultRuleSets mirrors the defaults registered by config.Load.
func DefaultRuleSets() RuleSets {
	return RuleSets{
		Signup: []ratelimit.Rule{
			ratelimit.MustParseRule("ipua", ratelimit.ByIPAndAgent, "2/15m"),
			ratelimit.MustParseRule("ip", ratelimit.ByIP, "10/1h"),
		},
		Login: []ratelimit.Rule{
			ratelimit.MustParseRule("username", ratelimit.ByField, "5/15m"),
			ratelimit.MustParseRule("ipua", ratelimit.ByIPAndAgent, "5/15m"),
			ratelimit.MustParseRule("ip", ratelimit.ByIP, "10/1h"),
		},
		SignupFactor: []ratelimit.Rule{
			ratelimit.MustParseRule("username", ratelimit.ByField, "5/15m"),
			ratelimit.MustParseRule("ipua", ratelimit.ByIPAndAgent, "5/15m"),
			ratelimit.MustParseRule("ip", ratelimit.ByIP, "10/1h"),
		},
		LoginFactor: []ratelimit.Rule{
			ratelimit.MustParseRule("username", ratelimit.ByField, "5/1h"),
			ratelimit.MustParseRule("ipua", ratelimit.ByIPAndAgent, "5/15m"),
			ratelimit.MustParseRule("ip", ratelimit.ByIP, "10/1h"),
		},
	}
}

// LoadConfig builds the typed configuration from the keys config.Load
// registered.
func LoadConfig(c contracts.Config) (*Config, error) {
	cfg := &Config{
		AppName:     c.GetString("app.name", "Whitebox"),
		Env:         c.GetString("app.env", "production"),
		HTTPS:       c.GetBool("app.https", false),
		Secret:      []byte(c.GetString("auth.secret")),
		SessionName: c.GetString("auth.session_name", "auth_session"),
		Session: session.Config{
			Lifetime:    c.GetDuration("auth.session_lifetime", session.DefaultLifetime),
			RenewWithin: c.GetDuration("auth.session_renew_within", session.DefaultRenewWithin),
		},
		Argon: password.Config{
			Memory:      uint32(c.GetInt("auth.argon_memory", int(password.MinMemoryKB))),
			Time:        uint32(c.GetInt("auth.argon_time", int(password.MinTimeCost))),
			Parallelism: uint8(c.GetInt("auth.argon_parallelism", int(password.MinParallelism))),
			SaltLength:  password.MinSaltLength,
			KeyLength:   password.MinKeyLength,
		},
		TOTPIssuer:       c.GetString("auth.totp_issuer", "Whitebox"),
		TOTPSkew:         uint(c.GetInt("auth.totp_skew", 1)),
		MinPasswordScore: c.GetInt("auth.min_password_score", 4),
		RateLimitBackend: c.GetString("auth.rate_limit_backend", "memory"),
		RedisAddr:        c.GetString("auth.redis_addr", "localhost:6379"),
	}
	if len(cfg.Secret) != 32 {
		return nil, errors.New("auth.secret must be exactly 32 bytes")
	}
	rule := func(key, name string, strategy ratelimit.KeyStrategy) (ratelimit.Rule, error) {
		return ratelimit.ParseRule(name, strategy, c.GetString("auth."+key))
	}
	sets := []struct {
		target *[]ratelimit.Rule
		keys   [][2]string
	}{
		{&cfg.Rules.Signup, [][2]string{{"rate_signup_ipua", "ipua"}, {"rate_signup_ip", "ip"}}},
		{&cfg.Rules.Login, [][2]string{{"rate_login_username", "username"}, {"rate_login_ipua", "ipua"}, {"rate_login_ip", "ip"}}},
		{&cfg.Rules.SignupFactor, [][2]string{{"rate_signup_factor_user", "username"}, {"rate_signup_factor_ipua", "ipua"}, {"rate_signup_factor_ip", "ip"}}},
		{&cfg.Rules.LoginFactor, [][2]string{{"rate_login_factor_user", "username"}, {"rate_login_factor_ipua", "ipua"}, {"rate_login_factor_ip", "ip"}}},
	}
	for _, set := range sets {
		for _, k := range set.keys {
			r, err := rule(k[0], k[1], strategyFor(k[1]))
			if err != nil {
				return nil, fmt.Errorf("auth.%s: %w", k[0], err)
			}
			*set.target = append(*set.target, r)
		}
	}
	return cfg, nil
}

func strategyFor(name string) ratelimit.KeyStrategy {
	switch name {
	case "ip":
		return ratelimit.ByIP
	case "ipua":
		return ratelimit.ByIPAndAgent
	default:
		return ratelimit.ByField
	}
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.HTTPS || c.Env != "development"
}
