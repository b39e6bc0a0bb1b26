package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Issuer string `yaml:"issuer"`

	Storage struct {
		// memory | postgres | redis
		Driver   string `yaml:"driver"`
		Postgres struct {
			DSN             string `yaml:"dsn"`
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	OAuth struct {
		CodeTTL    string `yaml:"code_ttl"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
		PARTTL     string `yaml:"par_ttl"`
	} `yaml:"oauth"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	// RateLimit throttles the credential endpoints (token, PAR, login).
	// Max 0 disables it.
	RateLimit struct {
		Max    int    `yaml:"max"`
		Window string `yaml:"window"`
	} `yaml:"rate_limit"`

	// LoginURL is where unauthenticated authorize requests are sent.
	LoginURL string `yaml:"login_url"`

	Keys struct {
		Path string `yaml:"path"`
		KID  string `yaml:"kid"`
	} `yaml:"keys"`

	// Clients configures the static client registry when storage.driver is
	// memory. Durable drivers read clients from their own store instead.
	Clients []StaticClient `yaml:"clients"`

	// Users is the static subject registry behind the profile service.
	Users []StaticUser `yaml:"users"`

	Resources struct {
		Identity []struct {
			Name   string   `yaml:"name"`
			Claims []string `yaml:"claims"`
		} `yaml:"identity"`
		APIScopes []struct {
			Name   string   `yaml:"name"`
			Claims []string `yaml:"claims"`
		} `yaml:"api_scopes"`
		APIs []struct {
			Name   string   `yaml:"name"`
			Scopes []string `yaml:"scopes"`
		} `yaml:"apis"`
	} `yaml:"resources"`
}

// StaticClient is a client registration in the config file. Secret is
// bcrypt-hashed at load; SecretHash wins when both are set.
type StaticClient struct {
	ClientID                   string   `yaml:"client_id"`
	Enabled                    *bool    `yaml:"enabled"`
	Secret                     string   `yaml:"secret"`
	SecretHash                 string   `yaml:"secret_hash"`
	GrantTypes                 []string `yaml:"grant_types"`
	Scopes                     []string `yaml:"scopes"`
	RedirectURIs               []string `yaml:"redirect_uris"`
	PostLogoutRedirectURIs     []string `yaml:"post_logout_redirect_uris"`
	RequirePKCE                *bool    `yaml:"require_pkce"`
	AllowPlainTextPKCE         bool     `yaml:"allow_plain_text_pkce"`
	RequireRequestObject       bool     `yaml:"require_request_object"`
	RequirePushedAuthorization bool     `yaml:"require_pushed_authorization"`
	RequireClientSecret        *bool    `yaml:"require_client_secret"`
	AllowOfflineAccess         bool     `yaml:"allow_offline_access"`
	CodeLifetimeSeconds        int      `yaml:"code_lifetime_seconds"`
	AccessLifetimeSeconds      int      `yaml:"access_lifetime_seconds"`
}

// StaticUser is a subject registration in the config file. Password is
// bcrypt-hashed at load; PasswordHash wins when both are set.
type StaticUser struct {
	SubjectID    string            `yaml:"subject_id"`
	Username     string            `yaml:"username"`
	Password     string            `yaml:"password"`
	PasswordHash string            `yaml:"password_hash"`
	Disabled     bool              `yaml:"disabled"`
	Claims       map[string]string `yaml:"claims"`
}

// Load reads and validates the config file, applying defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Issuer == "" {
		c.Issuer = "http://localhost:8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.OAuth.CodeTTL == "" {
		c.OAuth.CodeTTL = "5m"
	}
	if c.OAuth.AccessTTL == "" {
		c.OAuth.AccessTTL = "15m"
	}
	if c.OAuth.RefreshTTL == "" {
		c.OAuth.RefreshTTL = "720h" // 30d
	}
	if c.OAuth.PARTTL == "" {
		c.OAuth.PARTTL = "90s"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sid"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "12h"
	}
	if c.RateLimit.Window == "" {
		c.RateLimit.Window = "1m"
	}
	if c.Keys.KID == "" {
		c.Keys.KID = "active"
	}

	// env overrides for the values that differ per deployment
	if v := os.Getenv("SIGNET_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SIGNET_ISSUER"); v != "" {
		c.Issuer = v
	}
	if v := os.Getenv("SIGNET_PG_DSN"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("SIGNET_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
		if c.Cache.Redis.Addr == "" {
			c.Cache.Redis.Addr = v
		}
	}

	return &c, nil
}

// Duration parses one of the config's TTL strings, falling back to def on
// empty or malformed values.
func Duration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "redis" && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("storage.redis.addr is required for the redis driver")
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for the redis cache")
	}
	return nil
}
