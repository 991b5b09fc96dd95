// Package config loads the server configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	bootpractice "github.com/Kascald/bootPractice-2"
	"github.com/Kascald/bootPractice-2/httpapi"
	"github.com/Kascald/bootPractice-2/internal/obs"
	"github.com/Kascald/bootPractice-2/middleware"
	"github.com/Kascald/bootPractice-2/userstore"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Cookie struct {
	Name       string `mapstructure:"name"`
	AccessName string `mapstructure:"access_name"`
	Path       string `mapstructure:"path"`
	Domain     string `mapstructure:"domain"`
	Secure     bool   `mapstructure:"secure"`
	SameSite   string `mapstructure:"same_site"`
}

type RateLimit struct {
	Enable      bool          `mapstructure:"enable"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
	IPThrottle  bool          `mapstructure:"ip_throttle"`
}

// Auth carries the engine settings. The signing key comes from JWTSecret
// for hs256, or from PrivateKeyFile/PublicKeyFile for ed25519.
type Auth struct {
	SigningMethod     string        `mapstructure:"signing_method"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	PrivateKeyFile    string        `mapstructure:"private_key_file"`
	PublicKeyFile     string        `mapstructure:"public_key_file"`
	Issuer            string        `mapstructure:"issuer"`
	Audience          string        `mapstructure:"audience"`
	AccessTTL         time.Duration `mapstructure:"access_ttl"`
	RefreshTTL        time.Duration `mapstructure:"refresh_ttl"`
	Leeway            time.Duration `mapstructure:"leeway"`
	PasswordAlgorithm string        `mapstructure:"password_algorithm"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	RevokeOnReuse     bool          `mapstructure:"revoke_on_reuse"`
	SignupEnabled     bool          `mapstructure:"signup_enabled"`
	MinPasswordLength int           `mapstructure:"min_password_length"`
	Cookie            Cookie        `mapstructure:"cookie"`
	RateLimit         RateLimit     `mapstructure:"rate_limit"`
}

type Redis struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type Postgres struct {
	Enable            bool          `mapstructure:"enable"`
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

type Kafka struct {
	Enable  bool     `mapstructure:"enable"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Audit struct {
	Enable     bool `mapstructure:"enable"`
	Log        bool `mapstructure:"log"`
	BufferSize int  `mapstructure:"buffer_size"`
}

type Metrics struct {
	Enable bool `mapstructure:"enable"`
}

type Static struct {
	Dir string `mapstructure:"dir"`
}

type Config struct {
	App      App                   `mapstructure:"app"`
	Server   Server                `mapstructure:"server"`
	Log      Log                   `mapstructure:"log"`
	Auth     Auth                  `mapstructure:"auth"`
	CORS     middleware.CORSConfig `mapstructure:"cors"`
	Rules    []middleware.RuleSpec `mapstructure:"rules"`
	Redis    Redis                 `mapstructure:"redis"`
	Postgres Postgres              `mapstructure:"postgres"`
	Kafka    Kafka                 `mapstructure:"kafka"`
	Audit    Audit                 `mapstructure:"audit"`
	Metrics  Metrics               `mapstructure:"metrics"`
	Static   Static                `mapstructure:"static"`
}

func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required")
	}
	if c.Postgres.Enable && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required when postgres is enabled")
	}
	if c.Kafka.Enable && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errors.New("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.Auth.RateLimit.Enable && !c.Redis.Enable {
		return errors.New("auth.rate_limit needs redis")
	}
	return nil
}

func (c *Config) LoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:   c.Log.Level,
		Pretty:  c.Log.Pretty,
		App:     c.App.Name,
		Env:     c.App.Env,
		Version: c.App.Version,
	}
}

// EngineConfig maps the auth, redis and audit sections onto the engine
// config, reading key files from disk.
func (c *Config) EngineConfig() (bootpractice.Config, error) {
	cfg := bootpractice.DefaultConfig()
	a := c.Auth

	cfg.JWT.SigningMethod = a.SigningMethod
	cfg.JWT.Issuer = a.Issuer
	cfg.JWT.Audience = a.Audience
	cfg.JWT.AccessTTL = a.AccessTTL
	cfg.JWT.RefreshTTL = a.RefreshTTL
	cfg.JWT.Leeway = a.Leeway
	switch a.SigningMethod {
	case "ed25519":
		if a.PrivateKeyFile == "" && a.PublicKeyFile == "" {
			return cfg, errors.New("ed25519 needs auth.private_key_file or auth.public_key_file")
		}
		if a.PrivateKeyFile != "" {
			priv, err := os.ReadFile(a.PrivateKeyFile)
			if err != nil {
				return cfg, fmt.Errorf("read private key: %w", err)
			}
			cfg.JWT.PrivateKey = priv
		}
		if a.PublicKeyFile != "" {
			pub, err := os.ReadFile(a.PublicKeyFile)
			if err != nil {
				return cfg, fmt.Errorf("read public key: %w", err)
			}
			cfg.JWT.PublicKey = pub
		}
	default:
		cfg.JWT.PrivateKey = []byte(a.JWTSecret)
	}

	cfg.Password.Algorithm = a.PasswordAlgorithm
	cfg.Password.BcryptCost = a.BcryptCost
	cfg.Reissue.RevokeOnReuse = a.RevokeOnReuse
	cfg.Signup.Enabled = a.SignupEnabled
	cfg.Signup.MinPasswordLength = a.MinPasswordLength

	cfg.RateLimit.Enabled = a.RateLimit.Enable
	cfg.RateLimit.MaxLoginAttempts = a.RateLimit.MaxAttempts
	cfg.RateLimit.Cooldown = a.RateLimit.Cooldown
	cfg.RateLimit.EnableIPThrottle = a.RateLimit.IPThrottle
	if c.Redis.Prefix != "" {
		cfg.RateLimit.RedisPrefix = c.Redis.Prefix
		cfg.TokenStore.RedisPrefix = c.Redis.Prefix
	}

	cfg.Audit.Enabled = c.Audit.Enable
	if c.Audit.BufferSize > 0 {
		cfg.Audit.BufferSize = c.Audit.BufferSize
	}

	return cfg, cfg.Validate()
}

func (c *Config) CookieConfig() (httpapi.CookieConfig, error) {
	ss, err := httpapi.ParseSameSite(c.Auth.Cookie.SameSite)
	if err != nil {
		return httpapi.CookieConfig{}, fmt.Errorf("auth.cookie.same_site: %w", err)
	}
	return httpapi.CookieConfig{
		Name:       c.Auth.Cookie.Name,
		AccessName: c.Auth.Cookie.AccessName,
		Path:       c.Auth.Cookie.Path,
		Domain:     c.Auth.Cookie.Domain,
		Secure:     c.Auth.Cookie.Secure,
		SameSite:   ss,
	}, nil
}

// Policy builds the authorization policy. Configured rules replace the
// default set entirely.
func (c *Config) Policy() (*middleware.Policy, error) {
	if len(c.Rules) == 0 {
		return middleware.NewPolicy(middleware.DefaultRules()...)
	}
	rules, err := middleware.ParseRules(c.Rules)
	if err != nil {
		return nil, err
	}
	return middleware.NewPolicy(rules...)
}

func (c *Config) UserStoreConfig() userstore.Config {
	p := c.Postgres
	return userstore.Config{
		URL:               p.DSN,
		MaxConns:          p.MaxConns,
		MinConns:          p.MinConns,
		MaxConnLifetime:   p.MaxConnLifetime,
		MaxConnIdleTime:   p.MaxConnIdleTime,
		HealthCheckPeriod: p.HealthCheckPeriod,
		QueryTimeout:      p.QueryTimeout,
	}
}
