package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "BOOTPRACTICE"

// Load reads path (when non-empty) over the defaults, then applies
// BOOTPRACTICE_ environment overrides, e.g. BOOTPRACTICE_AUTH_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetDefault("app.name", "bootpractice")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "dev")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("auth.signing_method", "hs256")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.private_key_file", "")
	v.SetDefault("auth.public_key_file", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.access_ttl", "10m")
	v.SetDefault("auth.refresh_ttl", "24h")
	v.SetDefault("auth.leeway", "0s")
	v.SetDefault("auth.password_algorithm", "bcrypt")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.revoke_on_reuse", false)
	v.SetDefault("auth.signup_enabled", true)
	v.SetDefault("auth.min_password_length", 8)
	v.SetDefault("auth.cookie.name", "refresh")
	v.SetDefault("auth.cookie.access_name", "")
	v.SetDefault("auth.cookie.path", "/")
	v.SetDefault("auth.cookie.domain", "")
	v.SetDefault("auth.cookie.secure", false)
	v.SetDefault("auth.cookie.same_site", "lax")
	v.SetDefault("auth.rate_limit.enable", false)
	v.SetDefault("auth.rate_limit.max_attempts", 5)
	v.SetDefault("auth.rate_limit.cooldown", "15m")
	v.SetDefault("auth.rate_limit.ip_throttle", false)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.max_age", 3600)

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "bp")

	v.SetDefault("postgres.enable", false)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "30m")
	v.SetDefault("postgres.max_conn_idle_time", "10m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.query_timeout", "2s")
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("kafka.enable", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "bootpractice.audit")

	v.SetDefault("audit.enable", false)
	v.SetDefault("audit.log", true)
	v.SetDefault("audit.buffer_size", 1024)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("static.dir", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
