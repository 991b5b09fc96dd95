package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	bootpractice "github.com/Kascald/bootPractice-2"
	"github.com/Kascald/bootPractice-2/httpapi"
	"github.com/Kascald/bootPractice-2/internal/audit"
	"github.com/Kascald/bootPractice-2/internal/config"
	"github.com/Kascald/bootPractice-2/internal/obs"
	"github.com/Kascald/bootPractice-2/metrics"
	"github.com/Kascald/bootPractice-2/userstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := obs.NewLogger(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting bootpractice", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	cookies, err := cfg.CookieConfig()
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enable {
		m = metrics.New()
	}

	b := bootpractice.New().WithConfig(engineCfg).WithLogger(logger).WithMetrics(m)

	if cfg.Redis.Enable {
		rdb, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		b = b.WithRedis(rdb)
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Warn("redis disabled, refresh tokens are kept in process memory")
	}

	users, closeUsers, err := openUsers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeUsers()
	b = b.WithUserProvider(users)

	sinks, closeSinks := auditSinks(cfg, logger)
	defer closeSinks()
	if len(sinks) > 0 {
		b = b.WithAuditSink(sinks)
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()
	logPosture(logger, engineCfg, engine.SecurityReport())

	cors := cfg.CORS.CORSOptions()
	handler, err := httpapi.NewRouter(httpapi.Options{
		Service:   engine,
		Policy:    policy,
		CORS:      &cors,
		Cookies:   cookies,
		Logger:    logger,
		Metrics:   m,
		StaticDir: cfg.Static.Dir,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-errCh:
		if errors.Is(runErr, http.ErrServerClosed) {
			runErr = nil
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	logger.Info("bye")
	return runErr
}

func logPosture(logger *zap.Logger, cfg bootpractice.Config, r bootpractice.SecurityReport) {
	logger.Info("security posture",
		zap.String("signing", r.SigningAlgorithm),
		zap.Duration("access_ttl", r.AccessTTL),
		zap.Duration("refresh_ttl", r.RefreshTTL),
		zap.String("password", r.PasswordAlgorithm),
		zap.Bool("rate_limit", r.RateLimitingActive),
		zap.Bool("revoke_on_reuse", r.RevokeOnReuse),
		zap.Bool("signup", r.SignupEnabled),
		zap.Bool("audit", r.AuditEnabled),
		zap.Bool("shared_token_store", r.SharedTokenStore))

	for _, w := range cfg.Lint().BySeverity(bootpractice.LintWarn) {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("severity", w.Severity.String()), zap.String("detail", w.Message))
	}
}

func connectRedis(ctx context.Context, rc config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// openUsers returns the Postgres user store when enabled, otherwise an
// empty in-memory one that only signup can fill.
func openUsers(ctx context.Context, cfg *config.Config, logger *zap.Logger) (bootpractice.UserProvider, func(), error) {
	if !cfg.Postgres.Enable {
		logger.Warn("postgres disabled, users are kept in process memory")
		return userstore.NewMemoryStore(), func() {}, nil
	}

	store, err := userstore.Connect(ctx, cfg.UserStoreConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := userstore.Migrate(ctx, store.Pool()); err != nil {
			store.Close()
			return nil, nil, err
		}
		logger.Info("migrations: up OK")
	}
	return store, store.Close, nil
}

func auditSinks(cfg *config.Config, logger *zap.Logger) (audit.MultiSink, func()) {
	var sinks audit.MultiSink
	closers := []func(){}

	if cfg.Audit.Log {
		sinks = append(sinks, audit.NewZapSink(logger.Named("audit")))
	}
	if cfg.Kafka.Enable {
		ks := audit.NewKafkaSink(audit.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		sinks = append(sinks, ks)
		closers = append(closers, func() {
			if err := ks.Close(); err != nil {
				logger.Warn("kafka writer close", zap.Error(err))
			}
		})
		logger.Info("audit to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
