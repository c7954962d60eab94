package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/thetaxjournal/accountsvedartha/internal/payroll"
	"github.com/thetaxjournal/accountsvedartha/internal/platform/cache"
	"github.com/thetaxjournal/accountsvedartha/internal/platform/db"
	"github.com/thetaxjournal/accountsvedartha/internal/seal"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
	"github.com/thetaxjournal/accountsvedartha/internal/store"
)

// Backends holds the process-wide connections. Close releases them.
type Backends struct {
	Store store.Store
	Redis *redis.Client
	Ping  func(ctx context.Context) error
	Close func()
}

// OpenBackends connects Postgres and Redis when configured. Without PG_DSN the
// in-memory store is used; without REDIS_ADDR Redis is nil.
func OpenBackends(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backends, error) {
	b := &Backends{Close: func() {}}
	var closers []func()
	var pings []func(context.Context) error

	if cfg.PGDSN != "" {
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		b.Store = store.NewPostgres(pool)
		closers = append(closers, pool.Close)
		pings = append(pings, pool.Ping)
	} else {
		logger.Warn("PG_DSN not set, documents are kept in memory")
		b.Store = store.NewMemory()
	}

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.Redis())
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, err
		}
		b.Redis = client
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		pings = append(pings, func(ctx context.Context) error { return client.Ping(ctx).Err() })
	} else {
		logger.Warn("REDIS_ADDR not set, payroll runs lock in-process and cannot be queued")
	}

	b.Close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	b.Ping = func(ctx context.Context) error {
		for _, ping := range pings {
			if err := ping(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	return b, nil
}

// Sealing builds the sealer and the optional detached signer.
func Sealing(cfg *Config) (*seal.Sealer, *seal.Signer, error) {
	signer, err := seal.NewSigner(cfg.SealSigningKey)
	if err != nil {
		return nil, nil, &shared.ConfigurationError{Setting: "SEAL_SIGNING_KEY", Message: err.Error()}
	}
	return seal.New(), signer, nil
}

// PayrollService wires the payroll engine, lock and options from configuration.
func PayrollService(cfg *Config, b *Backends, sealer *seal.Sealer, signer *seal.Signer, observer payroll.RunObserver, logger *slog.Logger) *payroll.Service {
	var locker payroll.RunLocker = payroll.NewMemoryLocker()
	if b.Redis != nil {
		locker = payroll.NewRedisLocker(b.Redis)
	}
	return payroll.NewService(b.Store, payroll.NewEngine(sealer, cfg.MissingPolicy), locker,
		payroll.WithSigner(signer),
		payroll.WithLockTTL(cfg.PayrollLockTTL),
		payroll.WithObserver(observer),
		payroll.WithLogger(logger),
	)
}
