// Package app assembles the engine's dependencies from configuration for the
// server and scheduler binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segyhp/dealer-loan-engine/internal/config"
	"github.com/segyhp/dealer-loan-engine/internal/event"
	"github.com/segyhp/dealer-loan-engine/internal/lock"
	"github.com/segyhp/dealer-loan-engine/internal/metrics"
	"github.com/segyhp/dealer-loan-engine/internal/repository"
	"github.com/segyhp/dealer-loan-engine/internal/service"
	"github.com/segyhp/dealer-loan-engine/pkg/clock"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

type App struct {
	DB          *sqlx.DB
	Store       repository.Store
	Redis       *redis.Client
	Sink        event.Sink
	Registry    *prometheus.Registry
	Metrics     *metrics.Metrics
	Loans       *service.LoanService
	Delinquency *service.DelinquencyService
}

// New connects to the database and Redis, optionally migrates, and builds the services
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	db, err := repository.Open(ctx, cfg.Database.Driver, cfg.DSN(), repository.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.GetConnMaxLifetime(),
	})
	if err != nil {
		return nil, err
	}
	a := &App{DB: db, Store: repository.NewStore(db)}

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(cfg.Database.Driver, cfg.DSN()); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrated", "driver", cfg.Database.Driver)
	}

	if cfg.RedisEnabled() {
		a.Redis, err = newRedis(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	locker, err := newLocker(cfg, a.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Sink, err = newSink(cfg, a.Redis, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	a.Loans = service.NewLoanService(a.Store, locker, a.Sink, clock.System{}, service.PolicyFromConfig(cfg), log, a.Metrics)
	a.Delinquency = service.NewDelinquencyService(
		a.Store.Loans(), a.Loans, clock.System{}, log, a.Metrics,
		cfg.Scheduler.BatchSize, cfg.Scheduler.Workers,
	)

	log.Info("engine ready",
		"driver", cfg.Database.Driver,
		"lock_backend", cfg.Lock.Backend,
		"event_sink", cfg.Events.Sink,
		"redis", a.Redis != nil,
	)
	return a, nil
}

// Close releases the sink, Redis and the database in reverse order of creation
func (a *App) Close() error {
	var errs []error
	if a.Sink != nil {
		errs = append(errs, a.Sink.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func newRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.URL != "" {
		parsed, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func newLocker(cfg *config.Config, client *redis.Client) (lock.Locker, error) {
	switch cfg.Lock.Backend {
	case config.LockRedis:
		if client == nil {
			return nil, errors.New("LOCK_BACKEND=redis requires Redis settings")
		}
		return lock.NewRedis(client, cfg.GetLockTTL()), nil
	default:
		return lock.NewLocal(), nil
	}
}

func newSink(cfg *config.Config, client *redis.Client, log *slog.Logger) (event.Sink, error) {
	switch cfg.Events.Sink {
	case config.SinkRedis:
		if client == nil {
			return nil, errors.New("EVENT_SINK=redis requires Redis settings")
		}
		return event.NewRedisSink(client, cfg.Events.RedisChannel), nil
	case config.SinkKafka:
		return event.NewKafkaSink(cfg.GetKafkaBrokers(), cfg.Events.KafkaTopic), nil
	default:
		return event.NewLogSink(log), nil
	}
}
