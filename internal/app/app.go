// Package app wires the record store, locks and notification channels from configuration.
// Both the API server and the cron runner build their dependencies through it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	_ "github.com/lib/pq"

	"drivekr-wallet-backend/internal/config"
	"drivekr-wallet-backend/internal/lock"
	"drivekr-wallet-backend/internal/logger"
	"drivekr-wallet-backend/internal/notify"
	"drivekr-wallet-backend/internal/repository"
	"drivekr-wallet-backend/internal/repository/firestore"
	"drivekr-wallet-backend/internal/repository/memory"
	"drivekr-wallet-backend/internal/repository/postgres"
)

// Infra holds the shared backends. Close releases them in reverse order of opening.
type Infra struct {
	Store    repository.Store
	Locker   lock.Locker
	Redis    *redis.Client
	Firebase *firebase.App

	checks  []func(ctx context.Context) error
	closers []func() error
}

// Open connects to the configured store and, when enabled, Redis.
func Open(ctx context.Context, cfg *config.Config) (*Infra, error) {
	in := &Infra{}
	if err := in.openStore(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	if err := in.openRedis(ctx, cfg); err != nil {
		in.Close()
		return nil, err
	}
	return in, nil
}

func (in *Infra) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Storage.Type {
	case "postgres":
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		in.closers = append(in.closers, db.Close)
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		in.checks = append(in.checks, db.PingContext)
		in.Store = postgres.NewStore(db)
		logger.Info("Database connection established")

	case "firestore":
		app, err := in.FirebaseApp(ctx, cfg)
		if err != nil {
			return err
		}
		store, client, err := firestore.Open(ctx, app)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, client.Close)
		in.Store = store
		logger.Info("Firestore client ready", "project", cfg.Firebase.ProjectID)

	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		in.Store = memory.NewStore()

	default:
		return fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}
	return nil
}

func (in *Infra) openRedis(ctx context.Context, cfg *config.Config) error {
	if !cfg.Redis.Enabled {
		in.Locker = lock.NewKeyedMutex()
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	in.closers = append(in.closers, rdb.Close)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	in.checks = append(in.checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	in.Redis = rdb
	in.Locker = lock.NewRedisLocker(rdb, time.Duration(cfg.Redis.LockTTLMillis)*time.Millisecond)
	logger.Info("Redis connection established", "addr", cfg.Redis.Addr)
	return nil
}

// FirebaseApp returns the Firebase app, creating it on first use.
func (in *Infra) FirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	if in.Firebase != nil {
		return in.Firebase, nil
	}
	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase: %w", err)
	}
	in.Firebase = app
	return app, nil
}

// Health pings every backend that supports it.
func (in *Infra) Health(ctx context.Context) error {
	for _, check := range in.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (in *Infra) Close() {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	in.closers = nil
	if err := errors.Join(errs...); err != nil {
		logger.Warn("Error while closing backends", "error", err)
	}
}

// Channels builds the outbound notification channels in their configured order.
func Channels(cfg *config.Config) []notify.Channel {
	var channels []notify.Channel
	for _, name := range cfg.Notification.Channels {
		switch strings.TrimSpace(name) {
		case notify.ChannelWhatsApp:
			channels = append(channels, notify.NewWhatsApp())
		case notify.ChannelEmail:
			sg := cfg.Notification.SendGrid
			channels = append(channels, notify.NewEmail(sg.APIKey, sg.FromEmail, sg.FromName))
		}
	}
	return channels
}
