package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ranking-service/internal/api"
	"ranking-service/internal/config"
	"ranking-service/internal/kv"
	"ranking-service/internal/notify"
	"ranking-service/internal/ranking"
)

// app wires one ranking namespace for the lifetime of the process.
type app struct {
	cfg     config.Client
	log     *zap.Logger
	store   kv.Store
	session *ranking.Session
	ledger  *ranking.Ledger
	coord   *ranking.Coordinator
	dialog  *ranking.Dialog
	in      *bufio.Reader
	out     io.Writer
	closers []func() error
}

func newApp(ctx context.Context, cfg config.Client, in io.Reader, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, in: bufio.NewReader(in), out: out}
	a.log = newLogger(cfg.Debug)
	a.closers = append(a.closers, func() error { _ = a.log.Sync(); return nil })

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		a.closers = append(a.closers, rdb.Close)
	}

	store, err := openStore(cfg, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	client, err := api.New(cfg.APIURL, cfg.HTTPTimeout)
	if err != nil {
		a.Close()
		return nil, err
	}

	locale, err := ranking.ParseLocale(cfg.Locale)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("invalid locale %q: %w", cfg.Locale, err)
	}

	listeners := notify.Multi{&printer{out: out}, notify.NewLogger(a.log)}
	if cfg.EventsChannel != "" && rdb != nil {
		listeners = append(listeners, notify.NewRedisPublisher(rdb, cfg.EventsChannel, a.log))
	}

	a.session = ranking.NewSession(store, client, cfg.SessionNamespace, a.log)
	if err := a.session.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.ledger = ranking.NewLedger(store, a.log)

	a.coord, err = ranking.NewCoordinator(ranking.Options{
		Namespace:  cfg.Namespace,
		Remote:     client,
		Ledger:     a.ledger,
		Session:    a.session,
		Listener:   listeners,
		Order:      ranking.NewOrder(locale),
		Privileged: cfg.Privileged,
		Logger:     a.log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dialog = ranking.NewDialog(a.coord)
	return a, nil
}

func openStore(cfg config.Client, rdb *redis.Client) (kv.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return kv.NewMemoryStore(), nil
	case config.BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend needs a redis url")
		}
		return kv.NewRedisStoreWithClient(rdb, cfg.RedisPrefix), nil
	default:
		fs, err := kv.NewFileStore(cfg.StateFile)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

func newLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
