package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ranking-service/internal/config"
	"ranking-service/internal/mockapi"
)

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	cfg, err := config.LoadMockAPI()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger := newLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()
	if envErr != nil {
		logger.Debug("mock-api: no .env file, using process environment")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("mock-api: invalid REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	accounts := []mockapi.Account{
		{Email: cfg.EditorEmail, Password: cfg.EditorPassword, Role: "editor"},
		{Email: cfg.ViewerEmail, Password: cfg.ViewerPassword, Role: "viewer"},
	}
	if cfg.EditorPassword == "" {
		logger.Warn("mock-api: EDITOR_PASSWORD is empty, editor login disabled")
	}

	srv, err := mockapi.NewServer(mockapi.Config{
		Namespaces: cfg.Namespaces,
		Accounts:   accounts,
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		Seed:       cfg.Seed,
	}, rdb, logger)
	if err != nil {
		logger.Fatal("mock-api: init server", zap.Error(err))
	}

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mock-api: shutdown", zap.Error(err))
		}
	}()

	logger.Info("mock-api listening", zap.String("port", cfg.Port), zap.Strings("namespaces", cfg.Namespaces))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("mock-api: serve", zap.Error(err))
	}
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewExample()
	}
	return logger
}
