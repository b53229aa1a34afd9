package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/khata-ledger/internal/api"
	"github.com/sheikh-saqib/khata-ledger/internal/config"
	"github.com/sheikh-saqib/khata-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/khata-ledger/internal/interfaces"
	"github.com/sheikh-saqib/khata-ledger/internal/ledger"
	"github.com/sheikh-saqib/khata-ledger/internal/lock"
	"github.com/sheikh-saqib/khata-ledger/internal/lock/redislock"
	"github.com/sheikh-saqib/khata-ledger/internal/logging"
	"github.com/sheikh-saqib/khata-ledger/internal/storage"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	Long: `Open the configured store, build the ledger and serve the HTTP API
until SIGINT or SIGTERM, then drain in-flight requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	opts := []ledger.Option{
		ledger.WithLocker(locker),
		ledger.WithLogger(logger),
	}
	if cfg.EventsEnabled() {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, logger)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher, cfg.KafkaTopic))
	}
	l := ledger.NewLedger(store, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(l, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(ctx, srv, cfg.ShutdownTimeout.Duration, logger)
}

// serve runs srv until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// newLocker builds the configured per-customer lock and its cleanup.
func newLocker(ctx context.Context, cfg config.Config, logger *zap.Logger) (interfaces.Locker, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.LockDriver {
	case config.LockNone:
		logger.Warn("customer locking disabled; relying on store isolation")
		return lock.Noop{}, noClose, nil
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return redislock.New(client, redislock.DefaultOptions(), logger), client.Close, nil
	default:
		return lock.NewLocal(), noClose, nil
	}
}
