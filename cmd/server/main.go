package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/sheikh-saqib/double-entry-ledger/internal/config"
	"github.com/sheikh-saqib/double-entry-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/double-entry-ledger/internal/interfaces"
	"github.com/sheikh-saqib/double-entry-ledger/internal/ledger"
	"github.com/sheikh-saqib/double-entry-ledger/internal/logging"
	"github.com/sheikh-saqib/double-entry-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/double-entry-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/double-entry-ledger/internal/storage/sqlite"
	"go.uber.org/zap"
)

var version = "dev"

type CLI struct {
	EnvFile string           `help:"Path to a .env file." type:"path" short:"e"`
	Addr    string           `help:"Listen address, overrides LEDGER_HTTP_ADDR."`
	Version kong.VersionFlag `help:"Show version information"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Vars{"version": version},
		kong.Name("ledger-server"),
		kong.Description("Double-entry posting engine over HTTP."),
		kong.UsageOnError(),
	)

	if err := run(cli); err != nil {
		kctx.FatalIfErrorf(err)
	}
}

func run(cli CLI) error {
	cfg, err := config.Load(cli.EnvFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cli.Addr != "" {
		cfg.HTTPAddr = cli.Addr
	}

	logger, _, err := logging.New(logging.Config{
		Environment: logging.Environment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithTaxRules(cfg.Tax),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher, cfg.Kafka.Topic))
	}

	ledgerService := ledger.NewLedger(store, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(ledgerService, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (interfaces.LedgerStore, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, closer(store), nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, closer(store), nil
	case config.StoreMemory:
		return memory.NewMemoryLedgerStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func closer(c io.Closer) func() {
	return func() { c.Close() }
}
