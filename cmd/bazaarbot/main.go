package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/bazaarbot/config"
	"github.com/alejandrodnm/bazaarbot/internal/adapters/bazaar"
	"github.com/alejandrodnm/bazaarbot/internal/adapters/notify"
	"github.com/alejandrodnm/bazaarbot/internal/adapters/storage"
	"github.com/alejandrodnm/bazaarbot/internal/application/trader"
	"github.com/alejandrodnm/bazaarbot/internal/metrics"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitRejected = 3
)

var errOnceWithLedger = errors.New("-once cannot be combined with -buy, -sell, -set-balance, -reset or -report")

func main() {
	os.Exit(run())
}

// run devuelve el exit code; así los defers se ejecutan antes de os.Exit.
func run() int {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	product := flag.String("product", "", "product id to watch or trade (overrides config)")
	interval := flag.Duration("interval", 0, "poll interval, e.g. 5s (overrides config)")
	once := flag.Bool("once", false, "poll and classify once, then exit")
	buy := flag.String("buy", "", "buy N units of -product at the current buy price")
	sell := flag.String("sell", "", "sell N units of -product at the current sell price")
	setBalance := flag.String("set-balance", "", "replace the virtual balance")
	reset := flag.Bool("reset", false, "wipe balance, inventory and history")
	report := flag.Bool("report", false, "print balance, inventory and transaction history")
	suggest := flag.String("suggest", "", "list product ids matching a prefix")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "render each poll as a table row (default: compact 1-line)")
	flag.Parse()

	ledgerOps := ledgerRequested(*buy, *sell, *setBalance, *reset, *report)
	if err := checkModes(*once, ledgerOps); err != nil {
		slog.Error("invalid flags", "err", err)
		return exitUsage
	}

	// loadSettings relee la config y aplica los flags encima; se usa al arrancar y en SIGHUP.
	loadSettings := func() (*config.Config, watchSettings, error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return nil, watchSettings{}, err
		}
		ws := watchSettings{product: cfg.Poller.Product, interval: cfg.PollInterval()}
		if *product != "" {
			ws.product = *product
		}
		if *interval > 0 {
			ws.interval = *interval
		}
		return cfg, ws, nil
	}

	cfg, ws, err := loadSettings()
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		return exitError
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("bazaarbot starting",
		"config", *configPath,
		"product", ws.product,
		"interval", ws.interval,
		"dsn", cfg.Storage.DSN,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics.Serve(ctx, cfg.Metrics.Addr)

	client, err := bazaar.NewClient(bazaar.Options{
		URL:        cfg.API.BazaarURL,
		Timeout:    cfg.FetchTimeout(),
		CacheTTL:   cfg.CacheTTL(),
		RatePerSec: cfg.API.RatePerSec,
	})
	if err != nil {
		slog.Error("failed to create bazaar client", "err", err)
		return exitError
	}
	defer client.Close()

	notifier := notify.NewConsole(*table)

	if *suggest != "" {
		return runSuggest(ctx, client, notifier, *suggest)
	}

	if !ledgerOps {
		if *once {
			return runOnce(ctx, ws, cfg.FetchTimeout(), client, notifier)
		}
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		reload := func() (watchSettings, error) {
			_, next, err := loadSettings()
			return next, err
		}
		return runWatch(ctx, ws, cfg.FetchTimeout(), client, notifier, hup, reload)
	}

	kv, err := storage.NewSQLiteKV(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		return exitError
	}
	defer kv.Close()

	session, err := trader.Open(ctx, trader.Config{
		InitialBalance: cfg.Ledger.InitialBalance,
		QuoteTimeout:   cfg.FetchTimeout(),
	}, storage.NewLedgerStore(kv), client)
	if err != nil {
		slog.Error("failed to load ledger", "err", err)
		return exitError
	}

	return runLedger(ctx, session, client, notifier, ledgerArgs{
		product:    ws.product,
		buy:        *buy,
		sell:       *sell,
		setBalance: *setBalance,
		reset:      *reset,
		report:     *report,
	})
}

func ledgerRequested(buy, sell, setBalance string, reset, report bool) bool {
	return buy != "" || sell != "" || setBalance != "" || reset || report
}

// checkModes rechaza combinaciones de flags que no tienen sentido juntas.
func checkModes(once, ledgerOps bool) error {
	if once && ledgerOps {
		return errOnceWithLedger
	}
	return nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// fetchTimeout acota operaciones de un solo disparo (suggest, report).
func fetchTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
