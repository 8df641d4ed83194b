package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/bazaarbot/internal/adapters/notify"
	"github.com/alejandrodnm/bazaarbot/internal/application/watcher"
	"github.com/alejandrodnm/bazaarbot/internal/ports"
)

// watchSettings es lo que SIGHUP puede cambiar en caliente.
type watchSettings struct {
	product  string
	interval time.Duration
}

func runOnce(ctx context.Context, ws watchSettings, timeout time.Duration, quotes ports.QuoteProvider, notifier ports.Notifier) int {
	if ws.product == "" {
		slog.Error("no product selected: use -product or poller.product")
		return exitUsage
	}
	p := watcher.New(watcher.Config{ProductID: ws.product, Interval: ws.interval, FetchTimeout: timeout}, quotes, notifier)
	if _, err := p.PollOnce(ctx); err != nil {
		// PollOnce ya lo registró
		return exitError
	}
	return exitOK
}

// runWatch hace polling hasta que ctx se cancela. Cada señal en reloadCh
// vuelve a leer producto e intervalo y reemplaza el loop con Restart.
func runWatch(ctx context.Context, ws watchSettings, timeout time.Duration, quotes ports.QuoteProvider, notifier ports.Notifier, reloadCh <-chan os.Signal, reload func() (watchSettings, error)) int {
	if ws.product == "" {
		slog.Error("no product selected: use -product or poller.product")
		return exitUsage
	}

	p := watcher.New(watcher.Config{
		ProductID:    ws.product,
		Interval:     ws.interval,
		FetchTimeout: timeout,
	}, quotes, notifier)

	if err := p.Start(ctx); err != nil {
		slog.Error("failed to start poller", "err", err)
		return exitError
	}
	defer p.Stop()
	slog.Info("watching, press Ctrl+C to exit (SIGHUP reloads config)", "product", ws.product, "interval", ws.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("bazaarbot stopped cleanly")
			return exitOK
		case <-reloadCh:
			next, err := reload()
			if err != nil {
				slog.Error("reload failed, keeping current settings", "err", err)
				continue
			}
			ws = applySettings(p, ws, next)
		}
	}
}

// applySettings aplica los cambios de producto e intervalo al poller en marcha.
func applySettings(p *watcher.Poller, cur, next watchSettings) watchSettings {
	if next.product == "" {
		next.product = cur.product
	}
	if next.interval <= 0 {
		next.interval = cur.interval
	}
	if next.product != cur.product {
		p.SetProduct(next.product)
	}
	// Restart también dispara un poll inmediato con el producto nuevo
	if next.product != cur.product || next.interval != cur.interval {
		if err := p.Restart(next.interval); err != nil {
			slog.Error("poller restart failed", "err", err)
			return cur
		}
	}
	slog.Info("settings reloaded", "product", next.product, "interval", next.interval)
	return next
}

func runSuggest(ctx context.Context, catalog ports.ProductCatalog, console *notify.Console, prefix string) int {
	sctx, cancel := fetchTimeout(ctx, 0)
	defer cancel()

	ids, err := catalog.Suggest(sctx, prefix, 20)
	if err != nil {
		slog.Error("failed to list products", "err", err)
		return exitError
	}
	console.PrintSuggestions(prefix, ids)
	return exitOK
}
