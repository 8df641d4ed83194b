package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alejandrodnm/bazaarbot/internal/adapters/notify"
	"github.com/alejandrodnm/bazaarbot/internal/application/trader"
	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/alejandrodnm/bazaarbot/internal/ports"
)

// ledgerArgs son los flags de operaciones sobre el saldo virtual.
type ledgerArgs struct {
	product    string
	buy        string
	sell       string
	setBalance string
	reset      bool
	report     bool
}

// runLedger aplica las operaciones en orden: reset, set-balance, buy, sell, report.
// Devuelve el exit code: 0 ok, 1 error de I/O, 3 rechazado.
func runLedger(ctx context.Context, s *trader.Session, quotes ports.QuoteProvider, console *notify.Console, args ledgerArgs) int {
	if args.reset {
		if err := s.Reset(ctx); err != nil {
			slog.Error("reset failed", "err", err)
			return exitError
		}
		slog.Info("ledger wiped")
	}

	if args.setBalance != "" {
		balance, err := domain.ParseBalance(args.setBalance)
		if err == nil {
			err = s.SetBalance(ctx, balance)
		}
		if code := failure(console, err); code != 0 {
			return code
		}
	}

	if args.buy != "" || args.sell != "" {
		if args.product == "" {
			slog.Error("no product selected: use -product or poller.product")
			return exitUsage
		}
	}

	if args.buy != "" {
		if code := trade(ctx, console, args.buy, args.product, s.Buy); code != 0 {
			return code
		}
	}
	if args.sell != "" {
		if code := trade(ctx, console, args.sell, args.product, s.Sell); code != 0 {
			return code
		}
	}

	if args.report {
		var q *domain.Quote
		if args.product != "" {
			qctx, cancel := fetchTimeout(ctx, 0)
			got, err := quotes.FetchQuote(qctx, args.product)
			cancel()
			if err != nil {
				slog.Warn("net worth unavailable", "product", args.product, "err", err)
			} else {
				q = &got
			}
		}
		console.PrintLedger(s.State(), q)
	}
	return exitOK
}

type tradeFunc func(ctx context.Context, productID string, quantity int64) (trader.TradeResult, error)

func trade(ctx context.Context, console *notify.Console, rawQty, product string, fn tradeFunc) int {
	qty, err := domain.ParseQuantity(rawQty)
	if err != nil {
		return failure(console, err)
	}
	res, err := fn(ctx, product, qty)
	if err != nil {
		return failure(console, err)
	}
	console.PrintTrade(res.Transaction, res.Balance)
	return exitOK
}

// failure imprime rechazos al usuario y registra el resto.
func failure(console *notify.Console, err error) int {
	if err == nil {
		return exitOK
	}
	var re *domain.RejectionError
	if errors.As(err, &re) {
		console.PrintRejection(err)
		return exitRejected
	}
	slog.Error("operation failed", "err", err)
	return exitError
}
