package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/bazaarbot/internal/adapters/bazaar"
	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/alejandrodnm/bazaarbot/internal/metrics"
	"github.com/alejandrodnm/bazaarbot/internal/ports"
)

// DefaultFetchTimeout acota cada descarga del feed.
const DefaultFetchTimeout = 10 * time.Second

// Config contiene la configuración del poller.
type Config struct {
	ProductID    string
	Interval     time.Duration
	FetchTimeout time.Duration
}

// Snapshot es el último quote bueno y su veredicto.
type Snapshot struct {
	Quote   domain.Quote
	Verdict domain.Verdict
}

// Poller consulta el feed periódicamente para un único producto.
// Es dueño de una sola tarea programada: Restart cancela la anterior antes de lanzar otra.
type Poller struct {
	quotes   ports.QuoteProvider
	notifier ports.Notifier

	// lifecycle protege parent/cancel/done. mu protege cfg/last.
	// Parar el loop se hace solo con lifecycle, así un poll en curso puede tomar mu y terminar.
	lifecycle sync.Mutex
	parent    context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	mu   sync.Mutex
	cfg  Config
	last *Snapshot

	inflight sync.Mutex // un poll a la vez
}

// New crea un Poller.
func New(cfg Config, quotes ports.QuoteProvider, notifier ports.Notifier) *Poller {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	cfg.ProductID = bazaar.NormalizeProductID(cfg.ProductID)
	return &Poller{cfg: cfg, quotes: quotes, notifier: notifier}
}

// Start lanza el loop con el intervalo configurado y hace un primer poll inmediato.
// ctx acota toda la vida del poller.
func (p *Poller) Start(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.cancel != nil {
		return errors.New("watcher.Start: already running")
	}
	if interval := p.interval(); interval <= 0 {
		return fmt.Errorf("watcher.Start: invalid interval %s", interval)
	}
	p.parent = ctx
	p.launchLocked()
	return nil
}

// Restart cambia el intervalo y reemplaza la tarea actual.
// Espera a que el loop anterior termine antes de lanzar el nuevo.
func (p *Poller) Restart(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watcher.Restart: invalid interval %s", interval)
	}
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.parent == nil {
		return errors.New("watcher.Restart: not started")
	}
	p.stopLocked()

	p.mu.Lock()
	p.cfg.Interval = interval
	productID := p.cfg.ProductID
	p.mu.Unlock()

	p.launchLocked()
	slog.Info("poller restarted", "interval", interval, "product", productID)
	return nil
}

// SetProduct cambia el producto observado. El siguiente tick ya usa el nuevo id.
func (p *Poller) SetProduct(productID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.ProductID = bazaar.NormalizeProductID(productID)
	p.last = nil
}

// Stop cancela la tarea y espera a que termine. Es idempotente.
func (p *Poller) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stopLocked()
}

// Running indica si hay un loop activo.
func (p *Poller) Running() bool {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.cancel != nil
}

func (p *Poller) interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Interval
}

// Snapshot devuelve el último quote bueno, si lo hay.
func (p *Poller) Snapshot() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Snapshot{}, false
	}
	return *p.last, true
}

// PollOnce ejecuta un ciclo: fetch → classify → notify.
// Un fallo limpia la vista y el snapshot; nunca se propaga como pánico.
func (p *Poller) PollOnce(ctx context.Context) (Snapshot, error) {
	p.inflight.Lock()
	defer p.inflight.Unlock()

	p.mu.Lock()
	productID := p.cfg.ProductID
	timeout := p.cfg.FetchTimeout
	p.mu.Unlock()

	if productID == "" {
		return Snapshot{}, errors.New("watcher.PollOnce: no product selected")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q, err := p.quotes.FetchQuote(fetchCtx, productID)
	if err != nil {
		p.fail(ctx, productID, err)
		return Snapshot{}, fmt.Errorf("watcher.PollOnce: %w", err)
	}

	v := domain.Classify(q)
	snap := Snapshot{Quote: q, Verdict: v}

	p.mu.Lock()
	if p.cfg.ProductID == productID {
		p.last = &snap
	}
	p.mu.Unlock()

	metrics.PollsTotal.WithLabelValues("ok").Inc()
	metrics.VerdictsTotal.WithLabelValues(strconv.FormatBool(v.IsGoodBuy)).Inc()
	slog.Debug("poll complete",
		"product", productID,
		"profit_percent", v.ProfitPercent,
		"liquidity", v.Liquidity,
		"good_buy", v.IsGoodBuy,
	)

	if err := p.notifier.Notify(ctx, q, v); err != nil {
		slog.Warn("notifier error", "err", err)
	}
	return snap, nil
}

func (p *Poller) fail(ctx context.Context, productID string, err error) {
	p.mu.Lock()
	p.last = nil
	p.mu.Unlock()

	if errors.Is(err, bazaar.ErrProductNotFound) {
		metrics.PollsTotal.WithLabelValues("not_found").Inc()
		slog.Warn("product not found in bazaar feed", "product", productID)
	} else {
		metrics.PollsTotal.WithLabelValues("error").Inc()
		slog.Error("error fetching bazaar data", "product", productID, "err", err)
	}

	if cerr := p.notifier.Clear(ctx); cerr != nil {
		slog.Warn("notifier clear error", "err", cerr)
	}
}

// launchLocked arranca la goroutine del loop. Requiere p.lifecycle.
func (p *Poller) launchLocked() {
	ctx, cancel := context.WithCancel(p.parent)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.run(ctx, p.interval(), done)
}

// stopLocked cancela el loop actual y espera su salida. Requiere p.lifecycle.
func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

func (p *Poller) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	// primer ciclo inmediato, luego cada interval
	_, _ = p.PollOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// los errores ya se registran y limpian la vista en PollOnce
			_, _ = p.PollOnce(ctx)
		}
	}
}
