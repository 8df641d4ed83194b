package bazaar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/bazaarbot/internal/domain"
	"github.com/alejandrodnm/bazaarbot/internal/metrics"
)

const (
	DefaultURL = "https://api.hypixel.net/skyblock/bazaar"

	// La API pública permite ~120 req/min; nos quedamos muy por debajo.
	defaultRatePerSec = 1
	defaultTimeout    = 10 * time.Second

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	feedCacheKey = "feed"
)

var (
	// ErrFeedUnavailable indica que el feed respondió con success=false.
	ErrFeedUnavailable = errors.New("bazaar feed unavailable")
	// ErrProductNotFound indica que el producto no está en el feed.
	ErrProductNotFound = errors.New("product not found")
)

// Options configura el Client. Los valores cero usan defaults.
type Options struct {
	URL        string
	Timeout    time.Duration
	CacheTTL   time.Duration // 0 = sin caché
	RatePerSec float64
	RetryWait  time.Duration
}

// Client es el HTTP client del bazaar con rate limiting, retries y caché del feed.
type Client struct {
	http      *http.Client
	url       string
	limiter   *rate.Limiter
	cache     *ristretto.Cache
	cacheTTL  time.Duration
	retryWait time.Duration
	now       func() time.Time
}

// NewClient crea un Client. Si opts.URL está vacío usa el endpoint de producción.
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = baseRetryWait
	}

	c := &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		url:       opts.URL,
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), 3),
		cacheTTL:  opts.CacheTTL,
		retryWait: opts.RetryWait,
		now:       time.Now,
	}

	if opts.CacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        100,
			MaxCost:            16, // contamos items, no bytes
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("bazaar.NewClient: cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Close libera la caché.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

// FetchQuote implementa ports.QuoteProvider usando la caché si está vigente.
func (c *Client) FetchQuote(ctx context.Context, productID string) (domain.Quote, error) {
	return c.quote(ctx, productID, true)
}

// RefreshQuote implementa ports.QuoteProvider ignorando la caché.
func (c *Client) RefreshQuote(ctx context.Context, productID string) (domain.Quote, error) {
	return c.quote(ctx, productID, false)
}

// Suggest implementa ports.ProductCatalog.
func (c *Client) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	feed, err := c.feed(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("bazaar.Suggest: %w", err)
	}
	ids := make([]string, 0, len(feed.Products))
	for id := range feed.Products {
		ids = append(ids, id)
	}
	return suggest(ids, prefix, limit), nil
}

func (c *Client) quote(ctx context.Context, productID string, useCache bool) (domain.Quote, error) {
	id := NormalizeProductID(productID)
	if id == "" {
		return domain.Quote{}, fmt.Errorf("bazaar.quote: empty product id: %w", ErrProductNotFound)
	}

	feed, err := c.feed(ctx, useCache)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("bazaar.quote: %w", err)
	}

	p, ok := feed.Products[id]
	if !ok {
		return domain.Quote{}, fmt.Errorf("bazaar.quote: %s: %w", id, ErrProductNotFound)
	}
	return mapQuote(id, p, c.now()), nil
}

// feed devuelve el documento completo, desde caché o descargándolo.
func (c *Client) feed(ctx context.Context, useCache bool) (*feedResponse, error) {
	if useCache && c.cache != nil {
		if v, ok := c.cache.Get(feedCacheKey); ok {
			metrics.FeedCacheHits.Inc()
			return v.(*feedResponse), nil
		}
		metrics.FeedCacheMisses.Inc()
	}

	start := time.Now()
	var resp feedResponse
	err := c.get(ctx, &resp)
	metrics.FeedFetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrFeedUnavailable, resp.Cause)
	}

	if c.cache != nil {
		c.cache.SetWithTTL(feedCacheKey, &resp, 1, c.cacheTTL)
		c.cache.Wait()
	}
	return &resp, nil
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by bazaar API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
