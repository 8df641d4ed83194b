package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PollsTotal cuenta ciclos de poll por resultado: ok | not_found | error.
	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaarbot_polls_total",
		Help: "Total number of poll cycles by result",
	}, []string{"result"})

	// VerdictsTotal cuenta veredictos emitidos por el clasificador.
	VerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaarbot_verdicts_total",
		Help: "Total number of classifier verdicts by outcome",
	}, []string{"good_buy"})

	// TradesTotal cuenta trades simulados por tipo y resultado: accepted | rejected | error.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaarbot_trades_total",
		Help: "Total number of simulated trades by kind and outcome",
	}, []string{"kind", "outcome"})

	// RejectionsTotal cuenta rechazos del ledger por motivo.
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bazaarbot_ledger_rejections_total",
		Help: "Total number of ledger rejections by reason",
	}, []string{"reason"})

	// FeedFetchSeconds mide la latencia de descarga del feed.
	FeedFetchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bazaarbot_feed_fetch_seconds",
		Help:    "Duration of bazaar feed downloads",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// FeedCacheHits y FeedCacheMisses cuentan accesos a la caché del feed.
	FeedCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaarbot_feed_cache_hits_total",
		Help: "Total number of feed cache hits",
	})
	FeedCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bazaarbot_feed_cache_misses_total",
		Help: "Total number of feed cache misses",
	})

	// Balance es el balance virtual tras la última mutación del ledger.
	Balance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bazaarbot_ledger_balance",
		Help: "Virtual balance after the last ledger mutation",
	})
)
