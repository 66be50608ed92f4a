package metrics

import (
	"net/http"
	"strconv"
	"time"

	"nominatim-indexer/internal/biz"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PlacesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nominatim_indexer_places_total",
		Help: "Places processed by outcome",
	}, []string{"outcome"})
	PlaceDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nominatim_indexer_place_duration_ms",
		Help:    "Per-place indexing duration in milliseconds by rank_search",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"rank"})
	ReindexEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nominatim_indexer_reindex_events_total",
		Help: "Reindex events published by reason",
	}, []string{"reason"})
	SQLDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nominatim_indexer_sql_duration_seconds",
		Help:    "SQL statement duration in seconds",
		Buckets: prometheus.DefBuckets,
	})
	SlowQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nominatim_indexer_slow_queries_total",
		Help: "SQL statements slower than the configured threshold",
	})
	PendingPlaces = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nominatim_indexer_pending_places",
		Help: "Places by indexed_status after the last scheduler run",
	}, []string{"status"})
	TokenCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nominatim_indexer_token_cache_total",
		Help: "Token lookups by cache result",
	}, []string{"result"})
	LocatorLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nominatim_indexer_locator_lookups_total",
		Help: "Spatial locator lookups by kind and result",
	}, []string{"kind", "result"})
)

func init() {
	prometheus.MustRegister(PlacesTotal)
	prometheus.MustRegister(PlaceDurationMs)
	prometheus.MustRegister(ReindexEventsTotal)
	prometheus.MustRegister(SQLDuration)
	prometheus.MustRegister(SlowQueries)
	prometheus.MustRegister(PendingPlaces)
	prometheus.MustRegister(TokenCacheTotal)
	prometheus.MustRegister(LocatorLookupsTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Observer 将索引结果写入 prometheus。
type Observer struct{}

func NewObserver() biz.IndexObserver {
	return Observer{}
}

func (Observer) ObservePlace(outcome biz.Outcome, rankSearch int, d time.Duration) {
	PlacesTotal.WithLabelValues(outcome.String()).Inc()
	PlaceDurationMs.WithLabelValues(strconv.Itoa(rankSearch)).Observe(float64(d.Milliseconds()))
}

func (Observer) ObserveEvents(events []biz.ReindexEvent) {
	for _, e := range events {
		ReindexEventsTotal.WithLabelValues(string(e.Reason)).Inc()
	}
}

// SetStatusCounts 更新各状态的要素数量。
func SetStatusCounts(counts map[biz.IndexedStatus]int64) {
	PendingPlaces.Reset()
	for status, n := range counts {
		PendingPlaces.WithLabelValues(status.String()).Set(float64(n))
	}
}
