package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audit",
		Subsystem: "crawler",
		Name:      "pages_fetched_total",
		Help:      "Pages successfully fetched and recorded, by priority tier.",
	}, []string{"tier"})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audit",
		Subsystem: "crawler",
		Name:      "fetch_errors_total",
		Help:      "Page fetches that failed or returned a non-2xx status.",
	})

	urlsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audit",
		Subsystem: "crawler",
		Name:      "urls_blocked_total",
		Help:      "URLs rejected by the address guard before or during dialing.",
	})

	urlsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "audit",
		Subsystem: "crawler",
		Name:      "urls_deduped_total",
		Help:      "Discovered URLs skipped because their normalized form was already seen.",
	})

	crawlDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "audit",
		Subsystem: "crawler",
		Name:      "crawl_duration_seconds",
		Help:      "Wall time of a full per-domain crawl.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)
