package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records metadata for the sync pipeline.
type SyncMetrics struct {
	pushDuration *prometheus.HistogramVec
	pushSales    *prometheus.CounterVec
	feedPublish  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync pipeline metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	pushDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_push_duration_seconds",
		Help:    "Duration of push batch processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"store"})
	pushSales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_push_sales",
		Help: "Sales processed by the push pipeline, by outcome.",
	}, []string{"outcome"})
	feedPublish := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_feed_publish",
		Help: "Change feed entries relayed to pubsub, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(pushDuration, pushSales, feedPublish)
	return &SyncMetrics{
		pushDuration: pushDuration,
		pushSales:    pushSales,
		feedPublish:  feedPublish,
	}
}

// ObservePushDuration records the duration for a push batch from the named store.
func (s *SyncMetrics) ObservePushDuration(store string, duration time.Duration) {
	if s == nil || s.pushDuration == nil {
		return
	}
	s.pushDuration.WithLabelValues(normalizeLabel(store)).Observe(duration.Seconds())
}

// IncPushSale increments the sale counter for the given outcome.
func (s *SyncMetrics) IncPushSale(outcome string) {
	if s == nil || s.pushSales == nil {
		return
	}
	s.pushSales.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncFeedPublish increments the feed relay counter for the given outcome.
func (s *SyncMetrics) IncFeedPublish(outcome string) {
	if s == nil || s.feedPublish == nil {
		return
	}
	s.feedPublish.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
