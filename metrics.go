package goRewards

import (
	"sync/atomic"
	"time"
)

// MetricID identifies an engine counter.
//
// MetricID values are stable within a release; exporters map them to names.
type MetricID uint16

const (
	// MetricSilentAuthSuccess counts silent authentications that produced a subscription.
	MetricSilentAuthSuccess MetricID = iota
	// MetricSilentAuthSkipped counts silent authentications answered from cached state.
	MetricSilentAuthSkipped
	// MetricSilentAuthFailure counts silent authentications rejected or failed remotely.
	MetricSilentAuthFailure
	// MetricSilentAuthLocked counts silent authentications abandoned on a locked keyring.
	MetricSilentAuthLocked
	// MetricTimestampRetry counts requests re-signed with the server clock.
	MetricTimestampRetry
	// MetricOptInStatusCacheHit counts addresses answered from cached opt-in state.
	MetricOptInStatusCacheHit
	// MetricOptInStatusFetched counts addresses re-checked remotely.
	MetricOptInStatusFetched
	// MetricSeasonCacheHit counts fresh season cache reads.
	MetricSeasonCacheHit
	// MetricSeasonCacheStale counts stale season reads served while revalidating.
	MetricSeasonCacheStale
	// MetricSeasonCacheMiss counts season reads that fetched synchronously.
	MetricSeasonCacheMiss
	// MetricReauthSuccess counts season status retries that succeeded after reauthorization.
	MetricReauthSuccess
	// MetricReauthFailure counts reauthorizations that ended in invalidation.
	MetricReauthFailure
	// MetricLinkSuccess counts accounts joined to a subscription.
	MetricLinkSuccess
	// MetricLinkFailure counts failed link attempts.
	MetricLinkFailure
	// MetricOptInSuccess counts successful opt-ins.
	MetricOptInSuccess
	// MetricOptInFailure counts opt-in attempts that failed for an account.
	MetricOptInFailure
	// MetricSeasonRevalidated counts completed background season revalidations.
	MetricSeasonRevalidated
	// MetricGeoCacheHit counts geolocation answers served from cache.
	MetricGeoCacheHit
	// MetricFeatureDisabled counts operations short-circuited by the feature gate.
	MetricFeatureDisabled
	// MetricSilentAuthLatency is the silent authentication latency histogram.
	MetricSilentAuthLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free engine counters.
//
// A disabled Metrics ignores every Inc and Observe.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id. Safe for concurrent use.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricSilentAuthLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricSilentAuthLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. A disabled Metrics returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricSilentAuthLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricSilentAuthLatency].buckets[i])
		}
		s.Histograms[MetricSilentAuthLatency] = buckets
	}

	return s
}

// bucketIndex maps a latency to the 50ms..2s signing-and-network scale.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2000:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
