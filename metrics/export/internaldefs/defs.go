package internaldefs

import (
	goRewards "github.com/MrEthical07/goRewards"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goRewards.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goRewards.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: goRewards.MetricSilentAuthSuccess, Name: "gorewards_silent_auth_success_total", Help: "Silent authentications that produced a subscription."},
	{ID: goRewards.MetricSilentAuthSkipped, Name: "gorewards_silent_auth_skipped_total", Help: "Silent authentications answered from cached state."},
	{ID: goRewards.MetricSilentAuthFailure, Name: "gorewards_silent_auth_failure_total", Help: "Silent authentications that failed remotely."},
	{ID: goRewards.MetricSilentAuthLocked, Name: "gorewards_silent_auth_locked_total", Help: "Silent authentications abandoned on a locked keyring."},
	{ID: goRewards.MetricTimestampRetry, Name: "gorewards_timestamp_retry_total", Help: "Requests re-signed with the server timestamp."},
	{ID: goRewards.MetricOptInStatusCacheHit, Name: "gorewards_optin_status_cache_hit_total", Help: "Addresses answered from cached opt-in state."},
	{ID: goRewards.MetricOptInStatusFetched, Name: "gorewards_optin_status_fetched_total", Help: "Opt-in status requests sent to the backend."},
	{ID: goRewards.MetricSeasonCacheHit, Name: "gorewards_season_cache_hit_total", Help: "Fresh season cache reads."},
	{ID: goRewards.MetricSeasonCacheStale, Name: "gorewards_season_cache_stale_total", Help: "Stale season reads served while revalidating."},
	{ID: goRewards.MetricSeasonCacheMiss, Name: "gorewards_season_cache_miss_total", Help: "Season reads fetched synchronously."},
	{ID: goRewards.MetricReauthSuccess, Name: "gorewards_reauth_success_total", Help: "Season status retries that succeeded after reauthorization."},
	{ID: goRewards.MetricReauthFailure, Name: "gorewards_reauth_failure_total", Help: "Reauthorizations that ended in state invalidation."},
	{ID: goRewards.MetricLinkSuccess, Name: "gorewards_link_success_total", Help: "Accounts joined to a subscription."},
	{ID: goRewards.MetricLinkFailure, Name: "gorewards_link_failure_total", Help: "Failed account link attempts."},
	{ID: goRewards.MetricOptInSuccess, Name: "gorewards_optin_success_total", Help: "Successful opt-ins."},
	{ID: goRewards.MetricOptInFailure, Name: "gorewards_optin_failure_total", Help: "Opt-ins where no account could be registered."},
	{ID: goRewards.MetricSeasonRevalidated, Name: "gorewards_season_revalidated_total", Help: "Completed background season revalidations."},
	{ID: goRewards.MetricGeoCacheHit, Name: "gorewards_geo_cache_hit_total", Help: "Geolocation answers served from cache."},
	{ID: goRewards.MetricFeatureDisabled, Name: "gorewards_feature_disabled_total", Help: "Operations short-circuited by the feature gate."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRewards.MetricSilentAuthLatency, Name: "gorewards_silent_auth_latency_seconds", Help: "Silent authentication latency histogram."},
}

// HistogramBounds are the upper bounds of the engine latency buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2",
	"5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable in attribute values.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
