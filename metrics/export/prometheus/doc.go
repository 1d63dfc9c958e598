// Package prometheus renders rewards engine metrics for Prometheus.
//
// [NewPrometheusExporter] accepts a [goRewards.Engine] and exposes an
// [http.Handler] serving every counter and histogram in text exposition
// format. Counter names are prefixed gorewards_*_total; the single histogram
// is gorewards_silent_auth_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
