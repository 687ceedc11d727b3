// Package prometheus renders sign-in engine metrics in the Prometheus text
// exposition format.
//
// [NewExporter] wraps a [goSignIn.Engine] and serves its counters from
// [Exporter.Handler]. Counter names are signin_*_total; the backend latency
// histogram is signin_verify_latency_seconds and only appears when latency
// histograms are enabled.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
