// Package metrics exposes Prometheus counters and histograms for the server.
//
// A Metrics value owns its own registry so tests and multiple servers in one
// process never collide on the default registerer. All observation methods are
// safe to call on a nil *Metrics, which is how metrics are disabled.
package metrics
