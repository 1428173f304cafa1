/*
Package metrics implements the resolver's measurement accumulator.

Each Metrics instance owns a private Prometheus registry holding the query,
cache and retry counters plus the query duration histogram (buckets at 1,
5, 10, 50, 100, 500, 1000 and 5000 ms). Alongside the Prometheus metrics,
atomic mirror counters allow GetStats to take a consistent snapshot without
gathering the registry.

Bounded sample buffers track the last 1000 latency samples per upstream
server and the last 100 retry attempts per hostname; GetStats reduces the
latency buffers to per-server means.

# Alerts

SetAlertThresholds installs an error-rate threshold in [0,1] and a positive
latency threshold. When a recorded query or server latency crosses a
threshold, every registered AlertCallback is invoked synchronously on the
recording goroutine with a message naming the offender. Callbacks must not
call back into the Metrics object.

# Exposition

StartPrometheusExporter serves /metrics on a dedicated listener and
StartReporter writes periodic JSON snapshots to a file. Both are
best-effort: a failed bind or write is logged and never affects
resolution.
*/
package metrics
