/*
Package resolver implements the caching, multi-server, asynchronous DNS
resolver facade and its query engine.

The Resolver owns the four core subsystems: the wire-level channel
(package transport), the TTL cache (package cache), the metrics
accumulator (package metrics) and the address-change event manager
(package events). Application code interacts only with the facade:

	r := resolver.New()
	if err := r.LoadConfig(cfg); err != nil { ... }

	future := r.Resolve("example.com")
	outcome := future.Wait()

# Resolution flow

Resolve checks the cache first. A hit completes the returned Future
immediately with zero elapsed time; if the record has entered the
soft-refresh window, a background re-query renews it while the caller
still gets the cached answer. A miss dispatches a query goroutine under
the admission semaphore (capacity max_concurrent_queries): the goroutine
drives the channel lookup, applies the bounded retry policy, updates the
cache, records metrics, publishes an address-change event when the
address multiset changed, and fulfils the Future.

The retry counter lives in the per-query context, never shared across
hostnames. The k-th retry waits min(base_delay << (k-1), max_delay);
NXDOMAIN and NODATA never retry. A query's final failure is recorded once
in the metrics error counts under its status name. Outcomes completed
with NOT_INITIALIZED (no configuration applied, or the generation torn
down by a reload or Close) are not recorded in the error counts.

# Batches

ResolveBatch dispatches hostnames in slices of at most
max_concurrent_queries and waits for each slice to complete before
dispatching the next. The returned futures are in input order; each
hostname succeeds or fails on its own.

# Configuration reloads

LoadConfig validates the snapshot against the core invariants, then swaps
channel, cache and semaphore atomically. In-flight queries of the
previous generation complete with NOT_INITIALIZED. A rejected snapshot
leaves the current one untouched. When cache persistence is enabled the
outgoing cache is flushed to disk after the swap, and then the persisted
cache for the new snapshot is re-imported, emitting "import" change
events for records that differ.
*/
package resolver
