package resolver

import (
	"context"
	"time"

	"github.com/cuemby/resolvd/pkg/cache"
	"github.com/cuemby/resolvd/pkg/log"
	"github.com/cuemby/resolvd/pkg/transport"
	"github.com/cuemby/resolvd/pkg/types"
)

// queryContext is the per-query state owned by the engine between
// dispatch and completion. The attempt counter lives here so retries of
// different hostnames never share state. The resolver back-reference
// keeps completion working even when the caller dropped the future.
type queryContext struct {
	hostname  string
	source    string
	startTime time.Time
	attempts  uint32
	future    *Future
	resolver  *Resolver

	// baseline addresses for change detection when the cache entry was
	// removed before the query was issued (refresh path)
	baseline    []string
	hasBaseline bool
}

// runQuery drives one query to completion: channel lookup, bounded
// retries with exponential backoff, cache update, change detection and
// metrics. It runs on its own goroutine under the admission semaphore.
func (r *Resolver) runQuery(ctx context.Context, cfg *types.Config, channel *transport.Channel, cch *cache.Cache, sem chan struct{}, qc *queryContext) {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		qc.complete(types.Outcome{
			Hostname: qc.hostname,
			Status:   types.StatusNotInitialized,
			Elapsed:  time.Since(qc.startTime),
		})
		return
	}
	defer func() { <-sem }()

	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var res transport.Result
	for {
		qc.attempts++
		res = channel.Lookup(ctx, qc.hostname)

		if ctx.Err() != nil {
			qc.complete(types.Outcome{
				Hostname: qc.hostname,
				Status:   types.StatusNotInitialized,
				Elapsed:  time.Since(qc.startTime),
			})
			return
		}

		if res.Status == types.StatusSuccess || !res.Status.Retryable() {
			break
		}
		if qc.attempts >= maxAttempts {
			break
		}

		// The k-th retry waits min(base << (k-1), max_delay).
		retry := qc.attempts
		r.metrics.RecordRetry(qc.hostname, retry)
		log.Logger.Debug().
			Str("component", "resolver").
			Str("hostname", qc.hostname).
			Uint32("retry", retry).
			Str("status", string(res.Status)).
			Msg("retrying query")

		select {
		case <-time.After(cfg.Retry.Backoff(retry)):
		case <-ctx.Done():
			qc.complete(types.Outcome{
				Hostname: qc.hostname,
				Status:   types.StatusNotInitialized,
				Elapsed:  time.Since(qc.startTime),
			})
			return
		}
	}

	elapsed := time.Since(qc.startTime)
	outcome := types.Outcome{
		Hostname:  qc.hostname,
		Addresses: res.Addresses,
		Status:    res.Status,
		Elapsed:   elapsed,
	}

	if res.Status == types.StatusSuccess {
		r.commitResult(cfg, cch, qc, res)
		r.metrics.RecordQuery(qc.hostname, elapsed, true)
	} else {
		r.metrics.RecordError(string(res.Status), qc.hostname)
		r.metrics.RecordQuery(qc.hostname, elapsed, false)
	}

	qc.complete(outcome)
}

// commitResult updates the cache with a successful result and publishes
// an address-change event when the address multiset changed. The cache
// fetch for diffing happens before the update.
func (r *Resolver) commitResult(cfg *types.Config, cch *cache.Cache, qc *queryContext, res transport.Result) {
	if !cfg.Cache.Enabled || len(res.Addresses) == 0 {
		return
	}

	old := qc.baseline
	if !qc.hasBaseline {
		old, _ = cch.Peek(qc.hostname)
	}
	cch.Update(qc.hostname, res.Addresses)

	if multisetEqual(old, res.Addresses) {
		return
	}
	r.events.Notify(types.AddressEvent{
		Hostname:        qc.hostname,
		OldAddresses:    old,
		NewAddresses:    res.Addresses,
		Source:          qc.source,
		TTL:             cfg.Cache.TTL(),
		RecordType:      res.RecordType,
		IsAuthoritative: res.Authoritative,
	})
}

// softRefresh re-queries a hostname whose cached record entered the
// refresh window, deduplicating concurrent refreshes per hostname. The
// caller already received the cached addresses.
func (r *Resolver) softRefresh(ctx context.Context, cfg *types.Config, channel *transport.Channel, cch *cache.Cache, sem chan struct{}, hostname string) {
	r.refreshMu.Lock()
	if _, inFlight := r.refreshing[hostname]; inFlight {
		r.refreshMu.Unlock()
		return
	}
	r.refreshing[hostname] = struct{}{}
	r.refreshMu.Unlock()

	qc := &queryContext{
		hostname:  hostname,
		source:    "query",
		startTime: time.Now(),
		future:    newFuture(),
		resolver:  r,
	}
	go func() {
		defer func() {
			r.refreshMu.Lock()
			delete(r.refreshing, hostname)
			r.refreshMu.Unlock()
		}()
		r.runQuery(ctx, cfg, channel, cch, sem, qc)
	}()
}

// complete fulfils the context's future exactly once.
func (qc *queryContext) complete(outcome types.Outcome) {
	qc.future.complete(outcome)
}

// multisetEqual compares two address lists ignoring order but counting
// duplicates.
func multisetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, addr := range a {
		counts[addr]++
	}
	for _, addr := range b {
		counts[addr]--
		if counts[addr] < 0 {
			return false
		}
	}
	return true
}

// recordTypeOf classifies an address list by family.
func recordTypeOf(addresses []string) types.RecordType {
	var v4, v6 bool
	for _, addr := range addresses {
		if isIPv6Literal(addr) {
			v6 = true
		} else {
			v4 = true
		}
	}
	switch {
	case v4 && v6:
		return types.RecordTypeMixed
	case v6:
		return types.RecordTypeAAAA
	default:
		return types.RecordTypeA
	}
}

func isIPv6Literal(addr string) bool {
	for i := 0; i < len(addr); i++ {
		if addr[i] == ':' {
			return true
		}
	}
	return false
}
