package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"

	"github.com/cuemby/resolvd/pkg/log"
	"github.com/cuemby/resolvd/pkg/types"
)

const (
	// DefaultQueryTimeout bounds a single exchange when the
	// configuration does not say otherwise
	DefaultQueryTimeout = 5 * time.Second

	// DefaultTries is the number of rotation passes over the server
	// list before the channel gives up on a lookup. Retries across
	// lookups are the query engine's job, so a single pass is the
	// default.
	DefaultTries = 1
)

// Options configures a Channel.
type Options struct {
	// Servers is the ordered list of upstream servers. Disabled servers
	// must be filtered out by the caller.
	Servers []types.ServerConfig

	// QueryTimeout caps the per-server exchange time; a server's own
	// timeout is clamped to this value.
	QueryTimeout time.Duration

	// Tries is the number of passes over the server rotation.
	Tries int

	// Ndots is the dots threshold below which a search path would
	// apply. The channel has no search list, so it only normalizes the
	// query name; the field mirrors the resolv.conf knob.
	Ndots int

	// IPv6Enabled adds AAAA queries alongside A.
	IPv6Enabled bool

	// LatencyObserver, when set, receives the exchange latency for
	// every server that produced a response.
	LatencyObserver func(server string, latency time.Duration)
}

// Result is the outcome of one channel lookup.
type Result struct {
	Addresses     []string
	Status        types.Status
	RecordType    types.RecordType
	Authoritative bool
}

// Channel is the wire-level DNS adaptor. It owns the UDP and TCP clients,
// rotates across the configured servers weighted by their declared
// weights, and maps responses onto the resolver's status taxonomy.
type Channel struct {
	opts     Options
	rotation []int // indexes into opts.Servers, weight-expanded
	cursor   atomic.Uint64

	udp *dns.Client
	tcp *dns.Client

	closed atomic.Bool
}

// NewChannel builds a channel over the given (already filtered) server
// list. An empty server list yields a channel that fails every lookup
// with SERVFAIL; the resolver rejects such configurations upstream.
func NewChannel(opts Options) *Channel {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.Tries <= 0 {
		opts.Tries = DefaultTries
	}

	var rotation []int
	for i, s := range opts.Servers {
		weight := int(s.Weight)
		if weight < 1 {
			weight = 1
		}
		for n := 0; n < weight; n++ {
			rotation = append(rotation, i)
		}
	}

	return &Channel{
		opts:     opts,
		rotation: rotation,
		udp:      &dns.Client{Net: "udp"},
		tcp:      &dns.Client{Net: "tcp"},
	}
}

// Close marks the channel as torn down; subsequent lookups fail with
// NOT_INITIALIZED. In-flight exchanges finish on their own timeouts.
func (c *Channel) Close() {
	c.closed.Store(true)
}

// Lookup resolves hostname to its A (and, when IPv6 is enabled, AAAA)
// addresses. The two families are queried concurrently and merged with
// the v4 addresses first, preserving per-family response order.
func (c *Channel) Lookup(ctx context.Context, hostname string) Result {
	if c.closed.Load() {
		return Result{Status: types.StatusNotInitialized}
	}
	if !c.validHostname(hostname) {
		return Result{Status: types.StatusMalformed}
	}

	qname := dns.Fqdn(hostname)

	if !c.opts.IPv6Enabled {
		fam := c.lookupFamily(ctx, qname, dns.TypeA)
		fam.RecordType = types.RecordTypeA
		return fam
	}

	var wg sync.WaitGroup
	var v4, v6 Result
	wg.Add(2)
	go func() {
		defer wg.Done()
		v4 = c.lookupFamily(ctx, qname, dns.TypeA)
	}()
	go func() {
		defer wg.Done()
		v6 = c.lookupFamily(ctx, qname, dns.TypeAAAA)
	}()
	wg.Wait()

	return mergeFamilies(v4, v6)
}

// lookupFamily runs the server rotation for one record type.
func (c *Channel) lookupFamily(ctx context.Context, qname string, qtype uint16) Result {
	servers := c.serverOrder()
	if len(servers) == 0 {
		return Result{Status: types.StatusServFail}
	}

	last := Result{Status: types.StatusNetwork}
	for pass := 0; pass < c.opts.Tries; pass++ {
		for _, server := range servers {
			if ctx.Err() != nil {
				return Result{Status: types.StatusTimeout}
			}
			res := c.exchange(ctx, server, qname, qtype)
			if !res.Status.Retryable() {
				return res
			}
			last = res
		}
	}
	return last
}

// exchange performs a single query against one server, falling back to
// TCP when the UDP response is truncated.
func (c *Channel) exchange(ctx context.Context, server types.ServerConfig, qname string, qtype uint16) Result {
	msg := &dns.Msg{}
	msg.SetQuestion(qname, qtype)
	msg.RecursionDesired = true

	timeout := c.opts.QueryTimeout
	if st := time.Duration(server.Timeout) * time.Millisecond; st > 0 && st < timeout {
		timeout = st
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := server.Addr()
	start := time.Now()
	resp, _, err := c.udp.ExchangeContext(ctx, msg, addr)
	if err == nil && resp != nil && resp.Truncated {
		resp, _, err = c.tcp.ExchangeContext(ctx, msg, addr)
	}
	if c.opts.LatencyObserver != nil && err == nil {
		c.opts.LatencyObserver(addr, time.Since(start))
	}

	if err != nil {
		status := types.StatusNetwork
		var nerr net.Error
		if (errors.As(err, &nerr) && nerr.Timeout()) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = types.StatusTimeout
		}
		log.Logger.Debug().
			Err(err).
			Str("component", "transport").
			Str("server", addr).
			Str("query", qname).
			Msg("exchange failed")
		return Result{Status: status}
	}

	return parseResponse(resp, qtype)
}

// serverOrder returns the servers for one lookup, starting at the
// weighted-rotation cursor so consecutive lookups spread load by weight.
func (c *Channel) serverOrder() []types.ServerConfig {
	n := len(c.opts.Servers)
	if n == 0 {
		return nil
	}

	startIdx := c.rotation[c.cursor.Add(1)%uint64(len(c.rotation))]
	order := make([]types.ServerConfig, 0, n)
	for i := 0; i < n; i++ {
		order = append(order, c.opts.Servers[(startIdx+i)%n])
	}
	return order
}

// validHostname applies the minimal wire-level checks: non-empty, at
// most 253 octets of labels, and no colon-form literals when IPv6 is
// disabled.
func (c *Channel) validHostname(hostname string) bool {
	if hostname == "" || len(hostname) > 253 {
		return false
	}
	if !c.opts.IPv6Enabled && strings.Contains(hostname, ":") {
		return false
	}
	return true
}
