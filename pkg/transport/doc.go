/*
Package transport implements the wire-level DNS channel.

The Channel is the black-box I/O adaptor the query engine wraps: it owns
the UDP and TCP clients, issues RFC 1035 A and RFC 3596 AAAA queries in
the IN class, and maps every response or transport error onto the
resolver's status taxonomy. The engine never sees a socket; it sees a
Lookup that returns addresses and a Status.

# Server rotation

A lookup walks the configured servers starting at a cursor that advances
through a weight-expanded rotation: a server with weight 3 heads the
rotation three times as often as a weight-1 server. Within one lookup the
remaining servers are tried in declared order after the selected head, and
the whole rotation is re-walked up to Tries times while failures stay
retryable. The per-server exchange timeout is the server's own timeout
clamped to the channel's QueryTimeout.

# Transports

Queries go out over UDP first; a truncated response (TC bit) is retried
over TCP against the same server. Timeouts map to TIMEOUT, other socket
errors to NETWORK, SERVFAIL/REFUSED to SERVFAIL, FORMERR to MALFORMED,
NXDOMAIN to NXDOMAIN, and a clean answer with zero records of the queried
family to NODATA.

When IPv6 is enabled the A and AAAA lookups run concurrently and merge
with the v4 addresses first; the merged record type reports A, AAAA or
MIXED accordingly. With IPv6 disabled no AAAA query is issued and
colon-form inputs are rejected as MALFORMED before reaching the wire.
*/
package transport
