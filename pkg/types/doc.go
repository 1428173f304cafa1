/*
Package types defines the core data structures shared across resolvd.

This package contains the domain model for the resolver: cached records,
resolution outcomes and their status taxonomy, address-change events, the
configuration snapshot consumed by the resolver, and the stats projection
produced by the metrics accumulator. All other packages depend on types;
types depends on nothing but the standard library.

# Status taxonomy

Every resolution completes with exactly one Status. NXDOMAIN and NODATA
prove the absence of an answer and are terminal; TIMEOUT, SERVFAIL,
NETWORK and MALFORMED are transient and drive the retry policy:

	SUCCESS          at least one address returned
	NOT_INITIALIZED  query received before configuration was applied
	NODATA           query succeeded, zero records for the queried family
	NXDOMAIN         authoritative non-existence
	TIMEOUT          no response within the configured timeout
	SERVFAIL         server signalled failure
	NETWORK          socket error, unreachable, refused
	MALFORMED        response could not be parsed
	CONFIG_INVALID   configuration snapshot rejected

# Configuration snapshots

Config is an immutable snapshot: the resolver holds one, reads it without
locks, and configuration reloads swap the whole snapshot atomically. The
yaml/json struct tags exist for the config package's loaders; the core
performs no file I/O itself.
*/
package types
