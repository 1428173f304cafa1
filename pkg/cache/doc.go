/*
Package cache implements the bounded, TTL-expiring resolution cache.

Records map a hostname to the addresses its last successful resolution
returned, with an absolute expiry time and a validity flag. A single mutex
serializes readers and writers; the hit and miss counters are atomic so
stat readers never contend with resolution traffic.

# Soft refresh

When a Get finds a record whose remaining lifetime is below 20% of the
configured TTL, it clears the record's Valid flag and reports the record
as stale. The caller still receives the cached addresses on that call; the
query engine uses the stale signal to re-query in the background so the
entry is renewed before it expires.

# Eviction

Update never fails. Before inserting it purges expired entries; if the
cache is still at capacity it evicts the single earliest-expiring record.
If the insert leaves the cache above 90% of capacity, the earliest-expiring
20% of records are evicted in bulk, keeping steady-state inserts cheap.
*/
package cache
