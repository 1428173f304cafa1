/*
Package config loads, validates and versions resolver configuration
snapshots.

Snapshots live in YAML or JSON files (chosen by extension) and decode
into types.Config on top of the documented defaults. Validate enforces
the full rule set: server addresses must be IP literals with port, weight
in 1..100 and timeout in 100..10000 ms; at least one server must be
enabled and addresses must be unique; cache, retry and metrics sections
have their own ranges; the global query timeout is 100..30000 ms and
max concurrent queries 1..10000.

The resolver core accepts only validated snapshots and performs no file
I/O of its own; this package is the collaborator that produces them.

VersionStore archives each applied snapshot as a JSON file with an ID,
timestamp, author and comment, keeps a bounded history, and can roll the
configuration back to any archived version.
*/
package config
