/*
Package persist stores cache snapshots in a bolt database file.

The file holds two buckets: meta (format version and saved-at timestamp)
and records (one JSON value per hostname carrying the addresses, absolute
expiry time and validity flag). Save writes only records whose validity
flag is set. Load refuses files with a mismatched format version or older
than 24 hours, and silently skips records that expired between save and
load, so a round trip reproduces exactly the valid records that are still
live.
*/
package persist
