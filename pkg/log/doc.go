/*
Package log provides structured logging for resolvd using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

# Usage

Initialize once at startup, then derive component loggers:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("resolver")
	logger.Info().Str("hostname", "example.com").Msg("resolution complete")

Structured fields used across the codebase:

  - component: which subsystem emitted the entry (resolver, cache, transport...)
  - hostname: the name being resolved
  - server: the upstream DNS server involved

Library consumers that never call Init get zerolog's zero-value logger, which
has no writer and discards every entry; the resolver itself works without
initialization. Init without an Output writes to stdout.
*/
package log
