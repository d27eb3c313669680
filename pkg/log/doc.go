/*
Package log provides structured logging for realmkeep built on zerolog.

A single global logger is initialized once at startup via Init and consumed
through child loggers scoped with WithComponent, WithSnapshotID,
WithService or WithKind. Console output is the default; JSON output is
used when running as a server.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("snapshot")
	logger.Info().Str("snapshot_id", id).Msg("backup complete")
*/
package log
