// Package sqlstore implements the clanstore repositories on database/sql.
//
// A Store holds exactly one database connection, pinned for the lifetime of
// the process and re-established on demand, and a bounded LRU cache per
// entity kind. Every repository call holds the connection for its whole
// duration, so multi-statement reads and writes never interleave.
//
// # Engines
//
// SQLite (modernc.org/sqlite) is the default. Postgres is reached through the
// pgx database/sql driver. Queries are written once with ? placeholders; the
// dialect rebinds them and binds identifier sets as a single parameter.
//
// # Errors
//
// Storage failures, including rows that fail to decode, kill the connection
// and are returned as *FatalError. Entities rejected before anything is
// written return an error wrapping ErrInvalid and leave the connection up.
//
// # Caching
//
// Gets are served from the cache when possible. Writes update the cache only
// after the transaction commits, and drop the cached entries of every related
// entity whose relation sets the write changed. Listing and chunk queries
// always read storage.
package sqlstore
