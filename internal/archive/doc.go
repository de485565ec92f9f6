// Package archive persists raw stream messages to Postgres.
//
// Messages are spooled in memory, batched, and flushed with pgx batch
// inserts either when the batch fills or on a timer. Inserts are
// append-only.
package archive
