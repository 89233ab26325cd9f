// Package store provides the SQLite backing store behind the connection
// pool. It owns the schema (food records and body profiles), hands the pool
// a connection factory, and wraps every statement in acquire/run/release so
// callers never touch raw connections.
//
// The database uses WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Tests open a database under t.TempDir(): every pooled connection must see
// the same schema, which rules out ":memory:" (one private database per
// driver connection).
package store
