// Package gateway provides the record sources a search session queries.
//
// Every Source offers three independent producers: a search by term, a full
// listing and a busy signal that reports whether the source has requests in
// flight. Memory keeps records in process and can simulate latency and
// failures; SQLite serves them from a database file. Both can be filled from
// YAML fixtures, and a Reloader keeps a Memory source in sync with its fixture
// file while it changes on disk.
package gateway
