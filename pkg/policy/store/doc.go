// Package store holds the active policy set.
//
// A Store exposes an atomic replace operation (UpdatePolicies) and a read
// operation (ReadPolicies). Replacement is all-or-nothing: concurrent readers
// observe either the previous full set or the new full set, and a failed
// replacement leaves the previous set active.
//
// # Backends
//
//   - MemoryStore: in-process, copy-on-write slice swap
//   - SQLiteStore: one transaction per replacement, drivers "sqlite"
//     (modernc.org/sqlite) or "sqlite3" (github.com/mattn/go-sqlite3)
//   - RedisStore: the whole set written as one value with a single SET
//
// Instrumented wraps any Store and records Prometheus metrics.
//
// # Usage
//
//	s, err := store.Open(&cfg.Store, logger)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	applied, err := s.UpdatePolicies(ctx, policies)
//
// Stores are constructed explicitly and passed to their users; there is no
// package-level default store.
package store
