// Package memstore provides an in-process implementation of store.Source and
// store.Destination.
//
// Values are kept in an xsync.MapOf, expiry is tracked as an absolute deadline
// against a configurable clock and expired keys are removed lazily on access.
// Dump payloads carry a magic prefix and are rejected by Restore if it is
// missing, so the store behaves like a real server towards the replication
// engine: RESTORE fails with a RetCKeyBusy error if the target exists, while
// RESTORE REPLACE overwrites it.
//
// Hooks allow tests to simulate other clients (a key vanishing between scan and
// dump, a key being created between an existence check and a restore) and to
// inject per-operation faults. Stats counts the executed primitives.
//
// Usage Example:
//
//	src := memstore.New(nil)
//	src.Set("user:1", []byte("alice"), time.Minute)
//
//	dst := memstore.New(&memstore.Options{Version: "2.8.24"})
//	for key, err := range migrate.Clobber(ctx, src, dst, migrate.Options{}) {
//		...
//	}
package memstore
