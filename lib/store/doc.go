// Package store defines the contracts between the replication engine and the
// key-value stores it copies between. The engine never speaks a wire protocol
// itself; it only orchestrates the primitives described here.
//
// The package focuses on:
//   - A read-only Source interface for the shards keys are copied from (scan, dump, pttl)
//   - A Destination interface for the single logical target (exists, info, pipelined restores)
//   - A typed error model so callers can classify per-key failures without inspecting messages
//
// Key Components:
//
//   - Source: Enumerates key names with a cursor and exports serialized values
//     together with their remaining time to live. Export requests for a batch of
//     keys are sent in one round trip.
//
//   - Destination / Pipeline: Answers existence checks and accepts restores. Writes
//     are queued on a Pipeline that is executed as one network round trip, either
//     failing fast (Exec) or capturing one result per operation (ExecEach).
//
//   - Error System: Store adapters translate native errors into *Error values
//     carrying a RetCode. IsKeyBusy and IsLoading classify errors with errors.As,
//     so the engine can treat a restore that lost a creation race differently from
//     a real failure.
//
// Implementations:
//
//	- Redis Store (redisstore): Backed by go-redis, works with standalone
//	  servers as sources and standalone servers or clusters as destination.
//	  Available in the "github.com/ValentinKolb/redisimp/lib/store/redisstore" package.
//
//	- Memory Store (memstore): An in-process store with the same dump/restore
//	  semantics. It backs the tests of the copy engine and the orchestrator.
//	  Available in the "github.com/ValentinKolb/redisimp/lib/store/memstore" package.
package store
