// Package migrate copies the keys of one source shard into a destination using
// the dump/restore primitives of the stores.
//
// The package is organized along the path a key takes:
//
//   - ScanKeys: Enumerates key names in batches with a cursor. A Pattern either
//     filters server-side (glob) or client-side (regex, written as "/expr/").
//
//   - ReadSnapshots: Reads the serialized value and ttl of a batch in one round
//     trip and drops keys that vanished since they were scanned.
//
//   - RestoreStrategy: Writes a snapshot overwriting the key. ReplaceStrategy uses
//     restore-with-replace, LegacyStrategy deletes and restores in the same
//     pipeline. StrategySelector picks one per destination from its version.
//
//   - Clobber / Backfill: The two copy modes. Clobber overwrites existing keys,
//     Backfill only writes keys that are missing and never touches existing ones.
//
// All sequences are lazy iterators (iter.Seq / iter.Seq2): a batch is only
// requested from the source when the previous one has been consumed, so memory
// use is bounded by the batch size no matter how large the keyspace is. A key is
// yielded only after it has been written to the destination.
//
// Usage Example:
//
//	pattern, _ := migrate.ParsePattern("/^session:/")
//	for key, err := range migrate.Backfill(ctx, src, dst, migrate.Options{Pattern: pattern}) {
//		if err != nil {
//			return err
//		}
//		fmt.Println("copied", key)
//	}
//
// Counters for scanned, restored and skipped keys are registered with
// github.com/VictoriaMetrics/metrics.
package migrate
