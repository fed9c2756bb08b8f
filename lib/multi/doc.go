// Package multi copies several source shards into one destination in parallel.
//
// Every shard is a migrate.Job executed by a bounded worker pool
// (github.com/sourcegraph/conc/pool). The workers push the keys they have
// written into a single bounded queue (util.MPSC) that is drained by the
// iterator returned from Copy, so the caller sees one merged sequence:
//
//	for key, err := range multi.Copy(ctx, sources, dst, multi.Options{Workers: 4}) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(key)
//	}
//
// The first fatal error of a shard cancels the other shards. They finish the
// batch they are writing and stop, then the error is yielded as the last element.
package multi
