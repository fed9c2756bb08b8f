package multi

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/ValentinKolb/redisimp/lib/migrate"
	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/ValentinKolb/redisimp/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/pool"
)

var plog = logger.GetLogger("multi")

// queueCapacity bounds the number of copied keys that wait for the consumer
const queueCapacity = 1024

// Options configures a multi-shard copy.
type Options struct {
	// Workers is the maximum number of shards copied at the same time
	// (<= 0 or more than the number of sources = one worker per shard)
	Workers int
	// Mode selects clobber or backfill
	Mode migrate.Mode
	// BatchSize is the scan batch size of every shard (0 = migrate.DefaultBatchSize)
	BatchSize int
	// Filter is a glob, a "/regex/" or empty for all keys
	Filter string
}

// workers returns the effective number of workers for n sources
func (o Options) workers(n int) int {
	if o.Workers <= 0 || o.Workers > n {
		return n
	}
	return o.Workers
}

// Copy copies the keys of all sources into dst and yields every written key
// exactly once. Keys of different shards are interleaved in no particular order.
//
// The shards are copied by a bounded worker pool. The first fatal error of any
// shard cancels the remaining shards and is yielded after all keys that were
// written before it. Breaking out of the iteration stops all workers.
func Copy(ctx context.Context, sources []store.Source, dst store.Destination, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		pattern, err := migrate.ParsePattern(opts.Filter)
		if err != nil {
			yield("", err)
			return
		}
		if len(sources) == 0 {
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		jobOpts := migrate.Options{
			BatchSize:  opts.BatchSize,
			Pattern:    pattern,
			Strategies: migrate.NewStrategySelector(dst),
		}
		workers := opts.workers(len(sources))
		plog.Infof("copying %d shard(s) with %d worker(s), mode %s, filter %s", len(sources), workers, opts.Mode, pattern)

		queue := util.NewMPSC[string](queueCapacity)
		p := pool.New().
			WithContext(ctx).
			WithMaxGoroutines(workers).
			WithCancelOnError().
			WithFirstError()

		// the pool cancels its context before it records the error of the failed
		// job, so the first error is kept here to not report a sibling's ctx error
		var (
			errMu    sync.Mutex
			firstErr error
		)
		fail := func(err error) error {
			errMu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			errMu.Unlock()
			return err
		}

		go func() {
			// Go blocks while all workers are busy, so submit from here
			for i, src := range sources {
				job := migrate.Job{Source: src, Destination: dst, Mode: opts.Mode, Options: jobOpts}
				p.Go(func(ctx context.Context) error {
					if err := runJob(ctx, i, job, queue); err != nil {
						return fail(err)
					}
					return nil
				})
			}
			if err := p.Wait(); err != nil {
				fail(err)
			}
			queue.Close()
		}()

		for key := range queue.Recv() {
			if !yield(key, nil) {
				cancel()
				// drain so blocked workers can finish
				for range queue.Recv() {
				}
				return
			}
		}

		// the queue is closed after Wait returned
		errMu.Lock()
		err = firstErr
		errMu.Unlock()
		if err != nil {
			yield("", err)
		}
	}
}

// runJob copies one shard and pushes the written keys into the queue.
func runJob(ctx context.Context, shard int, job migrate.Job, queue *util.MPSC[string]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plog.Debugf("shard %d: started", shard)

	n := 0
	for key, err := range migrate.Copy(ctx, job) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				plog.Warningf("shard %d: cancelled after %d keys", shard, n)
			} else {
				plog.Errorf("shard %d: %v", shard, err)
			}
			return fmt.Errorf("shard %d: %w", shard, err)
		}
		if err := queue.Push(ctx, key); err != nil {
			return fmt.Errorf("shard %d: %w", shard, err)
		}
		n++
	}

	plog.Debugf("shard %d: done, %d keys", shard, n)
	return nil
}
