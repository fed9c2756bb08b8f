package migrate

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/ValentinKolb/redisimp/lib/store"
)

// --------------------------------------------------------------------------
// Copy modes
// --------------------------------------------------------------------------

// Mode selects how existing destination keys are treated.
type Mode int

const (
	// ModeClobber overwrites existing destination keys.
	ModeClobber Mode = iota
	// ModeBackfill only copies keys missing on the destination.
	ModeBackfill
)

func (m Mode) String() string {
	switch m {
	case ModeClobber:
		return "clobber"
	case ModeBackfill:
		return "backfill"
	default:
		return "unknown"
	}
}

// ParseMode parses "clobber" or "backfill".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clobber", "":
		return ModeClobber, nil
	case "backfill":
		return ModeBackfill, nil
	default:
		return 0, fmt.Errorf("invalid copy mode %s (expected clobber or backfill)", s)
	}
}

// Options configures a single-shard copy.
type Options struct {
	// BatchSize is the number of keys requested per scan call (0 = DefaultBatchSize)
	BatchSize int
	// Pattern selects the keys to copy
	Pattern Pattern
	// Strategies caches the restore strategy of the destination. Share one selector
	// between all jobs writing to the same destination (nil = select per job).
	Strategies *StrategySelector
}

// Job is one unit of work: copy the keys of one source into the destination.
type Job struct {
	Source      store.Source
	Destination store.Destination
	Mode        Mode
	Options     Options
}

// Copy runs the job with the copy function of its mode.
func Copy(ctx context.Context, job Job) iter.Seq2[string, error] {
	switch job.Mode {
	case ModeBackfill:
		return Backfill(ctx, job.Source, job.Destination, job.Options)
	case ModeClobber:
		return Clobber(ctx, job.Source, job.Destination, job.Options)
	default:
		return func(yield func(string, error) bool) {
			yield("", fmt.Errorf("invalid copy mode %d", job.Mode))
		}
	}
}

// --------------------------------------------------------------------------
// Clobber
// --------------------------------------------------------------------------

// Clobber copies every matching key of src to dst, overwriting existing keys.
// Each key is yielded after the pipeline writing its batch has been executed.
// The first error ends the sequence.
//
// Batches are processed one after another. A cancelled ctx stops the copy before
// the next batch; a pipeline that was already sent is always executed completely.
func Clobber(ctx context.Context, src store.Source, dst store.Destination, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		selector := opts.Strategies
		if selector == nil {
			selector = NewStrategySelector(dst)
		}
		restored := restoredCounter(ModeClobber)

		for keys, err := range ScanKeys(ctx, src, opts.BatchSize, opts.Pattern) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield("", err)
				return
			}
			start := time.Now()
			keysScanned.Add(len(keys))

			snapshots, err := ReadSnapshots(ctx, src, keys)
			if err != nil {
				yield("", err)
				return
			}

			strategy := selector.Strategy(ctx)
			pipe := dst.Pipeline()
			written := make([]string, 0, len(keys))
			for snap := range snapshots {
				strategy.Apply(pipe, snap)
				written = append(written, snap.Key)
			}
			if pipe.Len() == 0 {
				continue
			}

			if err := pipe.Exec(context.WithoutCancel(ctx)); err != nil {
				yield("", fmt.Errorf("restore batch of %d keys (%s): %w", len(written), strategy.Name(), err))
				return
			}
			batchDuration.UpdateDuration(start)
			restored.Add(len(written))
			plog.Debugf("clobber: restored %d of %d scanned keys", len(written), len(keys))

			for _, key := range written {
				if !yield(key, nil) {
					return
				}
			}
		}
	}
}

// --------------------------------------------------------------------------
// Backfill
// --------------------------------------------------------------------------

// Backfill copies the matching keys of src that do not exist on dst. Existing
// destination keys are never modified: keys are written with a plain restore,
// which the destination refuses if the key was created after the existence check.
// Such keys are skipped. Any other restore error ends the sequence.
//
// Only keys that were restored are yielded, after their pipeline was executed.
func Backfill(ctx context.Context, src store.Source, dst store.Destination, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		restored := restoredCounter(ModeBackfill)

		for keys, err := range ScanKeys(ctx, src, opts.BatchSize, opts.Pattern) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				yield("", err)
				return
			}
			start := time.Now()
			keysScanned.Add(len(keys))

			missing, err := missingKeys(ctx, dst, keys)
			if err != nil {
				yield("", err)
				return
			}
			keysExisting.Add(len(keys) - len(missing))
			if len(missing) == 0 {
				continue
			}

			// only read the values of keys that are not on the destination yet
			snapshots, err := ReadSnapshots(ctx, src, missing)
			if err != nil {
				yield("", err)
				return
			}

			pipe := dst.Pipeline()
			queued := make([]string, 0, len(missing))
			for snap := range snapshots {
				pipe.Restore(snap.Key, snap.TTLMs, snap.Payload)
				queued = append(queued, snap.Key)
			}
			ops := pipe.Len()
			if ops == 0 {
				continue
			}

			results, err := pipe.ExecEach(context.WithoutCancel(ctx))
			if err != nil {
				yield("", fmt.Errorf("restore batch of %d keys: %w", len(queued), err))
				return
			}
			// one restore per queued key
			if len(results) != ops || ops != len(queued) {
				yield("", fmt.Errorf("restore batch of %d keys: got %d results", len(queued), len(results)))
				return
			}
			batchDuration.UpdateDuration(start)

			for i, key := range queued {
				switch res := results[i]; {
				case res == nil:
					restored.Inc()
					if !yield(key, nil) {
						return
					}
				case store.IsKeyBusy(res):
					// created on the destination after the existence check
					keysBusy.Inc()
					plog.Debugf("backfill: key %q appeared on the destination, skipping", key)
				default:
					yield("", fmt.Errorf("restore key %q: %w", key, res))
					return
				}
			}
		}
	}
}

// missingKeys returns the keys that do not exist on the destination, in order.
func missingKeys(ctx context.Context, dst store.Destination, keys []string) ([]string, error) {
	found, err := dst.Exists(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("check %d keys on destination: %w", len(keys), err)
	}
	if len(found) != len(keys) {
		return nil, fmt.Errorf("check %d keys on destination: got %d results", len(keys), len(found))
	}

	missing := make([]string, 0, len(keys))
	for i, key := range keys {
		if !found[i] {
			missing = append(missing, key)
		}
	}
	return missing, nil
}
