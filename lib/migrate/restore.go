package migrate

import (
	"context"
	"sync"

	"github.com/ValentinKolb/redisimp/lib/store"
)

// MinReplaceVersion is the first server version supporting RESTORE ... REPLACE
const MinReplaceVersion = "3.0.0"

// RestoreStrategy queues the operations that write a snapshot to the destination,
// overwriting any existing value of the key.
type RestoreStrategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Apply queues the write of snap on pipe.
	Apply(pipe store.Pipeline, snap Snapshot)
}

// ReplaceStrategy writes with a single atomic restore-with-replace operation.
type ReplaceStrategy struct{}

func (ReplaceStrategy) Name() string { return "replace" }

func (ReplaceStrategy) Apply(pipe store.Pipeline, snap Snapshot) {
	pipe.RestoreReplace(snap.Key, snap.TTLMs, snap.Payload)
}

// LegacyStrategy deletes the key and restores it within the same pipeline, for
// servers that predate restore-with-replace.
type LegacyStrategy struct{}

func (LegacyStrategy) Name() string { return "legacy" }

func (LegacyStrategy) Apply(pipe store.Pipeline, snap Snapshot) {
	pipe.Delete(snap.Key)
	pipe.Restore(snap.Key, snap.TTLMs, snap.Payload)
}

// SelectStrategy picks the restore strategy for a destination from its reported
// version. Destinations that cannot report a usable version get the LegacyStrategy.
func SelectStrategy(ctx context.Context, dst store.Destination) RestoreStrategy {
	info, err := dst.Info(ctx)
	if err != nil {
		plog.Warningf("could not read destination info, falling back to delete+restore: %v", err)
		return LegacyStrategy{}
	}

	cmp, err := CompareVersions(info.Version, MinReplaceVersion)
	if err != nil {
		plog.Warningf("could not parse destination version, falling back to delete+restore: %v", err)
		return LegacyStrategy{}
	}
	if cmp < 0 {
		plog.Infof("destination version %s does not support replace, using delete+restore", info.Version)
		return LegacyStrategy{}
	}
	return ReplaceStrategy{}
}

// StrategySelector resolves the restore strategy of one destination on first use
// and caches it for the rest of the run.
//
// Thread-safety: Strategy can be called concurrently by all shard workers.
type StrategySelector struct {
	dst store.Destination

	mu       sync.Mutex
	strategy RestoreStrategy
}

// NewStrategySelector creates a selector for the destination.
func NewStrategySelector(dst store.Destination) *StrategySelector {
	return &StrategySelector{dst: dst}
}

// Strategy returns the cached strategy, selecting it first if needed.
// A selection that was interrupted by ctx is not cached.
func (s *StrategySelector) Strategy(ctx context.Context) RestoreStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.strategy != nil {
		return s.strategy
	}
	strategy := SelectStrategy(ctx, s.dst)
	if ctx.Err() == nil {
		s.strategy = strategy
	}
	return strategy
}
