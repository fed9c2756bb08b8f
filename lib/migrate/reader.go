package migrate

import (
	"context"
	"fmt"
	"iter"

	"github.com/ValentinKolb/redisimp/lib/store"
)

// Snapshot is the serialized value of a key and its remaining time to live at
// the moment it was read. TTLMs is 0 for keys without expiry and never negative.
type Snapshot struct {
	Key     string
	Payload []byte
	TTLMs   int64
}

// ReadSnapshots exports the given keys from the source in one round trip.
// The returned sequence yields the snapshots in the order of keys, without the
// keys that vanished since they were scanned.
func ReadSnapshots(ctx context.Context, src store.Source, keys []string) (iter.Seq[Snapshot], error) {
	exports, err := src.Export(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("export %d keys: %w", len(keys), err)
	}
	if len(exports) != len(keys) {
		return nil, fmt.Errorf("export %d keys: got %d results", len(keys), len(exports))
	}

	return func(yield func(Snapshot) bool) {
		for i, key := range keys {
			exp := exports[i]
			if len(exp.Payload) == 0 {
				plog.Debugf("key %q vanished before it could be read", key)
				keysVanished.Inc()
				continue
			}

			ttl := exp.PTTL
			if ttl < 1 {
				ttl = 0
			}
			if !yield(Snapshot{Key: key, Payload: exp.Payload, TTLMs: ttl}) {
				return
			}
		}
	}, nil
}
