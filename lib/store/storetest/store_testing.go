package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backend is a store that can act both as source and destination and that can be
// seeded directly by the tests.
type Backend interface {
	store.Source
	store.Destination
	// Seed stores a plain value for a key (ttl 0 = no expiry).
	Seed(t testing.TB, key string, value []byte, ttl time.Duration)
}

// BackendFactory is a function that creates a new, empty Backend
type BackendFactory func(t testing.TB) Backend

// RunStoreTests runs the conformance test suite for a Source/Destination implementation.
func RunStoreTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ScanAll", func(t *testing.T) {
			testScanAll(t, factory(t))
		})

		t.Run("ScanMatch", func(t *testing.T) {
			testScanMatch(t, factory(t))
		})

		t.Run("ExportMissing", func(t *testing.T) {
			testExportMissing(t, factory(t))
		})

		t.Run("ExportTTL", func(t *testing.T) {
			testExportTTL(t, factory(t))
		})

		t.Run("Exists", func(t *testing.T) {
			testExists(t, factory(t))
		})

		t.Run("RestoreRoundTrip", func(t *testing.T) {
			testRestoreRoundTrip(t, factory(t))
		})

		t.Run("RestoreBusy", func(t *testing.T) {
			testRestoreBusy(t, factory(t))
		})

		t.Run("RestoreReplace", func(t *testing.T) {
			testRestoreReplace(t, factory(t))
		})

		t.Run("DeleteThenRestore", func(t *testing.T) {
			testDeleteThenRestore(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testScanAll(t *testing.T, b Backend) {
	want := map[string]bool{}
	for i := 0; i < 57; i++ {
		key := fmt.Sprintf("scan-all-%02d", i)
		b.Seed(t, key, []byte("v"), 0)
		want[key] = true
	}

	got := scanAll(t, b, "", 10)
	assert.Equal(t, want, got)
}

func testScanMatch(t *testing.T, b Backend) {
	for i := 0; i < 20; i++ {
		b.Seed(t, fmt.Sprintf("match-a-%02d", i), []byte("v"), 0)
		b.Seed(t, fmt.Sprintf("match-b-%02d", i), []byte("v"), 0)
	}

	got := scanAll(t, b, "match-a-*", 7)
	assert.Len(t, got, 20)
	for key := range got {
		assert.Contains(t, key, "match-a-")
	}
}

func testExportMissing(t *testing.T, b Backend) {
	exports, err := b.Export(context.Background(), []string{"export-missing"})
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Empty(t, exports[0].Payload)
}

func testExportTTL(t *testing.T, b Backend) {
	b.Seed(t, "ttl-forever", []byte("a"), 0)
	b.Seed(t, "ttl-minute", []byte("b"), time.Minute)

	exports, err := b.Export(context.Background(), []string{"ttl-forever", "ttl-minute"})
	require.NoError(t, err)
	require.Len(t, exports, 2)

	assert.NotEmpty(t, exports[0].Payload)
	assert.Less(t, exports[0].PTTL, int64(1))

	assert.NotEmpty(t, exports[1].Payload)
	assert.Greater(t, exports[1].PTTL, int64(0))
	assert.LessOrEqual(t, exports[1].PTTL, int64(60_000))
}

func testExists(t *testing.T, b Backend) {
	b.Seed(t, "exists-yes", []byte("a"), 0)

	found, err := b.Exists(context.Background(), []string{"exists-no", "exists-yes"})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true}, found)
}

func testRestoreRoundTrip(t *testing.T, b Backend) {
	ctx := context.Background()
	b.Seed(t, "roundtrip-src", []byte("payload"), 0)

	exports, err := b.Export(ctx, []string{"roundtrip-src"})
	require.NoError(t, err)

	pipe := b.Pipeline()
	pipe.Restore("roundtrip-dst", 30_000, exports[0].Payload)
	require.Equal(t, 1, pipe.Len())
	require.NoError(t, pipe.Exec(ctx))

	copied, err := b.Export(ctx, []string{"roundtrip-dst"})
	require.NoError(t, err)
	assert.Equal(t, exports[0].Payload, copied[0].Payload)
	assert.Greater(t, copied[0].PTTL, int64(0))
	assert.LessOrEqual(t, copied[0].PTTL, int64(30_000))
}

func testRestoreBusy(t *testing.T, b Backend) {
	ctx := context.Background()
	b.Seed(t, "busy-src", []byte("new"), 0)
	b.Seed(t, "busy-dst", []byte("old"), 0)

	exports, err := b.Export(ctx, []string{"busy-src", "busy-dst"})
	require.NoError(t, err)

	pipe := b.Pipeline()
	pipe.Restore("busy-dst", 0, exports[0].Payload)
	pipe.Restore("busy-fresh", 0, exports[0].Payload)
	results, err := pipe.ExecEach(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, store.IsKeyBusy(results[0]), "expected busy error, got %v", results[0])
	assert.NoError(t, results[1])

	after, err := b.Export(ctx, []string{"busy-dst"})
	require.NoError(t, err)
	assert.Equal(t, exports[1].Payload, after[0].Payload, "busy restore must not modify the key")
}

func testRestoreReplace(t *testing.T, b Backend) {
	ctx := context.Background()
	b.Seed(t, "replace-src", []byte("new"), 0)
	b.Seed(t, "replace-dst", []byte("old"), 0)

	exports, err := b.Export(ctx, []string{"replace-src"})
	require.NoError(t, err)

	pipe := b.Pipeline()
	pipe.RestoreReplace("replace-dst", 0, exports[0].Payload)
	require.NoError(t, pipe.Exec(ctx))

	after, err := b.Export(ctx, []string{"replace-dst"})
	require.NoError(t, err)
	assert.Equal(t, exports[0].Payload, after[0].Payload)
}

func testDeleteThenRestore(t *testing.T, b Backend) {
	ctx := context.Background()
	b.Seed(t, "legacy-src", []byte("new"), 0)
	b.Seed(t, "legacy-dst", []byte("old"), 0)

	exports, err := b.Export(ctx, []string{"legacy-src"})
	require.NoError(t, err)

	pipe := b.Pipeline()
	pipe.Delete("legacy-dst")
	pipe.Restore("legacy-dst", 0, exports[0].Payload)
	require.Equal(t, 2, pipe.Len())
	require.NoError(t, pipe.Exec(ctx))

	after, err := b.Export(ctx, []string{"legacy-dst"})
	require.NoError(t, err)
	assert.Equal(t, exports[0].Payload, after[0].Payload)
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func scanAll(t *testing.T, b Backend, match string, count int64) map[string]bool {
	ctx := context.Background()
	got := map[string]bool{}
	cursor := uint64(0)
	for i := 0; ; i++ {
		require.Less(t, i, 10_000, "scan did not terminate")
		next, keys, err := b.Scan(ctx, cursor, match, count)
		require.NoError(t, err)
		for _, key := range keys {
			got[key] = true
		}
		if next == 0 {
			return got
		}
		cursor = next
	}
}
