package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/ValentinKolb/redisimp/lib/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSource returns fixed exports
type staticSource struct {
	store.Source
	exports []store.Export
	err     error
}

func (s staticSource) Export(context.Context, []string) ([]store.Export, error) {
	return s.exports, s.err
}

func collectSnapshots(t *testing.T, src store.Source, keys []string) []Snapshot {
	seq, err := ReadSnapshots(context.Background(), src, keys)
	require.NoError(t, err)
	var snaps []Snapshot
	for snap := range seq {
		snaps = append(snaps, snap)
	}
	return snaps
}

func TestReadSnapshotsNormalizesTTL(t *testing.T) {
	src := staticSource{exports: []store.Export{
		{Payload: []byte("a"), PTTL: -1},
		{Payload: []byte("b"), PTTL: 0},
		{Payload: []byte("c"), PTTL: 1500},
		{Payload: []byte("d"), PTTL: -2},
	}}

	snaps := collectSnapshots(t, src, []string{"a", "b", "c", "d"})
	assert.Equal(t, []Snapshot{
		{Key: "a", Payload: []byte("a"), TTLMs: 0},
		{Key: "b", Payload: []byte("b"), TTLMs: 0},
		{Key: "c", Payload: []byte("c"), TTLMs: 1500},
		{Key: "d", Payload: []byte("d"), TTLMs: 0},
	}, snaps)
}

func TestReadSnapshotsSkipsVanishedKeys(t *testing.T) {
	src := memstore.New(nil)
	seed(src, "k", 5)
	src.SetHooks(memstore.Hooks{
		BeforeExport: func([]string) {
			src.Del("k001")
			src.Del("k003")
		},
	})

	var keys []string
	for _, snap := range collectSnapshots(t, src, []string{"k000", "k001", "k002", "k003", "k004"}) {
		keys = append(keys, snap.Key)
		assert.NotEmpty(t, snap.Payload)
	}
	assert.Equal(t, []string{"k000", "k002", "k004"}, keys, "order is kept")
}

func TestReadSnapshotsErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := ReadSnapshots(context.Background(), staticSource{err: boom}, []string{"a"})
	assert.ErrorIs(t, err, boom)

	_, err = ReadSnapshots(context.Background(), staticSource{exports: []store.Export{}}, []string{"a"})
	assert.Error(t, err, "result count must match")
}

func TestReadSnapshotsDoesNotMutateSource(t *testing.T) {
	src := memstore.New(nil)
	seed(src, "k", 3)

	collectSnapshots(t, src, []string{"k000", "k001", "k002"})
	stats := src.Stats()
	assert.Zero(t, stats.Deletes+stats.Restores+stats.RestoreReplaces+stats.PipelineExecs)
	assert.Equal(t, 3, src.Len())
}
