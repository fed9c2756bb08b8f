package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/ValentinKolb/redisimp/lib/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSource records the match argument of every scan call
type recordingSource struct {
	store.Source
	mu      sync.Mutex
	matches []string
}

func (r *recordingSource) Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	r.mu.Lock()
	r.matches = append(r.matches, match)
	r.mu.Unlock()
	return r.Source.Scan(ctx, cursor, match, count)
}

// failingSource fails every scan after the first n calls
type failingSource struct {
	store.Source
	n     int
	calls int
	err   error
}

func (f *failingSource) Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	f.calls++
	if f.calls > f.n {
		return 0, nil, f.err
	}
	return f.Source.Scan(ctx, cursor, match, count)
}

func seed(s *memstore.Store, prefix string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s%03d", prefix, i)
		s.Set(keys[i], []byte("value-"+keys[i]), 0)
	}
	return keys
}

func collectBatches(t *testing.T, src store.Source, batchSize int, p Pattern) [][]string {
	var batches [][]string
	for batch, err := range ScanKeys(context.Background(), src, batchSize, p) {
		require.NoError(t, err)
		batches = append(batches, batch)
	}
	return batches
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("")
	require.NoError(t, err)
	assert.Empty(t, p.Glob)
	assert.Nil(t, p.Regex)

	p, err = ParsePattern("foo*")
	require.NoError(t, err)
	assert.Equal(t, "foo*", p.Glob)
	assert.Nil(t, p.Regex)

	p, err = ParsePattern("/^foo/")
	require.NoError(t, err)
	assert.Empty(t, p.Glob, "regex patterns disable the server-side filter")
	require.NotNil(t, p.Regex)
	assert.True(t, p.Regex.MatchString("foobar"))
	assert.False(t, p.Regex.MatchString("barfoo"))
	assert.Equal(t, "/^foo/", p.String())

	// regexes are matched from the start of the key
	p, err = ParsePattern("/bar/")
	require.NoError(t, err)
	assert.True(t, p.Regex.MatchString("barfoo"))
	assert.False(t, p.Regex.MatchString("foobar"))

	// a single slash is a glob
	p, err = ParsePattern("/")
	require.NoError(t, err)
	assert.Equal(t, "/", p.Glob)

	_, err = ParsePattern("/foo(/")
	assert.Error(t, err)
}

func TestScanKeysAll(t *testing.T) {
	src := memstore.New(nil)
	want := seed(src, "k", 23)

	batches := collectBatches(t, src, 5, Pattern{})
	assert.Len(t, batches, 5)

	var got []string
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 5)
		got = append(got, b...)
	}
	assert.ElementsMatch(t, want, got)
}

func TestScanKeysEmptySource(t *testing.T) {
	assert.Empty(t, collectBatches(t, memstore.New(nil), 10, Pattern{}))
}

func TestScanKeysDefaultBatchSize(t *testing.T) {
	src := memstore.New(nil)
	seed(src, "k", DefaultBatchSize+1)

	batches := collectBatches(t, src, 0, Pattern{})
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], DefaultBatchSize)
	assert.Len(t, batches[1], 1)
}

func TestScanKeysRegexIsClientSide(t *testing.T) {
	mem := memstore.New(nil)
	seed(mem, "bar", 10)
	foo := seed(mem, "foo", 10)
	src := &recordingSource{Source: mem}

	p, err := ParsePattern("/^foo/")
	require.NoError(t, err)

	var got []string
	for _, b := range collectBatches(t, src, 4, p) {
		assert.NotEmpty(t, b, "empty batches are skipped")
		got = append(got, b...)
	}
	assert.ElementsMatch(t, foo, got)
	for _, m := range src.matches {
		assert.Empty(t, m, "regex must not be sent to the store")
	}
}

func TestScanKeysGlobIsServerSide(t *testing.T) {
	mem := memstore.New(nil)
	seed(mem, "bar", 10)
	foo := seed(mem, "foo", 10)
	mem.Set("foo(", []byte("x"), 0)
	src := &recordingSource{Source: mem}

	p, err := ParsePattern("foo*")
	require.NoError(t, err)

	var got []string
	for _, b := range collectBatches(t, src, 4, p) {
		assert.NotEmpty(t, b)
		got = append(got, b...)
	}
	assert.ElementsMatch(t, append(foo, "foo("), got)
	require.NotEmpty(t, src.matches)
	for _, m := range src.matches {
		assert.Equal(t, "foo*", m)
	}
}

func TestScanKeysError(t *testing.T) {
	mem := memstore.New(nil)
	seed(mem, "k", 20)
	boom := errors.New("boom")
	src := &failingSource{Source: mem, n: 2, err: boom}

	var batches, errs int
	for batch, err := range ScanKeys(context.Background(), src, 5, Pattern{}) {
		if err != nil {
			errs++
			assert.ErrorIs(t, err, boom)
			assert.Nil(t, batch)
			continue
		}
		batches++
	}
	assert.Equal(t, 2, batches)
	assert.Equal(t, 1, errs)
	assert.Equal(t, 3, src.calls, "scanning stops after the error")
}

func TestScanKeysStopsWhenConsumerStops(t *testing.T) {
	mem := memstore.New(nil)
	seed(mem, "k", 50)
	src := &recordingSource{Source: mem}

	for range ScanKeys(context.Background(), src, 5, Pattern{}) {
		break
	}
	assert.Len(t, src.matches, 1, "batches are requested lazily")
}
