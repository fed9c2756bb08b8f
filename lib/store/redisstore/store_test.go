package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/ValentinKolb/redisimp/lib/store/storetest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyError mimics an error reply of the server
type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

func TestClassifyError(t *testing.T) {
	assert.NoError(t, classifyError(nil))

	tests := []struct {
		err  error
		code store.RetCode
	}{
		{replyError("BUSYKEY Target key name already exists."), store.RetCKeyBusy},
		{replyError("ERR Target key name is busy."), store.RetCKeyBusy},
		{replyError("LOADING Redis is loading the dataset in memory"), store.RetCLoading},
		{replyError("ERR unknown command 'RESTORE'"), store.RetCUnsupportedOperation},
		{replyError("ERR DUMP payload version or checksum are wrong"), store.RetCInvalidOperation},
		{replyError("WRONGTYPE Operation against a key holding the wrong kind of value"), store.RetCInternalError},
		{errors.New("dial tcp: connection refused"), store.RetCInternalError},
	}
	for _, tt := range tests {
		err := classifyError(tt.err)
		assert.Equal(t, tt.code, store.CodeOf(err), tt.err.Error())
		assert.ErrorIs(t, err, tt.err)
	}

	assert.True(t, store.IsKeyBusy(classifyError(replyError("ERR Target key name is busy."))))
	assert.False(t, store.IsKeyBusy(classifyError(replyError("ERR Target key name is invalid"))))
	assert.ErrorIs(t, classifyError(context.Canceled), context.Canceled)
}

func TestIsReplyError(t *testing.T) {
	assert.True(t, isReplyError(replyError("ERR x")))
	assert.True(t, isReplyError(redis.Nil))
	assert.False(t, isReplyError(errors.New("i/o timeout")))
}

func TestParseInfo(t *testing.T) {
	info := "# Server\r\nredis_version:7.2.4\r\nredis_mode:standalone\r\n\r\n# Cluster\r\ncluster_enabled:1\r\nmalformed\r\n"
	fields := parseInfo(info)
	assert.Equal(t, "7.2.4", fields["redis_version"])
	assert.Equal(t, "standalone", fields["redis_mode"])
	assert.Equal(t, "1", fields["cluster_enabled"])
	assert.NotContains(t, fields, "malformed")
}

func TestPTTLMillis(t *testing.T) {
	assert.Equal(t, int64(-1), pttlMillis(time.Duration(-1)))
	assert.Equal(t, int64(-2), pttlMillis(time.Duration(-2)))
	assert.Equal(t, int64(1500), pttlMillis(1500*time.Millisecond))
	assert.Equal(t, int64(0), pttlMillis(0))
}

func TestParseTarget(t *testing.T) {
	opts, err := ParseTarget(" localhost:6379 ")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.NotEqual(t, "unix", opts.Network)

	opts, err = ParseTarget("redis://:secret@example.com:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "example.com:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = ParseTarget("/var/run/redis.sock")
	require.NoError(t, err)
	assert.Equal(t, "unix", opts.Network)
	assert.Equal(t, "/var/run/redis.sock", opts.Addr)

	_, err = ParseTarget("localhost:notaport")
	assert.Error(t, err)

	_, err = ParseTarget("  ")
	assert.Error(t, err)
}

func TestPipelineLen(t *testing.T) {
	p := &pipeline{}
	p.Delete("a")
	p.Restore("a", 10, []byte("x"))
	p.RestoreReplace("b", 0, []byte("y"))
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, 10*time.Millisecond, p.ops[1].ttl)
}

// --------------------------------------------------------------------------
// Integration tests (need a disposable redis server)
// --------------------------------------------------------------------------

// backend is a redis server acting as source and destination at once
type backend struct {
	*Source
	*Destination
}

// Close resolves the ambiguity between the embedded types
func (b backend) Close() error {
	return b.Source.Close()
}

func (b backend) Seed(t testing.TB, key string, value []byte, ttl time.Duration) {
	require.NoError(t, b.Source.client.Set(context.Background(), key, value, ttl).Err())
}

// TestRedis runs the store conformance suite against the server named in
// REDISIMP_TEST_REDIS (e.g. localhost:6379). The selected database is flushed!
func TestRedis(t *testing.T) {
	target := os.Getenv("REDISIMP_TEST_REDIS")
	if target == "" {
		t.Skip("REDISIMP_TEST_REDIS not set")
	}

	storetest.RunStoreTests(t, "Redis", func(t testing.TB) storetest.Backend {
		client, err := Resolve(context.Background(), target, ResolveOptions{})
		require.NoError(t, err)
		require.NoError(t, client.FlushDB(context.Background()).Err())
		t.Cleanup(func() { _ = client.Close() })
		return backend{Source: NewSource(client), Destination: NewDestination(client)}
	})
}
