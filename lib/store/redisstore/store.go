package redisstore

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

var (
	plog = logger.GetLogger("redisstore")
)

// --------------------------------------------------------------------------
// Source
// --------------------------------------------------------------------------

// Source is a store.Source backed by a single redis server.
type Source struct {
	client *redis.Client
}

var _ store.Source = (*Source)(nil)

// NewSource wraps a redis client as a source shard.
func NewSource(client *redis.Client) *Source {
	return &Source{client: client}
}

// String returns the address of the source.
func (s *Source) String() string {
	return s.client.Options().Addr
}

// Close closes the underlying client.
func (s *Source) Close() error {
	return s.client.Close()
}

func (s *Source) Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	keys, next, err := s.client.Scan(ctx, cursor, match, count).Result()
	if err != nil {
		return 0, nil, classifyError(err)
	}
	return next, keys, nil
}

// Export sends DUMP and PTTL for every key in one pipeline.
func (s *Source) Export(ctx context.Context, keys []string) ([]store.Export, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	dumps := make([]*redis.StringCmd, len(keys))
	ttls := make([]*redis.DurationCmd, len(keys))
	for i, key := range keys {
		dumps[i] = pipe.Dump(ctx, key)
		ttls[i] = pipe.PTTL(ctx, key)
	}

	// the error of Exec is the first failed command, which is redis.Nil for every
	// missing key, so the commands are inspected one by one instead
	_, _ = pipe.Exec(ctx)

	exports := make([]store.Export, len(keys))
	for i := range keys {
		payload, err := dumps[i].Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, classifyError(err)
		}
		ttl, err := ttls[i].Result()
		if err != nil {
			return nil, classifyError(err)
		}
		exports[i] = store.Export{
			Payload: []byte(payload),
			PTTL:    pttlMillis(ttl),
		}
	}
	return exports, nil
}

// pttlMillis converts the reply of PTTL back to milliseconds. go-redis keeps
// the sentinels -1 (no expiry) and -2 (no key) as raw durations.
func pttlMillis(ttl time.Duration) int64 {
	if ttl < 0 {
		return int64(ttl)
	}
	return ttl.Milliseconds()
}

// --------------------------------------------------------------------------
// Destination
// --------------------------------------------------------------------------

// Destination is a store.Destination backed by a redis server or a redis cluster.
// Cluster clients route every queued operation to the node owning its key.
type Destination struct {
	client redis.UniversalClient
}

var _ store.Destination = (*Destination)(nil)

// NewDestination wraps a redis client (*redis.Client or *redis.ClusterClient).
func NewDestination(client redis.UniversalClient) *Destination {
	return &Destination{client: client}
}

// Close closes the underlying client.
func (d *Destination) Close() error {
	return d.client.Close()
}

// Info reads the server and cluster sections of INFO. Servers that do not know
// the cluster section are reported as standalone.
func (d *Destination) Info(ctx context.Context) (store.ServerInfo, error) {
	server, err := d.client.Info(ctx, "server").Result()
	if err != nil {
		return store.ServerInfo{}, classifyError(err)
	}

	cluster, err := d.client.Info(ctx, "cluster").Result()
	if err != nil {
		plog.Debugf("reading cluster info failed, assuming standalone: %v", err)
		cluster = ""
	}
	return parseServerInfo(server, cluster), nil
}

func (d *Destination) Exists(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Exists(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, classifyError(err)
	}

	found := make([]bool, len(keys))
	for i, cmd := range cmds {
		found[i] = cmd.Val() > 0
	}
	return found, nil
}

func (d *Destination) Pipeline() store.Pipeline {
	return &pipeline{client: d.client}
}

// --------------------------------------------------------------------------
// Pipeline
// --------------------------------------------------------------------------

type opKind int

const (
	opDelete opKind = iota
	opRestore
	opRestoreReplace
)

type op struct {
	kind    opKind
	key     string
	ttl     time.Duration
	payload string
}

// pipeline collects operations and builds the go-redis pipeline on execution, so
// the commands are bound to the context of the execution.
type pipeline struct {
	client redis.UniversalClient
	ops    []op
}

func (p *pipeline) Delete(key string) {
	p.ops = append(p.ops, op{kind: opDelete, key: key})
}

func (p *pipeline) Restore(key string, ttlMs int64, payload []byte) {
	p.ops = append(p.ops, op{kind: opRestore, key: key, ttl: time.Duration(ttlMs) * time.Millisecond, payload: string(payload)})
}

func (p *pipeline) RestoreReplace(key string, ttlMs int64, payload []byte) {
	p.ops = append(p.ops, op{kind: opRestoreReplace, key: key, ttl: time.Duration(ttlMs) * time.Millisecond, payload: string(payload)})
}

func (p *pipeline) Len() int {
	return len(p.ops)
}

func (p *pipeline) Exec(ctx context.Context) error {
	if len(p.ops) == 0 {
		return nil
	}
	_, err := p.send(ctx).Exec(ctx)
	return classifyError(err)
}

func (p *pipeline) ExecEach(ctx context.Context) ([]error, error) {
	if len(p.ops) == 0 {
		return nil, nil
	}

	cmds, err := p.send(ctx).Exec(ctx)
	if err != nil && !isReplyError(err) {
		return nil, classifyError(err)
	}

	results := make([]error, len(cmds))
	for i, cmd := range cmds {
		results[i] = classifyError(cmd.Err())
	}
	return results, nil
}

// send moves the queued operations into a new go-redis pipeline
func (p *pipeline) send(ctx context.Context) redis.Pipeliner {
	pipe := p.client.Pipeline()
	for _, o := range p.ops {
		switch o.kind {
		case opDelete:
			pipe.Del(ctx, o.key)
		case opRestore:
			pipe.Restore(ctx, o.key, o.ttl, o.payload)
		case opRestoreReplace:
			pipe.RestoreReplace(ctx, o.key, o.ttl, o.payload)
		}
	}
	p.ops = nil
	return pipe
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseServerInfo builds the server info from the server and cluster sections of INFO
func parseServerInfo(server, cluster string) store.ServerInfo {
	return store.ServerInfo{
		Version:        parseInfo(server)["redis_version"],
		ClusterEnabled: parseInfo(cluster)["cluster_enabled"] == "1",
	}
}

// parseInfo parses the "key:value" lines of an INFO reply.
func parseInfo(info string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(info))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[key] = value
	}
	return fields
}
