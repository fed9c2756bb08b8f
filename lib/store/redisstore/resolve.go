package redisstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/redis/go-redis/v9"
)

// Defaults for waiting on a server that is still loading its dataset
const (
	DefaultLoadTimeout  = 10000 * time.Second
	DefaultPollInterval = 1 * time.Second
)

// ResolveOptions configures how host strings are turned into connections.
type ResolveOptions struct {
	// LoadTimeout is how long to wait for a server that is loading its dataset (0 = DefaultLoadTimeout)
	LoadTimeout time.Duration
	// PollInterval is the time between two readiness checks (0 = DefaultPollInterval)
	PollInterval time.Duration
}

func (o ResolveOptions) withDefaults() ResolveOptions {
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// ParseTarget converts a host string into client options. Supported formats are
// redis://, rediss:// and unix:// URLs, host:port pairs and paths of unix sockets.
func ParseTarget(target string) (*redis.Options, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty target")
	}

	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") || strings.HasPrefix(target, "unix://") {
		opts, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target %s: %w", target, err)
		}
		return opts, nil
	}

	if host, port, err := net.SplitHostPort(target); err == nil {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return nil, fmt.Errorf("invalid port in target %s: %w", target, err)
		}
		return &redis.Options{Addr: net.JoinHostPort(host, port)}, nil
	}

	// anything else is treated as the path of a unix socket
	return &redis.Options{Network: "unix", Addr: target}, nil
}

// Resolve connects to the target and waits until the server has finished loading
// its dataset.
func Resolve(ctx context.Context, target string, opts ResolveOptions) (*redis.Client, error) {
	clientOpts, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(clientOpts)

	if err := waitReady(ctx, client.Options().Addr, clientInfo(client), opts.withDefaults()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("target %s: %w", target, err)
	}
	return client, nil
}

// ResolveSources resolves every source target. Blank entries are ignored.
// On error all sources resolved so far are closed.
func ResolveSources(ctx context.Context, targets []string, opts ResolveOptions) ([]*Source, error) {
	var sources []*Source
	for _, target := range targets {
		if strings.TrimSpace(target) == "" {
			continue
		}
		client, err := Resolve(ctx, target, opts)
		if err != nil {
			for _, s := range sources {
				_ = s.Close()
			}
			return nil, err
		}
		sources = append(sources, NewSource(client))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no source given")
	}
	return sources, nil
}

// ResolveDestination resolves the destination target. If the server is part of a
// cluster, a cluster client seeded with its address is returned instead, so that
// every key is written to the node owning it.
func ResolveDestination(ctx context.Context, target string, opts ResolveOptions) (*Destination, error) {
	client, err := Resolve(ctx, target, opts)
	if err != nil {
		return nil, err
	}

	info, err := NewDestination(client).Info(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("target %s: %w", target, err)
	}
	return destinationFor(client, info), nil
}

// destinationFor wraps client as destination. For cluster nodes the client is
// closed and replaced by a cluster client seeded with its address.
func destinationFor(client *redis.Client, info store.ServerInfo) *Destination {
	if !info.ClusterEnabled {
		return NewDestination(client)
	}

	single := client.Options()
	_ = client.Close()
	plog.Infof("destination %s is a cluster node, using cluster client", single.Addr)

	cluster := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:     []string{single.Addr},
		Username:  single.Username,
		Password:  single.Password,
		TLSConfig: single.TLSConfig,
	})
	return NewDestination(cluster)
}

// infoFunc returns one section of the INFO reply of a server
type infoFunc func(ctx context.Context, section string) (string, error)

func clientInfo(client *redis.Client) infoFunc {
	return func(ctx context.Context, section string) (string, error) {
		return client.Info(ctx, section).Result()
	}
}

// waitReady polls the server until it answers and does not report loading anymore.
func waitReady(ctx context.Context, addr string, info infoFunc, opts ResolveOptions) error {
	start := time.Now()
	for {
		loading, err := isLoading(ctx, info)
		if err != nil {
			return err
		}
		if !loading {
			return nil
		}

		elapsed := time.Since(start)
		if elapsed > opts.LoadTimeout {
			return store.NewError(store.RetCLoading, fmt.Sprintf("server still loading after %s", elapsed.Round(time.Second)))
		}
		plog.Warningf("%s loading", addr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.PollInterval):
		}
	}
}

// isLoading reports whether the server is still loading its dataset. A LOADING
// reply counts as loading, any other error is returned.
func isLoading(ctx context.Context, info infoFunc) (bool, error) {
	persistence, err := info(ctx, "persistence")
	if err != nil {
		if err = classifyError(err); store.IsLoading(err) {
			return true, nil
		}
		return false, err
	}
	return parseInfo(persistence)["loading"] == "1", nil
}
