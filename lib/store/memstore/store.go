package memstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/redisimp/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum       = "MEMDUMP\x00" // Dump payload identifier
	DefaultVersion = "7.2.0"       // Version reported by Info if none is configured
)

// --------------------------------------------------------------------------
// Options and Hooks
// --------------------------------------------------------------------------

// Options configures a Store.
type Options struct {
	Version        string           // Version reported by Info ("" = DefaultVersion, use NoVersion to report none)
	ClusterEnabled bool             // Cluster flag reported by Info
	Now            func() time.Time // Clock used for expiry (nil = time.Now)
}

// NoVersion can be used as Options.Version to make Info report an empty version.
const NoVersion = "-"

// Hooks are called by the store at well-defined points. They are meant for tests
// that need to simulate concurrent clients.
type Hooks struct {
	// BeforeExport is called with the keys of an Export request before any key is read.
	BeforeExport func(keys []string)
	// BeforeExec is called before a pipeline applies its operations.
	BeforeExec func(ops int)
	// Fault may return an error for a single queued operation ("delete", "restore",
	// "restore-replace") which is then reported instead of applying the operation.
	Fault func(op, key string) error
}

// Stats counts the primitives executed against a store.
type Stats struct {
	Scans           uint64
	Exports         uint64
	ExistsChecks    uint64
	Deletes         uint64
	Restores        uint64
	RestoreReplaces uint64
	PipelineExecs   uint64
}

// --------------------------------------------------------------------------
// Core Store structure
// --------------------------------------------------------------------------

type entry struct {
	value    []byte
	expireAt time.Time // zero = no expiry
}

// Store is an in-memory key-value store with dump/restore semantics.
// It implements both store.Source and store.Destination.
//
// Thread-safety: All methods are thread-safe and can be called concurrently.
type Store struct {
	data  *xsync.MapOf[string, entry]
	opts  Options
	hooks atomic.Pointer[Hooks]

	scans, exports, exists, deletes, restores, replaces, execs atomic.Uint64
}

var (
	_ store.Source      = (*Store)(nil)
	_ store.Destination = (*Store)(nil)
)

// New creates an empty store with the given options (optional).
func New(opts *Options) *Store {
	s := &Store{
		data: xsync.NewMapOf[string, entry](),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.Version == "" {
		s.opts.Version = DefaultVersion
	}
	if s.opts.Now == nil {
		s.opts.Now = time.Now
	}
	s.hooks.Store(&Hooks{})
	return s
}

// SetHooks replaces the hooks of the store.
func (s *Store) SetHooks(h Hooks) {
	s.hooks.Store(&h)
}

// Stats returns the operation counters of the store.
func (s *Store) Stats() Stats {
	return Stats{
		Scans:           s.scans.Load(),
		Exports:         s.exports.Load(),
		ExistsChecks:    s.exists.Load(),
		Deletes:         s.deletes.Load(),
		Restores:        s.restores.Load(),
		RestoreReplaces: s.replaces.Load(),
		PipelineExecs:   s.execs.Load(),
	}
}

// --------------------------------------------------------------------------
// Direct access (used to seed and inspect stores)
// --------------------------------------------------------------------------

// Set stores a value for a key. A ttl of 0 means no expiry.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.data.Store(key, s.newEntry(value, ttl.Milliseconds()))
}

// Get returns the value of a key and its remaining ttl (0 = no expiry).
func (s *Store) Get(key string) (value []byte, ttl time.Duration, ok bool) {
	e, ok := s.load(key)
	if !ok {
		return nil, 0, false
	}
	if !e.expireAt.IsZero() {
		ttl = e.expireAt.Sub(s.opts.Now())
	}
	return bytes.Clone(e.value), ttl, true
}

// Del removes a key.
func (s *Store) Del(key string) {
	s.data.Delete(key)
}

// Keys returns all live keys in sorted order.
func (s *Store) Keys() []string {
	now := s.opts.Now()
	keys := make([]string, 0, s.data.Size())
	s.data.Range(func(key string, e entry) bool {
		if !e.expired(now) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return len(s.Keys())
}

// --------------------------------------------------------------------------
// store.Source
// --------------------------------------------------------------------------

// Scan pages through the sorted keyspace. Like a server-side SCAN, the match
// filter is applied after the page has been selected, so pages can be empty
// while the cursor is not yet exhausted.
func (s *Store) Scan(ctx context.Context, cursor uint64, match string, count int64) (uint64, []string, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if count <= 0 {
		count = 10
	}
	s.scans.Add(1)

	all := s.Keys()
	if cursor >= uint64(len(all)) {
		return 0, nil, nil
	}
	end := cursor + uint64(count)
	if end > uint64(len(all)) {
		end = uint64(len(all))
	}

	keys := make([]string, 0, end-cursor)
	for _, key := range all[cursor:end] {
		if match != "" {
			ok, err := path.Match(match, key)
			if err != nil {
				return 0, nil, store.WrapError(store.RetCInvalidOperation, err)
			}
			if !ok {
				continue
			}
		}
		keys = append(keys, key)
	}

	next := end
	if next >= uint64(len(all)) {
		next = 0
	}
	return next, keys, nil
}

// Export dumps every key together with its remaining ttl.
func (s *Store) Export(ctx context.Context, keys []string) ([]store.Export, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h := s.hooks.Load(); h.BeforeExport != nil {
		h.BeforeExport(keys)
	}
	s.exports.Add(uint64(len(keys)))

	now := s.opts.Now()
	exports := make([]store.Export, len(keys))
	for i, key := range keys {
		e, ok := s.load(key)
		if !ok {
			exports[i] = store.Export{PTTL: -2}
			continue
		}
		exports[i] = store.Export{
			Payload: dump(e.value),
			PTTL:    e.pttl(now),
		}
	}
	return exports, nil
}

// --------------------------------------------------------------------------
// store.Destination
// --------------------------------------------------------------------------

// Info reports the configured version and cluster flag.
func (s *Store) Info(ctx context.Context) (store.ServerInfo, error) {
	if err := ctx.Err(); err != nil {
		return store.ServerInfo{}, err
	}
	version := s.opts.Version
	if version == NoVersion {
		version = ""
	}
	return store.ServerInfo{Version: version, ClusterEnabled: s.opts.ClusterEnabled}, nil
}

// Exists checks for every key whether it is live.
func (s *Store) Exists(ctx context.Context, keys []string) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.exists.Add(uint64(len(keys)))

	found := make([]bool, len(keys))
	for i, key := range keys {
		_, found[i] = s.load(key)
	}
	return found, nil
}

// Pipeline starts a new pipeline against the store.
func (s *Store) Pipeline() store.Pipeline {
	return &pipeline{store: s}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *Store) load(key string) (entry, bool) {
	e, ok := s.data.Load(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(s.opts.Now()) {
		s.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
			// delete only if the entry was not replaced in the meantime
			return old, loaded && old.expired(s.opts.Now())
		})
		return entry{}, false
	}
	return e, true
}

func (s *Store) newEntry(value []byte, ttlMs int64) entry {
	e := entry{value: bytes.Clone(value)}
	if ttlMs > 0 {
		e.expireAt = s.opts.Now().Add(time.Duration(ttlMs) * time.Millisecond)
	}
	return e
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// pttl follows the store convention: -1 for keys without expiry, otherwise
// the remaining milliseconds (at least 1 for live keys).
func (e entry) pttl(now time.Time) int64 {
	if e.expireAt.IsZero() {
		return -1
	}
	ms := e.expireAt.Sub(now).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return ms
}

// dump serializes a value into the opaque payload format of this store.
func dump(value []byte) []byte {
	payload := make([]byte, 0, len(magicNum)+len(value))
	payload = append(payload, magicNum...)
	return append(payload, value...)
}

// undump validates and decodes a payload produced by dump.
func undump(payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, []byte(magicNum)) {
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("payload version or checksum are wrong (%d bytes)", len(payload)))
	}
	return payload[len(magicNum):], nil
}
