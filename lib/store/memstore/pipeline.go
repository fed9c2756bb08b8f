package memstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/redisimp/lib/store"
)

type opKind int

const (
	opDelete opKind = iota
	opRestore
	opRestoreReplace
)

func (k opKind) String() string {
	switch k {
	case opDelete:
		return "delete"
	case opRestore:
		return "restore"
	case opRestoreReplace:
		return "restore-replace"
	default:
		return "unknown"
	}
}

type op struct {
	kind    opKind
	key     string
	ttlMs   int64
	payload []byte
}

// pipeline queues operations and applies them in order on Exec.
type pipeline struct {
	store *Store
	ops   []op
}

func (p *pipeline) Delete(key string) {
	p.ops = append(p.ops, op{kind: opDelete, key: key})
}

func (p *pipeline) Restore(key string, ttlMs int64, payload []byte) {
	p.ops = append(p.ops, op{kind: opRestore, key: key, ttlMs: ttlMs, payload: payload})
}

func (p *pipeline) RestoreReplace(key string, ttlMs int64, payload []byte) {
	p.ops = append(p.ops, op{kind: opRestoreReplace, key: key, ttlMs: ttlMs, payload: payload})
}

func (p *pipeline) Len() int {
	return len(p.ops)
}

func (p *pipeline) Exec(ctx context.Context) error {
	results, err := p.ExecEach(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res != nil {
			return res
		}
	}
	return nil
}

// ExecEach applies all queued operations. Like a real pipeline, a failing
// operation does not stop the following ones.
func (p *pipeline) ExecEach(ctx context.Context) ([]error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ops := p.ops
	p.ops = nil

	s := p.store
	hooks := s.hooks.Load()
	if hooks.BeforeExec != nil {
		hooks.BeforeExec(len(ops))
	}
	s.execs.Add(1)

	results := make([]error, len(ops))
	for i, o := range ops {
		if hooks.Fault != nil {
			if err := hooks.Fault(o.kind.String(), o.key); err != nil {
				results[i] = err
				continue
			}
		}
		results[i] = s.apply(o)
	}
	return results, nil
}

func (s *Store) apply(o op) error {
	switch o.kind {
	case opDelete:
		s.deletes.Add(1)
		s.data.Delete(o.key)
		return nil

	case opRestore, opRestoreReplace:
		if o.ttlMs < 0 {
			return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid ttl %d for key %q", o.ttlMs, o.key))
		}
		value, err := undump(o.payload)
		if err != nil {
			return err
		}
		replace := o.kind == opRestoreReplace
		if replace {
			s.replaces.Add(1)
		} else {
			s.restores.Add(1)
		}

		busy := false
		newEntry := s.newEntry(value, o.ttlMs)
		now := s.opts.Now()
		s.data.Compute(o.key, func(old entry, loaded bool) (entry, bool) {
			if loaded && !old.expired(now) && !replace {
				busy = true
				return old, false
			}
			return newEntry, false
		})
		if busy {
			return &store.Error{
				Code: store.RetCKeyBusy,
				Msg:  "target key name is busy",
				Err:  errors.New("BUSYKEY Target key name already exists."),
			}
		}
		return nil

	default:
		return store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("unknown operation %d", o.kind))
	}
}
