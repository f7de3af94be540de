package synced

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotLoaded is returned when a patch arrives before any snapshot.
	ErrNotLoaded = errors.New("replica has no snapshot")
	// ErrOutOfOrder is returned when a patch skips a sequence number.
	ErrOutOfOrder = errors.New("patch out of order")
	// ErrBadPath is returned when an op targets something the replica
	// does not hold.
	ErrBadPath = errors.New("invalid patch path")
)

// Replica is the receiving side of an Engine: a plain tree of
// map[string]any, []any and scalars kept in step by applying patches.
type Replica struct {
	state     any
	seq       uint64
	loaded    bool
	listeners listeners[func(Op)]
}

func NewReplica() *Replica {
	return &Replica{}
}

// Load replaces the replica state with a snapshot.
func (r *Replica) Load(s Snapshot) {
	r.state = clone(s.State)
	r.seq = s.Seq
	r.loaded = true
}

// Seq returns the last applied sequence number.
func (r *Replica) Seq() uint64 { return r.seq }

// State returns the replicated tree. Callers must not modify it.
func (r *Replica) State() any { return r.state }

// OnOp registers fn to observe each applied op.
func (r *Replica) OnOp(fn func(Op)) func() { return r.listeners.add(fn) }

// Apply replays p. Patches at or below the current sequence were already
// covered by the snapshot and are skipped.
func (r *Replica) Apply(p Patch) error {
	if !r.loaded {
		return ErrNotLoaded
	}
	if p.Seq <= r.seq {
		return nil
	}
	if p.Seq != r.seq+1 {
		return fmt.Errorf("%w: have %d, got %d", ErrOutOfOrder, r.seq, p.Seq)
	}
	for _, op := range p.Ops {
		next, err := applyAt(r.state, SplitPath(op.Path), op)
		if err != nil {
			return fmt.Errorf("apply %s %s: %w", op.Op, op.Path, err)
		}
		r.state = next
		r.listeners.each(func(fn func(Op)) { fn(op) })
	}
	r.seq = p.Seq
	return nil
}

// Get walks path and returns the value found there.
func (r *Replica) Get(path ...string) (any, bool) {
	cur := r.state
	for _, seg := range path {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func child(node any, seg string) (any, bool) {
	switch c := node.(type) {
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	default:
		return nil, false
	}
}

func applyAt(node any, segs []string, op Op) (any, error) {
	if len(segs) == 0 {
		return nil, ErrBadPath
	}
	if len(segs) > 1 {
		next, ok := child(node, segs[0])
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrBadPath, segs[0])
		}
		updated, err := applyAt(next, segs[1:], op)
		if err != nil {
			return nil, err
		}
		if s, ok := node.([]any); ok {
			i, _ := strconv.Atoi(segs[0])
			s[i] = updated
			return s, nil
		}
		node.(map[string]any)[segs[0]] = updated
		return node, nil
	}

	key := segs[0]
	switch c := node.(type) {
	case map[string]any:
		switch op.Op {
		case OpAdd:
			c[key] = clone(op.Value)
		case OpReplace:
			if _, ok := c[key]; !ok {
				return nil, fmt.Errorf("%w: replace of missing %q", ErrBadPath, key)
			}
			c[key] = clone(op.Value)
		case OpRemove:
			if _, ok := c[key]; !ok {
				return nil, fmt.Errorf("%w: remove of missing %q", ErrBadPath, key)
			}
			delete(c, key)
		default:
			return nil, fmt.Errorf("unknown op %q", op.Op)
		}
		return c, nil
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: bad index %q", ErrBadPath, key)
		}
		switch op.Op {
		case OpAdd:
			if i > len(c) {
				return nil, fmt.Errorf("%w: index %d past end", ErrBadPath, i)
			}
			c = append(c, nil)
			copy(c[i+1:], c[i:])
			c[i] = clone(op.Value)
		case OpReplace:
			if i >= len(c) {
				return nil, fmt.Errorf("%w: index %d past end", ErrBadPath, i)
			}
			c[i] = clone(op.Value)
		case OpRemove:
			if i >= len(c) {
				return nil, fmt.Errorf("%w: index %d past end", ErrBadPath, i)
			}
			c = append(c[:i], c[i+1:]...)
		default:
			return nil, fmt.Errorf("unknown op %q", op.Op)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q is not a container", ErrBadPath, key)
	}
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = clone(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = clone(x)
		}
		return out
	default:
		return v
	}
}
