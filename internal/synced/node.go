package synced

import "strings"

// OpKind names a replicated operation.
type OpKind string

const (
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
	OpReplace OpKind = "replace"
)

// Op is one replicated mutation. Path addresses the target inside the state
// tree using JSON Pointer syntax, e.g. "/players/abc/x".
type Op struct {
	Op    OpKind `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Node is a change-tracked element of a state tree. The set of
// implementations is closed: Object, Map, Array and Set (and types that
// embed *Object).
type Node interface {
	snapshot() any
	encode(path string, ops []Op) []Op
	discard()
	dirty() bool
	adopt()
	release()
}

// ownership enforces the tree shape: a node has at most one parent.
type ownership struct {
	owned bool
}

func (o *ownership) adopt() {
	if o.owned {
		panic("synced: node is already attached to a tree")
	}
	o.owned = true
}

func (o *ownership) release() { o.owned = false }

func snapshotOf(v any) any {
	if n, ok := v.(Node); ok {
		return n.snapshot()
	}
	return v
}

func discardValue(v any) {
	if n, ok := v.(Node); ok {
		n.discard()
	}
}

func adoptValue(v any) {
	if n, ok := v.(Node); ok {
		n.adopt()
	}
}

func releaseValue(v any) {
	if n, ok := v.(Node); ok {
		n.release()
	}
}

var (
	keyEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	keyUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

func join(path, key string) string {
	return path + "/" + keyEscaper.Replace(key)
}

// SplitPath breaks an Op path into unescaped segments.
func SplitPath(path string) []string {
	if path == "" || path == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		parts[i] = keyUnescaper.Replace(p)
	}
	return parts
}

type listener[F any] struct {
	fn     F
	active bool
}

// listeners keeps registration order; removal during dispatch is safe.
type listeners[F any] struct {
	entries []*listener[F]
}

func (s *listeners[F]) add(fn F) func() {
	l := &listener[F]{fn: fn, active: true}
	s.entries = append(s.entries, l)
	return func() {
		if !l.active {
			return
		}
		l.active = false
		for i, e := range s.entries {
			if e == l {
				s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
				return
			}
		}
	}
}

func (s *listeners[F]) each(call func(F)) {
	for _, l := range s.entries {
		if l.active {
			call(l.fn)
		}
	}
}
