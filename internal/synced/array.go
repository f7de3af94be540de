package synced

import "strconv"

type indexChange struct {
	index int
	op    OpKind // empty once cancelled
}

// Array is a tracked ordered list. Only tail insertion and removal are
// supported, which keeps replicated indexes stable within a tick.
type Array[V comparable] struct {
	ownership
	items    []V
	log      []indexChange
	onAdd    listeners[func(V, int)]
	onRemove listeners[func(V, int)]
}

func NewArray[V comparable]() *Array[V] {
	return &Array[V]{}
}

func (a *Array[V]) Len() int { return len(a.items) }

func (a *Array[V]) At(i int) (V, bool) {
	if i < 0 || i >= len(a.items) {
		var zero V
		return zero, false
	}
	return a.items[i], true
}

// Items returns a copy of the elements.
func (a *Array[V]) Items() []V {
	return append([]V(nil), a.items...)
}

// Push appends v.
func (a *Array[V]) Push(v V) {
	adoptValue(any(v))
	a.items = append(a.items, v)
	i := len(a.items) - 1
	a.log = append(a.log, indexChange{index: i, op: OpAdd})
	a.onAdd.each(func(fn func(V, int)) { fn(v, i) })
}

// Set replaces the element at i. It reports false when i is out of range.
func (a *Array[V]) Set(i int, v V) bool {
	if i < 0 || i >= len(a.items) {
		return false
	}
	old := a.items[i]
	if old == v {
		return true
	}
	adoptValue(any(v))
	releaseValue(any(old))
	a.items[i] = v
	if a.last(i) < 0 {
		a.log = append(a.log, indexChange{index: i, op: OpReplace})
	}
	a.onRemove.each(func(fn func(V, int)) { fn(old, i) })
	a.onAdd.each(func(fn func(V, int)) { fn(v, i) })
	return true
}

// Pop removes and returns the last element.
func (a *Array[V]) Pop() (V, bool) {
	if len(a.items) == 0 {
		var zero V
		return zero, false
	}
	i := len(a.items) - 1
	v := a.items[i]
	a.items = a.items[:i]
	releaseValue(any(v))

	if j := a.last(i); j >= 0 && a.log[j].op == OpAdd {
		a.log[j].op = ""
	} else {
		if j >= 0 {
			a.log[j].op = ""
		}
		a.log = append(a.log, indexChange{index: i, op: OpRemove})
	}
	a.onRemove.each(func(fn func(V, int)) { fn(v, i) })
	return v, true
}

// last returns the position in the log of the latest live entry for index
// i, or -1.
func (a *Array[V]) last(i int) int {
	for j := len(a.log) - 1; j >= 0; j-- {
		if a.log[j].index == i && a.log[j].op != "" {
			if a.log[j].op == OpRemove {
				return -1
			}
			return j
		}
	}
	return -1
}

func (a *Array[V]) OnAdd(fn func(v V, index int)) func() { return a.onAdd.add(fn) }

func (a *Array[V]) OnRemove(fn func(v V, index int)) func() { return a.onRemove.add(fn) }

func (a *Array[V]) snapshot() any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = snapshotOf(any(v))
	}
	return out
}

func (a *Array[V]) encode(path string, ops []Op) []Op {
	var emitted map[int]bool
	for _, c := range a.log {
		p := join(path, strconv.Itoa(c.index))
		switch c.op {
		case "":
		case OpRemove:
			ops = append(ops, Op{Op: OpRemove, Path: p})
		default:
			v := any(a.items[c.index])
			ops = append(ops, Op{Op: c.op, Path: p, Value: snapshotOf(v)})
			discardValue(v)
			if emitted == nil {
				emitted = make(map[int]bool)
			}
			emitted[c.index] = true
		}
	}
	for i, v := range a.items {
		if emitted[i] {
			continue
		}
		if n, ok := any(v).(Node); ok {
			ops = n.encode(join(path, strconv.Itoa(i)), ops)
		}
	}
	a.log = a.log[:0]
	return ops
}

func (a *Array[V]) discard() {
	a.log = a.log[:0]
	for _, v := range a.items {
		discardValue(any(v))
	}
}

func (a *Array[V]) dirty() bool {
	for _, c := range a.log {
		if c.op != "" {
			return true
		}
	}
	for _, v := range a.items {
		if n, ok := any(v).(Node); ok && n.dirty() {
			return true
		}
	}
	return false
}
