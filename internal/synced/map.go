package synced

type keyChange struct {
	key string
	op  OpKind // empty once cancelled
}

// keyLog is the per-tick change record shared by Map and Set.
type keyLog struct {
	changes []keyChange
	pending map[string]int
}

func (l *keyLog) lookup(key string) (OpKind, bool) {
	i, ok := l.pending[key]
	if !ok {
		return "", false
	}
	return l.changes[i].op, true
}

func (l *keyLog) put(key string, op OpKind) {
	if i, ok := l.pending[key]; ok {
		l.changes[i].op = op
		return
	}
	if l.pending == nil {
		l.pending = make(map[string]int)
	}
	l.pending[key] = len(l.changes)
	l.changes = append(l.changes, keyChange{key: key, op: op})
}

func (l *keyLog) cancel(key string) {
	if i, ok := l.pending[key]; ok {
		l.changes[i].op = ""
		delete(l.pending, key)
	}
}

func (l *keyLog) reset() {
	l.changes = l.changes[:0]
	clear(l.pending)
}

// Map is a string-keyed tracked container that iterates in insertion order.
// Values may be primitives or Nodes; Node values are owned by the map.
type Map[V comparable] struct {
	ownership
	items    map[string]V
	keys     []string
	log      keyLog
	onAdd    listeners[func(V, string)]
	onRemove listeners[func(V, string)]
}

func NewMap[V comparable]() *Map[V] {
	return &Map[V]{items: make(map[string]V)}
}

func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.items[key]
	return v, ok
}

func (m *Map[V]) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

func (m *Map[V]) Len() int { return len(m.items) }

// Keys returns the keys in insertion order.
func (m *Map[V]) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map[V]) Range(fn func(key string, v V) bool) {
	for _, k := range m.Keys() {
		v, ok := m.items[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Set inserts or replaces the value at key. Replacing fires OnRemove for the
// old value before OnAdd for the new one.
func (m *Map[V]) Set(key string, v V) {
	old, exists := m.items[key]
	if exists && old == v {
		return
	}
	adoptValue(any(v))
	if exists {
		releaseValue(any(old))
	} else {
		m.keys = append(m.keys, key)
	}
	m.items[key] = v

	prev, pending := m.log.lookup(key)
	switch {
	case !exists && pending && prev == OpRemove:
		m.log.put(key, OpReplace)
	case !exists:
		m.log.put(key, OpAdd)
	case pending && prev == OpAdd:
		// still an add; the value is read at flush time
	default:
		m.log.put(key, OpReplace)
	}

	if exists {
		m.onRemove.each(func(fn func(V, string)) { fn(old, key) })
	}
	m.onAdd.each(func(fn func(V, string)) { fn(v, key) })
}

// Delete removes key and reports whether it was present. Deleting a missing
// key changes nothing.
func (m *Map[V]) Delete(key string) bool {
	old, ok := m.items[key]
	if !ok {
		return false
	}
	delete(m.items, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	releaseValue(any(old))

	if prev, pending := m.log.lookup(key); pending && prev == OpAdd {
		m.log.cancel(key)
	} else {
		m.log.put(key, OpRemove)
	}
	m.onRemove.each(func(fn func(V, string)) { fn(old, key) })
	return true
}

// OnAdd registers fn for inserts and replacements.
func (m *Map[V]) OnAdd(fn func(v V, key string)) func() { return m.onAdd.add(fn) }

// OnRemove registers fn for deletions and replacements.
func (m *Map[V]) OnRemove(fn func(v V, key string)) func() { return m.onRemove.add(fn) }

func (m *Map[V]) snapshot() any {
	out := make(map[string]any, len(m.items))
	for k, v := range m.items {
		out[k] = snapshotOf(any(v))
	}
	return out
}

func (m *Map[V]) encode(path string, ops []Op) []Op {
	for _, c := range m.log.changes {
		switch c.op {
		case "":
		case OpRemove:
			ops = append(ops, Op{Op: OpRemove, Path: join(path, c.key)})
		default:
			v := any(m.items[c.key])
			ops = append(ops, Op{Op: c.op, Path: join(path, c.key), Value: snapshotOf(v)})
			discardValue(v)
		}
	}
	for _, k := range m.keys {
		if _, emitted := m.log.pending[k]; emitted {
			continue
		}
		if n, ok := any(m.items[k]).(Node); ok {
			ops = n.encode(join(path, k), ops)
		}
	}
	m.log.reset()
	return ops
}

func (m *Map[V]) discard() {
	m.log.reset()
	for _, v := range m.items {
		discardValue(any(v))
	}
}

func (m *Map[V]) dirty() bool {
	if len(m.log.pending) > 0 {
		return true
	}
	for _, v := range m.items {
		if n, ok := any(v).(Node); ok && n.dirty() {
			return true
		}
	}
	return false
}
