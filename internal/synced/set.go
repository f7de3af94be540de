package synced

// Set is a tracked set of strings, iterated in insertion order. It
// replicates as an object whose keys are the members.
type Set struct {
	ownership
	items    map[string]struct{}
	values   []string
	log      keyLog
	onAdd    listeners[func(string)]
	onRemove listeners[func(string)]
}

func NewSet() *Set {
	return &Set{items: make(map[string]struct{})}
}

func (s *Set) Has(v string) bool {
	_, ok := s.items[v]
	return ok
}

func (s *Set) Len() int { return len(s.items) }

// Values returns the members in insertion order.
func (s *Set) Values() []string {
	return append([]string(nil), s.values...)
}

// Add inserts v and reports whether it was new.
func (s *Set) Add(v string) bool {
	if s.Has(v) {
		return false
	}
	s.items[v] = struct{}{}
	s.values = append(s.values, v)
	if prev, pending := s.log.lookup(v); pending && prev == OpRemove {
		s.log.cancel(v)
	} else {
		s.log.put(v, OpAdd)
	}
	s.onAdd.each(func(fn func(string)) { fn(v) })
	return true
}

// Delete removes v and reports whether it was present.
func (s *Set) Delete(v string) bool {
	if !s.Has(v) {
		return false
	}
	delete(s.items, v)
	for i, x := range s.values {
		if x == v {
			s.values = append(s.values[:i], s.values[i+1:]...)
			break
		}
	}
	if prev, pending := s.log.lookup(v); pending && prev == OpAdd {
		s.log.cancel(v)
	} else {
		s.log.put(v, OpRemove)
	}
	s.onRemove.each(func(fn func(string)) { fn(v) })
	return true
}

func (s *Set) OnAdd(fn func(v string)) func() { return s.onAdd.add(fn) }
func (s *Set) OnRemove(fn func(v string)) func() { return s.onRemove.add(fn) }

func (s *Set) snapshot() any {
	out := make(map[string]any, len(s.items))
	for v := range s.items {
		out[v] = true
	}
	return out
}

func (s *Set) encode(path string, ops []Op) []Op {
	for _, c := range s.log.changes {
		switch c.op {
		case OpAdd:
			ops = append(ops, Op{Op: OpAdd, Path: join(path, c.key), Value: true})
		case OpRemove:
			ops = append(ops, Op{Op: OpRemove, Path: join(path, c.key)})
		}
	}
	s.log.reset()
	return ops
}

func (s *Set) discard() { s.log.reset() }

func (s *Set) dirty() bool { return len(s.log.pending) > 0 }
