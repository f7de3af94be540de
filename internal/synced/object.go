package synced

// FieldChange describes one field write observed by OnChange listeners.
type FieldChange struct {
	Field    string
	Value    any
	Previous any
}

// FieldValue pairs a field index with a new value for Object.Apply.
type FieldValue struct {
	Index int
	Value any
}

// F is shorthand for FieldValue{Index: i, Value: v}.
func F(i int, v any) FieldValue { return FieldValue{Index: i, Value: v} }

// Object is a tracked entity whose layout comes from a Descriptor. A write
// marks only the written field dirty.
type Object struct {
	ownership
	desc      *Descriptor
	values    []any
	changed   []bool
	order     []int
	listeners listeners[func([]FieldChange)]
}

// NewObject returns an object with every field at its zero value. Child
// fields start empty and must be filled with SetChild.
func NewObject(d *Descriptor) *Object {
	o := &Object{
		desc:    d,
		values:  make([]any, d.Len()),
		changed: make([]bool, d.Len()),
	}
	for i := range o.values {
		o.values[i] = d.zero(i)
	}
	return o
}

// Descriptor returns the object's layout.
func (o *Object) Descriptor() *Descriptor { return o.desc }

func (o *Object) Str(i int) string {
	s, _ := o.values[i].(string)
	return s
}

func (o *Object) Num(i int) float64 {
	n, _ := o.values[i].(float64)
	return n
}

func (o *Object) Int(i int) int64 {
	n, _ := o.values[i].(int64)
	return n
}

func (o *Object) Bool(i int) bool {
	b, _ := o.values[i].(bool)
	return b
}

func (o *Object) ChildAt(i int) Node {
	n, _ := o.values[i].(Node)
	return n
}

func (o *Object) SetStr(i int, v string) { o.Apply(F(i, v)) }
func (o *Object) SetNum(i int, v float64) { o.Apply(F(i, v)) }
func (o *Object) SetInt(i int, v int64) { o.Apply(F(i, v)) }
func (o *Object) SetBool(i int, v bool) { o.Apply(F(i, v)) }
func (o *Object) SetChild(i int, n Node) { o.Apply(F(i, n)) }

// Apply writes several fields at once. Listeners receive a single call with
// every field that actually changed; writing the current value is a no-op.
func (o *Object) Apply(vals ...FieldValue) {
	var changes []FieldChange
	for _, fv := range vals {
		o.desc.check(fv.Index, fv.Value)
		prev := o.values[fv.Index]
		if prev == fv.Value {
			continue
		}
		if o.desc.fields[fv.Index].Kind == KindChild {
			adoptValue(fv.Value)
			releaseValue(prev)
		}
		o.values[fv.Index] = fv.Value
		if !o.changed[fv.Index] {
			o.changed[fv.Index] = true
			o.order = append(o.order, fv.Index)
		}
		changes = append(changes, FieldChange{
			Field:    o.desc.fields[fv.Index].Name,
			Value:    fv.Value,
			Previous: prev,
		})
	}
	if len(changes) == 0 {
		return
	}
	o.listeners.each(func(fn func([]FieldChange)) { fn(changes) })
}

// OnChange registers fn to run synchronously after every effective write.
// The returned func unregisters it.
func (o *Object) OnChange(fn func([]FieldChange)) func() {
	return o.listeners.add(fn)
}

func (o *Object) snapshot() any {
	out := make(map[string]any, len(o.values))
	for i, v := range o.values {
		out[o.desc.fields[i].Name] = snapshotOf(v)
	}
	return out
}

func (o *Object) encode(path string, ops []Op) []Op {
	for _, i := range o.order {
		ops = append(ops, Op{
			Op:    OpReplace,
			Path:  join(path, o.desc.fields[i].Name),
			Value: snapshotOf(o.values[i]),
		})
		discardValue(o.values[i])
	}
	for i, f := range o.desc.fields {
		if f.Kind != KindChild || o.changed[i] {
			continue
		}
		if n, ok := o.values[i].(Node); ok {
			ops = n.encode(join(path, f.Name), ops)
		}
	}
	o.reset()
	return ops
}

func (o *Object) reset() {
	for _, i := range o.order {
		o.changed[i] = false
	}
	o.order = o.order[:0]
}

func (o *Object) discard() {
	o.reset()
	for _, v := range o.values {
		discardValue(v)
	}
}

func (o *Object) dirty() bool {
	if len(o.order) > 0 {
		return true
	}
	for _, v := range o.values {
		if n, ok := v.(Node); ok && n.dirty() {
			return true
		}
	}
	return false
}
