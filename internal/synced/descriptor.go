// Package synced implements change-tracked state containers and the patch
// engine that replicates them to remote clients.
//
// A state tree is built from Objects (entities described by a Descriptor),
// Maps, Arrays and Sets. Every container records the operations applied to
// it since the last flush; Engine.Flush walks the tree and turns those
// records into an ordered list of Ops that a Replica can replay.
package synced

import "fmt"

// Kind is the storage kind of a schema field.
type Kind uint8

const (
	// KindString holds a string.
	KindString Kind = iota + 1
	// KindNumber holds a float64.
	KindNumber
	// KindInt holds an int64.
	KindInt
	// KindBool holds a bool.
	KindBool
	// KindChild holds a nested Node (Object, Map, Array or Set).
	KindChild
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindChild:
		return "child"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// FieldDef declares one synchronized field of an entity.
type FieldDef struct {
	Name string
	Kind Kind
}

func String(name string) FieldDef { return FieldDef{Name: name, Kind: KindString} }
func Number(name string) FieldDef { return FieldDef{Name: name, Kind: KindNumber} }
func Int(name string) FieldDef { return FieldDef{Name: name, Kind: KindInt} }
func Bool(name string) FieldDef { return FieldDef{Name: name, Kind: KindBool} }
func Child(name string) FieldDef { return FieldDef{Name: name, Kind: KindChild} }

// Descriptor is the static field list of an entity type. Field indexes are
// positions in the list and are what Object accessors take.
type Descriptor struct {
	name   string
	fields []FieldDef
	index  map[string]int
}

// NewDescriptor builds a descriptor. It panics on duplicate or empty field
// names since descriptors are package-level declarations.
func NewDescriptor(name string, fields ...FieldDef) *Descriptor {
	d := &Descriptor{
		name:   name,
		fields: make([]FieldDef, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			panic(fmt.Sprintf("synced: %s field %d has no name", name, i))
		}
		if _, dup := d.index[f.Name]; dup {
			panic(fmt.Sprintf("synced: %s declares %q twice", name, f.Name))
		}
		d.fields[i] = f
		d.index[f.Name] = i
	}
	return d
}

// Name returns the entity type name.
func (d *Descriptor) Name() string { return d.name }

// Len returns the number of fields.
func (d *Descriptor) Len() int { return len(d.fields) }

// Field returns the i-th field definition.
func (d *Descriptor) Field(i int) FieldDef { return d.fields[i] }

// Index looks up a field by name.
func (d *Descriptor) Index(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

func (d *Descriptor) zero(i int) any {
	switch d.fields[i].Kind {
	case KindString:
		return ""
	case KindNumber:
		return float64(0)
	case KindInt:
		return int64(0)
	case KindBool:
		return false
	default:
		return nil
	}
}

func (d *Descriptor) check(i int, v any) {
	if i < 0 || i >= len(d.fields) {
		panic(fmt.Sprintf("synced: %s has no field %d", d.name, i))
	}
	f := d.fields[i]
	ok := false
	switch f.Kind {
	case KindString:
		_, ok = v.(string)
	case KindNumber:
		_, ok = v.(float64)
	case KindInt:
		_, ok = v.(int64)
	case KindBool:
		_, ok = v.(bool)
	case KindChild:
		_, ok = v.(Node)
	}
	if !ok {
		panic(fmt.Sprintf("synced: %s.%s is %s, got %T", d.name, f.Name, f.Kind, v))
	}
}
