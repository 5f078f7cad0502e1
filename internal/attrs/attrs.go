// Package attrs implements a per-partition attributes log: an
// ordered, append-only sequence of SetAttribute(vector_id,
// name_index, value) entries with "last write wins" read semantics,
// plus the database-level attribute-name intern table.
package attrs

import "github.com/google/uuid"

// ValueKind distinguishes the AttributeValue union's cases.
type ValueKind int

const (
	KindString ValueKind = iota
	KindUint64
)

// Value is a tagged union of either a UTF-8 string or a uint64.
// Extensible — new kinds may be added. When read back from wire data,
// a value without a string field decodes as a uint64 (0 if that field
// is unset too).
type Value struct {
	Kind   ValueKind
	Str    string
	Uint64 uint64
}

// String constructs a string-valued Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Uint64Value constructs a uint64-valued Value.
func Uint64Value(u uint64) Value { return Value{Kind: KindUint64, Uint64: u} }

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindUint64:
		return v.Uint64 == o.Uint64
	default:
		return true
	}
}

// SetAttribute is one entry in a partition's Log.
type SetAttribute struct {
	VectorID  uuid.UUID
	NameIndex uint32
	Value     Value
}

// Log is a partition's ordered, append-only attribute history.
type Log struct {
	Entries []SetAttribute
}

// Append records a new SetAttribute at the end of the log (insertion
// order is the only order this type has).
func (l *Log) Append(vectorID uuid.UUID, nameIndex uint32, v Value) {
	l.Entries = append(l.Entries, SetAttribute{VectorID: vectorID, NameIndex: nameIndex, Value: v})
}

// Lookup scans the log from newest to oldest and returns the first
// entry matching (vectorID, nameIndex): "last write wins".
func (l *Log) Lookup(vectorID uuid.UUID, nameIndex uint32) (Value, bool) {
	for i := len(l.Entries) - 1; i >= 0; i-- {
		e := l.Entries[i]
		if e.VectorID == vectorID && e.NameIndex == nameIndex {
			return e.Value, true
		}
	}
	return Value{}, false
}

// NameTable interns attribute names in first-seen order, producing
// stable indices.
type NameTable struct {
	names []string
	index map[string]uint32
}

// NewNameTable creates an empty intern table.
func NewNameTable() *NameTable {
	return &NameTable{index: make(map[string]uint32)}
}

// Intern returns name's stable index, assigning a new one on first
// sight.
func (t *NameTable) Intern(name string) uint32 {
	if idx, ok := t.index[name]; ok {
		return idx
	}
	idx := uint32(len(t.names))
	t.names = append(t.names, name)
	t.index[name] = idx
	return idx
}

// Lookup resolves a name to its index. ok is false for an unknown
// name.
func (t *NameTable) Lookup(name string) (uint32, bool) {
	idx, ok := t.index[name]
	return idx, ok
}

// Names returns the interned names in insertion order. The returned
// slice must not be mutated by callers.
func (t *NameTable) Names() []string { return t.names }

// FromNames rebuilds a NameTable from an ordered name list (used when
// loading a manifest from disk).
func FromNames(names []string) *NameTable {
	t := &NameTable{names: append([]string(nil), names...), index: make(map[string]uint32, len(names))}
	for i, n := range names {
		t.index[n] = uint32(i)
	}
	return t
}
