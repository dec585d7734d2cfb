package value

import (
	"fmt"
	"strings"
)

// Kind enumerates the shallow type kinds the compiler's type check operates
// over. Container element types are not tracked; a List is a List.
type Kind string

const (
	KindAny    Kind = "any"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindList   Kind = "list"
	KindMap    Kind = "map"
	KindOpaque Kind = "opaque"
)

// Type is a shallow type descriptor. Opaque types carry the host type name
// so two different erased payload kinds do not unify.
type Type struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name,omitempty"` // host type name for Kind == KindOpaque
}

// Common type descriptors.
var (
	TypeAny    = Type{Kind: KindAny}
	TypeBool   = Type{Kind: KindBool}
	TypeInt    = Type{Kind: KindInt}
	TypeFloat  = Type{Kind: KindFloat}
	TypeString = Type{Kind: KindString}
	TypeList   = Type{Kind: KindList}
	TypeMap    = Type{Kind: KindMap}
)

// OpaqueType returns the type descriptor for an erased host type.
func OpaqueType(name string) Type {
	return Type{Kind: KindOpaque, Name: name}
}

// AssignableTo reports whether a value of the receiver type can be consumed
// where want is expected. Any is compatible in both directions: a producer
// declaring Any may feed any consumer, and an Any consumer accepts any
// producer. Numeric kinds do not coerce.
func (t Type) AssignableTo(want Type) bool {
	if t.Kind == KindAny || want.Kind == KindAny {
		return true
	}
	if t.Kind != want.Kind {
		return false
	}
	if t.Kind == KindOpaque {
		return t.Name == want.Name
	}
	return true
}

// String renders the type for error messages.
func (t Type) String() string {
	if t.Kind == KindOpaque {
		return fmt.Sprintf("opaque(%s)", t.Name)
	}
	return string(t.Kind)
}

// ParseType converts a document type string ("int", "opaque(render/tree)")
// into a Type descriptor.
func ParseType(s string) (Type, error) {
	switch Kind(s) {
	case KindAny, KindBool, KindInt, KindFloat, KindString, KindList, KindMap:
		return Type{Kind: Kind(s)}, nil
	}
	if name, ok := strings.CutPrefix(s, "opaque("); ok {
		if name, ok = strings.CutSuffix(name, ")"); ok && name != "" {
			return OpaqueType(name), nil
		}
	}
	return Type{}, fmt.Errorf("unknown type %q", s)
}
