package value

import (
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the closed set of value kinds a node can
// produce or consume. Only Null, Bool, Int, Float, String, List, Map and
// Opaque implement it.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents the absence of a value. Using an explicit type keeps every
// Value non-nil and satisfies the sealed interface.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) value() {}

// Float represents a floating point value. NaN and infinities are not
// representable in canonical form and are rejected at encoding time.
type Float float64

func (Float) value() {}

// String represents a string value.
type String string

func (String) value() {}

// List represents an ordered sequence of values.
type List []Value

func (List) value() {}

// Map represents a mapping from string keys to values.
// Use SortedKeys for deterministic iteration.
type Map map[string]Value

func (Map) value() {}

// Opaque is the type-erased fallback for host-defined payloads the engine
// cannot inspect (render trees, GPU textures, font handles). Token is a
// producer-supplied content token that stands in for the payload during
// hashing; producers that cannot hash their payload should derive Token from
// whatever inputs created it.
type Opaque struct {
	Name    string // host type name, e.g. "render/tree"
	Token   string // content token used for canonical encoding
	Payload any    // the erased payload itself, never hashed
}

func (Opaque) value() {}

// KindOf reports the Type a value inhabits. List and Map report their
// container kinds without element types; Opaque reports its host type name.
func KindOf(v Value) Type {
	switch val := v.(type) {
	case Null:
		return TypeAny
	case Bool:
		return TypeBool
	case Int:
		return TypeInt
	case Float:
		return TypeFloat
	case String:
		return TypeString
	case List:
		return TypeList
	case Map:
		return TypeMap
	case Opaque:
		return OpaqueType(val.Name)
	default:
		return TypeAny
	}
}

// Equal reports deep equality of two values. Opaque values compare by name
// and token, never by payload.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, present := bv[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	case Opaque:
		bv, ok := b.(Opaque)
		return ok && av.Name == bv.Name && av.Token == bv.Token
	default:
		return false
	}
}

// SortedKeys returns map keys in canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8, which produces a different order for strings
// outside the basic multilingual plane.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}

// compareKeysUTF16 compares strings by UTF-16 code units, the ordering
// required for canonical JSON. utf16.Encode handles surrogate pairs.
func compareKeysUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// FromGo converts a plain Go value (as produced by JSON or YAML decoding)
// into a Value. Integral float64s collapse to Int so that documents decoded
// from JSON hash identically to programmatically built networks.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		if val == float64(int64(val)) {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case float32:
		return FromGo(float64(val))
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = converted
		}
		return list, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			converted, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = converted
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// ToGo converts a Value back to a plain Go value for serialization at the
// editor boundary. Opaque payloads do not survive the round trip; only their
// name and token do.
func ToGo(v Value) any {
	switch val := v.(type) {
	case Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	case Opaque:
		return map[string]any{"__opaque": val.Name, "token": val.Token}
	default:
		return nil
	}
}
