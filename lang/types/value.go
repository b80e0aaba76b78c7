// Package types implements the tagged value model shared by every stage of
// the calx pipeline: the surface reader produces leaves that are eventually
// parsed into Values, the assembler embeds Values in Const instructions, and
// the machine pushes and pops Values on its operand stack.
package types

import "fmt"

// Value is the tagged union of runtime values the machine operates on.
// Implementations are Nil, Bool, I64, F64, Str and *List.
type Value interface {
	// String returns the display form of the value, as produced by the `echo`
	// and `inspect` instructions.
	String() string

	// Type returns the runtime type tag of the value.
	Type() Type

	// Truthy reports whether the value is considered true by `assert`, `br-if`
	// and `if`.
	Truthy() bool
}

// Type is the tag identifying a Value's runtime shape.
type Type uint8

const (
	TNil Type = iota
	TBool
	TI64
	TF64
	TStr
	TList
	// TLink identifies the not-yet-materialized linked-structure type; no
	// Value ever reports this type, see the Link design note.
	TLink
)

var typeNames = [...]string{
	TNil:  "nil",
	TBool: "bool",
	TI64:  "i64",
	TF64:  "f64",
	TStr:  "str",
	TList: "list",
	TLink: "link",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("<invalid type %d>", uint8(t))
}

// ParseType maps a type keyword, as it appears in a function signature, to
// its Type tag.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return Type(t), true
		}
	}
	return 0, false
}

// NilType is the type of the single Nil value.
type NilType struct{}

// Nil is the sole value of type nil.
var Nil Value = NilType{}

func (NilType) String() string { return "nil" }
func (NilType) Type() Type     { return TNil }
func (NilType) Truthy() bool   { return false }

// Bool is a boolean value.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Type() Type   { return TBool }
func (b Bool) Truthy() bool { return bool(b) }

// I64 is a signed 64-bit integer value.
type I64 int64

func (i I64) String() string { return fmt.Sprintf("%d", int64(i)) }
func (i I64) Type() Type     { return TI64 }
func (i I64) Truthy() bool   { return i != 0 }

// F64 is an IEEE-754 64-bit floating point value.
type F64 float64

func (f F64) String() string { return fmt.Sprintf("%g", float64(f)) }
func (f F64) Type() Type     { return TF64 }
func (f F64) Truthy() bool   { return f != 0.0 }

// Str is an immutable text value.
type Str string

func (s Str) String() string { return string(s) }
func (s Str) Type() Type     { return TStr }
func (s Str) Truthy() bool   { return false }

// List is an ordered, owned sequence of values. Unlike scalars, a *List is
// not copied on assignment; callers that need an independent copy must call
// Clone explicitly (Dup and LocalGet rely on this to stay cheap).
type List struct {
	Elems []Value
}

// NewList returns a list wrapping elems; callers should not subsequently
// share elems with another owner without cloning.
func NewList(elems []Value) *List { return &List{Elems: elems} }

func (l *List) String() string {
	s := "("
	for i, e := range l.Elems {
		if i > 0 {
			s += " "
		}
		s += e.String()
	}
	return s + ")"
}
func (l *List) Type() Type   { return TList }
func (l *List) Truthy() bool { return false }

// Clone returns a deep copy of the list, as required whenever a list is
// bound to more than one holder (e.g. local set after a dup).
func (l *List) Clone() *List {
	elems := make([]Value, len(l.Elems))
	for i, e := range l.Elems {
		elems[i] = CloneValue(e)
	}
	return &List{Elems: elems}
}

// CloneValue returns a value safe to hold independently of v: scalars are
// returned as-is (they are immutable), lists are deep-cloned.
func CloneValue(v Value) Value {
	if l, ok := v.(*List); ok {
		return l.Clone()
	}
	return v
}
