package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Values and callables
// ---------------------------------------------------------------------------

// Value is any value flowing through the engine: receivers, arguments,
// field contents, metadata entries. The engine does not impose a value
// representation; that belongs to the surrounding runtime.
type Value = any

// Function is a callable installed as a method, getter, or setter.
// The receiver is the *Instance for instance-side elements or the *Class
// for static-side elements.
type Function func(recv Value, args ...Value) Value

// Producer computes a field's initial value at construction time.
type Producer func(recv Value) Value

// Initializer is a deferred callback registered via Context.AddInitializer
// and replayed at a fixed lifecycle checkpoint, bound to its receiver.
type Initializer func(recv Value)

// ---------------------------------------------------------------------------
// Element kinds
// ---------------------------------------------------------------------------

// Kind is the closed tagged-variant discriminator for a decoratable thing:
// a class element or the class itself. Every dispatch on Kind in this
// package is an exhaustive switch.
type Kind int

const (
	KindClass Kind = iota
	KindMethod
	KindGetter
	KindSetter
	KindField
	KindAutoAccessor
)

// String implements the Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindMethod:
		return "method"
	case KindGetter:
		return "getter"
	case KindSetter:
		return "setter"
	case KindField:
		return "field"
	case KindAutoAccessor:
		return "accessor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// fieldLike returns true for kinds whose element owns a storage slot that is
// initialized during construction.
func (k Kind) fieldLike() bool {
	return k == KindField || k == KindAutoAccessor
}

// ---------------------------------------------------------------------------
// Hidden element identities
// ---------------------------------------------------------------------------

// Identity is the opaque per-declaration identity of a hidden element.
//
// Hidden elements are never identified by string name: two hidden
// declarations in the same class get distinct identities even when written
// with the same spelling. Pointer equality is the identity; the embedded
// UUID only gives the identity a stable wire form.
type Identity struct {
	id       string
	spelling string
}

// NewIdentity allocates a fresh identity for a hidden declaration.
// The spelling is kept for diagnostics only and carries no lookup meaning.
func NewIdentity(spelling string) *Identity {
	return &Identity{id: uuid.NewString(), spelling: spelling}
}

// Spelling returns the source spelling of the hidden declaration.
func (id *Identity) Spelling() string { return id.spelling }

// WireID returns the stable wire form of the identity.
func (id *Identity) WireID() string { return id.id }

// String implements the Stringer interface.
func (id *Identity) String() string {
	return fmt.Sprintf("#%s(%.8s)", id.spelling, id.id)
}

// ---------------------------------------------------------------------------
// Descriptors
// ---------------------------------------------------------------------------

// Descriptor describes one syntactic class element before decoration.
// Descriptors are built by an external parser/loader in source order;
// the engine never parses syntax.
//
// Exactly one payload group is meaningful per kind:
//   - Method/Getter/Setter: Method
//   - AutoAccessor: Get, Set (optional; defaults installed), Init
//   - Field: Init
type Descriptor struct {
	Kind     Kind
	Name     string    // empty for hidden elements
	Identity *Identity // required for hidden elements
	Static   bool
	Hidden   bool

	Method Function
	Get    Function
	Set    Function
	Init   Producer

	// Decorators is the element's decorator chain in source order: the
	// first entry is the outermost (topmost/leftmost) reference, the last
	// entry is the innermost, closest to the declaration. Resolution runs
	// in slice order; invocation runs in reverse (innermost-first).
	Decorators []Ref
}

// ---------------------------------------------------------------------------
// Descriptor constructors
// ---------------------------------------------------------------------------

// Method describes a public instance method.
func Method(name string, fn Function, refs ...Ref) *Descriptor {
	return &Descriptor{Kind: KindMethod, Name: name, Method: fn, Decorators: refs}
}

// StaticMethod describes a public static method.
func StaticMethod(name string, fn Function, refs ...Ref) *Descriptor {
	d := Method(name, fn, refs...)
	d.Static = true
	return d
}

// Getter describes a public instance getter.
func Getter(name string, fn Function, refs ...Ref) *Descriptor {
	return &Descriptor{Kind: KindGetter, Name: name, Method: fn, Decorators: refs}
}

// Setter describes a public instance setter.
func Setter(name string, fn Function, refs ...Ref) *Descriptor {
	return &Descriptor{Kind: KindSetter, Name: name, Method: fn, Decorators: refs}
}

// Field describes a public instance field.
func Field(name string, init Producer, refs ...Ref) *Descriptor {
	return &Descriptor{Kind: KindField, Name: name, Init: init, Decorators: refs}
}

// StaticField describes a public static field.
func StaticField(name string, init Producer, refs ...Ref) *Descriptor {
	d := Field(name, init, refs...)
	d.Static = true
	return d
}

// AutoAccessor describes a public auto-accessor: a get/set pair over a
// dedicated backing slot. Default get/set over the backing slot are
// installed unless the descriptor (or a decorator) supplies replacements.
func AutoAccessor(name string, init Producer, refs ...Ref) *Descriptor {
	return &Descriptor{Kind: KindAutoAccessor, Name: name, Init: init, Decorators: refs}
}

// HiddenField describes a hidden instance field. A fresh identity is
// allocated for the declaration.
func HiddenField(spelling string, init Producer, refs ...Ref) *Descriptor {
	return &Descriptor{
		Kind:       KindField,
		Identity:   NewIdentity(spelling),
		Hidden:     true,
		Init:       init,
		Decorators: refs,
	}
}

// HiddenMethod describes a hidden instance method.
func HiddenMethod(spelling string, fn Function, refs ...Ref) *Descriptor {
	return &Descriptor{
		Kind:       KindMethod,
		Identity:   NewIdentity(spelling),
		Hidden:     true,
		Method:     fn,
		Decorators: refs,
	}
}

// HiddenAutoAccessor describes a hidden auto-accessor.
func HiddenAutoAccessor(spelling string, init Producer, refs ...Ref) *Descriptor {
	return &Descriptor{
		Kind:       KindAutoAccessor,
		Identity:   NewIdentity(spelling),
		Hidden:     true,
		Init:       init,
		Decorators: refs,
	}
}

// ---------------------------------------------------------------------------
// Class definitions
// ---------------------------------------------------------------------------

// ClassDef is a complete class definition as handed to Define: the
// descriptor tree for one class, in source order, plus the class's own
// decorator chain.
type ClassDef struct {
	Name       string
	Namespace  string
	Superclass *Class // nil for a root class
	Elements   []*Descriptor
	Decorators []Ref // source order, outermost first
}

// ---------------------------------------------------------------------------
// Definition validation
// ---------------------------------------------------------------------------

// elementKey identifies a public element within one class.
type elementKey struct {
	name   string
	static bool
}

// validate enforces the structural rules of a descriptor tree before any
// decorator reference is resolved:
//   - public elements: at most one per (name, static) pair, except that a
//     getter and a setter may coexist and coalesce;
//   - hidden elements carry identities, distinct per declaration, except
//     that a hidden getter/setter pair may share one identity.
func (def *ClassDef) validate() error {
	type seen struct {
		kinds map[Kind]bool
	}
	public := make(map[elementKey]*seen)
	hidden := make(map[*Identity]Kind)

	for i, d := range def.Elements {
		if d == nil {
			return &DefinitionError{Class: def.Name, Detail: fmt.Sprintf("element %d is nil", i)}
		}
		if d.Kind == KindClass {
			return &DefinitionError{Class: def.Name, Detail: "class descriptor among elements"}
		}
		if d.Hidden {
			if d.Identity == nil {
				return &DefinitionError{Class: def.Name, Detail: "hidden element without identity"}
			}
			if prev, ok := hidden[d.Identity]; ok {
				if !accessorPair(prev, d.Kind) {
					return &DefinitionError{
						Class:  def.Name,
						Detail: fmt.Sprintf("duplicate hidden identity %s", d.Identity),
					}
				}
			}
			hidden[d.Identity] = d.Kind
			continue
		}
		if d.Name == "" {
			return &DefinitionError{Class: def.Name, Detail: "public element without name"}
		}
		key := elementKey{name: d.Name, static: d.Static}
		s := public[key]
		if s == nil {
			s = &seen{kinds: make(map[Kind]bool)}
			public[key] = s
		}
		if err := checkCoexistence(def.Name, d, s.kinds); err != nil {
			return err
		}
		s.kinds[d.Kind] = true
	}
	return nil
}

// accessorPair reports whether two kinds form a coalescing getter/setter pair.
func accessorPair(a, b Kind) bool {
	return (a == KindGetter && b == KindSetter) || (a == KindSetter && b == KindGetter)
}

// checkCoexistence applies the public (name, static) collision rules: only
// a getter/setter pair may share a name.
func checkCoexistence(class string, d *Descriptor, kinds map[Kind]bool) error {
	placement := "instance"
	if d.Static {
		placement = "static"
	}
	if kinds[d.Kind] {
		return &DefinitionError{
			Class:  class,
			Detail: fmt.Sprintf("duplicate %s %s %q", placement, d.Kind, d.Name),
		}
	}
	for k := range kinds {
		if !accessorPair(k, d.Kind) {
			return &DefinitionError{
				Class:  class,
				Detail: fmt.Sprintf("%s %s %q collides with a %s of the same name", placement, d.Kind, d.Name, k),
			}
		}
	}
	return nil
}
