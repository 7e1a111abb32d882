package engine

// ---------------------------------------------------------------------------
// Decorator invocation context
// ---------------------------------------------------------------------------

// Payload is the value a decorator receives and may replace. Exactly the
// fields legal for the element's kind may be set on a returned payload:
//
//	Method/Getter/Setter:  Method
//	AutoAccessor:          Get, Set, Init (each optional)
//	Field:                 Init
//	Class:                 Class
//
// A nil return from a Transformer means "keep the current payload".
type Payload struct {
	Kind   Kind
	Method Function
	Get    Function
	Set    Function
	Init   Producer
	Class  *Class
}

// Transformer is a decorator: a function invoked during the Calling phase
// that may replace or augment one element or the whole class. Returning a
// non-nil error aborts the entire class definition.
type Transformer func(p Payload, ctx *Context) (*Payload, error)

// Context is the record passed to every decorator invocation alongside the
// current payload. A fresh Context is created per invocation; mutating it
// does not leak to the next decorator's context. The only state shared
// across invocations within one run flows through AddInitializer,
// DefineMetadata, and Access.
type Context struct {
	Kind   Kind
	Name   string // empty for hidden elements and the class itself
	Static bool
	Hidden bool

	// Access is the capability token for the decorated element.
	// Present only for hidden elements.
	Access *Access

	run  *definition
	desc *Descriptor // nil for the class's own chain
	elem *element    // nil for the class's own chain
}

// AddInitializer registers a deferred callback. The attachment level follows
// the decorated element: class decorators register class-level callbacks,
// static-element decorators static-element-level, everything else
// instance-element-level. Callbacks are recorded now and replayed at the
// matching lifecycle checkpoint, never earlier.
func (c *Context) AddInitializer(cb Initializer) {
	level := LevelInstance
	switch {
	case c.Kind == KindClass:
		level = LevelClass
	case c.Static:
		level = LevelStatic
	}
	c.run.sched.register(level, c.elem, cb)
}

// DefineMetadata records one annotation key/value for the decorated
// element's side and visibility. Entries are aggregated at commit; see
// MetadataRecord for the merge policy.
func (c *Context) DefineMetadata(key string, value Value) {
	c.run.meta.define(c.desc, key, value)
}
