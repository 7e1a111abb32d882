package engine

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Installed elements
// ---------------------------------------------------------------------------

// element is one installed class element: the final, decorated shape of a
// descriptor. Getter/setter descriptors with the same public (name, static)
// key coalesce into one element at install time.
type element struct {
	kind     Kind
	name     string
	identity *Identity // non-nil for hidden elements and auto-accessor backing
	static   bool
	hidden   bool

	method Function
	get    Function
	set    Function
	init   Producer

	decl int // declaration index within the owning class
}

// describe returns the element's name for diagnostics.
func (e *element) describe() string {
	if e.hidden {
		return e.identity.String()
	}
	return e.name
}

// constructStep pairs an element with its scheduled instance-level
// initializers, in declaration order.
type constructStep struct {
	elem  *element
	inits []Initializer
}

// ---------------------------------------------------------------------------
// Class: committed class shape
// ---------------------------------------------------------------------------

// Class is the committed, frozen shape a class definition resolves to.
// It is assembled by the phase coordinator during Calling, finalized in one
// atomic step during Applying, and immutable afterwards.
type Class struct {
	Name       string
	Namespace  string
	Superclass *Class

	public map[elementKey]*element
	hidden map[*Identity]*element
	order  []*element // this class's own elements, declaration order

	staticValues       map[string]Value
	staticHiddenValues map[*Identity]Value

	metaStatic   *MetadataRecord
	metaInstance *MetadataRecord

	steps     []constructStep // instance-side construction plan
	committed bool
}

// newStagedClass allocates an empty, uncommitted class shell. The shell
// exists from the start of a definition run so capability tokens can bind
// to it before any element is installed; it stays unobservable until the
// Applying phase completes.
func newStagedClass(name, namespace string, superclass *Class) *Class {
	return &Class{
		Name:               name,
		Namespace:          namespace,
		Superclass:         superclass,
		public:             make(map[elementKey]*element),
		hidden:             make(map[*Identity]*element),
		staticValues:       make(map[string]Value),
		staticHiddenValues: make(map[*Identity]Value),
	}
}

// install commits one element into the class's tables, coalescing public
// getter/setter declarations that share a (name, static) key and hidden
// getter/setter declarations that share an identity. Returns the canonical
// installed element: the already installed half of a coalescing pair, or e
// itself.
func (c *Class) install(e *element) *element {
	if e.hidden {
		if prev, ok := c.hidden[e.identity]; ok && accessorPair(prev.kind, e.kind) {
			mergeAccessor(prev, e)
			return prev
		}
		c.hidden[e.identity] = e
		c.order = append(c.order, e)
		return e
	}
	key := elementKey{name: e.name, static: e.static}
	if prev, ok := c.public[key]; ok {
		mergeAccessor(prev, e)
		return prev
	}
	c.public[key] = e
	if e.identity != nil {
		// Auto-accessor backing slot is reachable by identity as well.
		c.hidden[e.identity] = e
	}
	c.order = append(c.order, e)
	return e
}

// mergeAccessor folds a coalescing getter/setter declaration into an
// installed element.
func mergeAccessor(dst, src *element) {
	if src.get != nil {
		dst.get = src.get
	}
	if src.set != nil {
		dst.set = src.set
	}
}

// lookup finds a public element by (name, static), walking the superclass
// chain. Returns nil if not found.
func (c *Class) lookup(name string, static bool) *element {
	key := elementKey{name: name, static: static}
	for current := c; current != nil; current = current.Superclass {
		if e, ok := current.public[key]; ok {
			return e
		}
	}
	return nil
}

// lookupHidden finds a hidden element by identity, walking the superclass
// chain. Returns the element and its declaring class.
func (c *Class) lookupHidden(id *Identity) (*element, *Class) {
	for current := c; current != nil; current = current.Superclass {
		if e, ok := current.hidden[id]; ok {
			return e, current
		}
	}
	return nil, nil
}

// IsSubclassOf returns true if c is other or a subclass of other.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Committed returns true once the class shape has been finalized.
func (c *Class) Committed() bool { return c.committed }

// StaticMetadata returns the committed static-side metadata record.
func (c *Class) StaticMetadata() *MetadataRecord { return c.metaStatic }

// InstanceMetadata returns the committed instance-side metadata record.
func (c *Class) InstanceMetadata() *MetadataRecord { return c.metaInstance }

// lineage returns the class chain from root superclass down to c.
func (c *Class) lineage() []*Class {
	var chain []*Class
	for current := c; current != nil; current = current.Superclass {
		chain = append(chain, current)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// FullName returns the fully qualified class name (namespace::name or name).
func (c *Class) FullName() string {
	if c.Namespace == "" {
		return c.Name
	}
	return c.Namespace + "::" + c.Name
}

// String implements the Stringer interface.
func (c *Class) String() string { return c.FullName() }

// ---------------------------------------------------------------------------
// Static element access
// ---------------------------------------------------------------------------

// CallStatic invokes a static method by name.
func (c *Class) CallStatic(name string, args ...Value) (Value, error) {
	e := c.lookup(name, true)
	if e == nil || e.method == nil {
		return nil, fmt.Errorf("engine: %s does not understand static %q", c.FullName(), name)
	}
	return e.method(c, args...), nil
}

// StaticGet reads a static field or invokes a static getter.
func (c *Class) StaticGet(name string) (Value, error) {
	e := c.lookup(name, true)
	if e == nil {
		return nil, fmt.Errorf("engine: %s has no static element %q", c.FullName(), name)
	}
	return readElement(e, c)
}

// StaticSet writes a static field or invokes a static setter.
func (c *Class) StaticSet(name string, v Value) error {
	e := c.lookup(name, true)
	if e == nil {
		return fmt.Errorf("engine: %s has no static element %q", c.FullName(), name)
	}
	return writeElement(e, c, v)
}

// staticOwner finds the class in c's lineage that declared element e.
func (c *Class) staticOwner(e *element) *Class {
	for current := c; current != nil; current = current.Superclass {
		for _, own := range current.order {
			if own == e {
				return current
			}
		}
	}
	return c
}

// ---------------------------------------------------------------------------
// Instances
// ---------------------------------------------------------------------------

// Instance is one constructed object of a committed class. Field storage is
// split between public names and hidden identities; hidden storage is only
// reachable through lexical closures or issued capability tokens.
type Instance struct {
	class  *Class
	fields map[string]Value
	hidden map[*Identity]Value
}

// Class returns the instance's class.
func (i *Instance) Class() *Class { return i.class }

// New constructs an instance of a committed class, replaying the inherited
// construction sequence: each ancestor's instance-level scheduled
// initializers and field initial values run root-first, in declaration
// order within each class. Non-field element initializers run before that
// class's fields initialize; each field's own scheduled initializers run
// immediately before its value is computed.
func (c *Class) New() (*Instance, error) {
	if !c.committed {
		return nil, fmt.Errorf("engine: cannot construct %s: class not committed", c.FullName())
	}
	inst := &Instance{
		class:  c,
		fields: make(map[string]Value),
		hidden: make(map[*Identity]Value),
	}
	for _, ancestor := range c.lineage() {
		ancestor.constructOn(inst)
	}
	return inst, nil
}

// constructOn runs one class's slice of the construction sequence on inst.
func (c *Class) constructOn(inst *Instance) {
	for _, step := range c.steps {
		if step.elem != nil && step.elem.kind.fieldLike() {
			continue
		}
		for _, init := range step.inits {
			init(inst)
		}
	}
	for _, step := range c.steps {
		e := step.elem
		if e == nil || !e.kind.fieldLike() {
			continue
		}
		for _, init := range step.inits {
			init(inst)
		}
		var v Value
		if e.init != nil {
			v = e.init(inst)
		}
		inst.storeField(e, v)
	}
}

// storeField writes a field-like element's value into instance storage.
func (inst *Instance) storeField(e *element, v Value) {
	if e.identity != nil {
		inst.hidden[e.identity] = v
		return
	}
	inst.fields[e.name] = v
}

// Call invokes a public instance method by name.
func (i *Instance) Call(name string, args ...Value) (Value, error) {
	e := i.class.lookup(name, false)
	if e == nil || e.method == nil {
		return nil, fmt.Errorf("engine: %s does not understand %q", i.class.FullName(), name)
	}
	return e.method(i, args...), nil
}

// Get reads a public field or invokes a public getter.
func (i *Instance) Get(name string) (Value, error) {
	e := i.class.lookup(name, false)
	if e == nil {
		return nil, fmt.Errorf("engine: %s has no element %q", i.class.FullName(), name)
	}
	return readElement(e, i)
}

// Set writes a public field or invokes a public setter.
func (i *Instance) Set(name string, v Value) error {
	e := i.class.lookup(name, false)
	if e == nil {
		return fmt.Errorf("engine: %s has no element %q", i.class.FullName(), name)
	}
	return writeElement(e, i, v)
}

// readElement reads through an installed element with the given receiver,
// applying whatever accessor behavior is currently installed.
func readElement(e *element, recv Value) (Value, error) {
	switch e.kind {
	case KindField:
		return loadStorage(e, recv), nil
	case KindAutoAccessor, KindGetter, KindSetter:
		if e.get == nil {
			return nil, fmt.Errorf("engine: %s %q has no getter", e.kind, e.describe())
		}
		return e.get(recv), nil
	case KindMethod:
		return e.method, nil
	case KindClass:
		return nil, fmt.Errorf("engine: cannot read class element")
	default:
		return nil, fmt.Errorf("engine: cannot read %s %q", e.kind, e.describe())
	}
}

// writeElement writes through an installed element with the given receiver.
func writeElement(e *element, recv Value, v Value) error {
	switch e.kind {
	case KindField:
		storeStorage(e, recv, v)
		return nil
	case KindAutoAccessor, KindGetter, KindSetter:
		if e.set == nil {
			return fmt.Errorf("engine: %s %q has no setter", e.kind, e.describe())
		}
		e.set(recv, v)
		return nil
	default:
		return fmt.Errorf("engine: cannot write %s %q", e.kind, e.describe())
	}
}

// loadStorage reads an element's storage slot off the receiver.
func loadStorage(e *element, recv Value) Value {
	switch r := recv.(type) {
	case *Instance:
		if e.identity != nil {
			return r.hidden[e.identity]
		}
		return r.fields[e.name]
	case *Class:
		owner := r.staticOwner(e)
		if e.identity != nil {
			return owner.staticHiddenValues[e.identity]
		}
		return owner.staticValues[e.name]
	default:
		return nil
	}
}

// storeStorage writes an element's storage slot on the receiver.
func storeStorage(e *element, recv Value, v Value) {
	switch r := recv.(type) {
	case *Instance:
		if e.identity != nil {
			r.hidden[e.identity] = v
			return
		}
		r.fields[e.name] = v
	case *Class:
		owner := r.staticOwner(e)
		if e.identity != nil {
			owner.staticHiddenValues[e.identity] = v
			return
		}
		owner.staticValues[e.name] = v
	}
}

// ---------------------------------------------------------------------------
// Class replacement support
// ---------------------------------------------------------------------------

// Derive returns a fresh, uncommitted subclass of base. It is the sanctioned
// way for a class decorator to produce a replacement class: the derivation
// inherits every installed element and the construction sequence of base and
// may be returned from the decorator as the committed result.
func Derive(base *Class, name string) *Class {
	d := newStagedClass(name, base.Namespace, base)
	return d
}

// ---------------------------------------------------------------------------
// ClassTable: committed class registry
// ---------------------------------------------------------------------------

// ClassTable manages committed classes by name. It is thread-safe and only
// accepts committed classes, so no observer can reach a class mid-definition.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{classes: make(map[string]*Class)}
}

// Register adds a committed class to the table. Returns the previous class
// registered under the same name, or nil. Registering an uncommitted class
// is an error.
func (ct *ClassTable) Register(c *Class) (*Class, error) {
	if !c.committed {
		return nil, fmt.Errorf("engine: cannot register uncommitted class %s", c.FullName())
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	key := c.FullName()
	old := ct.classes[key]
	ct.classes[key] = c
	return old, nil
}

// Lookup finds a class by fully qualified name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// LookupInNamespace finds a class by name and namespace.
func (ct *ClassTable) LookupInNamespace(namespace, name string) *Class {
	key := name
	if namespace != "" {
		key = namespace + "::" + name
	}
	return ct.Lookup(key)
}

// Has returns true if a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	return ct.Lookup(name) != nil
}

// All returns all registered classes.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}
