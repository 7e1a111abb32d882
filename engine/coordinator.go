package engine

import "fmt"

// ---------------------------------------------------------------------------
// Phase coordinator
// ---------------------------------------------------------------------------

// Phase is one state of the definition pipeline. Transitions are total and
// ordered: Evaluating → Calling → Applying → Committed. There is no
// branching and no retry; any failure before Committed discards the entire
// in-progress class.
type Phase int

const (
	PhaseEvaluating Phase = iota
	PhaseCalling
	PhaseApplying
	PhaseCommitted
)

// String implements the Stringer interface.
func (p Phase) String() string {
	switch p {
	case PhaseEvaluating:
		return "evaluating"
	case PhaseCalling:
		return "calling"
	case PhaseApplying:
		return "applying"
	case PhaseCommitted:
		return "committed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// definition is the transient state of one Evaluate → Call → Apply run.
// Each class definition run is an independent, self-contained pipeline
// instance: the engine is single-threaded and synchronous within a run, and
// no two runs share mutable state.
type definition struct {
	def    *ClassDef
	res    Resolver
	phase  Phase
	staged *Class
	sched  *scheduler
	meta   *aggregator
	tokens map[*Identity]*Access
}

// Define runs the full pipeline over one class definition and returns the
// committed class shape. On any error, nothing of the in-progress class is
// observable: the class is not returned, not registered anywhere, and its
// capability tokens never become usable.
func Define(def *ClassDef, res Resolver) (*Class, error) {
	if err := def.validate(); err != nil {
		return nil, err
	}
	run := &definition{
		def:    def,
		res:    res,
		staged: newStagedClass(def.Name, def.Namespace, def.Superclass),
		sched:  &scheduler{},
		meta:   newAggregator(def.Elements),
		tokens: make(map[*Identity]*Access),
	}
	return run.execute()
}

func (run *definition) execute() (*Class, error) {
	// Evaluating: resolve every decorator reference in textual order,
	// failing before any transformer runs.
	run.phase = PhaseEvaluating
	classChain, elemChains, err := evaluateChains(run.def, run.res)
	if err != nil {
		return nil, err
	}

	// Calling: invoke element chains innermost-first, elements in source
	// order; then the class's own chain against the assembled entity.
	run.phase = PhaseCalling
	for i, d := range run.def.Elements {
		e := stageElement(d, i)
		if err := run.callElementChain(d, e, elemChains[i]); err != nil {
			return nil, err
		}
		if canon := run.staged.install(e); canon != e {
			run.sched.adopt(e, canon)
		}
	}
	final, err := run.callClassChain(classChain)
	if err != nil {
		return nil, err
	}

	// Applying: one atomic commit of the finished shape, then the one-shot
	// initializer checkpoints, then static field evaluation.
	run.phase = PhaseApplying
	run.commit(final)
	run.sched.replay(LevelStatic, final)
	run.sched.replay(LevelClass, final)
	run.installStaticValues(final)

	run.phase = PhaseCommitted
	return final, nil
}

// ---------------------------------------------------------------------------
// Calling phase
// ---------------------------------------------------------------------------

// stageElement builds the initial installed form of a descriptor. For
// auto-accessors a backing identity and default get/set over it are
// installed before any decorator sees the payload.
func stageElement(d *Descriptor, decl int) *element {
	e := &element{
		kind:     d.Kind,
		name:     d.Name,
		identity: d.Identity,
		static:   d.Static,
		hidden:   d.Hidden,
		init:     d.Init,
		decl:     decl,
	}
	switch d.Kind {
	case KindMethod:
		e.method = d.Method
	case KindGetter:
		e.get = d.Method
	case KindSetter:
		e.set = d.Method
	case KindAutoAccessor:
		if e.identity == nil {
			e.identity = NewIdentity(d.Name)
		}
		e.get = d.Get
		e.set = d.Set
		if e.get == nil {
			e.get = storageGet(e)
		}
		if e.set == nil {
			e.set = storageSet(e)
		}
	case KindField, KindClass:
		// Field carries only its initial-value producer; KindClass never
		// reaches here (validated out of the element list).
	}
	return e
}

// storageGet returns the default auto-accessor getter over the backing slot.
func storageGet(e *element) Function {
	return func(recv Value, _ ...Value) Value {
		return loadStorage(e, recv)
	}
}

// storageSet returns the default auto-accessor setter over the backing slot.
func storageSet(e *element) Function {
	return func(recv Value, args ...Value) Value {
		if len(args) > 0 {
			storeStorage(e, recv, args[0])
		}
		return nil
	}
}

// token returns the run's capability token for a hidden element, issuing it
// on first use. One token exists per identity per run; it is shared across
// invocations and never retracted.
func (run *definition) token(id *Identity) *Access {
	t, ok := run.tokens[id]
	if !ok {
		t = issueAccess(run.staged, id)
		run.tokens[id] = t
	}
	return t
}

// callElementChain invokes one element's transformers innermost-first: the
// reference closest to the declaration (last in source order) runs first,
// receiving the raw payload; its replacement feeds the next one outward.
func (run *definition) callElementChain(d *Descriptor, e *element, chain []Transformer) error {
	initSupplied := false
	for i := len(chain) - 1; i >= 0; i-- {
		ctx := &Context{
			Kind:   d.Kind,
			Name:   d.Name,
			Static: d.Static,
			Hidden: d.Hidden,
			run:    run,
			desc:   d,
			elem:   e,
		}
		if d.Hidden {
			ctx.Access = run.token(d.Identity)
		}
		result, err := chain[i](currentPayload(e), ctx)
		if err != nil {
			return fmt.Errorf("engine: defining %s: %w", run.def.Name, err)
		}
		if result == nil {
			continue // keep current payload
		}
		if err := run.applyReplacement(d, e, result, &initSupplied); err != nil {
			return err
		}
	}
	return nil
}

// currentPayload snapshots the element's current payload for one invocation.
func currentPayload(e *element) Payload {
	p := Payload{Kind: e.kind}
	switch e.kind {
	case KindMethod:
		p.Method = e.method
	case KindGetter:
		p.Method = e.get
	case KindSetter:
		p.Method = e.set
	case KindField:
		p.Init = e.init
	case KindAutoAccessor:
		p.Get = e.get
		p.Set = e.set
		p.Init = e.init
	case KindClass:
		// class payloads are built in callClassChain
	}
	return p
}

// applyReplacement validates a transformer's returned payload against the
// element's kind and folds it into the staged element.
func (run *definition) applyReplacement(d *Descriptor, e *element, p *Payload, initSupplied *bool) error {
	name := e.describe()
	switch d.Kind {
	case KindMethod, KindGetter, KindSetter:
		if p.Method == nil || p.Get != nil || p.Set != nil || p.Init != nil || p.Class != nil {
			return &ShapeViolation{Kind: d.Kind, Name: name, Detail: "expected a callable replacement"}
		}
		switch d.Kind {
		case KindMethod:
			e.method = p.Method
		case KindGetter:
			e.get = p.Method
		case KindSetter:
			e.set = p.Method
		}
		return nil
	case KindField:
		if p.Init == nil || p.Method != nil || p.Get != nil || p.Set != nil || p.Class != nil {
			return &ShapeViolation{Kind: d.Kind, Name: name, Detail: "expected an initial-value producer"}
		}
		if *initSupplied {
			return &DuplicateInitializationError{Name: name}
		}
		*initSupplied = true
		e.init = p.Init
		return nil
	case KindAutoAccessor:
		if p.Method != nil || p.Class != nil {
			return &ShapeViolation{Kind: d.Kind, Name: name, Detail: "expected a get/set/init replacement"}
		}
		if p.Get == nil && p.Set == nil && p.Init == nil {
			return &ShapeViolation{Kind: d.Kind, Name: name, Detail: "replacement supplies nothing"}
		}
		if p.Init != nil {
			if *initSupplied {
				return &DuplicateInitializationError{Name: name}
			}
			*initSupplied = true
			e.init = p.Init
		}
		if p.Get != nil {
			e.get = p.Get
		}
		if p.Set != nil {
			e.set = p.Set
		}
		return nil
	default:
		return &ShapeViolation{Kind: d.Kind, Name: name, Detail: "undecoratable kind"}
	}
}

// callClassChain runs the class's own transformers innermost-first against
// the fully assembled (but not yet finalized) class. A transformer may
// return a replacement class, typically built with Derive.
func (run *definition) callClassChain(chain []Transformer) (*Class, error) {
	current := run.staged
	for i := len(chain) - 1; i >= 0; i-- {
		ctx := &Context{Kind: KindClass, run: run}
		result, err := chain[i](Payload{Kind: KindClass, Class: current}, ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: defining %s: %w", run.def.Name, err)
		}
		if result == nil {
			continue
		}
		if result.Class == nil || result.Method != nil || result.Get != nil || result.Set != nil || result.Init != nil {
			return nil, &ShapeViolation{Kind: KindClass, Name: run.def.Name, Detail: "expected a constructible replacement"}
		}
		current = result.Class
	}
	return current, nil
}

// ---------------------------------------------------------------------------
// Applying phase
// ---------------------------------------------------------------------------

// commit freezes the staged shape in one atomic step: metadata records are
// finalized against the superclass's, the instance construction plan is
// attached, and the class becomes committed. If the class chain produced a
// replacement, the replacement is sealed alongside the staged class it
// derives from.
func (run *definition) commit(final *Class) {
	var superStatic, superInstance *MetadataRecord
	if run.def.Superclass != nil {
		superStatic = run.def.Superclass.metaStatic
		superInstance = run.def.Superclass.metaInstance
	}
	staged := run.staged
	staged.metaStatic = run.meta.staticSide.finalize(superStatic)
	staged.metaInstance = run.meta.instanceSide.finalize(superInstance)
	staged.steps = run.sched.instanceSteps(staged.order)
	staged.committed = true

	if final != staged && !final.committed {
		final.metaStatic = staged.metaStatic
		final.metaInstance = staged.metaInstance
		final.committed = true
	}
}

// installStaticValues evaluates and installs static field values, in
// declaration order, after the initializer checkpoints have run.
func (run *definition) installStaticValues(final *Class) {
	for _, e := range run.staged.order {
		if !e.static || !e.kind.fieldLike() {
			continue
		}
		var v Value
		if e.init != nil {
			v = e.init(final)
		}
		storeStorage(e, final, v)
	}
}
