package engine

import "fmt"

// ---------------------------------------------------------------------------
// Decorator references and chain evaluation
// ---------------------------------------------------------------------------

// Resolver resolves a decorator reference name to a callable transformer.
// It models the external module system: a pure lookup returning either a
// transformer or a resolution failure. The engine threads it explicitly
// through evaluation instead of consulting any ambient namespace.
type Resolver interface {
	Resolve(name string) (Transformer, error)
}

// Ref is one decorator reference attached textually to a descriptor.
// Either Name is resolved through the definition's Resolver, or Expr is
// evaluated directly; Expr models an arbitrary reference expression and may
// have side effects, which later references can observe because evaluation
// order is fixed.
type Ref struct {
	Name string
	Expr func(res Resolver) (Transformer, error)
}

// Use wraps an already-resolved transformer as a reference.
func Use(t Transformer) Ref {
	return Ref{Expr: func(Resolver) (Transformer, error) { return t, nil }}
}

// Named references a transformer by name, to be resolved during Evaluating.
func Named(name string) Ref { return Ref{Name: name} }

// evaluateChains resolves every decorator reference of a definition, in
// strict textual order: the class's own chain first (it is written outermost),
// then each element's chain in source order, left to right. It fails fast
// with ResolutionError before any transformer anywhere runs.
func evaluateChains(def *ClassDef, res Resolver) (classChain []Transformer, elemChains [][]Transformer, err error) {
	classChain, err = resolveChain(def.Decorators, res)
	if err != nil {
		return nil, nil, err
	}
	elemChains = make([][]Transformer, len(def.Elements))
	for i, d := range def.Elements {
		elemChains[i], err = resolveChain(d.Decorators, res)
		if err != nil {
			return nil, nil, err
		}
	}
	return classChain, elemChains, nil
}

// resolveChain resolves one chain in source order.
func resolveChain(refs []Ref, res Resolver) ([]Transformer, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	chain := make([]Transformer, len(refs))
	for i, ref := range refs {
		t, err := resolveRef(ref, res)
		if err != nil {
			return nil, err
		}
		chain[i] = t
	}
	return chain, nil
}

// resolveRef resolves a single reference to a callable transformer.
func resolveRef(ref Ref, res Resolver) (Transformer, error) {
	if ref.Expr != nil {
		t, err := ref.Expr(res)
		if err != nil {
			return nil, &ResolutionError{Name: ref.Name, Err: err}
		}
		if t == nil {
			return nil, &ResolutionError{Name: ref.Name, Err: fmt.Errorf("reference expression produced no callable")}
		}
		return t, nil
	}
	if res == nil {
		return nil, &ResolutionError{Name: ref.Name, Err: fmt.Errorf("no resolver supplied")}
	}
	t, err := res.Resolve(ref.Name)
	if err != nil {
		return nil, &ResolutionError{Name: ref.Name, Err: err}
	}
	if t == nil {
		return nil, &ResolutionError{Name: ref.Name, Err: fmt.Errorf("resolved to no callable")}
	}
	return t, nil
}
