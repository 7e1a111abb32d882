// Package resolver implements the name-resolution service the engine
// consults during the Evaluating phase: registries binding decorator names
// (and payload function names, for manifest-declared classes) to callables,
// plus an explicit resolution context that is threaded into the engine
// instead of any ambient namespace.
package resolver

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/garland-lang/garland/engine"
)

// cacheSize bounds the per-context cache of resolved names.
const cacheSize = 256

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry binds names to transformers and payload functions. Names may be
// namespace-qualified ("ns::name"); a registry created with a namespace
// also answers the bare name for its own bindings.
type Registry struct {
	namespace string

	mu           sync.RWMutex
	transformers map[string]engine.Transformer
	functions    map[string]engine.Function
}

// NewRegistry creates an empty registry for the given namespace
// (empty for the default namespace).
func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:    namespace,
		transformers: make(map[string]engine.Transformer),
		functions:    make(map[string]engine.Function),
	}
}

// Namespace returns the registry's namespace.
func (r *Registry) Namespace() string { return r.namespace }

// RegisterTransformer binds a decorator name.
// Returns an error if the name is already bound.
func (r *Registry) RegisterTransformer(name string, t engine.Transformer) error {
	if t == nil {
		return fmt.Errorf("resolver: transformer %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transformers[name]; ok {
		return fmt.Errorf("resolver: transformer %q already registered", r.qualify(name))
	}
	r.transformers[name] = t
	return nil
}

// RegisterFunction binds a payload function name, used by loaders that
// declare methods and initializers by name.
func (r *Registry) RegisterFunction(name string, fn engine.Function) error {
	if fn == nil {
		return fmt.Errorf("resolver: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.functions[name]; ok {
		return fmt.Errorf("resolver: function %q already registered", r.qualify(name))
	}
	r.functions[name] = fn
	return nil
}

// lookupTransformer answers a (possibly qualified) name.
func (r *Registry) lookupTransformer(name string) (engine.Transformer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.transformers[name]; ok {
		return t, true
	}
	if local, ok := r.unqualify(name); ok {
		t, ok := r.transformers[local]
		return t, ok
	}
	return nil, false
}

// lookupFunction answers a (possibly qualified) name.
func (r *Registry) lookupFunction(name string) (engine.Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.functions[name]; ok {
		return fn, true
	}
	if local, ok := r.unqualify(name); ok {
		fn, ok := r.functions[local]
		return fn, ok
	}
	return nil, false
}

// qualify returns the fully qualified form of a local name.
func (r *Registry) qualify(name string) string {
	if r.namespace == "" {
		return name
	}
	return r.namespace + "::" + name
}

// unqualify strips this registry's namespace prefix, if present.
func (r *Registry) unqualify(name string) (string, bool) {
	if r.namespace == "" {
		return "", false
	}
	prefix := r.namespace + "::"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):], true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Context
// ---------------------------------------------------------------------------

// Context is one resolution context: an ordered chain of registries where
// earlier registries shadow later ones (local scope first, imports after).
// It implements engine.Resolver. Resolution results are cached per context,
// which is sound because registries are append-only: a name, once resolved,
// cannot be rebound through this context.
type Context struct {
	scopes []*Registry
	cache  *lru.Cache[string, engine.Transformer]
}

// NewContext creates a resolution context over the given registries,
// earliest shadowing latest.
func NewContext(scopes ...*Registry) (*Context, error) {
	cache, err := lru.New[string, engine.Transformer](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("resolver: create cache: %w", err)
	}
	return &Context{scopes: scopes, cache: cache}, nil
}

// Resolve implements engine.Resolver.
func (c *Context) Resolve(name string) (engine.Transformer, error) {
	if t, ok := c.cache.Get(name); ok {
		return t, nil
	}
	for _, scope := range c.scopes {
		if t, ok := scope.lookupTransformer(name); ok {
			c.cache.Add(name, t)
			return t, nil
		}
	}
	return nil, fmt.Errorf("resolver: %q is not bound in any scope", name)
}

// Function resolves a payload function name through the scope chain.
func (c *Context) Function(name string) (engine.Function, error) {
	for _, scope := range c.scopes {
		if fn, ok := scope.lookupFunction(name); ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("resolver: function %q is not bound in any scope", name)
}
