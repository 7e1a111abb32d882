package engine

import "fmt"

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------
//
// All definition-time errors (DefinitionError, ResolutionError,
// ShapeViolation, DuplicateInitializationError) abort the entire class
// definition; no partially-decorated class is ever observable. AccessError
// is a runtime error local to one capability invocation and does not affect
// the already-completed definition.

// DefinitionError reports a structurally invalid descriptor tree, detected
// before any decorator reference is resolved.
type DefinitionError struct {
	Class  string
	Detail string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("engine: invalid definition of %s: %s", e.Class, e.Detail)
}

// ResolutionError reports a decorator reference that did not resolve to a
// callable transformer. Raised during the Evaluating phase, before any
// transformer anywhere has run.
type ResolutionError struct {
	Name string // the reference spelling, if known
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("engine: decorator reference did not resolve: %v", e.Err)
	}
	return fmt.Sprintf("engine: decorator %q did not resolve: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ShapeViolation reports a transformer return value that is not
// kind-compatible with the element it decorated, or a class transformer
// returning a non-constructible value.
type ShapeViolation struct {
	Kind   Kind
	Name   string // element name or hidden spelling
	Detail string
}

func (e *ShapeViolation) Error() string {
	return fmt.Sprintf("engine: decorator on %s %q returned an incompatible value: %s", e.Kind, e.Name, e.Detail)
}

// DuplicateInitializationError reports a second transformer in one chain
// attempting to supply a field's initial-value producer, where only one
// supply per chain is permitted.
type DuplicateInitializationError struct {
	Name string
}

func (e *DuplicateInitializationError) Error() string {
	return fmt.Sprintf("engine: more than one decorator supplied an initial value for %q", e.Name)
}

// AccessError reports a capability token invoked outside its owning
// lineage, before its class committed, or against a non-matching element.
type AccessError struct {
	Identity *Identity
	Detail   string
}

func (e *AccessError) Error() string {
	if e.Identity == nil {
		return fmt.Sprintf("engine: access denied: %s", e.Detail)
	}
	return fmt.Sprintf("engine: access to %s denied: %s", e.Identity, e.Detail)
}
