package engine

// ---------------------------------------------------------------------------
// Capability tokens for hidden elements
// ---------------------------------------------------------------------------

// Access is a capability token: an opaque get/set handle bound to one hidden
// element of one class. It is the only channel through which code outside
// the declaring lexical scope may touch a hidden element. A decorator that
// receives an Access in its context may capture and re-share it; that is the
// sole sanctioned leak path.
//
// Tokens are late-bound, not snapshots: Get and Set read the element's
// currently installed behavior through the committed class's element table
// at call time, so a token issued before a later decorator replaced the
// element's accessor pair observes the replacement.
type Access struct {
	class *Class
	id    *Identity
}

// issueAccess creates the token for one hidden element. The class shell may
// still be staged; the token stays unusable until the shell commits.
func issueAccess(class *Class, id *Identity) *Access {
	return &Access{class: class, id: id}
}

// Identity returns the hidden element's identity. The identity is opaque:
// it grants no access by itself.
func (a *Access) Identity() *Identity { return a.id }

// Get reads the hidden element off recv, triggering whatever accessor
// behavior is currently installed. For hidden methods it returns the
// installed function value.
func (a *Access) Get(recv Value) (Value, error) {
	e, err := a.resolve(recv)
	if err != nil {
		return nil, err
	}
	return readElement(e, recv)
}

// Set writes the hidden element on recv, triggering installed setter
// behavior for accessor elements.
func (a *Access) Set(recv Value, v Value) error {
	e, err := a.resolve(recv)
	if err != nil {
		return err
	}
	return writeElement(e, recv, v)
}

// resolve performs the commit and lineage checks, then returns the
// currently installed element.
func (a *Access) resolve(recv Value) (*element, error) {
	if !a.class.committed {
		return nil, &AccessError{Identity: a.id, Detail: "owning class has not committed"}
	}
	e, ok := a.class.hidden[a.id]
	if !ok {
		return nil, &AccessError{Identity: a.id, Detail: "element not installed on owning class"}
	}
	if e.static {
		cls, ok := recv.(*Class)
		if !ok || !cls.IsSubclassOf(a.class) {
			return nil, &AccessError{Identity: a.id, Detail: "receiver is not the owning class or a subclass"}
		}
		return e, nil
	}
	inst, ok := recv.(*Instance)
	if !ok || !inst.class.IsSubclassOf(a.class) {
		return nil, &AccessError{Identity: a.id, Detail: "receiver was not constructed by the owning lineage"}
	}
	return e, nil
}
