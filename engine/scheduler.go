package engine

// ---------------------------------------------------------------------------
// Initializer scheduler
// ---------------------------------------------------------------------------

// Level is the attachment level of a scheduled initializer.
type Level int

const (
	// LevelInstance initializers replay once per constructed instance,
	// including once per subclass instance.
	LevelInstance Level = iota
	// LevelStatic initializers replay exactly once, during Applying,
	// before class-level initializers.
	LevelStatic
	// LevelClass initializers replay exactly once, during Applying,
	// after static-element-level initializers.
	LevelClass
)

// String implements the Stringer interface.
func (l Level) String() string {
	switch l {
	case LevelInstance:
		return "instance"
	case LevelStatic:
		return "static"
	case LevelClass:
		return "class"
	default:
		return "unknown"
	}
}

// scheduleEntry is one registered callback, tagged with its attachment
// level, the element whose decoration registered it (nil for class-level),
// and its registration sequence.
type scheduleEntry struct {
	level Level
	elem  *element
	seq   int
	cb    Initializer
}

// scheduler records deferred callbacks emitted during the Calling phase and
// replays them at fixed lifecycle checkpoints, in declaration order. One
// scheduler exists per definition run; it is append-only during Calling.
type scheduler struct {
	entries []scheduleEntry
}

// register stores a callback for later replay.
func (s *scheduler) register(level Level, elem *element, cb Initializer) {
	s.entries = append(s.entries, scheduleEntry{
		level: level,
		elem:  elem,
		seq:   len(s.entries),
		cb:    cb,
	})
}

// adopt re-points entries registered against a staged element that coalesced
// into an already installed one, so the pair's callbacks land on the
// canonical element's construction step.
func (s *scheduler) adopt(staged, installed *element) {
	for i := range s.entries {
		if s.entries[i].elem == staged {
			s.entries[i].elem = installed
		}
	}
}

// replay invokes all callbacks registered at the given level, in
// registration order, bound to recv. Used for the one-shot class and
// static-element checkpoints during Applying.
func (s *scheduler) replay(level Level, recv Value) {
	for _, e := range s.entries {
		if e.level == level {
			e.cb(recv)
		}
	}
}

// instanceSteps folds instance-level entries into the committed construction
// plan: one step per installed element in declaration order, carrying that
// element's callbacks in registration order.
func (s *scheduler) instanceSteps(order []*element) []constructStep {
	steps := make([]constructStep, 0, len(order))
	for _, e := range order {
		if e.static {
			continue
		}
		step := constructStep{elem: e}
		for _, entry := range s.entries {
			if entry.level == LevelInstance && entry.elem == e {
				step.inits = append(step.inits, entry.cb)
			}
		}
		steps = append(steps, step)
	}
	return steps
}
