package engine

// ---------------------------------------------------------------------------
// Metadata records
// ---------------------------------------------------------------------------

// PrivateSlot is one hidden element's metadata: the slot exists for every
// hidden element of a class, in declaration order, whether or not any
// decorator wrote to it. Entries are keyed by string within the slot; the
// slot itself is keyed by the element's opaque identity.
type PrivateSlot struct {
	Identity *Identity
	Entries  map[string]Value
}

// MetadataRecord is the committed, inheritance-aware annotation record for
// one side (static or instance) of one class.
//
// Public entries merge by name across inheritance with a later-wins policy:
// within a class the last Define for a key replaces earlier writes, and a
// subclass entry replaces the inherited entry under the same key. Private
// slots concatenate: the superclass's sequence first, then this class's own,
// preserving declaration order within each class.
type MetadataRecord struct {
	Public  map[string]Value
	Private []PrivateSlot
}

// Get returns the aggregated public value for key.
func (r *MetadataRecord) Get(key string) (Value, bool) {
	if r == nil || r.Public == nil {
		return nil, false
	}
	v, ok := r.Public[key]
	return v, ok
}

// PrivateFor returns the entries of the slot for the given identity.
func (r *MetadataRecord) PrivateFor(id *Identity) (map[string]Value, bool) {
	if r == nil {
		return nil, false
	}
	for _, slot := range r.Private {
		if slot.Identity == id {
			return slot.Entries, true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Aggregator: per-run metadata collection
// ---------------------------------------------------------------------------

// aggregator collects metadata writes during the Calling phase. It is
// append-only while Calling and frozen into two MetadataRecords at Applying;
// no transformer can observe an entry being retracted.
type aggregator struct {
	staticSide   *recordBuilder
	instanceSide *recordBuilder
}

type recordBuilder struct {
	public    map[string]Value
	slots     map[*Identity]*PrivateSlot
	slotOrder []*Identity
}

func newRecordBuilder() *recordBuilder {
	return &recordBuilder{
		public: make(map[string]Value),
		slots:  make(map[*Identity]*PrivateSlot),
	}
}

// newAggregator creates the per-run aggregator with one private slot per
// hidden element, in declaration order, on the element's side.
func newAggregator(elements []*Descriptor) *aggregator {
	a := &aggregator{
		staticSide:   newRecordBuilder(),
		instanceSide: newRecordBuilder(),
	}
	for _, d := range elements {
		if !d.Hidden {
			continue
		}
		side := a.instanceSide
		if d.Static {
			side = a.staticSide
		}
		if _, ok := side.slots[d.Identity]; ok {
			continue // coalescing getter/setter pair shares one slot
		}
		slot := &PrivateSlot{Identity: d.Identity, Entries: make(map[string]Value)}
		side.slots[d.Identity] = slot
		side.slotOrder = append(side.slotOrder, d.Identity)
	}
	return a
}

// define records one metadata write from a decorator invocation.
// Class-level writes land in the static-side public map.
func (a *aggregator) define(d *Descriptor, key string, value Value) {
	side := a.instanceSide
	if d == nil || d.Static {
		side = a.staticSide
	}
	if d != nil && d.Hidden {
		side.slots[d.Identity].Entries[key] = value
		return
	}
	side.public[key] = value
}

// finalize freezes one side into a committed record, extending the
// superclass's record: public entries merge later-wins, private sequences
// concatenate superclass-first.
func (b *recordBuilder) finalize(super *MetadataRecord) *MetadataRecord {
	rec := &MetadataRecord{Public: make(map[string]Value)}
	if super != nil {
		for k, v := range super.Public {
			rec.Public[k] = v
		}
		rec.Private = append(rec.Private, super.Private...)
	}
	for k, v := range b.public {
		rec.Public[k] = v
	}
	for _, id := range b.slotOrder {
		rec.Private = append(rec.Private, *b.slots[id])
	}
	return rec
}
