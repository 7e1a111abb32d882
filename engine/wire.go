package engine

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// CBOR wire encoding
// ---------------------------------------------------------------------------

// cborEncMode uses canonical mode for deterministic encoding, so equal
// digests and records always serialize to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("engine: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// marshalCanonical serializes any value with the canonical encoder.
func marshalCanonical(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// MarshalClassDigest serializes a ClassDigest to CBOR bytes.
func MarshalClassDigest(d *ClassDigest) ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalClassDigest deserializes a ClassDigest from CBOR bytes.
func UnmarshalClassDigest(data []byte) (*ClassDigest, error) {
	var d ClassDigest
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("engine: unmarshal class digest: %w", err)
	}
	return &d, nil
}

// ---------------------------------------------------------------------------
// Metadata wire form
// ---------------------------------------------------------------------------

// WireSlot is the wire form of one private metadata slot. Identities travel
// as their stable wire IDs; receiving them grants no access.
type WireSlot struct {
	Identity string           `cbor:"identity"`
	Spelling string           `cbor:"spelling,omitempty"`
	Entries  map[string]Value `cbor:"entries,omitempty"`
}

// WireMetadata is the wire form of one committed metadata record. Only
// CBOR-encodable entry values survive the trip; runtime-only values such as
// capability tokens or functions make MarshalMetadata fail, which is the
// caller's cue to keep those entries engine-local.
type WireMetadata struct {
	Class   string           `cbor:"class"`
	Side    string           `cbor:"side"` // "static" or "instance"
	Public  map[string]Value `cbor:"public,omitempty"`
	Private []WireSlot       `cbor:"private,omitempty"`
}

// MetadataWire converts a committed record into its wire form.
func MetadataWire(class, side string, r *MetadataRecord) *WireMetadata {
	w := &WireMetadata{Class: class, Side: side}
	if r == nil {
		return w
	}
	if len(r.Public) > 0 {
		w.Public = make(map[string]Value, len(r.Public))
		for k, v := range r.Public {
			w.Public[k] = v
		}
	}
	for _, slot := range r.Private {
		ws := WireSlot{
			Identity: slot.Identity.WireID(),
			Spelling: slot.Identity.Spelling(),
		}
		if len(slot.Entries) > 0 {
			ws.Entries = make(map[string]Value, len(slot.Entries))
			for k, v := range slot.Entries {
				ws.Entries[k] = v
			}
		}
		w.Private = append(w.Private, ws)
	}
	return w
}

// MarshalMetadata serializes a metadata wire record to CBOR bytes.
func MarshalMetadata(w *WireMetadata) ([]byte, error) {
	data, err := cborEncMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("engine: marshal metadata for %s: %w", w.Class, err)
	}
	return data, nil
}

// UnmarshalMetadata deserializes a metadata wire record from CBOR bytes.
func UnmarshalMetadata(data []byte) (*WireMetadata, error) {
	var w WireMetadata
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("engine: unmarshal metadata: %w", err)
	}
	return &w, nil
}
