package engine

import (
	"crypto/sha256"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Content-addressed class digests
// ---------------------------------------------------------------------------

// ElementDigest is the structural summary of one installed element.
type ElementDigest struct {
	Kind     string `cbor:"kind"`
	Name     string `cbor:"name,omitempty"`
	Identity string `cbor:"identity,omitempty"`
	Spelling string `cbor:"spelling,omitempty"`
	Static   bool   `cbor:"static,omitempty"`
	Hidden   bool   `cbor:"hidden,omitempty"`
}

// ClassDigest is a compact, content-addressed representation of a committed
// class: its structural metadata, element summaries in declaration order,
// and the shape of both metadata records. Behavior (functions) is not part
// of the digest; digests identify shapes, not code.
type ClassDigest struct {
	Name             string          `cbor:"name"`
	Namespace        string          `cbor:"namespace,omitempty"`
	SuperclassName   string          `cbor:"superclass,omitempty"`
	Elements         []ElementDigest `cbor:"elements"`
	StaticMetaKeys   []string        `cbor:"staticMetaKeys,omitempty"`   // sorted
	InstanceMetaKeys []string        `cbor:"instanceMetaKeys,omitempty"` // sorted
	StaticSlots      int             `cbor:"staticSlots,omitempty"`
	InstanceSlots    int             `cbor:"instanceSlots,omitempty"`
	Hash             [32]byte        `cbor:"hash"`
}

// DigestClass computes the digest of a committed class.
func DigestClass(c *Class) *ClassDigest {
	d := &ClassDigest{
		Name:      c.Name,
		Namespace: c.Namespace,
	}
	if c.Superclass != nil {
		d.SuperclassName = c.Superclass.FullName()
	}
	for _, e := range c.order {
		ed := ElementDigest{
			Kind:   e.kind.String(),
			Name:   e.name,
			Static: e.static,
			Hidden: e.hidden,
		}
		if e.identity != nil {
			ed.Identity = e.identity.WireID()
			ed.Spelling = e.identity.Spelling()
		}
		d.Elements = append(d.Elements, ed)
	}
	d.StaticMetaKeys = sortedKeys(c.metaStatic)
	d.InstanceMetaKeys = sortedKeys(c.metaInstance)
	if c.metaStatic != nil {
		d.StaticSlots = len(c.metaStatic.Private)
	}
	if c.metaInstance != nil {
		d.InstanceSlots = len(c.metaInstance.Private)
	}
	d.Hash = d.computeHash()
	return d
}

// sortedKeys returns a record's public keys in sorted order, for
// deterministic hashing.
func sortedKeys(r *MetadataRecord) []string {
	if r == nil || len(r.Public) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.Public))
	for k := range r.Public {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// computeHash hashes the digest's canonical CBOR form, excluding the hash
// field itself.
func (d *ClassDigest) computeHash() [32]byte {
	shadow := *d
	shadow.Hash = [32]byte{}
	data, err := marshalCanonical(&shadow)
	if err != nil {
		// Digest fields are all CBOR-encodable by construction.
		panic("engine: digest encoding failed: " + err.Error())
	}
	return sha256.Sum256(data)
}

// FullName returns the digest's fully qualified class name.
func (d *ClassDigest) FullName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "::" + d.Name
}

// ---------------------------------------------------------------------------
// DigestStore: content-addressed digest index
// ---------------------------------------------------------------------------

// DigestStore indexes class digests by content hash and by fully qualified
// name. It is thread-safe; entries are never mutated after insertion.
type DigestStore struct {
	mu     sync.RWMutex
	byHash map[[32]byte]*ClassDigest
	byName map[string][32]byte
}

// NewDigestStore creates an empty digest store.
func NewDigestStore() *DigestStore {
	return &DigestStore{
		byHash: make(map[[32]byte]*ClassDigest),
		byName: make(map[string][32]byte),
	}
}

// Put inserts a digest, replacing any previous digest for the same name.
func (s *DigestStore) Put(d *ClassDigest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[d.Hash] = d
	s.byName[d.FullName()] = d.Hash
}

// GetByHash returns the digest with the given content hash.
func (s *DigestStore) GetByHash(hash [32]byte) (*ClassDigest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byHash[hash]
	return d, ok
}

// GetByName returns the current digest for a fully qualified class name.
func (s *DigestStore) GetByName(name string) (*ClassDigest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.byHash[hash], true
}

// Names returns all indexed class names, sorted.
func (s *DigestStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct digests stored.
func (s *DigestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash)
}
