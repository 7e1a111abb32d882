// Package manifest handles garland.toml project configuration and the TOML
// class declaration files it points at. Declaration files are the external
// parser's output format: descriptor trees with decorator and payload
// references by name, resolved through a resolver.Context at build time.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/garland-lang/garland/engine"
	"github.com/garland-lang/garland/resolver"
)

// Manifest represents a garland.toml project configuration.
type Manifest struct {
	Project     Project     `toml:"project" json:"project"`
	Store       StoreConfig `toml:"store" json:"store,omitempty"`
	Definitions []string    `toml:"definitions" json:"definitions,omitempty"`

	// Dir is the directory containing the garland.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Project contains project metadata.
type Project struct {
	Name      string `toml:"name" json:"name"`
	Namespace string `toml:"namespace" json:"namespace,omitempty"`
	Version   string `toml:"version" json:"version,omitempty"`
}

// StoreConfig configures digest persistence.
type StoreConfig struct {
	Path string `toml:"path" json:"path,omitempty"`
}

// Load parses a garland.toml file from the given directory and validates it
// against the manifest schema.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "garland.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a garland.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", startDir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "garland.toml")); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// ---------------------------------------------------------------------------
// Class declarations
// ---------------------------------------------------------------------------

// Declarations is the top level of one declaration file.
type Declarations struct {
	Classes []ClassDecl `toml:"class" json:"class"`
}

// ClassDecl declares one class: the descriptor tree in source order plus
// the class's own decorator chain, everything referenced by name.
type ClassDecl struct {
	Name       string        `toml:"name" json:"name" cbor:"name"`
	Namespace  string        `toml:"namespace" json:"namespace,omitempty" cbor:"namespace,omitempty"`
	Superclass string        `toml:"superclass" json:"superclass,omitempty" cbor:"superclass,omitempty"`
	Decorators []string      `toml:"decorators" json:"decorators,omitempty" cbor:"decorators,omitempty"`
	Elements   []ElementDecl `toml:"element" json:"element,omitempty" cbor:"elements,omitempty"`
}

// ElementDecl declares one element. Kind is one of method, getter, setter,
// field, accessor. Function names the payload callable for method-like
// kinds; Producer names the initial-value producer for field-like kinds;
// Initial is a literal alternative to Producer.
type ElementDecl struct {
	Kind       string   `toml:"kind" json:"kind" cbor:"kind"`
	Name       string   `toml:"name" json:"name,omitempty" cbor:"name,omitempty"`
	Static     bool     `toml:"static" json:"static,omitempty" cbor:"static,omitempty"`
	Hidden     bool     `toml:"hidden" json:"hidden,omitempty" cbor:"hidden,omitempty"`
	Function   string   `toml:"function" json:"function,omitempty" cbor:"function,omitempty"`
	Producer   string   `toml:"producer" json:"producer,omitempty" cbor:"producer,omitempty"`
	Initial    any      `toml:"initial" json:"initial,omitempty" cbor:"initial,omitempty"`
	Decorators []string `toml:"decorators" json:"decorators,omitempty" cbor:"decorators,omitempty"`
}

// LoadDeclarations reads and validates every declaration file the manifest
// names, in manifest order.
func (m *Manifest) LoadDeclarations() ([]ClassDecl, error) {
	var all []ClassDecl
	for _, rel := range m.Definitions {
		path := filepath.Join(m.Dir, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		var decls Declarations
		if err := toml.Unmarshal(data, &decls); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
		if err := ValidateDeclarations(&decls); err != nil {
			return nil, fmt.Errorf("invalid declarations in %s: %w", path, err)
		}
		all = append(all, decls.Classes...)
	}
	return all, nil
}

// ---------------------------------------------------------------------------
// Building engine definitions
// ---------------------------------------------------------------------------

// Build turns a declaration into an engine.ClassDef, resolving payload
// references through the resolution context and the superclass through the
// class table. Decorator names stay unresolved; the engine's Evaluating
// phase resolves them with its fail-fast ordering guarantees.
func (d *ClassDecl) Build(rctx *resolver.Context, classes *engine.ClassTable) (*engine.ClassDef, error) {
	def := &engine.ClassDef{
		Name:       d.Name,
		Namespace:  d.Namespace,
		Decorators: namedRefs(d.Decorators),
	}
	if d.Superclass != "" {
		super := classes.Lookup(d.Superclass)
		if super == nil {
			return nil, fmt.Errorf("manifest: class %s: unknown superclass %q", d.Name, d.Superclass)
		}
		def.Superclass = super
	}
	for i := range d.Elements {
		desc, err := d.Elements[i].build(d.Name, rctx)
		if err != nil {
			return nil, err
		}
		def.Elements = append(def.Elements, desc)
	}
	return def, nil
}

func (e *ElementDecl) build(class string, rctx *resolver.Context) (*engine.Descriptor, error) {
	desc := &engine.Descriptor{
		Name:       e.Name,
		Static:     e.Static,
		Hidden:     e.Hidden,
		Decorators: namedRefs(e.Decorators),
	}
	if e.Hidden {
		desc.Name = ""
		desc.Identity = engine.NewIdentity(e.Name)
	}

	switch e.Kind {
	case "method":
		desc.Kind = engine.KindMethod
	case "getter":
		desc.Kind = engine.KindGetter
	case "setter":
		desc.Kind = engine.KindSetter
	case "field":
		desc.Kind = engine.KindField
	case "accessor":
		desc.Kind = engine.KindAutoAccessor
	default:
		return nil, fmt.Errorf("manifest: class %s: unknown element kind %q", class, e.Kind)
	}

	switch desc.Kind {
	case engine.KindMethod, engine.KindGetter, engine.KindSetter:
		fn, err := rctx.Function(e.Function)
		if err != nil {
			return nil, fmt.Errorf("manifest: class %s element %q: %w", class, e.Name, err)
		}
		desc.Method = fn
	case engine.KindField, engine.KindAutoAccessor:
		init, err := e.initialProducer(class, rctx)
		if err != nil {
			return nil, err
		}
		desc.Init = init
	}
	return desc, nil
}

// initialProducer builds the field's initial-value producer from either a
// named producer function or a literal.
func (e *ElementDecl) initialProducer(class string, rctx *resolver.Context) (engine.Producer, error) {
	if e.Producer != "" {
		fn, err := rctx.Function(e.Producer)
		if err != nil {
			return nil, fmt.Errorf("manifest: class %s element %q: %w", class, e.Name, err)
		}
		return func(recv engine.Value) engine.Value { return fn(recv) }, nil
	}
	if e.Initial != nil {
		literal := e.Initial
		return func(engine.Value) engine.Value { return literal }, nil
	}
	return nil, nil
}

func namedRefs(names []string) []engine.Ref {
	if len(names) == 0 {
		return nil
	}
	refs := make([]engine.Ref, len(names))
	for i, n := range names {
		refs[i] = engine.Named(n)
	}
	return refs
}
