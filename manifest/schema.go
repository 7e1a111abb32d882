package manifest

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ---------------------------------------------------------------------------
// CUE schemas
// ---------------------------------------------------------------------------

// manifestSchema constrains garland.toml after TOML decoding.
const manifestSchema = `
#Manifest: {
	project: {
		name:       string & !=""
		namespace?: string
		version?:   string
	}
	store?: {
		path?: string
	}
	definitions?: [...string & !=""]
}
`

// declarationsSchema constrains one class declaration file.
const declarationsSchema = `
#Element: {
	kind: "method" | "getter" | "setter" | "field" | "accessor"
	name?:     string
	static?:   bool
	hidden?:   bool
	function?: string
	producer?: string
	initial?:  _
	decorators?: [...string & !=""]
}

#Class: {
	name:        string & !=""
	namespace?:  string
	superclass?: string
	decorators?: [...string & !=""]
	element?: [...#Element]
}

#Declarations: {
	class?: [...#Class]
}
`

// Validate checks the decoded manifest against the manifest schema.
func (m *Manifest) Validate() error {
	return validateAgainst(manifestSchema, "#Manifest", m)
}

// ValidateDeclarations checks a decoded declaration file against the
// declarations schema.
func ValidateDeclarations(d *Declarations) error {
	return validateAgainst(declarationsSchema, "#Declarations", d)
}

// validateAgainst unifies a Go value with a schema definition and reports
// any constraint violation.
func validateAgainst(schema, def string, value any) error {
	ctx := cuecontext.New()

	compiled := ctx.CompileString(schema)
	if err := compiled.Err(); err != nil {
		return fmt.Errorf("manifest: compile schema: %w", err)
	}
	target := compiled.LookupPath(cue.ParsePath(def))
	if err := target.Err(); err != nil {
		return fmt.Errorf("manifest: schema %s: %w", def, err)
	}

	encoded := ctx.Encode(value)
	if err := encoded.Err(); err != nil {
		return fmt.Errorf("manifest: encode for validation: %w", err)
	}

	if err := target.Unify(encoded).Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("manifest: schema violation: %w", err)
	}
	return nil
}
