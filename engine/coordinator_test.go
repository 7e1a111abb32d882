package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// suffix wraps a method so its string result gains "-tag".
func suffix(tag string) Transformer {
	return func(p Payload, ctx *Context) (*Payload, error) {
		inner := p.Method
		return &Payload{Method: func(recv Value, args ...Value) Value {
			return inner(recv, args...).(string) + "-" + tag
		}}, nil
	}
}

// mapResolver resolves names out of a plain map.
type mapResolver map[string]Transformer

func (m mapResolver) Resolve(name string) (Transformer, error) {
	t, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown decorator %q", name)
	}
	return t, nil
}

func mustDefine(t *testing.T, def *ClassDef, res Resolver) *Class {
	t.Helper()
	c, err := Define(def, res)
	if err != nil {
		t.Fatalf("Define(%s) failed: %v", def.Name, err)
	}
	return c
}

func mustNew(t *testing.T, c *Class) *Instance {
	t.Helper()
	inst, err := c.New()
	if err != nil {
		t.Fatalf("New(%s) failed: %v", c.Name, err)
	}
	return inst
}

// ---------------------------------------------------------------------------
// Chain invocation order
// ---------------------------------------------------------------------------

func TestInnermostDecoratorRunsFirst(t *testing.T) {
	// Source order is outermost first, so the chain [g, f] has f innermost.
	cls := mustDefine(t, &ClassDef{
		Name: "Greeter",
		Elements: []*Descriptor{
			Method("greet", func(recv Value, args ...Value) Value {
				return "base"
			}, Use(suffix("g")), Use(suffix("f"))),
		},
	}, nil)

	inst := mustNew(t, cls)
	got, err := inst.Call("greet")
	if err != nil {
		t.Fatalf("Call(greet) failed: %v", err)
	}
	if got != "base-f-g" {
		t.Errorf("greet = %q, want %q", got, "base-f-g")
	}
}

func TestNilReturnKeepsCurrentPayload(t *testing.T) {
	observer := func(p Payload, ctx *Context) (*Payload, error) {
		return nil, nil
	}
	cls := mustDefine(t, &ClassDef{
		Name: "Greeter",
		Elements: []*Descriptor{
			Method("greet", func(recv Value, args ...Value) Value {
				return "base"
			}, Use(observer), Use(suffix("f"))),
		},
	}, nil)

	inst := mustNew(t, cls)
	got, _ := inst.Call("greet")
	if got != "base-f" {
		t.Errorf("greet = %q, want %q", got, "base-f")
	}
}

func TestOuterDecoratorSeesInnerReplacement(t *testing.T) {
	var seen []string
	record := func(tag string) Transformer {
		return func(p Payload, ctx *Context) (*Payload, error) {
			seen = append(seen, tag+"="+p.Method(nil).(string))
			inner := p.Method
			return &Payload{Method: func(recv Value, args ...Value) Value {
				return inner(recv, args...).(string) + "-" + tag
			}}, nil
		}
	}
	mustDefine(t, &ClassDef{
		Name: "Greeter",
		Elements: []*Descriptor{
			Method("greet", func(recv Value, args ...Value) Value {
				return "base"
			}, Use(record("outer")), Use(record("inner"))),
		},
	}, nil)

	want := []string{"inner=base", "outer=base-inner"}
	if len(seen) != len(want) {
		t.Fatalf("invocations = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("invocation %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestClassChainRunsAfterElements(t *testing.T) {
	var order []string
	elemDec := func(p Payload, ctx *Context) (*Payload, error) {
		order = append(order, "element")
		return nil, nil
	}
	classDec := func(p Payload, ctx *Context) (*Payload, error) {
		order = append(order, "class")
		if p.Class == nil {
			t.Error("class decorator payload has no class")
		}
		return nil, nil
	}
	mustDefine(t, &ClassDef{
		Name:       "Widget",
		Decorators: []Ref{Use(classDec)},
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil }, Use(elemDec)),
		},
	}, nil)

	if strings.Join(order, ",") != "element,class" {
		t.Errorf("invocation order = %v, want element before class", order)
	}
}

// ---------------------------------------------------------------------------
// Failure atomicity
// ---------------------------------------------------------------------------

func TestResolutionFailureBeforeAnyTransformerRuns(t *testing.T) {
	ran := false
	res := mapResolver{
		"present": func(p Payload, ctx *Context) (*Payload, error) {
			ran = true
			return nil, nil
		},
	}
	_, err := Define(&ClassDef{
		Name: "Broken",
		Elements: []*Descriptor{
			Method("a", func(recv Value, args ...Value) Value { return nil }, Named("present")),
			Method("b", func(recv Value, args ...Value) Value { return nil }, Named("missing")),
		},
	}, res)

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want *ResolutionError", err)
	}
	if resErr.Name != "missing" {
		t.Errorf("ResolutionError.Name = %q, want %q", resErr.Name, "missing")
	}
	if ran {
		t.Error("a transformer ran despite a resolution failure elsewhere")
	}
}

func TestReferenceExpressionsEvaluateInTextualOrder(t *testing.T) {
	var order []string
	ref := func(tag string) Ref {
		return Ref{Expr: func(Resolver) (Transformer, error) {
			order = append(order, tag)
			return func(p Payload, ctx *Context) (*Payload, error) { return nil, nil }, nil
		}}
	}
	mustDefine(t, &ClassDef{
		Name:       "Ordered",
		Decorators: []Ref{ref("class-1"), ref("class-2")},
		Elements: []*Descriptor{
			Method("a", func(recv Value, args ...Value) Value { return nil }, ref("a-1"), ref("a-2")),
			Field("b", nil, ref("b-1")),
		},
	}, nil)

	want := "class-1,class-2,a-1,a-2,b-1"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("evaluation order = %q, want %q", got, want)
	}
}

func TestTransformerErrorAbortsDefinition(t *testing.T) {
	boom := errors.New("boom")
	_, err := Define(&ClassDef{
		Name: "Exploder",
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil },
				Use(func(p Payload, ctx *Context) (*Payload, error) { return nil, boom })),
		},
	}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped boom", err)
	}
	if err == nil || !strings.Contains(err.Error(), "Exploder") {
		t.Errorf("error %v does not name the class", err)
	}
}

// ---------------------------------------------------------------------------
// Shape validation
// ---------------------------------------------------------------------------

func TestMethodDecoratorCannotReturnInitializer(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "Bad",
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil },
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					return &Payload{Init: func(recv Value) Value { return nil }}, nil
				})),
		},
	}, nil)
	var shape *ShapeViolation
	if !errors.As(err, &shape) {
		t.Fatalf("error = %v, want *ShapeViolation", err)
	}
	if shape.Kind != KindMethod {
		t.Errorf("ShapeViolation.Kind = %v, want method", shape.Kind)
	}
}

func TestFieldDecoratorCannotReturnCallable(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "Bad",
		Elements: []*Descriptor{
			Field("f", nil,
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					return &Payload{Method: func(recv Value, args ...Value) Value { return nil }}, nil
				})),
		},
	}, nil)
	var shape *ShapeViolation
	if !errors.As(err, &shape) {
		t.Fatalf("error = %v, want *ShapeViolation", err)
	}
}

func TestSecondInitialValueSupplyFails(t *testing.T) {
	supply := func(v Value) Transformer {
		return func(p Payload, ctx *Context) (*Payload, error) {
			return &Payload{Init: func(recv Value) Value { return v }}, nil
		}
	}
	_, err := Define(&ClassDef{
		Name: "Bad",
		Elements: []*Descriptor{
			Field("f", nil, Use(supply(1)), Use(supply(2))),
		},
	}, nil)
	var dup *DuplicateInitializationError
	if !errors.As(err, &dup) {
		t.Fatalf("error = %v, want *DuplicateInitializationError", err)
	}
	if dup.Name != "f" {
		t.Errorf("DuplicateInitializationError.Name = %q, want %q", dup.Name, "f")
	}
}

func TestSingleInitialValueSupplyWins(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Point",
		Elements: []*Descriptor{
			Field("x", func(recv Value) Value { return 1 },
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					return &Payload{Init: func(recv Value) Value { return 42 }}, nil
				})),
		},
	}, nil)
	inst := mustNew(t, cls)
	got, _ := inst.Get("x")
	if got != 42 {
		t.Errorf("x = %v, want 42", got)
	}
}

// ---------------------------------------------------------------------------
// Fields, accessors, statics
// ---------------------------------------------------------------------------

func TestFieldInitialValuePerInstance(t *testing.T) {
	count := 0
	cls := mustDefine(t, &ClassDef{
		Name: "Counter",
		Elements: []*Descriptor{
			Field("n", func(recv Value) Value {
				count++
				return count
			}),
		},
	}, nil)

	a := mustNew(t, cls)
	b := mustNew(t, cls)
	av, _ := a.Get("n")
	bv, _ := b.Get("n")
	if av != 1 || bv != 2 {
		t.Errorf("initial values = %v, %v, want 1, 2", av, bv)
	}

	if err := a.Set("n", 99); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	av, _ = a.Get("n")
	bv, _ = b.Get("n")
	if av != 99 || bv != 2 {
		t.Errorf("after Set: values = %v, %v, want 99, 2", av, bv)
	}
}

func TestAutoAccessorDefaultsRoundTrip(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Box",
		Elements: []*Descriptor{
			AutoAccessor("value", func(recv Value) Value { return "initial" }),
		},
	}, nil)
	inst := mustNew(t, cls)

	got, err := inst.Get("value")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "initial" {
		t.Errorf("value = %v, want %q", got, "initial")
	}
	if err := inst.Set("value", "updated"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ = inst.Get("value")
	if got != "updated" {
		t.Errorf("value = %v, want %q", got, "updated")
	}
}

func TestAutoAccessorDecoratorWrapsGetter(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Box",
		Elements: []*Descriptor{
			AutoAccessor("value", func(recv Value) Value { return "raw" },
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					get := p.Get
					return &Payload{Get: func(recv Value, args ...Value) Value {
						return "seen:" + get(recv).(string)
					}}, nil
				})),
		},
	}, nil)
	inst := mustNew(t, cls)
	got, _ := inst.Get("value")
	if got != "seen:raw" {
		t.Errorf("value = %v, want %q", got, "seen:raw")
	}
}

func TestGetterSetterCoalesce(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Temp",
		Elements: []*Descriptor{
			Field("celsius", func(recv Value) Value { return 0 }),
			Getter("fahrenheit", func(recv Value, args ...Value) Value {
				c, _ := recv.(*Instance).Get("celsius")
				return c.(int)*9/5 + 32
			}),
			Setter("fahrenheit", func(recv Value, args ...Value) Value {
				recv.(*Instance).Set("celsius", (args[0].(int)-32)*5/9)
				return nil
			}),
		},
	}, nil)
	inst := mustNew(t, cls)

	got, err := inst.Get("fahrenheit")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 32 {
		t.Errorf("fahrenheit = %v, want 32", got)
	}
	if err := inst.Set("fahrenheit", 212); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	c, _ := inst.Get("celsius")
	if c != 100 {
		t.Errorf("celsius = %v, want 100", c)
	}
}

func TestStaticElements(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Registry",
		Elements: []*Descriptor{
			StaticField("count", func(recv Value) Value { return 0 }),
			StaticMethod("bump", func(recv Value, args ...Value) Value {
				c := recv.(*Class)
				n, _ := c.StaticGet("count")
				c.StaticSet("count", n.(int)+1)
				return nil
			}),
		},
	}, nil)

	n, err := cls.StaticGet("count")
	if err != nil {
		t.Fatalf("StaticGet failed: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %v, want 0", n)
	}
	if _, err := cls.CallStatic("bump"); err != nil {
		t.Fatalf("CallStatic failed: %v", err)
	}
	n, _ = cls.StaticGet("count")
	if n != 1 {
		t.Errorf("count = %v, want 1", n)
	}
}

func TestStaticFieldProducerReceivesClass(t *testing.T) {
	var recvSeen Value
	cls := mustDefine(t, &ClassDef{
		Name: "Tagged",
		Elements: []*Descriptor{
			StaticField("tag", func(recv Value) Value {
				recvSeen = recv
				return recv.(*Class).Name
			}),
		},
	}, nil)
	if recvSeen != cls {
		t.Error("static producer receiver is not the committed class")
	}
	tag, _ := cls.StaticGet("tag")
	if tag != "Tagged" {
		t.Errorf("tag = %v, want %q", tag, "Tagged")
	}
}

// ---------------------------------------------------------------------------
// Initializer checkpoints
// ---------------------------------------------------------------------------

func TestInitializerCheckpointOrdering(t *testing.T) {
	var order []string
	addInit := func(tag string) Transformer {
		return func(p Payload, ctx *Context) (*Payload, error) {
			ctx.AddInitializer(func(recv Value) { order = append(order, tag) })
			return nil, nil
		}
	}
	cls := mustDefine(t, &ClassDef{
		Name:       "Lifecycle",
		Decorators: []Ref{Use(addInit("class"))},
		Elements: []*Descriptor{
			StaticMethod("sm", func(recv Value, args ...Value) Value { return nil }, Use(addInit("static"))),
			StaticField("sf", func(recv Value) Value {
				order = append(order, "static-field")
				return nil
			}),
			Method("m", func(recv Value, args ...Value) Value { return nil }, Use(addInit("instance"))),
		},
	}, nil)

	// Static-element, then class-level, then static field values: all once,
	// during Applying. No instance-level callback has run yet.
	want := "static,class,static-field"
	if got := strings.Join(order, ","); got != want {
		t.Fatalf("apply order = %q, want %q", got, want)
	}

	mustNew(t, cls)
	mustNew(t, cls)
	want = "static,class,static-field,instance,instance"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order after two instances = %q, want %q", got, want)
	}
}

func TestInstanceInitializersRunBeforeFieldValues(t *testing.T) {
	var order []string
	cls := mustDefine(t, &ClassDef{
		Name: "Seq",
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil },
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					ctx.AddInitializer(func(recv Value) { order = append(order, "method-init") })
					return nil, nil
				})),
			Field("f", func(recv Value) Value {
				order = append(order, "field-value")
				return nil
			},
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					ctx.AddInitializer(func(recv Value) { order = append(order, "field-init") })
					return nil, nil
				})),
		},
	}, nil)

	mustNew(t, cls)
	want := "method-init,field-init,field-value"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("construction order = %q, want %q", got, want)
	}
}

func TestSetterInitializerOnCoalescedPair(t *testing.T) {
	// The setter declaration coalesces into the getter's installed element;
	// initializers registered by its decorators must survive the merge.
	ran := 0
	cls := mustDefine(t, &ClassDef{
		Name: "Pair",
		Elements: []*Descriptor{
			Getter("x", func(recv Value, args ...Value) Value { return 1 }),
			Setter("x", func(recv Value, args ...Value) Value { return nil },
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					ctx.AddInitializer(func(recv Value) { ran++ })
					return nil, nil
				})),
		},
	}, nil)

	mustNew(t, cls)
	if ran != 1 {
		t.Fatalf("setter-registered initializer ran %d times after one instance, want 1", ran)
	}
	mustNew(t, cls)
	if ran != 2 {
		t.Errorf("setter-registered initializer ran %d times after two instances, want 2", ran)
	}
}

func TestHiddenPairInitializerSurvivesCoalescing(t *testing.T) {
	id := NewIdentity("x")
	ran := 0
	cls := mustDefine(t, &ClassDef{
		Name: "HiddenPair",
		Elements: []*Descriptor{
			{Kind: KindGetter, Hidden: true, Identity: id,
				Method: func(recv Value, args ...Value) Value { return 1 }},
			{Kind: KindSetter, Hidden: true, Identity: id,
				Method: func(recv Value, args ...Value) Value { return nil },
				Decorators: []Ref{Use(func(p Payload, ctx *Context) (*Payload, error) {
					ctx.AddInitializer(func(recv Value) { ran++ })
					return nil, nil
				})}},
		},
	}, nil)

	mustNew(t, cls)
	if ran != 1 {
		t.Errorf("hidden-pair initializer ran %d times, want 1", ran)
	}
}

func TestInheritedConstructionRunsRootFirst(t *testing.T) {
	var order []string
	field := func(tag string) *Descriptor {
		return Field(tag, func(recv Value) Value {
			order = append(order, tag)
			return nil
		})
	}
	base := mustDefine(t, &ClassDef{
		Name:     "Base",
		Elements: []*Descriptor{field("base-a"), field("base-b")},
	}, nil)
	sub := mustDefine(t, &ClassDef{
		Name:       "Sub",
		Superclass: base,
		Elements:   []*Descriptor{field("sub-a")},
	}, nil)

	order = nil
	mustNew(t, sub)
	want := "base-a,base-b,sub-a"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("construction order = %q, want %q", got, want)
	}
}

// ---------------------------------------------------------------------------
// Class decorators and replacement
// ---------------------------------------------------------------------------

func TestClassDecoratorReplacesClass(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Plain",
		Decorators: []Ref{Use(func(p Payload, ctx *Context) (*Payload, error) {
			return &Payload{Class: Derive(p.Class, "Enhanced")}, nil
		})},
		Elements: []*Descriptor{
			Field("x", func(recv Value) Value { return 7 }),
		},
	}, nil)

	if cls.Name != "Enhanced" {
		t.Errorf("Name = %q, want %q", cls.Name, "Enhanced")
	}
	if !cls.Committed() {
		t.Error("replacement class is not committed")
	}
	if cls.Superclass == nil || cls.Superclass.Name != "Plain" {
		t.Error("replacement does not derive from the staged class")
	}

	inst := mustNew(t, cls)
	got, err := inst.Get("x")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 7 {
		t.Errorf("x = %v, want 7", got)
	}
}

func TestClassDecoratorBadReplacement(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "Plain",
		Decorators: []Ref{Use(func(p Payload, ctx *Context) (*Payload, error) {
			return &Payload{Method: func(recv Value, args ...Value) Value { return nil }}, nil
		})},
	}, nil)
	var shape *ShapeViolation
	if !errors.As(err, &shape) {
		t.Fatalf("error = %v, want *ShapeViolation", err)
	}
	if shape.Kind != KindClass {
		t.Errorf("ShapeViolation.Kind = %v, want class", shape.Kind)
	}
}

func TestUncommittedClassCannotConstruct(t *testing.T) {
	base := mustDefine(t, &ClassDef{Name: "Base"}, nil)
	derived := Derive(base, "Pending")
	if _, err := derived.New(); err == nil {
		t.Error("New on an uncommitted class should fail")
	}
}

// ---------------------------------------------------------------------------
// Metadata
// ---------------------------------------------------------------------------

func TestMetadataSides(t *testing.T) {
	annotate := func(key string, v Value) Transformer {
		return func(p Payload, ctx *Context) (*Payload, error) {
			ctx.DefineMetadata(key, v)
			return nil, nil
		}
	}
	cls := mustDefine(t, &ClassDef{
		Name:       "Annotated",
		Decorators: []Ref{Use(annotate("doc", "class doc"))},
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil }, Use(annotate("m", 1))),
			StaticMethod("s", func(recv Value, args ...Value) Value { return nil }, Use(annotate("s", 2))),
		},
	}, nil)

	if v, ok := cls.StaticMetadata().Get("doc"); !ok || v != "class doc" {
		t.Errorf("static doc = %v, %v; want class doc", v, ok)
	}
	if v, ok := cls.StaticMetadata().Get("s"); !ok || v != 2 {
		t.Errorf("static s = %v, %v; want 2", v, ok)
	}
	if v, ok := cls.InstanceMetadata().Get("m"); !ok || v != 1 {
		t.Errorf("instance m = %v, %v; want 1", v, ok)
	}
	if _, ok := cls.InstanceMetadata().Get("doc"); ok {
		t.Error("class-level metadata leaked to the instance side")
	}
}

func TestMetadataLaterWinsWithinChain(t *testing.T) {
	annotate := func(v Value) Transformer {
		return func(p Payload, ctx *Context) (*Payload, error) {
			ctx.DefineMetadata("k", v)
			return nil, nil
		}
	}
	// Innermost runs first, so the outermost (first in source) writes last.
	cls := mustDefine(t, &ClassDef{
		Name: "C",
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil },
				Use(annotate("outer")), Use(annotate("inner"))),
		},
	}, nil)
	if v, _ := cls.InstanceMetadata().Get("k"); v != "outer" {
		t.Errorf("k = %v, want outer (last write wins)", v)
	}
}

func TestMetadataInheritance(t *testing.T) {
	annotate := func(key string, v Value) Transformer {
		return func(p Payload, ctx *Context) (*Payload, error) {
			ctx.DefineMetadata(key, v)
			return nil, nil
		}
	}
	base := mustDefine(t, &ClassDef{
		Name: "Base",
		Elements: []*Descriptor{
			Method("m", func(recv Value, args ...Value) Value { return nil },
				Use(annotate("shared", "base")), Use(annotate("base-only", true))),
		},
	}, nil)
	sub := mustDefine(t, &ClassDef{
		Name:       "Sub",
		Superclass: base,
		Elements: []*Descriptor{
			Method("n", func(recv Value, args ...Value) Value { return nil },
				Use(annotate("shared", "sub"))),
		},
	}, nil)

	if v, _ := sub.InstanceMetadata().Get("shared"); v != "sub" {
		t.Errorf("shared = %v, want sub", v)
	}
	if v, ok := sub.InstanceMetadata().Get("base-only"); !ok || v != true {
		t.Errorf("base-only = %v, %v; want true", v, ok)
	}
	// The superclass record is untouched.
	if v, _ := base.InstanceMetadata().Get("shared"); v != "base" {
		t.Errorf("base shared = %v, want base", v)
	}
}

func TestPrivateSlotsExistWithoutWrites(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Vault",
		Elements: []*Descriptor{
			HiddenField("secret", func(recv Value) Value { return nil }),
		},
	}, nil)

	private := cls.InstanceMetadata().Private
	if len(private) != 1 {
		t.Fatalf("private slots = %d, want 1", len(private))
	}
	if private[0].Identity.Spelling() != "secret" {
		t.Errorf("slot spelling = %q, want %q", private[0].Identity.Spelling(), "secret")
	}
	if len(private[0].Entries) != 0 {
		t.Errorf("slot entries = %v, want empty", private[0].Entries)
	}
}

func TestPrivateSlotsConcatenateAcrossInheritance(t *testing.T) {
	base := mustDefine(t, &ClassDef{
		Name: "Base",
		Elements: []*Descriptor{
			HiddenField("a", nil),
		},
	}, nil)
	sub := mustDefine(t, &ClassDef{
		Name:       "Sub",
		Superclass: base,
		Elements: []*Descriptor{
			HiddenField("b", nil),
			HiddenField("c", nil),
		},
	}, nil)

	private := sub.InstanceMetadata().Private
	if len(private) != 3 {
		t.Fatalf("private slots = %d, want 3", len(private))
	}
	spellings := []string{
		private[0].Identity.Spelling(),
		private[1].Identity.Spelling(),
		private[2].Identity.Spelling(),
	}
	if strings.Join(spellings, ",") != "a,b,c" {
		t.Errorf("slot order = %v, want superclass first", spellings)
	}
}

func TestHiddenElementMetadataLandsInSlot(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Vault",
		Elements: []*Descriptor{
			HiddenField("secret", nil,
				Use(func(p Payload, ctx *Context) (*Payload, error) {
					ctx.DefineMetadata("note", "written")
					return nil, nil
				})),
		},
	}, nil)

	rec := cls.InstanceMetadata()
	if _, ok := rec.Get("note"); ok {
		t.Error("hidden element metadata leaked into the public map")
	}
	slot := rec.Private[0]
	entries, ok := rec.PrivateFor(slot.Identity)
	if !ok || entries["note"] != "written" {
		t.Errorf("slot entries = %v, want note=written", entries)
	}
}

// ---------------------------------------------------------------------------
// Definition validation
// ---------------------------------------------------------------------------

func TestDuplicateFieldNameRejected(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "Bad",
		Elements: []*Descriptor{
			Field("x", nil),
			Field("x", nil),
		},
	}, nil)
	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("error = %v, want *DefinitionError", err)
	}
}

func TestFieldCollidesWithMethod(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "Bad",
		Elements: []*Descriptor{
			Method("x", func(recv Value, args ...Value) Value { return nil }),
			Field("x", nil),
		},
	}, nil)
	var defErr *DefinitionError
	if !errors.As(err, &defErr) {
		t.Fatalf("error = %v, want *DefinitionError", err)
	}
}

func TestMethodCannotShareNameWithGetter(t *testing.T) {
	for _, order := range [][]*Descriptor{
		{
			Method("x", func(recv Value, args ...Value) Value { return nil }),
			Getter("x", func(recv Value, args ...Value) Value { return nil }),
		},
		{
			Getter("x", func(recv Value, args ...Value) Value { return nil }),
			Method("x", func(recv Value, args ...Value) Value { return nil }),
		},
	} {
		_, err := Define(&ClassDef{Name: "Bad", Elements: order}, nil)
		var defErr *DefinitionError
		if !errors.As(err, &defErr) {
			t.Errorf("method+getter sharing a name: error = %v, want *DefinitionError", err)
		}
	}
}

func TestGetterSetterPairAllowed(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "OK",
		Elements: []*Descriptor{
			Getter("x", func(recv Value, args ...Value) Value { return nil }),
			Setter("x", func(recv Value, args ...Value) Value { return nil }),
		},
	}, nil)
	if err != nil {
		t.Errorf("getter/setter pair rejected: %v", err)
	}
}

func TestStaticAndInstanceNamesAreDisjoint(t *testing.T) {
	_, err := Define(&ClassDef{
		Name: "OK",
		Elements: []*Descriptor{
			Field("x", nil),
			StaticField("x", nil),
		},
	}, nil)
	if err != nil {
		t.Errorf("same name on both sides rejected: %v", err)
	}
}

func TestSameSpellingHiddenFieldsAreDistinct(t *testing.T) {
	cls := mustDefine(t, &ClassDef{
		Name: "Twins",
		Elements: []*Descriptor{
			HiddenField("x", func(recv Value) Value { return 1 }),
			HiddenField("x", func(recv Value) Value { return 2 }),
		},
	}, nil)
	if len(cls.InstanceMetadata().Private) != 2 {
		t.Errorf("slots = %d, want 2 distinct identities", len(cls.InstanceMetadata().Private))
	}
}
