// Package resource implements the decoder-generator's resource model (spec
// §4.B): named resources classified simple/complex, and the references an
// instruction makes to them. Grounded on mpact/sim/decoder/resource.{h,cc}.
package resource

import (
	"decodergen/internal/errors"
	"decodergen/internal/expr"
)

// pascalCase mirrors the generator's ToPascalCase helper well enough for
// identifier generation; it is intentionally small since the grammar/name
// rules themselves are out of scope (spec §1).
func pascalCase(name string) string {
	out := make([]byte, 0, len(name))
	upperNext := true
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' || c == '-' {
			upperNext = true
			continue
		}
		if upperNext && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upperNext = false
		out = append(out, c)
	}
	return string(out)
}

// Resource is a named abstract constraint. IsSimple starts true and is
// downgraded by AnalyzeResourceUse (spec §4.B) once any reference to it is
// found to have a non-zero begin cycle.
type Resource struct {
	Name        string
	PascalName  string
	IsSimple    bool
	IsMultiValued bool
}

func newResource(name string) *Resource {
	return &Resource{Name: name, PascalName: pascalCase(name), IsSimple: true}
}

// Factory owns every Resource created for one InstructionSet.
type Factory struct {
	byName map[string]*Resource
	all    []*Resource
}

func NewFactory() *Factory {
	return &Factory{byName: make(map[string]*Resource)}
}

// Create allocates a new resource, failing if the name already exists.
func (f *Factory) Create(name string) (*Resource, error) {
	if _, exists := f.byName[name]; exists {
		return nil, errors.New(errors.AlreadyExists, "resource %q already exists", name)
	}
	r := newResource(name)
	f.byName[name] = r
	f.all = append(f.all, r)
	return r, nil
}

// GetOrInsert returns the existing resource or creates it on demand.
func (f *Factory) GetOrInsert(name string) *Resource {
	if r, ok := f.byName[name]; ok {
		return r
	}
	r, _ := f.Create(name)
	return r
}

func (f *Factory) Get(name string) (*Resource, bool) {
	r, ok := f.byName[name]
	return r, ok
}

func (f *Factory) All() []*Resource { return f.all }

// DestOp is the minimal view of an opcode destination operand a
// ResourceReference needs to point at; opcode.DestinationOperand satisfies
// this interface without resource importing opcode (which would cycle).
type DestOp interface {
	Name() string
}

// Reference is a single use/acquire of a Resource by an instruction, with
// owned begin/end expressions (spec §3 "expressions are owned by the
// reference and deep-copied when a reference is re-instantiated").
type Reference struct {
	Resource *Resource
	IsArray  bool
	DestOp   DestOp
	Begin    expr.Expression // nil means "unspecified"
	End      expr.Expression
}

// DeepCopy clones the reference, deep-copying its owned expressions but only
// borrowing the Resource/DestOp pointers (mirrors ResourceReference's copy
// constructor in opcode.h).
func (r *Reference) DeepCopy() *Reference {
	cp := &Reference{Resource: r.Resource, IsArray: r.IsArray, DestOp: r.DestOp}
	if r.Begin != nil {
		cp.Begin = r.Begin.DeepCopy()
	}
	if r.End != nil {
		cp.End = r.End.DeepCopy()
	}
	return cp
}

// Evaluate returns a derived reference whose begin/end expressions have been
// evaluated against args, used by instruction.CreateDerivedInstruction.
func (r *Reference) Evaluate(args expr.Args) (*Reference, error) {
	cp := &Reference{Resource: r.Resource, IsArray: r.IsArray, DestOp: r.DestOp}
	if r.Begin != nil {
		e, err := r.Begin.Evaluate(args)
		if err != nil {
			return nil, err
		}
		cp.Begin = e
	}
	if r.End != nil {
		e, err := r.End.Evaluate(args)
		if err != nil {
			return nil, err
		}
		cp.End = e
	}
	return cp, nil
}

// AnalyzeResourceUse implements spec §4.B's simple/complex classification:
// for every reference, evaluate Begin; a non-zero result downgrades the
// resource to complex. End is evaluated only to validate it does not error
// (its value is discarded on purpose — see SPEC_FULL.md's note on the
// original's AnalyzeResourceUse, which does the same).
func AnalyzeResourceUse(refs []*Reference) error {
	for _, ref := range refs {
		if ref.Begin != nil {
			v, err := ref.Begin.Value()
			if err != nil {
				return err
			}
			if v.Int != 0 {
				ref.Resource.IsSimple = false
			}
		}
		if ref.End != nil {
			if _, err := ref.End.Value(); err != nil {
				return err
			}
		}
	}
	return nil
}
