// Package builder implements the visitor-facing IR builder (spec §4.G):
// the ordered set of calls a parse-tree visitor makes while walking one ISA
// description, in the order the grammar requires. The grammar and its
// parse-tree node types are out of scope (spec §1) — this package is the
// boundary the visitor calls into, not the visitor itself. Grounded on
// mpact/sim/decoder/instruction_set_visitor.h's method list (VisitTopLevel,
// VisitIsaDeclaration, VisitIncludeFile, VisitSlotDeclaration, ...), adapted
// into a Go API a hand-written or generated visitor can drive directly.
package builder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"decodergen/internal/errors"
	"decodergen/internal/expr"
	"decodergen/internal/instruction"
	"decodergen/internal/isa"
	"decodergen/internal/opcode"
	"decodergen/internal/slot"
)

// FileSource is one resolved input file: a top-level description file or a
// transitively included one.
type FileSource struct {
	Path     string
	Contents []byte
}

// Builder accumulates one ISA description's IR as a visitor drives it,
// resolving names, detecting recursive includes, and reporting every
// diagnostic it can recover from through a shared Listener rather than
// aborting on the first error (spec §7).
type Builder struct {
	BuildID string

	Listener *errors.Listener

	globalConstants map[string]expr.Expression

	includeStack []string
	includeSeen  map[string]bool

	instructionSet *isa.InstructionSet
}

// New creates a Builder tagged with a fresh build ID, used to correlate a
// diagnostic summary with the corresponding internal/cache row from the
// same invocation.
func New() *Builder {
	return &Builder{
		BuildID:         uuid.NewString(),
		Listener:        errors.NewListener(),
		globalConstants: make(map[string]expr.Expression),
		includeSeen:     make(map[string]bool),
	}
}

// ResolveInputs reads every path concurrently with an errgroup — reading
// bytes off disk is independent of ingest order — but returns them in the
// same order the caller supplied, since IR ingest itself must stay strictly
// sequential and document-ordered (spec §5(iii)).
func ResolveInputs(ctx context.Context, paths []string, readFile func(string) ([]byte, error)) ([]FileSource, error) {
	sources := make([]FileSource, len(paths))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			contents, err := readFile(p)
			if err != nil {
				return fmt.Errorf("reading %s: %w", p, err)
			}
			sources[i] = FileSource{Path: p, Contents: contents}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

// PushInclude records that path is now being processed, reporting a
// "recursive include" diagnostic if it is already on the stack.
func (b *Builder) PushInclude(path string) error {
	if b.includeSeen[path] {
		err := errors.New(errors.InvalidArgument, "recursive include of %q (include stack: %v)", path, b.includeStack)
		b.Listener.ReportError(err)
		return err
	}
	b.includeSeen[path] = true
	b.includeStack = append(b.includeStack, path)
	return nil
}

// PopInclude closes out the include most recently opened by PushInclude.
func (b *Builder) PopInclude() {
	if len(b.includeStack) == 0 {
		return
	}
	last := b.includeStack[len(b.includeStack)-1]
	b.includeStack = b.includeStack[:len(b.includeStack)-1]
	delete(b.includeSeen, last)
}

// DeclareGlobalConstant records a file-global named constant, rejecting
// redefinitions.
func (b *Builder) DeclareGlobalConstant(name string, expression expr.Expression) error {
	if _, ok := b.globalConstants[name]; ok {
		err := errors.New(errors.AlreadyExists, "redefinition of global constant %q", name)
		b.Listener.ReportError(err)
		return err
	}
	b.globalConstants[name] = expression
	return nil
}

func (b *Builder) GlobalConstant(name string) (expr.Expression, bool) {
	e, ok := b.globalConstants[name]
	return e, ok
}

// DeclareISA creates the InstructionSet for this build. Only one ISA
// declaration is supported per builder, matching the grammar's "one isa per
// top-level file" shape.
func (b *Builder) DeclareISA(name string) *isa.InstructionSet {
	b.instructionSet = isa.New(name)
	return b.instructionSet
}

func (b *Builder) InstructionSet() *isa.InstructionSet { return b.instructionSet }

// DeclareNamespace prepends name to the instruction set's namespace chain,
// in the order nested namespace declarations are visited (outermost last).
func (b *Builder) DeclareNamespace(name string) {
	if b.instructionSet == nil {
		return
	}
	b.instructionSet.PrependNamespace(name)
}

// DeclareBundle creates and registers a new bundle on the active
// instruction set.
func (b *Builder) DeclareBundle(name string) *isa.Bundle {
	bd := isa.NewBundle(name, b.instructionSet)
	b.instructionSet.AddBundle(bd)
	return bd
}

// DeclareSlot creates and registers a new slot, sharing the instruction
// set's opcode and resource factories. This is pass one of the two-pass
// slot contract described in SPEC_FULL.md: every slot named anywhere in the
// description is declared before any slot's base list is bound, so a
// forward reference to a base slot declared later in the file resolves.
func (b *Builder) DeclareSlot(name string, isTemplated bool) *slot.Slot {
	s := slot.New(name, b.instructionSet.OpcodeFactory(), b.instructionSet.ResourceFactory(), isTemplated)
	b.instructionSet.AddSlot(s)
	return s
}

// BindSlotBases is pass two: resolve every base-slot name against slots
// already declared (by DeclareSlot) and attach them, enforcing the
// tree-only inheritance invariant through slot.Slot.AddBase.
func (b *Builder) BindSlotBases(s *slot.Slot, baseNames []string) error {
	for _, baseName := range baseNames {
		base := b.instructionSet.GetSlot(baseName)
		if base == nil {
			err := errors.New(errors.NotFound, "base slot %q not declared", baseName)
			b.Listener.ReportError(err)
			return err
		}
		if err := s.AddBase(base); err != nil {
			b.Listener.ReportError(err)
			return err
		}
	}
	return nil
}

// BindTemplatedSlotBase resolves and attaches a single templated base slot,
// instantiated with arguments.
func (b *Builder) BindTemplatedSlotBase(s *slot.Slot, baseName string, arguments expr.Args) error {
	base := b.instructionSet.GetSlot(baseName)
	if base == nil {
		err := errors.New(errors.NotFound, "base slot %q not declared", baseName)
		b.Listener.ReportError(err)
		return err
	}
	if err := s.AddTemplatedBase(base, arguments); err != nil {
		b.Listener.ReportError(err)
		return err
	}
	return nil
}

// AppendOpcode declares a fresh opcode on the active instruction set's
// opcode factory. Callers append operands onto the returned Opcode before
// wrapping it in an Instruction and calling AppendInstructionToSlot.
func (b *Builder) AppendOpcode(name string) (*opcode.Opcode, error) {
	op, err := b.instructionSet.OpcodeFactory().CreateOpcode(name)
	if err != nil {
		b.Listener.ReportError(err)
		return nil, err
	}
	return op, nil
}

// AppendInstructionToSlot admits a freshly declared instruction into s,
// reporting any admission failure (duplicate opcode name, unresolved
// latency) through the Listener instead of just returning it.
func (b *Builder) AppendInstructionToSlot(s *slot.Slot, inst *instruction.Instruction) error {
	if err := s.AppendInstruction(inst); err != nil {
		b.Listener.ReportError(err)
		return err
	}
	return nil
}

// InheritBaseInstructions pulls every instruction declared on base into s,
// deriving each one against arguments. This implements the first step of
// spec §4.E.4's visitor ordering contract ("admit base-class instructions
// first"); callers apply overrides and deletes only after this returns.
func (b *Builder) InheritBaseInstructions(s *slot.Slot, base *slot.Slot, arguments expr.Args) error {
	for _, name := range base.InstructionOrder() {
		inst := base.InstructionMap()[name]
		if err := s.AppendInheritedInstruction(inst, arguments); err != nil {
			b.Listener.ReportError(err)
			return err
		}
	}
	return nil
}

// OverrideInstruction implements the "override" step of spec §4.E.4: the
// inherited instruction's opcode identity is kept, but clearFns selectively
// clears the parts the override redefines (e.g. s.InstructionMap()[name]
// .ClearDisasmFormat) before the caller re-appends the new clauses directly
// onto the returned instruction.
func (b *Builder) OverrideInstruction(s *slot.Slot, opcodeName string, clearFns ...func(*instruction.Instruction)) (*instruction.Instruction, error) {
	inst, ok := s.InstructionMap()[opcodeName]
	if !ok {
		err := errors.New(errors.NotFound, "cannot override undeclared opcode %q in slot %q", opcodeName, s.Name())
		b.Listener.ReportError(err)
		return nil, err
	}
	for _, clear := range clearFns {
		clear(inst)
	}
	return inst, nil
}

// DeleteInstruction implements the "delete" step of spec §4.E.4, applied
// only after every override on the same slot has been processed.
func (b *Builder) DeleteInstruction(s *slot.Slot, opcodeName string) error {
	if !s.HasInstruction(opcodeName) {
		err := errors.New(errors.NotFound, "cannot delete undeclared opcode %q in slot %q", opcodeName, s.Name())
		b.Listener.ReportError(err)
		return err
	}
	s.DeleteInstruction(opcodeName)
	return nil
}

// ResolveName implements spec §4.G's name resolution chain for an
// expression reference appearing inside slot s: slot template formal, then
// slot constant, then file-global constant, then instruction-set-scoped
// constant. An unresolved name is reported as a NotFound diagnostic.
func (b *Builder) ResolveName(s *slot.Slot, name string) (expr.Expression, error) {
	if formal := s.GetTemplateFormal(name); formal != nil {
		return expr.NewParam(formal), nil
	}
	if c := s.GetConstExpression(name); c != nil {
		return c, nil
	}
	if c, ok := b.globalConstants[name]; ok {
		return c, nil
	}
	if b.instructionSet != nil {
		if c := b.instructionSet.GetConstExpression(name); c != nil {
			return c, nil
		}
	}
	err := errors.New(errors.NotFound, "unresolved name %q", name)
	b.Listener.ReportError(err)
	return nil, err
}

// Finish runs the post-ingest analysis pipeline required before code
// generation: slot/bundle ordering, then resource-use classification
// (spec §4.F). It reports and returns the first error encountered.
func (b *Builder) Finish() error {
	if b.instructionSet == nil {
		err := errors.New(errors.Internal, "no instruction set declared")
		b.Listener.ReportError(err)
		return err
	}
	b.instructionSet.ComputeSlotAndBundleOrders()
	if err := b.instructionSet.AnalyzeResourceUse(); err != nil {
		b.Listener.ReportError(err)
		return err
	}
	return nil
}
