// Package emit orchestrates target-source emission (spec §4.E.5, §4.F, §6):
// it drives an already-built and already-analyzed isa.InstructionSet
// through GenerateEnums and GenerateClassDeclarations/GenerateClassDefinitions,
// assembles three output files (`<prefix>_opcode_enum.h` plus the
// `<prefix>_decoder.h` and `.cc`-equivalent pair, and two more
// `_decoder_base` counterparts when EmitBase is set), and writes them to an output directory. Grounded on
// mpact/sim/decoder/instruction_set.cc's own top-level "generate all the
// things" driver function, generalized here into a small struct the CLI
// command layer can call without knowing the header/source assembly order.
package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"decodergen/internal/errors"
	"decodergen/internal/isa"
)

// Options configures one emission run (spec §6's CLI surface, minus the
// flags that select which input files to read and which ISA to emit — that
// selection happens before Options is constructed).
type Options struct {
	OutputDir    string
	Prefix       string
	EncodingType string
	// EmitBase additionally produces "<prefix>_decoder_base.{h,cc}": a
	// split some generated decoders use to separate generated boilerplate
	// from a thin hand-editable subclass. Optional per spec §6.
	EmitBase bool
}

// Result reports what GenerateAndWrite produced, for the CLI to print a
// one-line summary and for internal/cache to record a row.
type Result struct {
	Files        []string
	OpcodeCount  int
	SlotCount    int
	Diagnostics  []errors.Diagnostic
}

// GenerateAndWrite runs the full code-generation pass over instructionSet
// (which must already have ComputeSlotAndBundleOrders/AnalyzeResourceUse
// applied — spec §3 "Lifecycles") and writes the resulting files under
// opts.OutputDir. It does not abort on a per-opcode emission error (those
// surface as embedded `#error` lines per spec §4.E.5/§7); it returns an
// error only for a structural failure (ordering not computed, I/O error).
func GenerateAndWrite(instructionSet *isa.InstructionSet, opts Options) (Result, error) {
	if opts.Prefix == "" {
		return Result{}, errors.New(errors.InvalidArgument, "--prefix must be non-empty")
	}
	if len(instructionSet.SlotOrder()) == 0 && len(instructionSet.BundleOrder()) == 0 {
		return Result{}, errors.New(errors.Internal, "ComputeSlotAndBundleOrders must run before emission")
	}

	headerName := opts.Prefix + "_decoder.h"
	sourceName := opts.Prefix + "_decoder.cc"
	opcodeHeaderName := opts.Prefix + "_opcode_enum.h"

	enums := instructionSet.GenerateEnums()

	decl, err := instructionSet.GenerateClassDeclarations(headerName, opcodeHeaderName, opts.EncodingType)
	if err != nil {
		return Result{}, err
	}
	def, err := instructionSet.GenerateClassDefinitions(headerName, opts.EncodingType)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Result{}, errors.New(errors.Internal, "creating output dir %q: %v", opts.OutputDir, err)
	}

	var res Result
	write := func(name, contents string) error {
		path := filepath.Join(opts.OutputDir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return errors.New(errors.Internal, "writing %q: %v", path, err)
		}
		res.Files = append(res.Files, path)
		return nil
	}

	opcodeHeader := fmt.Sprintf("// Generated opcode/operand/resource/attribute enums for %s, do not edit.\n%s%s",
		instructionSet.Name(), enums.HeaderOutput, enums.SourceOutput)
	if err := write(opcodeHeaderName, opcodeHeader); err != nil {
		return res, err
	}
	if err := write(headerName, decl); err != nil {
		return res, err
	}
	if err := write(sourceName, def); err != nil {
		return res, err
	}

	if opts.EmitBase {
		baseHeaderName := opts.Prefix + "_decoder_base.h"
		baseSourceName := opts.Prefix + "_decoder_base.cc"
		baseHeader := "// Generated decoder base declarations, do not edit.\n#include \"" + headerName + "\"\n"
		baseSource := "// Generated decoder base definitions, do not edit.\n#include \"" + baseHeaderName + "\"\n"
		if err := write(baseHeaderName, baseHeader); err != nil {
			return res, err
		}
		if err := write(baseSourceName, baseSource); err != nil {
			return res, err
		}
	}

	res.OpcodeCount = len(instructionSet.OpcodeFactory().Opcodes())
	res.SlotCount = len(instructionSet.SlotOrder())
	return res, nil
}
