package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"decodergen/internal/builder"
	"decodergen/internal/expr"
	"decodergen/internal/frontend"
	"decodergen/internal/instruction"
	"decodergen/internal/isa"
)

// registerTestFrontend wires a tiny in-memory "grammar" under name: it
// ignores the source text entirely and just builds a fixed one-slot,
// one-opcode instruction set, standing in for a real parser the way
// SPEC_FULL.md describes the frontend boundary.
func registerTestFrontend(name string) {
	frontend.Register(name, func(b *builder.Builder, sources []builder.FileSource) error {
		isa.ResetAttributeNames()
		is := b.DeclareISA("cmdtest")
		s := b.DeclareSlot("alu", false)
		s.SetIsReferenced(true)
		op, err := b.AppendOpcode("add")
		if err != nil {
			return err
		}
		op.AppendDestOp("rd", false, expr.NewConstant(1))
		inst := instruction.New(op, is.OpcodeFactory())
		return b.AppendInstructionToSlot(s, inst)
	})
}

func TestParseGenerateFlagsRequiresPrefix(t *testing.T) {
	_, err := ParseGenerateFlags([]string{"input.isa"})
	require.Error(t, err)
}

func TestParseGenerateFlagsSplitsIncludeRoots(t *testing.T) {
	opts, err := ParseGenerateFlags([]string{
		"--prefix", "foo",
		"--include", "a, b ,c",
		"input.isa",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, opts.IncludeRoots)
	require.Equal(t, []string{"input.isa"}, opts.Inputs)
}

func TestGenerateCommandEndToEnd(t *testing.T) {
	registerTestFrontend("cmdtest-frontend")

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.isa")
	require.NoError(t, os.WriteFile(inputPath, []byte("isa cmdtest { slot alu { opcode add } }"), 0o644))

	outDir := filepath.Join(dir, "out")
	err := GenerateCommand([]string{
		"--prefix", "cmdtest",
		"--isa_name", "cmdtest",
		"--output_dir", outDir,
		"--frontend", "cmdtest-frontend",
		inputPath,
	})
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(outDir, "cmdtest_decoder.h"))
	require.FileExists(t, filepath.Join(outDir, "cmdtest_decoder.cc"))
	require.FileExists(t, filepath.Join(outDir, "cmdtest_opcode_enum.h"))

	// Re-running with unchanged input should hit the cache and skip
	// rewriting (still reports the files as present).
	err = GenerateCommand([]string{
		"--prefix", "cmdtest",
		"--isa_name", "cmdtest",
		"--output_dir", outDir,
		"--frontend", "cmdtest-frontend",
		inputPath,
	})
	require.NoError(t, err)
}

func TestGenerateCommandRejectsMismatchedISAName(t *testing.T) {
	registerTestFrontend("cmdtest-frontend-2")

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.isa")
	require.NoError(t, os.WriteFile(inputPath, []byte("isa cmdtest { slot alu { opcode add } }"), 0o644))

	err := GenerateCommand([]string{
		"--prefix", "cmdtest",
		"--isa_name", "not-cmdtest",
		"--output_dir", filepath.Join(dir, "out"),
		"--frontend", "cmdtest-frontend-2",
		inputPath,
	})
	require.Error(t, err)
}

func TestGenerateCommandUnknownFrontendErrors(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "in.isa")
	require.NoError(t, os.WriteFile(inputPath, []byte("whatever"), 0o644))

	err := GenerateCommand([]string{
		"--prefix", "x",
		"--output_dir", filepath.Join(dir, "out"),
		"--frontend", "does-not-exist",
		inputPath,
	})
	require.Error(t, err)
}
