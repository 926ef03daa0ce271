// Package commands implements the decodergen CLI verbs, one file per verb,
// mirroring cmd/sentra/commands' layout (BuildCommand/WatchCommand/
// CleanCommand each taking the remaining args slice and returning an
// error for main.go to log.Fatalf on).
package commands

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"decodergen/internal/builder"
	"decodergen/internal/cache"
	"decodergen/internal/devwatch"
	"decodergen/internal/emit"
	"decodergen/internal/errors"
	"decodergen/internal/frontend"
)

// GenerateOptions holds the parsed --output_dir/--prefix/--isa_name/
// --include flags spec §6 requires, plus the ambient additions from
// SPEC_FULL.md §2.1-§2.3 (cache, watch mode).
type GenerateOptions struct {
	Inputs       []string
	OutputDir    string
	Prefix       string
	ISAName      string
	IncludeRoots []string
	EncodingType string
	Frontend     string
	EmitBase     bool
	NoCache      bool
	Watch        bool
	WatchAddr    string
}

// ParseGenerateFlags parses the "generate" verb's flags the way the
// teacher's commands hand-parse their own positional/flag args, using
// flag.NewFlagSet rather than a CLI framework (SPEC_FULL.md §1).
func ParseGenerateFlags(args []string) (GenerateOptions, error) {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	outputDir := fs.String("output_dir", "./", "directory to write generated decoder sources into")
	prefix := fs.String("prefix", "", "output base name (required)")
	isaName := fs.String("isa_name", "", "which declared ISA to emit")
	include := fs.String("include", "", "comma-separated include roots")
	encodingType := fs.String("encoding_type", "Encoding", "C++ type name of the encoding object the generated decoder accepts")
	frontendName := fs.String("frontend", "default", "registered grammar frontend to drive the IR builder with")
	emitBase := fs.Bool("emit_base", false, "also emit <prefix>_decoder_base.{h,cc}")
	noCache := fs.Bool("no_cache", false, "skip the incremental-build cache even if inputs are unchanged")
	watch := fs.Bool("watch", false, "poll inputs and regenerate on change instead of exiting after one run")
	watchAddr := fs.String("watch_addr", "", "if set with --watch, serve a websocket diagnostics feed at this address")

	if err := fs.Parse(args); err != nil {
		return GenerateOptions{}, err
	}
	if *prefix == "" {
		return GenerateOptions{}, errors.New(errors.InvalidArgument, "--prefix is required and must be non-empty")
	}

	var includeRoots []string
	if *include != "" {
		for _, root := range strings.Split(*include, ",") {
			if trimmed := strings.TrimSpace(root); trimmed != "" {
				includeRoots = append(includeRoots, trimmed)
			}
		}
	}

	return GenerateOptions{
		Inputs:       fs.Args(),
		OutputDir:    *outputDir,
		Prefix:       *prefix,
		ISAName:      *isaName,
		IncludeRoots: includeRoots,
		EncodingType: *encodingType,
		Frontend:     *frontendName,
		EmitBase:     *emitBase,
		NoCache:      *noCache,
		Watch:        *watch,
		WatchAddr:    *watchAddr,
	}, nil
}

// GenerateCommand implements the "generate" verb end to end: resolve
// inputs, consult the cache, drive the registered frontend to build the IR,
// run the post-ingest analysis pipeline, emit, and (if
// --watch) repeat on a timer, optionally broadcasting over a websocket.
func GenerateCommand(args []string) error {
	opts, err := ParseGenerateFlags(args)
	if err != nil {
		return err
	}
	if len(opts.Inputs) == 0 {
		return errors.New(errors.InvalidArgument, "at least one input file is required")
	}

	run := func() (emit.Result, error) {
		return runOnce(opts)
	}

	if !opts.Watch {
		res, err := run()
		if err != nil {
			return err
		}
		fmt.Printf("decodergen: wrote %d file(s) (%s), %d opcode(s), %d slot(s)\n",
			len(res.Files), humanize.Bytes(totalSize(res.Files)), res.OpcodeCount, res.SlotCount)
		return nil
	}

	var watchSrv *devwatch.Server
	if opts.WatchAddr != "" {
		watchSrv = devwatch.NewServer()
		watchSrv.Listen(opts.WatchAddr)
		defer watchSrv.Close()
		log.Printf("decodergen: watch diagnostics feed listening on %s", opts.WatchAddr)
	}

	stop := make(chan struct{})
	devwatch.Poll(opts.Inputs, 500*time.Millisecond, stop, func() {
		res, err := run()
		summary := devwatch.Summary{
			ISAName:     opts.ISAName,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err != nil {
			summary.Diagnostics = []string{err.Error()}
			log.Printf("decodergen: generation failed: %v", err)
		} else {
			summary.OpcodeCount = res.OpcodeCount
			log.Printf("decodergen: wrote %d file(s) (%s), %d opcode(s)", len(res.Files), humanize.Bytes(totalSize(res.Files)), res.OpcodeCount)
		}
		if watchSrv != nil {
			if err := watchSrv.Broadcast(summary); err != nil {
				log.Printf("decodergen: watch broadcast error: %v", err)
			}
		}
	})
	return nil
}

func runOnce(opts GenerateOptions) (emit.Result, error) {
	visitor, ok := frontend.Get(opts.Frontend)
	if !ok {
		return emit.Result{}, frontend.ErrNoFrontend(opts.Frontend)
	}

	ctx := context.Background()
	sources, err := builder.ResolveInputs(ctx, opts.Inputs, os.ReadFile)
	if err != nil {
		return emit.Result{}, fmt.Errorf("resolving inputs: %w", err)
	}

	var store *cache.Store
	var inputDigest string
	if !opts.NoCache {
		store, err = cache.Open(opts.OutputDir)
		if err != nil {
			log.Printf("decodergen: cache unavailable, proceeding without it: %v", err)
			store = nil
		} else {
			defer store.Close()
			contents := make([][]byte, len(sources))
			for i, s := range sources {
				contents[i] = s.Contents
			}
			inputDigest = cache.DigestFiles(contents)
			if row, found, lookupErr := store.Lookup(opts.ISAName, opts.Prefix); lookupErr == nil && found {
				outPaths := expectedOutputPaths(opts)
				if cache.UpToDate(row, inputDigest, outPaths) {
					fmt.Printf("decodergen: %s/%s up to date, skipping emission\n", opts.ISAName, opts.Prefix)
					return emit.Result{Files: outPaths, OpcodeCount: row.OpcodeCount}, nil
				}
			}
		}
	}

	b := builder.New()
	if err := visitor(b, sources); err != nil {
		return emit.Result{}, fmt.Errorf("ingesting ISA description: %w", err)
	}
	if b.InstructionSet() == nil {
		return emit.Result{}, errors.New(errors.Parse, "no ISA declaration found in inputs")
	}
	if opts.ISAName != "" && b.InstructionSet().Name() != opts.ISAName {
		return emit.Result{}, errors.New(errors.NotFound, "declared ISA %q does not match --isa_name %q", b.InstructionSet().Name(), opts.ISAName)
	}
	if err := b.Finish(); err != nil {
		return emit.Result{}, fmt.Errorf("finishing IR: %w", err)
	}
	if b.Listener.HasErrors() {
		return emit.Result{}, fmt.Errorf("%s", b.Listener.Summary())
	}

	res, err := emit.GenerateAndWrite(b.InstructionSet(), emit.Options{
		OutputDir:    opts.OutputDir,
		Prefix:       opts.Prefix,
		EncodingType: opts.EncodingType,
		EmitBase:     opts.EmitBase,
	})
	if err != nil {
		return res, err
	}

	if store != nil {
		outputDigest, ok := cache.DigestOutputFiles(res.Files)
		if ok {
			_ = store.Record(cache.Row{
				ISAName:      b.InstructionSet().Name(),
				Prefix:       opts.Prefix,
				InputDigest:  inputDigest,
				OutputDigest: outputDigest,
				OpcodeCount:  res.OpcodeCount,
				BuildID:      b.BuildID,
				GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			})
		}
	}

	return res, nil
}

// totalSize sums the on-disk size of every generated file, used only to
// render a human-friendly byte count in the CLI's summary line.
func totalSize(paths []string) uint64 {
	var total uint64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += uint64(info.Size())
		}
	}
	return total
}

func expectedOutputPaths(opts GenerateOptions) []string {
	names := []string{
		opts.Prefix + "_opcode_enum.h",
		opts.Prefix + "_decoder.h",
		opts.Prefix + "_decoder.cc",
	}
	if opts.EmitBase {
		names = append(names, opts.Prefix+"_decoder_base.h", opts.Prefix+"_decoder_base.cc")
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(opts.OutputDir, n)
	}
	return paths
}
