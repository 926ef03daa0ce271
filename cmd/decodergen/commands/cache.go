package commands

import (
	"flag"
	"fmt"
	"os"

	"decodergen/internal/cache"
)

// CacheCommand implements the "cache" verb: inspect or clear the
// incremental-build cache for one output directory, mirroring
// cmd/sentra/commands' CleanCommand shape (a thin wrapper taking the
// remaining args and returning an error).
func CacheCommand(args []string) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	outputDir := fs.String("output_dir", "./", "directory containing the cache database")
	isaName := fs.String("isa_name", "", "restrict the status query to this ISA")
	prefix := fs.String("prefix", "", "restrict the status query to this prefix")
	clear := fs.Bool("clear", false, "delete the cache database instead of reporting status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *clear {
		path := *outputDir + "/" + cache.FileName
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Printf("decodergen: cache cleared at %s\n", path)
		return nil
	}

	store, err := cache.Open(*outputDir)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	row, found, err := store.Lookup(*isaName, *prefix)
	if err != nil {
		return fmt.Errorf("querying cache: %w", err)
	}
	if !found {
		fmt.Printf("decodergen: no cached build for isa_name=%q prefix=%q\n", *isaName, *prefix)
		return nil
	}
	fmt.Printf("decodergen: last build %s — %d opcode(s), build id %s, generated at %s\n",
		row.GeneratedAt, row.OpcodeCount, row.BuildID, row.GeneratedAt)
	return nil
}
