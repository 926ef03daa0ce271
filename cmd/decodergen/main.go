// cmd/decodergen/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"

	"decodergen/cmd/decodergen/commands"
)

const version = "0.1.0"

// commandAliases mirrors cmd/sentra/main.go's shorthand table — a couple
// of one-letter aliases for the verbs used often enough to earn one.
var commandAliases = map[string]string{
	"g": "generate",
	"c": "cache",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		showUsage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Println("decodergen", version)
		return
	}

	switch cmd {
	case "generate":
		if err := commands.GenerateCommand(args[1:]); err != nil {
			printError(err)
			os.Exit(1)
		}
	case "cache":
		if err := commands.CacheCommand(args[1:]); err != nil {
			printError(err)
			os.Exit(1)
		}
	default:
		showUsage()
		os.Exit(1)
	}
}

func printError(err error) {
	log.SetFlags(0)
	color.Red("decodergen: error: %s", err)
}

func showUsage() {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Println(bold("decodergen — ISA decoder generator"))
	fmt.Println(`
Usage:
  decodergen generate [flags] <input files...>
  decodergen cache [flags]

generate flags:
  --output_dir string   directory to write generated decoder sources into (default "./")
  --prefix string        output base name (required)
  --isa_name string      which declared ISA to emit
  --include string       comma-separated include roots
  --encoding_type string C++ type name of the encoding object (default "Encoding")
  --frontend string      registered grammar frontend to drive ingest with (default "default")
  --emit_base            also emit <prefix>_decoder_base.{h,cc}
  --no_cache             skip the incremental-build cache
  --watch                poll inputs and regenerate on change
  --watch_addr string    serve a websocket diagnostics feed at this address

cache flags:
  --output_dir string   directory containing the cache database (default "./")
  --isa_name string      restrict the status query to this ISA
  --prefix string        restrict the status query to this prefix
  --clear                delete the cache database instead of reporting status
`)
}
