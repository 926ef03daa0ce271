// Package frontend defines the boundary between the IR builder
// (internal/builder) and the ISA description grammar parser spec.md §1
// explicitly places out of scope ("the concrete grammar parser and its
// parse-tree node types"). The core never embeds a parser; instead a
// Visitor registers itself here, and the CLI looks it up by name before
// driving a generation run. This lets the generator binary be built with
// whatever grammar frontend a caller links in, without the core depending
// on parser internals.
package frontend

import (
	"fmt"
	"sync"

	"decodergen/internal/builder"
)

// Visitor is the shape spec §4.G describes: something that, for each
// declaration in sources, calls the IR builder methods on b in the order
// the grammar requires (includes, then global constants, then the ISA
// declaration, then bundles/slots/opcodes in document order).
type Visitor func(b *builder.Builder, sources []builder.FileSource) error

var (
	mu       sync.RWMutex
	registry = map[string]Visitor{}
)

// Register associates name (typically a grammar/dialect name, or "default")
// with a Visitor. Intended to be called from an init() in a package that
// links in a concrete grammar parser.
func Register(name string, v Visitor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = v
}

// Get looks up a previously registered Visitor.
func Get(name string) (Visitor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := registry[name]
	return v, ok
}

// Names returns every currently registered frontend name, sorted by
// registration order is not guaranteed — callers needing a stable order
// should sort the result themselves.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// ErrNoFrontend is returned by Get's callers when no Visitor is registered
// under the requested name; callers format it with the name that was
// requested.
func ErrNoFrontend(name string) error {
	return fmt.Errorf("no ISA grammar frontend registered under %q — link one via frontend.Register before invoking this command", name)
}
