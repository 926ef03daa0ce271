package builder

import (
	"fmt"
	"strconv"
	"strings"

	"decodergen/internal/errors"
)

// RangeAssignment is one GENERATE() clause: name is assigned, in turn, each
// token in Tokens while expanding the template (spec §4.G). Tokens come
// from either an explicit list or a numeric range — both are just string
// lists by the time they reach this package, since range-bound parsing is
// part of the out-of-scope grammar.
type RangeAssignment struct {
	Name   string
	Tokens []string
}

// NumericRange expands [start, end] inclusive into string tokens, the
// builder-side helper a visitor uses to turn a parsed numeric range bound
// into a RangeAssignment's Tokens.
func NumericRange(start, end int) []string {
	if end < start {
		start, end = end, start
	}
	tokens := make([]string, 0, end-start+1)
	for v := start; v <= end; v++ {
		tokens = append(tokens, strconv.Itoa(v))
	}
	return tokens
}

// GeneratedDeclaration is one expansion of a GENERATE() template: the
// substituted declaration text, ready to be re-parsed as a normal opcode
// declaration by the (out of scope) grammar parser, plus the name the
// caller's nameFromTuple extracted, used for collision detection.
type GeneratedDeclaration struct {
	Name string
	Text string
}

// ExpandGenerate computes the Cartesian product over ranges and substitutes
// `${name}` references in template for each tuple, in the order spec §4.G
// describes. nameFromTuple extracts the generated opcode's name from one
// tuple (assignment name -> chosen token) so that collisions between
// generated opcodes can be diagnosed before any of them is re-parsed.
func (b *Builder) ExpandGenerate(ranges []RangeAssignment, template string, nameFromTuple func(tuple map[string]string) string) ([]GeneratedDeclaration, error) {
	if len(ranges) == 0 {
		return nil, errors.New(errors.InvalidArgument, "GENERATE() requires at least one range assignment")
	}
	for _, r := range ranges {
		if len(r.Tokens) == 0 {
			err := errors.New(errors.InvalidArgument, "GENERATE() range assignment %q has no tokens", r.Name)
			b.Listener.ReportError(err)
			return nil, err
		}
	}

	var out []GeneratedDeclaration
	seen := make(map[string]bool)
	tuple := make(map[string]string, len(ranges))

	var recurse func(i int) error
	recurse = func(i int) error {
		if i == len(ranges) {
			text := substituteTemplate(template, tuple)
			name := nameFromTuple(tuple)
			if seen[name] {
				err := errors.New(errors.AlreadyExists, "GENERATE() produced duplicate opcode name %q", name)
				b.Listener.ReportError(err)
				return err
			}
			seen[name] = true
			out = append(out, GeneratedDeclaration{Name: name, Text: text})
			return nil
		}
		r := ranges[i]
		for _, token := range r.Tokens {
			tuple[r.Name] = token
			if err := recurse(i + 1); err != nil {
				return err
			}
		}
		delete(tuple, r.Name)
		return nil
	}

	if err := recurse(0); err != nil {
		return nil, err
	}
	return out, nil
}

// substituteTemplate replaces every `${name}` reference in template with
// the token bound to name in tuple, leaving unrecognized references
// untouched (the grammar parser re-parsing the result will surface an
// unresolved reference as its own diagnostic).
func substituteTemplate(template string, tuple map[string]string) string {
	var sb strings.Builder
	for i := 0; i < len(template); {
		if template[i] == '$' && i+1 < len(template) && template[i+1] == '{' {
			end := strings.IndexByte(template[i+2:], '}')
			if end >= 0 {
				name := template[i+2 : i+2+end]
				if token, ok := tuple[name]; ok {
					sb.WriteString(token)
				} else {
					fmt.Fprintf(&sb, "${%s}", name)
				}
				i += 2 + end + 1
				continue
			}
		}
		sb.WriteByte(template[i])
		i++
	}
	return sb.String()
}
