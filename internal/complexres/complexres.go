// Package complexres implements the runtime multi-cycle resource mask (spec
// §4.I): a resource's availability over a rolling window of future cycles,
// and the per-use operand that schedules one resource over a span of that
// window. Grounded on mpact/sim/generic/complex_resource_operand.{h,cc};
// ComplexResource itself mirrors the class of the same name referenced from
// complex_resource_operand.cc and its test, with the ArchState clock access
// replaced by an injected CycleSource callback (see SPEC_FULL.md §3) so this
// package does not depend on the wider simulator's architecture state.
package complexres

import "decodergen/internal/errors"

const wordBits = 64

// CycleSource returns the simulator's current cycle count. ComplexResource
// calls it lazily, only when the window needs to be advanced.
type CycleSource func() int

// Resource is a single named resource with a cycle_depth-bit rolling
// availability window, represented as 64-bit words least-significant-word
// first (bit i is cycle i from "now").
type Resource struct {
	name        string
	cycleDepth  int
	cycleSource CycleSource
	lastCycle   int
	bits        []uint64
}

// NewResource creates a resource with the given cycle depth. cycleSource may
// be nil, in which case the window never advances on its own (useful in
// tests that drive acquisition directly).
func NewResource(name string, cycleDepth int, cycleSource CycleSource) *Resource {
	return &Resource{
		name:        name,
		cycleDepth:  cycleDepth,
		cycleSource: cycleSource,
		bits:        make([]uint64, wordsFor(cycleDepth)),
	}
}

func wordsFor(cycleDepth int) int { return (cycleDepth + wordBits - 1) / wordBits }

func (r *Resource) Name() string     { return r.name }
func (r *Resource) CycleDepth() int  { return r.cycleDepth }
func (r *Resource) BitArray() []uint64 {
	return r.bits
}

// advance shifts the window left by the delta between the current cycle (as
// reported by cycleSource) and the last-observed cycle, dropping bits that
// have scrolled past "now". Mirrors the lazy-advance rule of spec §4.I: "the
// complex-resource window is advanced lazily on access... the window shifts
// left by the delta before the operation proceeds."
func (r *Resource) advance() {
	if r.cycleSource == nil {
		return
	}
	current := r.cycleSource()
	delta := current - r.lastCycle
	r.lastCycle = current
	if delta <= 0 {
		return
	}
	shiftBitsLeft(r.bits, delta)
}

// shiftBitsLeft shifts a little-endian (word 0 = lowest cycles) bit array
// left by n bit positions, discarding bits shifted out of the low end and
// filling with zero at the high end.
func shiftBitsLeft(words []uint64, n int) {
	if n <= 0 {
		return
	}
	wordShift := n / wordBits
	bitShift := uint(n % wordBits)
	for i := 0; i < len(words); i++ {
		srcIdx := i + wordShift
		var hi, lo uint64
		if srcIdx < len(words) {
			lo = words[srcIdx]
		}
		if bitShift != 0 && srcIdx+1 < len(words) {
			hi = words[srcIdx+1] << (wordBits - bitShift)
		}
		if bitShift != 0 {
			lo >>= bitShift
		}
		words[i] = lo | hi
	}
}

// IsFree reports whether none of the resource's reserved cycles overlap the
// given request mask, after advancing the window.
func (r *Resource) IsFree(mask []uint64) bool {
	r.advance()
	n := len(mask)
	if n > len(r.bits) {
		n = len(r.bits)
	}
	for i := 0; i < n; i++ {
		if r.bits[i]&mask[i] != 0 {
			return false
		}
	}
	return true
}

// Acquire reserves the cycles set in mask, after advancing the window.
func (r *Resource) Acquire(mask []uint64) {
	r.advance()
	n := len(mask)
	if n > len(r.bits) {
		n = len(r.bits)
	}
	for i := 0; i < n; i++ {
		r.bits[i] |= mask[i]
	}
}

func (r *Resource) AsString() string { return r.name }

// Operand schedules the acquisition of a single Resource across a span of
// cycles that usually does not begin at cycle 0.
type Operand struct {
	resource *Resource
	bitArray []uint64
}

func NewOperand(resource *Resource) *Operand {
	return &Operand{resource: resource}
}

// SetCycleMask sets the mask from an inclusive [begin, end] cycle range.
func (o *Operand) SetCycleMask(begin, end int) error {
	if o.resource == nil {
		return errors.New(errors.Internal, "resource is null in ComplexResourceOperand")
	}
	if begin > end {
		return errors.New(errors.InvalidArgument, "begin cycle (%d) is greater than end cycle (%d)", begin, end)
	}
	if end >= o.resource.cycleDepth {
		return errors.New(errors.InvalidArgument, "ComplexResourceOperand for resource %q: end(%d) is greater than cycle depth (%d)", o.resource.name, end, o.resource.cycleDepth)
	}
	spanSize := (end + wordBits) / wordBits
	if spanSize == 0 {
		spanSize = 1
	}
	bits := make([]uint64, spanSize)
	for i := begin; i <= end; i++ {
		wordIndex := i / wordBits
		bitIndex := uint(i % wordBits)
		bits[wordIndex] |= uint64(1) << bitIndex
	}
	o.bitArray = bits
	return nil
}

// SetCycleMaskSpan sets the mask directly from a pre-built word span. Any
// bit set beyond the resource's cycle depth, or an all-zero span, is an
// error.
func (o *Operand) SetCycleMaskSpan(span []uint64) error {
	if o.resource == nil {
		return errors.New(errors.Internal, "resource is null in ComplexResourceOperand")
	}
	if len(o.resource.bits) < len(span) {
		return errors.New(errors.InvalidArgument, "span too long for cycle mask")
	}
	spanSize := len(span)
	mod := uint(o.resource.cycleDepth % wordBits)
	if spanSize == len(o.resource.bits) && mod != 0 && (span[spanSize-1]>>mod) != 0 {
		return errors.New(errors.InvalidArgument, "bits set beyond the cycle depth of resource %q", o.resource.name)
	}
	var orValue uint64
	for _, v := range span {
		orValue |= v
	}
	if orValue == 0 {
		return errors.New(errors.InvalidArgument, "no bits set in input span")
	}
	bits := make([]uint64, spanSize)
	copy(bits, span)
	o.bitArray = bits
	return nil
}

// IsFree reports whether the resource is available for every cycle in the
// operand's mask.
func (o *Operand) IsFree() bool { return o.resource.IsFree(o.bitArray) }

// Acquire reserves the resource for the operand's mask.
func (o *Operand) Acquire() { o.resource.Acquire(o.bitArray) }

func (o *Operand) AsString() string { return o.resource.AsString() }

func (o *Operand) BitArray() []uint64 { return o.bitArray }
