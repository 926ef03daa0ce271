// Package simpleres implements the runtime simple-resource pool (spec §4.H):
// a fixed-width bitset of reserved resources, one-hot resources within it,
// and sets of resources acquired/released together. Grounded on
// mpact/sim/generic/simple_resource.h; reserve/free/is_free all reduce to
// ResourceBitSet Or/AndNot/IsIntersectionNonEmpty per spec §4.H.
package simpleres

import (
	"sort"
	"strings"

	"decodergen/internal/bitset"
	"decodergen/internal/errors"
)

// Resource is a single simple resource: a one-hot bit within its pool.
type Resource struct {
	name  string
	index int
	pool  *Pool
	bit   *bitset.ResourceBitSet
}

func (r *Resource) Name() string                      { return r.name }
func (r *Resource) Index() int                        { return r.index }
func (r *Resource) Pool() *Pool                       { return r.pool }
func (r *Resource) ResourceBit() *bitset.ResourceBitSet { return r.bit }

// Acquire marks the resource reserved in its pool.
func (r *Resource) Acquire() { r.pool.Acquire(r) }

// Release marks the resource free in its pool.
func (r *Resource) Release() { r.pool.Release(r) }

// IsFree reports whether the resource is currently unreserved.
func (r *Resource) IsFree() bool { return r.pool.IsFree(r) }

// Set is a group of resources reserved/released/checked together.
type Set struct {
	pool   *Pool
	vector *bitset.ResourceBitSet
}

// AddResource adds resource to the set, failing if it belongs to a
// different pool.
func (s *Set) AddResource(r *Resource) error {
	if r.pool != s.pool {
		return errors.New(errors.InvalidArgument, "resource %q belongs to a different pool", r.name)
	}
	s.vector.Or(r.bit)
	return nil
}

// AddResourceByName looks the resource up in the owning pool (creating it
// via GetOrAddResource semantics is the caller's job; this call fails if the
// name is unknown) and adds it to the set.
func (s *Set) AddResourceByName(name string) error {
	r := s.pool.GetResource(name)
	if r == nil {
		return errors.New(errors.NotFound, "resource %q not found in pool %q", name, s.pool.name)
	}
	return s.AddResource(r)
}

// Acquire marks every resource in the set reserved.
func (s *Set) Acquire() { s.pool.acquireVector(s.vector) }

// Release marks every resource in the set free.
func (s *Set) Release() { s.pool.releaseVector(s.vector) }

// IsFree reports whether none of the set's resources are reserved.
func (s *Set) IsFree() bool { return !s.pool.reserved.IsIntersectionNonEmpty(s.vector) }

// ResourceVector returns the set's underlying one-hot union bitset.
func (s *Set) ResourceVector() *bitset.ResourceBitSet { return s.vector }

// AsString returns "free" when none of the set's members is reserved and
// "reserved" otherwise; member names are not listed.
func (s *Set) AsString() string {
	if s.IsFree() {
		return "free"
	}
	return "reserved"
}

// Pool manages a fixed-width group of named Resources plus the bitset of
// currently reserved ones.
type Pool struct {
	name      string
	width     int
	byName    map[string]*Resource
	byIndex   []*Resource
	reserved  *bitset.ResourceBitSet
	sets      []*Set
}

// NewPool creates a named pool capped at width resources.
func NewPool(name string, width int) *Pool {
	return &Pool{
		name:     name,
		width:    width,
		byName:   make(map[string]*Resource),
		reserved: bitset.New(width),
	}
}

func (p *Pool) Name() string                          { return p.name }
func (p *Pool) Width() int                             { return p.width }
func (p *Pool) ResourceVector() *bitset.ResourceBitSet { return p.reserved }

// AddResource assigns name the next free contiguous index, failing once the
// pool reaches its width cap.
func (p *Pool) AddResource(name string) (*Resource, error) {
	if _, exists := p.byName[name]; exists {
		return nil, errors.New(errors.AlreadyExists, "resource %q already exists in pool %q", name, p.name)
	}
	if len(p.byIndex) >= p.width {
		return nil, errors.New(errors.InvalidArgument, "pool %q is full (width %d)", p.name, p.width)
	}
	index := len(p.byIndex)
	r := &Resource{name: name, index: index, pool: p, bit: bitset.New(p.width)}
	r.bit.Set(index)
	p.byName[name] = r
	p.byIndex = append(p.byIndex, r)
	return r, nil
}

// GetResource returns the named resource, or nil if it hasn't been added.
func (p *Pool) GetResource(name string) *Resource {
	return p.byName[name]
}

// GetResourceByIndex returns the resource with the given bit index, or nil.
func (p *Pool) GetResourceByIndex(index int) *Resource {
	if index < 0 || index >= len(p.byIndex) {
		return nil
	}
	return p.byIndex[index]
}

// GetOrAddResource returns the named resource, creating it if necessary.
func (p *Pool) GetOrAddResource(name string) (*Resource, error) {
	if r := p.GetResource(name); r != nil {
		return r, nil
	}
	return p.AddResource(name)
}

// CreateResourceSet allocates a new, empty Set tied to this pool.
func (p *Pool) CreateResourceSet() *Set {
	s := &Set{pool: p, vector: bitset.New(p.width)}
	p.sets = append(p.sets, s)
	return s
}

// IsFree reports whether r is not reserved.
func (p *Pool) IsFree(r *Resource) bool {
	return !p.reserved.IsIntersectionNonEmpty(r.bit)
}

// IsFreeSet reports whether no resource in s is reserved.
func (p *Pool) IsFreeSet(s *Set) bool { return s.IsFree() }

func (p *Pool) Acquire(r *Resource) { p.reserved.Or(r.bit) }
func (p *Pool) Release(r *Resource) { p.reserved.AndNot(r.bit) }

func (p *Pool) acquireVector(v *bitset.ResourceBitSet) { p.reserved.Or(v) }
func (p *Pool) releaseVector(v *bitset.ResourceBitSet) { p.reserved.AndNot(v) }

// AcquireSet marks every resource in s reserved.
func (p *Pool) AcquireSet(s *Set) { s.Acquire() }

// ReleaseSet marks every resource in s free.
func (p *Pool) ReleaseSet(s *Set) { s.Release() }

// ReservedAsString lists currently reserved resource names, sorted, for
// debugging/diagnostic output.
func (p *Pool) ReservedAsString() string {
	var names []string
	for _, r := range p.byIndex {
		if !p.IsFree(r) {
			names = append(names, r.name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// MaxResourceName returns the longest resource name registered in the pool,
// used by the emitter to size fixed-width disassembly columns.
func (p *Pool) MaxResourceName() string {
	longest := ""
	for _, r := range p.byIndex {
		if len(r.name) > len(longest) {
			longest = r.name
		}
	}
	return longest
}

// AcquireAll reserves every resource currently registered in the pool, used
// by the emitted "reset" path between instructions.
func (p *Pool) AcquireAll() {
	for _, r := range p.byIndex {
		p.reserved.Or(r.bit)
	}
}
