// Package action implements the action-point and breakpoint managers that
// multiplex multiple debug actions onto a single rewritten instruction word
// (spec §4.J). Grounded on
// mpact/sim/generic/action_point_manager_base.{h,cc} and
// mpact/sim/generic/breakpoint_manager.{h,cc}.
package action

import "decodergen/internal/errors"

// MemoryInterface rewrites program memory at an action-point address,
// installing or restoring the original instruction. Each target simulator
// supplies its own implementation (e.g. writing a RISC-V ebreak).
type MemoryInterface interface {
	WriteOriginalInstruction(address uint64) error
	WriteBreakpointInstruction(address uint64) error
}

// ActionFunc is called once per enabled action when its address is reached.
type ActionFunc func(address uint64, id int)

type actionInfo struct {
	fn        ActionFunc
	isEnabled bool
}

type actionPointInfo struct {
	address   uint64
	nextID    int
	numActive int
	actions   map[int]*actionInfo
	order     []int // insertion order, since Go maps don't preserve one
}

// Manager is the low-level multiplexer: it tracks, per address, every
// registered action and only asks the MemoryInterface to install/restore
// the breakpoint instruction on the 0↔1 transition of the active count.
type Manager struct {
	mem    MemoryInterface
	points map[uint64]*actionPointInfo
}

func NewManager(mem MemoryInterface) *Manager {
	return &Manager{mem: mem, points: make(map[uint64]*actionPointInfo)}
}

// HasActionPoint reports whether address has any action registered,
// enabled or not.
func (m *Manager) HasActionPoint(address uint64) bool {
	_, ok := m.points[address]
	return ok
}

// SetAction registers fn at address, returning its id. The first action
// (or the first to go active again after all went inactive) causes the
// breakpoint instruction to be written.
func (m *Manager) SetAction(address uint64, fn ActionFunc) (int, error) {
	ap, exists := m.points[address]
	if !exists {
		if err := m.mem.WriteBreakpointInstruction(address); err != nil {
			return 0, err
		}
		ap = &actionPointInfo{address: address, actions: make(map[int]*actionInfo)}
		m.points[address] = ap
	} else if ap.numActive == 0 {
		if err := m.mem.WriteBreakpointInstruction(address); err != nil {
			return 0, err
		}
	}
	id := ap.nextID
	ap.nextID++
	ap.actions[id] = &actionInfo{fn: fn, isEnabled: true}
	ap.order = append(ap.order, id)
	ap.numActive++
	return id, nil
}

func (m *Manager) lookup(address uint64, id int) (*actionPointInfo, *actionInfo, error) {
	ap, ok := m.points[address]
	if !ok {
		return nil, nil, errors.New(errors.NotFound, "no action point found at: %#x", address)
	}
	ai, ok := ap.actions[id]
	if !ok {
		return nil, nil, errors.New(errors.NotFound, "no action %d found at: %#x", id, address)
	}
	return ap, ai, nil
}

// ClearAction removes the action with the given id; if it was the last
// active action at its address, the original instruction is restored.
func (m *Manager) ClearAction(address uint64, id int) error {
	ap, ai, err := m.lookup(address, id)
	if err != nil {
		return err
	}
	delete(ap.actions, id)
	for i, oid := range ap.order {
		if oid == id {
			ap.order = append(ap.order[:i], ap.order[i+1:]...)
			break
		}
	}
	if ai.isEnabled {
		ap.numActive--
		if ap.numActive == 0 {
			return m.mem.WriteOriginalInstruction(address)
		}
	}
	return nil
}

// EnableAction marks the action enabled, writing the breakpoint
// instruction if this is the only active action at the address.
func (m *Manager) EnableAction(address uint64, id int) error {
	ap, ai, err := m.lookup(address, id)
	if err != nil {
		return err
	}
	if ai.isEnabled {
		return nil
	}
	ai.isEnabled = true
	ap.numActive++
	if ap.numActive == 1 {
		return m.mem.WriteBreakpointInstruction(address)
	}
	return nil
}

// DisableAction marks the action disabled, restoring the original
// instruction if no other actions remain active at the address.
func (m *Manager) DisableAction(address uint64, id int) error {
	ap, ai, err := m.lookup(address, id)
	if err != nil {
		return err
	}
	if !ai.isEnabled {
		return nil
	}
	ai.isEnabled = false
	ap.numActive--
	if ap.numActive == 0 {
		return m.mem.WriteOriginalInstruction(address)
	}
	return nil
}

// IsActionPointActive reports whether address has at least one enabled
// action.
func (m *Manager) IsActionPointActive(address uint64) bool {
	ap, ok := m.points[address]
	return ok && ap.numActive > 0
}

// IsActionEnabled reports whether the given action is currently enabled.
func (m *Manager) IsActionEnabled(address uint64, id int) bool {
	ap, ok := m.points[address]
	if !ok {
		return false
	}
	ai, ok := ap.actions[id]
	return ok && ai.isEnabled
}

// ClearAllActionPoints removes every registered action, restoring original
// instructions everywhere.
func (m *Manager) ClearAllActionPoints() {
	for _, ap := range m.points {
		_ = m.mem.WriteOriginalInstruction(ap.address)
	}
	m.points = make(map[uint64]*actionPointInfo)
}

// PerformActions invokes every enabled action registered at address, in
// registration order. It is a no-op (aside from the diagnostic return) if
// address has no action point, unlike the original which logs and then
// dereferences the missing entry.
func (m *Manager) PerformActions(address uint64) error {
	ap, ok := m.points[address]
	if !ok {
		return errors.New(errors.NotFound, "no action point found at: %#x", address)
	}
	for _, id := range ap.order {
		ai := ap.actions[id]
		if ai.isEnabled {
			ai.fn(address, id)
		}
	}
	return nil
}

// HaltFunc requests that the simulator halt execution.
type HaltFunc func()

type breakpointInfo struct {
	address uint64
	id      int
}

// BreakpointManager is a thin façade over Manager: every breakpoint is one
// action whose function always requests a halt.
type BreakpointManager struct {
	actionPoints *Manager
	haltFn       HaltFunc
	breakpoints  map[uint64]*breakpointInfo
}

func NewBreakpointManager(actionPoints *Manager, haltFn HaltFunc) *BreakpointManager {
	return &BreakpointManager{
		actionPoints: actionPoints,
		haltFn:       haltFn,
		breakpoints:  make(map[uint64]*breakpointInfo),
	}
}

func (bm *BreakpointManager) ActionPointManager() *Manager { return bm.actionPoints }

func (bm *BreakpointManager) HasBreakpoint(address uint64) bool {
	_, ok := bm.breakpoints[address]
	return ok
}

func (bm *BreakpointManager) doBreakpointAction(uint64, int) {
	bm.haltFn()
}

// SetBreakpoint installs a breakpoint at address, failing if one already
// exists there.
func (bm *BreakpointManager) SetBreakpoint(address uint64) error {
	if bm.HasBreakpoint(address) {
		return errors.New(errors.AlreadyExists, "breakpoint at %#x already exists", address)
	}
	id, err := bm.actionPoints.SetAction(address, bm.doBreakpointAction)
	if err != nil {
		return err
	}
	bm.breakpoints[address] = &breakpointInfo{address: address, id: id}
	return nil
}

// ClearBreakpoint removes the breakpoint at address.
func (bm *BreakpointManager) ClearBreakpoint(address uint64) error {
	bp, ok := bm.breakpoints[address]
	if !ok {
		return errors.New(errors.NotFound, "no breakpoint set for %#x", address)
	}
	if err := bm.actionPoints.ClearAction(address, bp.id); err != nil {
		return err
	}
	delete(bm.breakpoints, address)
	return nil
}

// DisableBreakpoint disables (without deleting) the breakpoint at address.
func (bm *BreakpointManager) DisableBreakpoint(address uint64) error {
	bp, ok := bm.breakpoints[address]
	if !ok {
		return errors.New(errors.NotFound, "no breakpoint set for %#x", address)
	}
	return bm.actionPoints.DisableAction(address, bp.id)
}

// EnableBreakpoint re-enables a previously disabled breakpoint.
func (bm *BreakpointManager) EnableBreakpoint(address uint64) error {
	bp, ok := bm.breakpoints[address]
	if !ok {
		return errors.New(errors.NotFound, "no breakpoint set for %#x", address)
	}
	return bm.actionPoints.EnableAction(address, bp.id)
}

// ClearAllBreakpoints removes every breakpoint.
func (bm *BreakpointManager) ClearAllBreakpoints() {
	for _, bp := range bm.breakpoints {
		_ = bm.actionPoints.ClearAction(bp.address, bp.id)
	}
	bm.breakpoints = make(map[uint64]*breakpointInfo)
}

// IsBreakpoint reports whether address has an active (enabled) breakpoint.
func (bm *BreakpointManager) IsBreakpoint(address uint64) bool {
	bp, ok := bm.breakpoints[address]
	if !ok {
		return false
	}
	return bm.actionPoints.IsActionEnabled(address, bp.id)
}
