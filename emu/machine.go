package emu

import (
	"fmt"

	"github.com/apex/log"

	"github.com/sarchlab/m68kprof/loader"
)

// StepResult represents the result of retiring a single instruction.
type StepResult struct {
	// Exited is true once the trace is exhausted.
	Exited bool

	// PC is the address of the retired instruction.
	PC uint32

	// Err is set if an error occurred during execution.
	Err error
}

// Machine replays a recorded execution trace as if it were an emulation
// core. Each step advances the cycle counter by the record's cost and then
// retires the record's pc through the hook slot, so an installed hook sees
// the same counter an emulator would expose after the instruction ran.
type Machine struct {
	HookSlot

	image *loader.Image
	trace []TraceRecord
	pos   int

	cycles           int64
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// MachineOption is a functional option for configuring the Machine.
type MachineOption func(*Machine)

// WithImage sets the program image used for opcode fetches.
func WithImage(img *loader.Image) MachineOption {
	return func(m *Machine) {
		m.image = img
	}
}

// WithMaxInstructions sets the maximum number of instructions to retire.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) MachineOption {
	return func(m *Machine) {
		m.maxInstructions = max
	}
}

// NewMachine creates a machine that replays trace.
func NewMachine(trace []TraceRecord, opts ...MachineOption) *Machine {
	m := &Machine{
		trace: trace,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Cycles returns the cycle counter.
func (m *Machine) Cycles() int64 {
	return m.cycles
}

// ReadOpcode returns the opcode word at addr, or zero if addr is outside the
// program image.
func (m *Machine) ReadOpcode(addr uint32) uint16 {
	return m.image.ReadOpcode(addr)
}

// InstructionCount returns the number of instructions retired.
func (m *Machine) InstructionCount() uint64 {
	return m.instructionCount
}

// Reset rewinds the trace and zeroes the cycle counter. The installed hook
// is left in place.
func (m *Machine) Reset() {
	m.pos = 0
	m.cycles = 0
	m.instructionCount = 0
}

// Step retires the next instruction of the trace.
func (m *Machine) Step() StepResult {
	if m.maxInstructions > 0 && m.instructionCount >= m.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("max instructions reached"),
		}
	}

	if m.pos >= len(m.trace) {
		return StepResult{Exited: true}
	}

	rec := m.trace[m.pos]
	m.pos++

	m.cycles += int64(rec.Cost)
	m.instructionCount++
	m.Retire(rec.PC)

	return StepResult{PC: rec.PC}
}

// Run retires instructions until the trace is exhausted or the instruction
// limit is hit. It returns the number of instructions retired by this call.
func (m *Machine) Run() uint64 {
	start := m.instructionCount

	for {
		result := m.Step()
		if result.Exited {
			break
		}
		if result.Err != nil {
			log.WithError(result.Err).Warn("replay stopped")
			break
		}
	}

	log.WithFields(log.Fields{
		"instructions": m.instructionCount - start,
		"cycles":       m.cycles,
	}).Debug("replay finished")

	return m.instructionCount - start
}
