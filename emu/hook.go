// Package emu provides the host side of the instruction hook: a single hook
// slot that an emulation loop retires instructions through, and a
// trace-replay machine that drives it deterministically.
package emu

import (
	"errors"

	"github.com/sarchlab/akita/v4/sim"
)

// HookPosInstRetired marks a hook invocation made after an instruction has
// completed and before the next one begins. HookCtx.Item carries the
// instruction's address as a uint32.
var HookPosInstRetired = &sim.HookPos{Name: "InstRetired"}

// ErrHookBusy is returned when a hook is installed into a slot that already
// holds a different hook.
var ErrHookBusy = errors.New("instruction hook already installed")

// HookSlot holds at most one instruction hook.
type HookSlot struct {
	hook sim.Hook
}

// InstallHook installs h. Installing the hook that is already installed is a
// no-op; installing any other hook while the slot is occupied fails with
// ErrHookBusy.
func (s *HookSlot) InstallHook(h sim.Hook) error {
	if s.hook != nil && s.hook != h {
		return ErrHookBusy
	}
	s.hook = h
	return nil
}

// UninstallHook empties the slot if h is the installed hook.
func (s *HookSlot) UninstallHook(h sim.Hook) {
	if s.hook == h {
		s.hook = nil
	}
}

// Installed reports whether a hook is installed.
func (s *HookSlot) Installed() bool {
	return s.hook != nil
}

// Retire invokes the installed hook for the instruction at pc.
func (s *HookSlot) Retire(pc uint32) {
	if s.hook == nil {
		return
	}
	s.hook.Func(sim.HookCtx{
		Pos:  HookPosInstRetired,
		Item: pc,
	})
}
