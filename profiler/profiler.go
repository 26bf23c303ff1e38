// Package profiler attributes the cycle cost of every retired instruction to
// the function that contains it.
//
// A Profiler is attached to a Host, which owns the emulation loop. While
// running, the profiler sits in the host's instruction hook slot and is
// invoked once per retired instruction:
//
//	p := profiler.NewProfiler(machine)
//	p.Register(0x200, 0x210, "_start")
//	if err := p.Start(profiler.Options{SampleRate: 1}); err != nil {
//		return err
//	}
//	machine.Run()
//	p.Stop()
//
// Statistics survive Stop and accumulate across sessions until Reset.
package profiler

import (
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/m68kprof/emu"
	"github.com/sarchlab/m68kprof/insts"
	"github.com/sarchlab/m68kprof/symbols"
)

// Host is the emulation core a profiler attaches to.
type Host interface {
	// Cycles returns the monotonically non-decreasing cycle counter.
	Cycles() int64

	// ReadOpcode returns the big-endian opcode word at addr, or zero when
	// addr is outside the program image.
	ReadOpcode(addr uint32) uint16

	// InstallHook places h in the host's instruction hook slot.
	InstallHook(h sim.Hook) error

	// UninstallHook removes h from the slot if it is installed.
	UninstallHook(h sim.Hook)
}

// Mode selects which statistics are collected.
type Mode int

const (
	// ModeExclusive collects exclusive cycles and call counts only.
	ModeExclusive Mode = iota

	// ModeCallStack additionally tracks calls and returns to collect
	// inclusive cycles.
	ModeCallStack
)

func (m Mode) String() string {
	switch m {
	case ModeExclusive:
		return "exclusive"
	case ModeCallStack:
		return "callstack"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exclusive", "simple":
		return ModeExclusive, nil
	case "callstack", "call-stack", "inclusive":
		return ModeCallStack, nil
	}
	return ModeExclusive, fmt.Errorf("unknown profiling mode %q", s)
}

// Options configures a profiling session.
type Options struct {
	Mode Mode

	// SampleRate is the number of instructions between attributed samples.
	// Values below 1 are treated as 1.
	SampleRate int

	// CollectHistogram enables per-address cycle accumulation.
	CollectHistogram bool
}

// FunctionStats holds the statistics collected for one function.
type FunctionStats struct {
	CallCount       uint64
	CyclesExclusive uint64
	CyclesInclusive uint64
}

// Profiler is the cycle attribution state machine. It is not safe for
// concurrent use; the host must drive it from its emulation loop.
type Profiler struct {
	host  Host
	table *symbols.Table
	stats map[uint32]*FunctionStats

	mode             Mode
	sampleRate       int
	collectHistogram bool
	histogram        map[uint32]uint64

	running       bool
	lastPC        uint32
	lastCycles    int64
	pendingCycles int64
	sampleCounter int
	totalCycles   uint64

	stack callStack

	// lookup cache for the most recently attributed pc
	cachedPC  uint32
	cachedIdx int
	cacheOK   bool
}

// NewProfiler creates an idle profiler attached to host.
func NewProfiler(host Host) *Profiler {
	return &Profiler{
		host:       host,
		table:      symbols.NewTable(),
		stats:      make(map[uint32]*FunctionStats),
		sampleRate: 1,
		histogram:  make(map[uint32]uint64),
	}
}

// Start begins a profiling session. Starting a running profiler is a no-op.
// It returns emu.ErrHookBusy, wrapped, if another hook occupies the host's
// hook slot.
func (p *Profiler) Start(opts Options) error {
	if p.running {
		return nil
	}

	if err := p.host.InstallHook(p); err != nil {
		return fmt.Errorf("failed to start profiler: %w", err)
	}

	p.mode = opts.Mode
	p.sampleRate = opts.SampleRate
	if p.sampleRate < 1 {
		p.sampleRate = 1
	}
	p.collectHistogram = opts.CollectHistogram

	p.lastPC = 0
	p.sampleCounter = 0
	p.pendingCycles = 0
	p.stack.reset()
	p.cacheOK = false
	p.lastCycles = p.host.Cycles()
	p.running = true

	log.WithFields(log.Fields{
		"mode":        p.mode,
		"sample_rate": p.sampleRate,
		"histogram":   p.collectHistogram,
		"functions":   p.table.Len(),
	}).Debug("profiler started")

	return nil
}

// Stop ends the session. Collected statistics are kept. Stopping an idle
// profiler is a no-op.
func (p *Profiler) Stop() {
	if !p.running {
		return
	}

	p.host.UninstallHook(p)
	p.running = false

	log.WithFields(log.Fields{
		"total_cycles": p.totalCycles,
		"stack_depth":  p.stack.depth(),
	}).Debug("profiler stopped")
}

// Reset zeroes every statistic while keeping registered symbols. A running
// session keeps running with its baseline moved to the current cycle count.
func (p *Profiler) Reset() {
	p.totalCycles = 0
	for _, s := range p.stats {
		*s = FunctionStats{}
	}
	clear(p.histogram)
	p.stack.reset()

	p.lastPC = 0
	p.sampleCounter = 0
	p.pendingCycles = 0
	p.cacheOK = false

	if p.running {
		p.lastCycles = p.host.Cycles()
	}
}

// IsRunning reports whether a session is active.
func (p *Profiler) IsRunning() bool {
	return p.running
}

// Mode returns the mode of the current or most recent session.
func (p *Profiler) Mode() Mode {
	return p.mode
}

// SampleRate returns the sample rate of the current or most recent session.
func (p *Profiler) SampleRate() int {
	return p.sampleRate
}

// HistogramEnabled reports whether the current or most recent session
// collects the address histogram.
func (p *Profiler) HistogramEnabled() bool {
	return p.collectHistogram
}

// Func implements sim.Hook. It forwards instruction-retired events to
// OnExecute.
func (p *Profiler) Func(ctx sim.HookCtx) {
	if ctx.Pos != emu.HookPosInstRetired {
		return
	}

	pc, ok := ctx.Item.(uint32)
	if !ok {
		return
	}

	p.OnExecute(pc)
}

// OnExecute attributes the cycles spent since the previous instruction to
// the instruction at pc.
func (p *Profiler) OnExecute(pc uint32) {
	if !p.running {
		return
	}

	now := p.host.Cycles()
	delta := now - p.lastCycles
	p.lastCycles = now

	if delta <= 0 {
		p.lastPC = pc
		return
	}

	p.totalCycles += uint64(delta)

	if p.sampleRate > 1 {
		p.pendingCycles += delta
		p.sampleCounter++
		if p.sampleCounter < p.sampleRate {
			p.lastPC = pc
			return
		}
		p.sampleCounter = 0
		delta = p.pendingCycles
		p.pendingCycles = 0
	}

	if p.collectHistogram {
		p.histogram[pc] += uint64(delta)
	}

	idx := p.lookup(pc)
	var fn symbols.FunctionDef
	if idx >= 0 {
		fn = p.table.At(idx)
		st := p.statsFor(fn.Start)
		st.CyclesExclusive += uint64(delta)

		if p.lastPC != 0 && p.lookup(p.lastPC) != idx {
			st.CallCount++
		}
	}

	if p.mode == ModeCallStack && p.lastPC != 0 {
		p.trackCallStack(idx >= 0, fn.Start, now)
	}

	p.cachedPC, p.cachedIdx, p.cacheOK = pc, idx, true
	p.lastPC = pc
}

// trackCallStack classifies the instruction that just completed, at lastPC,
// and pushes or pops a frame accordingly.
func (p *Profiler) trackCallStack(found bool, funcStart uint32, now int64) {
	switch insts.Classify(p.host.ReadOpcode(p.lastPC)) {
	case insts.KindCall:
		if found {
			p.stack.push(CallFrame{FuncAddr: funcStart, EntryCycle: now})
		}
	case insts.KindReturn:
		frame, ok := p.stack.pop()
		if !ok {
			return
		}
		if inclusive := now - frame.EntryCycle; inclusive > 0 {
			if st, ok := p.stats[frame.FuncAddr]; ok {
				st.CyclesInclusive += uint64(inclusive)
			}
		}
	}
}

// lookup returns the table index of the function containing pc, or -1.
func (p *Profiler) lookup(pc uint32) int {
	if p.cacheOK && pc == p.cachedPC {
		return p.cachedIdx
	}
	return p.table.Index(pc)
}

func (p *Profiler) statsFor(start uint32) *FunctionStats {
	st, ok := p.stats[start]
	if !ok {
		st = &FunctionStats{}
		p.stats[start] = st
	}
	return st
}
