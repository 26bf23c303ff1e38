package profiler_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/m68kprof/emu"
	"github.com/sarchlab/m68kprof/profiler"
)

var _ = Describe("Profiler", func() {
	var (
		m *emu.Machine
		p *profiler.Profiler
	)

	registerAB := func() {
		p.Register(0x200, 0x210, "A")
		p.Register(0x210, 0x300, "B")
	}

	Describe("exclusive attribution", func() {
		BeforeEach(func() {
			m = emu.NewMachine(traceOf(4, 0x200, 0x205, 0x210, 0x250, 0x200))
			p = profiler.NewProfiler(m)
			registerAB()
		})

		It("should attribute cycles and count cross-function entries", func() {
			Expect(p.Start(profiler.Options{SampleRate: 1})).To(Succeed())
			m.Run()
			p.Stop()

			a, ok := p.GetStats(0x200)
			Expect(ok).To(BeTrue())
			Expect(a.CyclesExclusive).To(Equal(uint64(12)))
			Expect(a.CallCount).To(Equal(uint64(1)))

			b, ok := p.GetStats(0x210)
			Expect(ok).To(BeTrue())
			Expect(b.CyclesExclusive).To(Equal(uint64(8)))
			Expect(b.CallCount).To(Equal(uint64(1)))

			Expect(p.GetTotalCycles()).To(Equal(uint64(20)))
		})

		It("should count cycles outside every function only in the total", func() {
			m = emu.NewMachine(traceOf(4, 0x100, 0x200, 0x104))
			p = profiler.NewProfiler(m)
			registerAB()

			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Run()

			a, _ := p.GetStats(0x200)
			Expect(a.CyclesExclusive).To(Equal(uint64(4)))
			Expect(a.CallCount).To(Equal(uint64(1)))
			Expect(p.GetTotalCycles()).To(Equal(uint64(12)))
		})

		It("should not attribute instructions that took no cycles", func() {
			m = emu.NewMachine([]emu.TraceRecord{
				{PC: 0x200, Cost: 4},
				{PC: 0x210, Cost: 0},
				{PC: 0x214, Cost: 4},
			})
			p = profiler.NewProfiler(m)
			registerAB()

			Expect(p.Start(profiler.Options{CollectHistogram: true})).To(Succeed())
			m.Run()

			b, _ := p.GetStats(0x210)
			Expect(b.CyclesExclusive).To(Equal(uint64(4)))
			Expect(b.CallCount).To(BeZero())
			Expect(p.GetHistogram()).NotTo(HaveKey(uint32(0x210)))
			Expect(p.GetTotalCycles()).To(Equal(uint64(8)))
		})

		It("should measure from the cycle count at start", func() {
			m.Step()
			m.Step()

			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Run()

			Expect(p.GetTotalCycles()).To(Equal(uint64(12)))
		})

		It("should ignore events while idle", func() {
			m.Run()
			p.OnExecute(0x200)

			Expect(p.GetTotalCycles()).To(BeZero())
		})
	})

	Describe("histogram", func() {
		var trace []emu.TraceRecord

		BeforeEach(func() {
			trace = mixedTrace(10000)
			m = emu.NewMachine(trace)
			p = profiler.NewProfiler(m)
			p.Register(0x200, 0x210, "main")
			p.Register(0x210, 0x300, "work")
			p.Register(0x400, 0x410, "leaf")
		})

		It("should be empty when disabled", func() {
			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Run()

			Expect(p.HistogramEnabled()).To(BeFalse())
			Expect(p.GetHistogram()).To(BeEmpty())
		})

		It("should sum to the total without sampling", func() {
			Expect(p.Start(profiler.Options{SampleRate: 1, CollectHistogram: true})).To(Succeed())
			m.Run()

			Expect(p.GetTotalCycles()).To(Equal(sumTrace(trace)))
			Expect(sumHistogram(p.GetHistogram())).To(Equal(p.GetTotalCycles()))
		})

		It("should return a copy", func() {
			Expect(p.Start(profiler.Options{CollectHistogram: true})).To(Succeed())
			m.Run()

			h := p.GetHistogram()
			h[0x200] = 0
			Expect(p.GetHistogram()[0x200]).NotTo(BeZero())
		})

		DescribeTable("should stay within one window of the total when sampling",
			func(rate int) {
				Expect(p.Start(profiler.Options{SampleRate: rate, CollectHistogram: true})).To(Succeed())
				m.Run()

				total := p.GetTotalCycles()
				hist := sumHistogram(p.GetHistogram())

				Expect(total).To(Equal(sumTrace(trace)))
				Expect(hist).To(BeNumerically("<=", total))
				Expect(total - hist).To(BeNumerically("<=", uint64(rate)*20))
				Expect(float64(hist)).To(BeNumerically(">=", 0.99*float64(total)))

				var exclusive uint64
				for _, st := range p.GetAllStats() {
					exclusive += st.CyclesExclusive
				}
				Expect(exclusive).To(Equal(hist))
			},
			Entry("rate 2", 2),
			Entry("rate 7", 7),
			Entry("rate 64", 64),
			Entry("rate 100", 100),
		)

		It("should treat a zero sample rate as one", func() {
			Expect(p.Start(profiler.Options{SampleRate: 0, CollectHistogram: true})).To(Succeed())
			m.Run()

			Expect(p.SampleRate()).To(Equal(1))
			Expect(sumHistogram(p.GetHistogram())).To(Equal(p.GetTotalCycles()))
		})
	})

	Describe("lifecycle", func() {
		BeforeEach(func() {
			m = emu.NewMachine(mixedTrace(100))
			p = profiler.NewProfiler(m)
			p.Register(0x200, 0x210, "main")
			p.Register(0x210, 0x300, "work")
		})

		It("should install and remove its hook", func() {
			Expect(p.IsRunning()).To(BeFalse())

			Expect(p.Start(profiler.Options{})).To(Succeed())
			Expect(p.IsRunning()).To(BeTrue())
			Expect(m.Installed()).To(BeTrue())

			p.Stop()
			Expect(p.IsRunning()).To(BeFalse())
			Expect(m.Installed()).To(BeFalse())
		})

		It("should ignore Start while running", func() {
			Expect(p.Start(profiler.Options{Mode: profiler.ModeExclusive, SampleRate: 1})).To(Succeed())
			m.Step()
			m.Step()
			total := p.GetTotalCycles()

			Expect(p.Start(profiler.Options{Mode: profiler.ModeCallStack, SampleRate: 8})).To(Succeed())
			Expect(p.Mode()).To(Equal(profiler.ModeExclusive))
			Expect(p.SampleRate()).To(Equal(1))
			Expect(p.GetTotalCycles()).To(Equal(total))
		})

		It("should ignore Stop while idle", func() {
			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Run()
			p.Stop()
			before := p.GetAllStats()

			p.Stop()
			Expect(p.IsRunning()).To(BeFalse())
			Expect(p.GetAllStats()).To(Equal(before))
		})

		It("should accumulate across sessions", func() {
			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Run()
			p.Stop()
			first := p.GetTotalCycles()

			m.Reset()
			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Run()
			p.Stop()

			Expect(p.GetTotalCycles()).To(Equal(2 * first))
		})

		It("should refuse to share a host with another running profiler", func() {
			other := profiler.NewProfiler(m)

			Expect(p.Start(profiler.Options{})).To(Succeed())
			Expect(other.Start(profiler.Options{})).To(MatchError(emu.ErrHookBusy))
			Expect(other.IsRunning()).To(BeFalse())

			p.Stop()
			Expect(other.Start(profiler.Options{})).To(Succeed())
		})

		It("should ignore hook events from other positions", func() {
			Expect(p.Start(profiler.Options{})).To(Succeed())
			m.Step()
			total := p.GetTotalCycles()

			p.Func(sim.HookCtx{Pos: &sim.HookPos{Name: "Other"}, Item: uint32(0x200)})
			p.Func(sim.HookCtx{Pos: emu.HookPosInstRetired, Item: "not a pc"})

			Expect(p.GetTotalCycles()).To(Equal(total))
		})
	})

	Describe("Reset", func() {
		BeforeEach(func() {
			m = emu.NewMachine(mixedTrace(200))
			p = profiler.NewProfiler(m)
			p.Register(0x200, 0x210, "main")
			p.Register(0x210, 0x300, "work")
		})

		It("should zero statistics and keep symbols", func() {
			Expect(p.Start(profiler.Options{Mode: profiler.ModeCallStack, CollectHistogram: true})).To(Succeed())
			m.Run()
			p.Stop()

			p.Reset()

			Expect(p.GetTotalCycles()).To(BeZero())
			Expect(p.GetHistogram()).To(BeEmpty())
			Expect(p.Depth()).To(BeZero())
			Expect(p.SymbolCount()).To(Equal(2))
			for _, st := range p.GetAllStats() {
				Expect(st).To(Equal(profiler.FunctionStats{}))
			}
		})

		It("should measure from now when running", func() {
			Expect(p.Start(profiler.Options{})).To(Succeed())
			for i := 0; i < 50; i++ {
				m.Step()
			}
			atReset := m.Cycles()

			p.Reset()
			m.Run()

			Expect(p.IsRunning()).To(BeTrue())
			Expect(p.GetTotalCycles()).To(Equal(uint64(m.Cycles() - atReset)))
		})

		It("should make runs reproducible", func() {
			opts := profiler.Options{Mode: profiler.ModeCallStack, SampleRate: 3, CollectHistogram: true}

			Expect(p.Start(opts)).To(Succeed())
			m.Run()
			p.Stop()
			firstTotal := p.GetTotalCycles()
			firstStats := p.GetAllStats()
			firstHist := p.GetHistogram()

			p.Reset()
			m.Reset()
			Expect(p.Start(opts)).To(Succeed())
			m.Run()
			p.Stop()

			Expect(p.GetTotalCycles()).To(Equal(firstTotal))
			Expect(p.GetAllStats()).To(Equal(firstStats))
			Expect(p.GetHistogram()).To(Equal(firstHist))
		})
	})

	Describe("ParseMode", func() {
		It("should accept mode names", func() {
			Expect(profiler.ParseMode("exclusive")).To(Equal(profiler.ModeExclusive))
			Expect(profiler.ParseMode("callstack")).To(Equal(profiler.ModeCallStack))
			Expect(profiler.ParseMode("Call-Stack")).To(Equal(profiler.ModeCallStack))
		})

		It("should reject unknown names", func() {
			_, err := profiler.ParseMode("flat")
			Expect(err).To(HaveOccurred())
		})

		It("should round-trip through String", func() {
			for _, mode := range []profiler.Mode{profiler.ModeExclusive, profiler.ModeCallStack} {
				Expect(profiler.ParseMode(mode.String())).To(Equal(mode))
			}
		})
	})
})
