package profiler

import "maps"

// GetStats returns the statistics of the function starting at addr.
func (p *Profiler) GetStats(addr uint32) (FunctionStats, bool) {
	st, ok := p.stats[addr]
	if !ok {
		return FunctionStats{}, false
	}
	return *st, true
}

// GetAllStats returns a copy of every function's statistics keyed by start
// address.
func (p *Profiler) GetAllStats() map[uint32]FunctionStats {
	out := make(map[uint32]FunctionStats, len(p.stats))
	for addr, st := range p.stats {
		out[addr] = *st
	}
	return out
}

// GetTotalCycles returns the cycles retired while profiling. Sampling never
// affects this value.
func (p *Profiler) GetTotalCycles() uint64 {
	return p.totalCycles
}

// GetHistogram returns a copy of the per-address cycle histogram.
func (p *Profiler) GetHistogram() map[uint32]uint64 {
	return maps.Clone(p.histogram)
}
