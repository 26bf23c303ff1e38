package profiler

// MaxCallStackDepth bounds the call stack. Calls made while the stack is full
// are not tracked.
const MaxCallStackDepth = 256

// CallFrame is an active call: the start address of the function that was
// entered and the cycle count at entry.
type CallFrame struct {
	FuncAddr   uint32
	EntryCycle int64
}

type callStack struct {
	frames  []CallFrame
	dropped uint64
}

func (s *callStack) push(f CallFrame) {
	if len(s.frames) >= MaxCallStackDepth {
		s.dropped++
		return
	}
	s.frames = append(s.frames, f)
}

func (s *callStack) pop() (CallFrame, bool) {
	n := len(s.frames)
	if n == 0 {
		return CallFrame{}, false
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f, true
}

func (s *callStack) depth() int {
	return len(s.frames)
}

func (s *callStack) reset() {
	s.frames = s.frames[:0]
	s.dropped = 0
}

// Depth returns the number of active call frames.
func (p *Profiler) Depth() int {
	return p.stack.depth()
}

// DroppedFrames returns the number of calls that were not tracked because
// the call stack was full.
func (p *Profiler) DroppedFrames() uint64 {
	return p.stack.dropped
}
