// Package insts classifies Motorola 68000 opcodes for call-stack tracking.
//
// Only the control-transfer forms needed to bracket subroutines are
// recognized; every other opcode is KindOther:
//   - Calls: JSR <ea>, BSR <disp>
//   - Returns: RTS, RTR
//
// Usage:
//
//	if insts.Classify(0x4EB9) == insts.KindCall { // JSR (xxx).L
//		...
//	}
package insts

// Kind is the control-flow class of an opcode.
type Kind uint8

// Control-flow classes.
const (
	KindOther Kind = iota
	KindCall
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	}
	return "other"
}

// Encodings of the recognized instructions.
const (
	// JSR: 0100 1110 10xx xxxx (0x4E80-0x4EBF)
	jsrMask    = 0xFFC0
	jsrPattern = 0x4E80

	// BSR: 0110 0001 xxxx xxxx (0x6100-0x61FF)
	bsrMask    = 0xFF00
	bsrPattern = 0x6100

	rtsOpcode = 0x4E75
	rtrOpcode = 0x4E77
)

// Classify returns the control-flow class of an opcode word.
func Classify(word uint16) Kind {
	switch {
	case word&jsrMask == jsrPattern, word&bsrMask == bsrPattern:
		return KindCall
	case word == rtsOpcode, word == rtrOpcode:
		return KindReturn
	}
	return KindOther
}
