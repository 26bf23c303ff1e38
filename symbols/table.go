// Package symbols provides the function range table used to attribute
// program counter values to named routines.
//
// The table is kept sorted by start address so that containment lookups are a
// single binary search followed by one range check:
//
//	t := symbols.NewTable()
//	t.Register(0x200, 0x210, "_start")
//	fn, ok := t.LookupContaining(0x204) // fn.Name == "_start"
package symbols

import "sort"

// ProvisionalSize is the range width assigned to symbols that come without a
// size. It is clipped against the next function once all symbols are loaded.
const ProvisionalSize = 0x100

// FunctionDef is a named address range [Start, End).
type FunctionDef struct {
	Start uint32
	End   uint32
	Name  string
}

// Size returns the number of bytes covered by the function.
func (f FunctionDef) Size() uint32 {
	return f.End - f.Start
}

// Contains reports whether addr lies inside the function.
func (f FunctionDef) Contains(addr uint32) bool {
	return addr >= f.Start && addr < f.End
}

// Table is an ordered collection of function ranges.
type Table struct {
	funcs []FunctionDef
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// Register inserts a function. Ranges with end <= start are ignored and false
// is returned. Functions sharing a start address keep their insertion order.
func (t *Table) Register(start, end uint32, name string) bool {
	if end <= start {
		return false
	}

	// first index whose start is strictly greater, so equal starts stay in
	// insertion order
	i := sort.Search(len(t.funcs), func(i int) bool {
		return t.funcs[i].Start > start
	})

	t.funcs = append(t.funcs, FunctionDef{})
	copy(t.funcs[i+1:], t.funcs[i:])
	t.funcs[i] = FunctionDef{Start: start, End: end, Name: name}

	return true
}

// Clear removes every function.
func (t *Table) Clear() {
	t.funcs = t.funcs[:0]
}

// Len returns the number of registered functions.
func (t *Table) Len() int {
	return len(t.funcs)
}

// Functions returns a copy of the table in start address order.
func (t *Table) Functions() []FunctionDef {
	out := make([]FunctionDef, len(t.funcs))
	copy(out, t.funcs)
	return out
}

// Index returns the table index of the function containing addr, or -1.
//
// Only the candidate with the greatest start <= addr is checked. With
// overlapping ranges an address covered solely by an earlier function is
// therefore not found.
func (t *Table) Index(addr uint32) int {
	i := sort.Search(len(t.funcs), func(i int) bool {
		return t.funcs[i].Start > addr
	})
	if i == 0 {
		return -1
	}
	i--
	if addr < t.funcs[i].End {
		return i
	}
	return -1
}

// At returns the function at a table index obtained from Index.
func (t *Table) At(i int) FunctionDef {
	return t.funcs[i]
}

// LookupContaining returns the function whose range contains addr.
func (t *Table) LookupContaining(addr uint32) (FunctionDef, bool) {
	i := t.Index(addr)
	if i < 0 {
		return FunctionDef{}, false
	}
	return t.funcs[i], true
}

// ClipOverlaps trims each function so that it ends no later than the start
// of its successor. Functions left with an empty range are dropped.
func (t *Table) ClipOverlaps() {
	for i := 0; i+1 < len(t.funcs); i++ {
		if t.funcs[i].End > t.funcs[i+1].Start {
			t.funcs[i].End = t.funcs[i+1].Start
		}
	}

	kept := t.funcs[:0]
	for _, f := range t.funcs {
		if f.End > f.Start {
			kept = append(kept, f)
		}
	}
	t.funcs = kept
}

// provisionalEnd returns start+size saturated at the top of the address space.
func provisionalEnd(start, size uint32) uint32 {
	if size > ^uint32(0)-start {
		return ^uint32(0)
	}
	return start + size
}
