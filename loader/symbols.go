package loader

import (
	"debug/elf"
	"fmt"

	"github.com/sarchlab/m68kprof/symbols"
)

// ELFSymbols extracts code symbols from a 68000 ELF symbol table. Function
// and untyped symbols defined in an executable section are returned in
// symbol table order. Symbols without a size are given
// symbols.ProvisionalSize bytes and should be clipped once registered.
func ELFSymbols(path string) ([]symbols.FunctionDef, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := validate(f); err != nil {
		return nil, err
	}

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	var defs []symbols.FunctionDef
	for _, sym := range syms {
		if sym.Name == "" || !isCodeSymbol(f, sym) {
			continue
		}

		start := uint32(sym.Value)
		size := uint32(sym.Size)
		if size == 0 {
			size = symbols.ProvisionalSize
		}

		end := start + size
		if end < start {
			end = ^uint32(0)
		}

		defs = append(defs, symbols.FunctionDef{Start: start, End: end, Name: sym.Name})
	}

	return defs, nil
}

func isCodeSymbol(f *elf.File, sym elf.Symbol) bool {
	switch elf.ST_TYPE(sym.Info) {
	case elf.STT_FUNC, elf.STT_NOTYPE:
	default:
		return false
	}

	idx := int(sym.Section)
	if idx <= 0 || idx >= len(f.Sections) {
		return false
	}
	return f.Sections[idx].Flags&elf.SHF_EXECINSTR != 0
}
