package profiler

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"

	"github.com/sarchlab/m68kprof/loader"
	"github.com/sarchlab/m68kprof/symbols"
)

// Register adds a function covering [start, end). Ranges with end <= start
// are ignored. The function's statistics start at zero; registering a start
// address that is already known zeroes its statistics.
func (p *Profiler) Register(start, end uint32, name string) bool {
	if !p.table.Register(start, end, name) {
		return false
	}

	p.stats[start] = &FunctionStats{}
	p.cacheOK = false

	return true
}

// Clear drops every function and its statistics.
func (p *Profiler) Clear() {
	p.table.Clear()
	clear(p.stats)
	p.cacheOK = false
}

// SymbolCount returns the number of registered functions.
func (p *Profiler) SymbolCount() int {
	return p.table.Len()
}

// Functions returns the registered functions in start address order.
func (p *Profiler) Functions() []symbols.FunctionDef {
	return p.table.Functions()
}

// LookupFunction returns the function containing addr.
func (p *Profiler) LookupFunction(addr uint32) (symbols.FunctionDef, bool) {
	return p.table.LookupContaining(addr)
}

// LoadFromExternalSymbolSource registers the text symbols of a compiled
// program. path may name a 68000 ELF executable, whose symbol table is read
// directly, or an nm listing. Size-less symbols are clipped against their
// successors once everything is registered.
//
// It returns the number of functions added. On an I/O or format error it
// returns -1 and the table is left untouched.
func (p *Profiler) LoadFromExternalSymbolSource(path string) (int, error) {
	var (
		defs []symbols.FunctionDef
		err  error
	)

	if loader.IsELF(path) {
		defs, err = loader.ELFSymbols(path)
	} else {
		defs, err = parseFile(path, symbols.ParseNM)
	}
	if err != nil {
		return -1, err
	}

	n := p.registerAll(defs, true)

	log.WithFields(log.Fields{
		"path":      path,
		"functions": n,
	}).Debug("loaded symbols")

	return n, nil
}

// LoadFromExternalSymbolListing registers the symbols of an nm listing read
// from r and returns the number of functions added. If r fails it returns -1
// and the error, and the table is left untouched.
func (p *Profiler) LoadFromExternalSymbolListing(r io.Reader) (int, error) {
	defs, err := symbols.ParseNM(r)
	if err != nil {
		return -1, err
	}
	return p.registerAll(defs, true), nil
}

// LoadFromTextFile registers symbols from a file of
// "hex_address decimal_size name" lines. It returns -1 and the error if the
// file cannot be read, and the table is left untouched.
func (p *Profiler) LoadFromTextFile(path string) (int, error) {
	defs, err := parseFile(path, symbols.ParseText)
	if err != nil {
		return -1, err
	}

	n := p.registerAll(defs, false)

	log.WithFields(log.Fields{
		"path":      path,
		"functions": n,
	}).Debug("loaded symbols")

	return n, nil
}

func (p *Profiler) registerAll(defs []symbols.FunctionDef, clip bool) int {
	before := p.table.Len()

	for _, d := range defs {
		p.Register(d.Start, d.End, d.Name)
	}

	if clip {
		p.table.ClipOverlaps()
		p.cacheOK = false
	}

	return max(p.table.Len()-before, 0)
}

func parseFile(path string, parse func(io.Reader) ([]symbols.FunctionDef, error)) ([]symbols.FunctionDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol file: %w", err)
	}
	defer func() { _ = f.Close() }()

	defs, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return defs, nil
}
