// Package loader provides program image loading for 68000 executables.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
	"sort"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the address where this segment should be loaded.
	VirtAddr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded 68000 ELF program.
type Program struct {
	// EntryPoint is the address where execution begins.
	EntryPoint uint32
	// Segments contains all loadable segments from the ELF file, in file
	// order.
	Segments []Segment
}

// Load parses a 68000 ELF binary and returns its loadable segments.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := validate(f); err != nil {
		return nil, err
	}

	prog := &Program{
		EntryPoint: uint32(f.Entry),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: uint32(phdr.Vaddr),
			Data:     data,
			MemSize:  uint32(phdr.Memsz),
			Flags:    flags,
		})
	}

	return prog, nil
}

// Image flattens the file-backed contents of every segment into a single
// image spanning the lowest to the highest loaded address. Gaps between
// segments read as zero.
func (p *Program) Image() *Image {
	segs := make([]Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		if len(seg.Data) > 0 {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return NewImage(0, nil)
	}

	sort.SliceStable(segs, func(i, j int) bool {
		return segs[i].VirtAddr < segs[j].VirtAddr
	})

	base := segs[0].VirtAddr
	var top uint64
	for _, seg := range segs {
		if end := uint64(seg.VirtAddr) + uint64(len(seg.Data)); end > top {
			top = end
		}
	}
	// the image cannot extend past the 32-bit address space
	top = min(top, 1<<32)

	data := make([]byte, top-uint64(base))
	for _, seg := range segs {
		copy(data[seg.VirtAddr-base:], seg.Data)
	}

	return NewImage(base, data)
}

// IsELF reports whether the file at path starts with the ELF magic.
func IsELF(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return string(magic[:]) == elf.ELFMAG
}

func validate(f *elf.File) error {
	if f.Class != elf.ELFCLASS32 {
		return fmt.Errorf("not a 32-bit ELF file")
	}
	if f.Machine != elf.EM_68K {
		return fmt.Errorf("not a 68000 ELF file (machine type: %v)", f.Machine)
	}
	return nil
}
