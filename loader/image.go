package loader

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Image is a contiguous block of program bytes mapped at Base. It serves
// opcode fetches for call/return classification.
type Image struct {
	Base uint32
	Data []byte
}

// NewImage maps data at base.
func NewImage(base uint32, data []byte) *Image {
	return &Image{Base: base, Data: data}
}

// LoadROM reads a raw cartridge binary mapped at address zero.
func LoadROM(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM file: %w", err)
	}
	return NewImage(0, data), nil
}

// Size returns the number of mapped bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// ReadOpcode returns the big-endian word at addr. Both bytes must lie inside
// the image, otherwise zero is returned.
func (img *Image) ReadOpcode(addr uint32) uint16 {
	if img == nil || addr < img.Base {
		return 0
	}
	off := uint64(addr - img.Base)
	if off+1 >= uint64(len(img.Data)) {
		return 0
	}
	return binary.BigEndian.Uint16(img.Data[off:])
}
