package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Histogram is the exported form of the address histogram. Address keys are
// eight lowercase hex digits, so they sort in address order.
type Histogram struct {
	SampleRate   int               `json:"sample_rate"`
	TotalCycles  uint64            `json:"total_cycles"`
	AddressCount int               `json:"address_count"`
	Addresses    map[string]uint64 `json:"addresses"`
}

// NewHistogram snapshots the histogram of src.
func NewHistogram(src Source) *Histogram {
	hist := src.GetHistogram()

	h := &Histogram{
		SampleRate:   src.SampleRate(),
		TotalCycles:  src.GetTotalCycles(),
		AddressCount: len(hist),
		Addresses:    make(map[string]uint64, len(hist)),
	}
	for addr, cycles := range hist {
		h.Addresses[fmt.Sprintf("%08x", addr)] = cycles
	}

	return h
}

// WriteHistogram writes the histogram of src to w as JSON.
func WriteHistogram(w io.Writer, src Source) error {
	data, err := json.MarshalIndent(NewHistogram(src), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode histogram: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write histogram: %w", err)
	}

	return nil
}

// ExportHistogram writes the histogram of src to the file at path.
func ExportHistogram(path string, src Source) error {
	var buf bytes.Buffer
	if err := WriteHistogram(&buf, src); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to export histogram: %w", err)
	}

	return nil
}
