package emu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TraceRecord is one retired instruction: its address and the number of
// cycles it took.
type TraceRecord struct {
	PC   uint32
	Cost uint32
}

// ParseTrace reads an execution trace. Each line holds a hex program
// counter and a decimal cycle cost:
//
//	# pc     cycles
//	00000200 20
//	00000210 4
//
// Blank lines and lines starting with '#' are ignored.
func ParseTrace(r io.Reader) ([]TraceRecord, error) {
	var records []TraceRecord

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("trace line %d: expected 2 fields, got %d", lineNo, len(fields))
		}

		pc, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: invalid pc %q: %w", lineNo, fields[0], err)
		}
		cost, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: invalid cycle count %q: %w", lineNo, fields[1], err)
		}

		records = append(records, TraceRecord{PC: uint32(pc), Cost: uint32(cost)})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return records, nil
}

// LoadTrace reads an execution trace from a file.
func LoadTrace(path string) ([]TraceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseTrace(f)
}
