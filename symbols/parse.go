package symbols

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLineLength bounds a single listing line. Longer lines fail the parse.
const maxLineLength = 1 << 20

// ParseNM parses an nm style listing. The following line shapes are
// understood (addresses and sizes in hex):
//
//	00000210 00000014 t clear_sieve
//	00000200 T _start
//	00000210 14 clear_sieve
//	00000200 _start
//
// A three-field line is read as "address type name" when the listing has a
// type column, that is when any line carries four fields or a type letter
// that is not a hex digit. Otherwise it is read as "address size name".
// When a type column is present only text symbols (T or t) are kept.
// Symbols without a size get ProvisionalSize bytes; callers are expected to
// clip the table once every symbol is registered. Lines that do not fit any
// shape are skipped. A read error is returned as is, with no symbols.
func ParseNM(r io.Reader) ([]FunctionDef, error) {
	lines, err := readFields(r)
	if err != nil {
		return nil, err
	}

	typed := false
	for _, fields := range lines {
		if len(fields) == 4 || (len(fields) == 3 && isTypeLetter(fields[1]) && !isHexDigit(fields[1])) {
			typed = true
			break
		}
	}

	var defs []FunctionDef
	for _, fields := range lines {
		var (
			addr, size uint32
			name       string
			sized      bool
		)

		switch len(fields) {
		case 4:
			if !isTextType(fields[2]) {
				continue
			}
			if addr, err = parseHex(fields[0]); err != nil {
				continue
			}
			if size, err = parseHex(fields[1]); err != nil {
				continue
			}
			name, sized = fields[3], true

		case 3:
			if addr, err = parseHex(fields[0]); err != nil {
				continue
			}
			if typed {
				if !isTextType(fields[1]) {
					continue
				}
				name = fields[2]
			} else {
				if size, err = parseHex(fields[1]); err != nil {
					continue
				}
				name, sized = fields[2], true
			}

		case 2:
			if addr, err = parseHex(fields[0]); err != nil {
				continue
			}
			name = fields[1]

		default:
			continue
		}

		if !sized {
			size = ProvisionalSize
		}

		defs = append(defs, FunctionDef{
			Start: addr,
			End:   provisionalEnd(addr, size),
			Name:  name,
		})
	}

	return defs, nil
}

// ParseText parses the simple "hex_address decimal_size name" format, for
// example:
//
//	00000200 16 _start
//	00000210 94 main
//
// Unlike ParseNM the size column is decimal. Malformed lines are skipped; a
// read error is returned with no symbols.
func ParseText(r io.Reader) ([]FunctionDef, error) {
	lines, err := readFields(r)
	if err != nil {
		return nil, err
	}

	var defs []FunctionDef
	for _, fields := range lines {
		if len(fields) < 3 {
			continue
		}

		addr, err := parseHex(fields[0])
		if err != nil {
			continue
		}
		size, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}

		defs = append(defs, FunctionDef{
			Start: addr,
			End:   provisionalEnd(addr, uint32(size)),
			Name:  fields[2],
		})
	}

	return defs, nil
}

// readFields splits every non-empty line of r into whitespace separated
// fields.
func readFields(r io.Reader) ([][]string, error) {
	var lines [][]string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			lines = append(lines, fields)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol listing: %w", err)
	}

	return lines, nil
}

func parseHex(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	return uint32(v), err
}

func isTypeLetter(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '?'
}

func isHexDigit(s string) bool {
	if len(s) != 1 {
		return false
	}
	c := s[0]
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isTextType(s string) bool {
	return s == "T" || s == "t"
}
