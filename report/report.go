// Package report renders profiler statistics as a text table and exports the
// address histogram.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/sarchlab/m68kprof/profiler"
	"github.com/sarchlab/m68kprof/symbols"
)

// Source is the read side of a profiler.
type Source interface {
	Functions() []symbols.FunctionDef
	GetStats(addr uint32) (profiler.FunctionStats, bool)
	GetTotalCycles() uint64
	GetHistogram() map[uint32]uint64
	Mode() profiler.Mode
	SampleRate() int
}

// Options controls PrintReport.
type Options struct {
	// MaxFunctions limits the table to the top N functions. 0 means all.
	MaxFunctions int

	// Humanize prints cycle counts with thousands separators.
	Humanize bool

	// Color prints the header in bold.
	Color bool
}

// Row is one function's line in the report.
type Row struct {
	Name          string
	Addr          uint32
	Exclusive     uint64
	Inclusive     uint64
	Calls         uint64
	Percent       float64
	CyclesPerCall uint64
}

// Rows returns the functions with nonzero exclusive cycles, most expensive
// first. Only the first function registered at a start address is listed. Functions with equal cycles keep table order. A positive limit
// truncates the result.
func Rows(src Source, limit int) []Row {
	total := src.GetTotalCycles()

	var rows []Row
	seen := make(map[uint32]bool)
	for _, fn := range src.Functions() {
		// functions sharing a start address share their statistics
		if seen[fn.Start] {
			continue
		}
		seen[fn.Start] = true

		st, ok := src.GetStats(fn.Start)
		if !ok || st.CyclesExclusive == 0 {
			continue
		}

		row := Row{
			Name:      fn.Name,
			Addr:      fn.Start,
			Exclusive: st.CyclesExclusive,
			Inclusive: st.CyclesInclusive,
			Calls:     st.CallCount,
		}
		if total > 0 {
			row.Percent = 100 * float64(st.CyclesExclusive) / float64(total)
		}
		if st.CallCount > 0 {
			row.CyclesPerCall = st.CyclesExclusive / st.CallCount
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Exclusive > rows[j].Exclusive
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return rows
}

// PrintReport writes the function table to w.
func PrintReport(w io.Writer, src Source, opts Options) error {
	showInclusive := src.Mode() == profiler.ModeCallStack
	count := func(v uint64) string {
		if opts.Humanize {
			return humanize.Comma(int64(v))
		}
		return fmt.Sprintf("%d", v)
	}

	bold := color.New(color.Bold)
	if opts.Color {
		bold.EnableColor()
	} else {
		bold.DisableColor()
	}

	width := 70
	if showInclusive {
		width = 82
	}
	rule := strings.Repeat("-", width)

	var b strings.Builder
	b.WriteString("\n")
	if rate := src.SampleRate(); rate > 1 {
		fmt.Fprintf(&b, "Sample rate: 1/%d\n", rate)
	}

	header := fmt.Sprintf("%-30s%12s", "Function", "Cycles")
	if showInclusive {
		header += fmt.Sprintf("%12s", "Inclusive")
	}
	header += fmt.Sprintf("%10s%8s%10s", "Calls", "%", "Cyc/Call")
	b.WriteString(bold.Sprint(header))
	b.WriteString("\n")
	b.WriteString(rule + "\n")

	for _, r := range Rows(src, opts.MaxFunctions) {
		fmt.Fprintf(&b, "%-30s%12s", r.Name, count(r.Exclusive))
		if showInclusive {
			fmt.Fprintf(&b, "%12s", count(r.Inclusive))
		}
		fmt.Fprintf(&b, "%10s%7.2f%%%10s\n", count(r.Calls), r.Percent, count(r.CyclesPerCall))
	}

	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "%-30s%12s\n", "Total", count(src.GetTotalCycles()))

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
