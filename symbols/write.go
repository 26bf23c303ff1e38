package symbols

import (
	"bufio"
	"fmt"
	"io"
)

// WriteText writes defs in the format read by ParseText.
func WriteText(w io.Writer, defs []FunctionDef) error {
	bw := bufio.NewWriter(w)
	for _, d := range defs {
		if _, err := fmt.Fprintf(bw, "%08x %d %s\n", d.Start, d.Size(), d.Name); err != nil {
			return err
		}
	}
	return bw.Flush()
}
