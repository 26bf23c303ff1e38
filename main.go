// Package main provides the entry point for m68kprof, an instruction-level
// cycle profiler for 68000 programs. It is equivalent to ./cmd/m68kprof.
package main

import "github.com/sarchlab/m68kprof/cmd/m68kprof/cmd"

func main() {
	cmd.Execute()
}
