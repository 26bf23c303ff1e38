// Package main provides the m68kprof command line tool.
package main

import "github.com/sarchlab/m68kprof/cmd/m68kprof/cmd"

func main() {
	cmd.Execute()
}
