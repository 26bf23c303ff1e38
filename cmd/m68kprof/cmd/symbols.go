package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sarchlab/m68kprof/emu"
	"github.com/sarchlab/m68kprof/profiler"
	"github.com/sarchlab/m68kprof/symbols"
)

var colorAddr = color.New(color.Faint).SprintfFunc()

func init() {
	rootCmd.AddCommand(symbolsCmd)

	symbolsCmd.Flags().Bool("text", false, "input is a symbol file of \"address size name\" lines")
	symbolsCmd.Flags().StringP("output", "o", "", "write the table as a symbol file instead of listing it")
}

var symbolsCmd = &cobra.Command{
	Use:           "symbols <ELF|NM>",
	Aliases:       []string{"sym"},
	Short:         "List the function table read from a symbol source",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		prof := profiler.NewProfiler(emu.NewMachine(nil))

		var err error
		if text, _ := cmd.Flags().GetBool("text"); text {
			_, err = prof.LoadFromTextFile(args[0])
		} else {
			_, err = prof.LoadFromExternalSymbolSource(args[0])
		}
		if err != nil {
			return err
		}

		funcs := prof.Functions()

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create symbol file: %w", err)
			}

			if err := symbols.WriteText(f, funcs); err != nil {
				_ = f.Close()
				return fmt.Errorf("failed to write symbol file: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write symbol file: %w", err)
			}

			return nil
		}

		for _, fn := range funcs {
			fmt.Printf("%s  %8s  %s\n",
				colorAddr("%08x-%08x", fn.Start, fn.End),
				humanize.IBytes(uint64(fn.Size())),
				fn.Name)
		}

		return nil
	},
}
