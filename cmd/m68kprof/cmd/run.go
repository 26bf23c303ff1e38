package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarchlab/m68kprof/emu"
	"github.com/sarchlab/m68kprof/loader"
	"github.com/sarchlab/m68kprof/metrics"
	"github.com/sarchlab/m68kprof/profiler"
	"github.com/sarchlab/m68kprof/report"
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("rom", "", "raw ROM image mapped at address 0")
	runCmd.Flags().String("elf", "", "68000 ELF executable (image and symbols)")
	runCmd.Flags().StringP("symbols", "s", "", "nm listing or ELF file to read symbols from")
	runCmd.Flags().String("sym-text", "", "symbol file of \"address size name\" lines")
	runCmd.Flags().StringP("mode", "m", "exclusive", "profiling mode (exclusive, callstack)")
	runCmd.Flags().IntP("sample-rate", "r", 1, "instructions between attributed samples")
	runCmd.Flags().String("histogram", "", "export the address histogram to this file")
	runCmd.Flags().IntP("top", "n", 20, "number of functions to report (0 for all)")
	runCmd.Flags().String("metrics-out", "", "write Prometheus metrics to this file")
	runCmd.Flags().Bool("humanize", false, "group digits in cycle counts")
	runCmd.Flags().Bool("color", false, "colorize output")
	runCmd.Flags().Uint64("max-instr", 0, "max instructions to replay (0 = unlimited)")
	runCmd.Flags().String("cpuprofile", "", "write a CPU profile of m68kprof itself to file")
	runCmd.MarkFlagsMutuallyExclusive("rom", "elf")

	viper.BindPFlag("mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("sample_rate", runCmd.Flags().Lookup("sample-rate"))
	viper.BindPFlag("histogram_path", runCmd.Flags().Lookup("histogram"))
	viper.BindPFlag("top", runCmd.Flags().Lookup("top"))
	viper.BindPFlag("metrics_path", runCmd.Flags().Lookup("metrics-out"))
	viper.BindPFlag("humanize", runCmd.Flags().Lookup("humanize"))
	viper.BindPFlag("color", runCmd.Flags().Lookup("color"))
}

var runCmd = &cobra.Command{
	Use:   "run <TRACE>",
	Short: "Profile a recorded execution trace",
	Example: `  m68kprof run --elf prime_sieve.elf prime_sieve.trace
  m68kprof run --rom game.bin --symbols game.nm -m callstack -r 8 game.trace`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if path, _ := cmd.Flags().GetString("cpuprofile"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create CPU profile: %w", err)
			}
			defer func() { _ = f.Close() }()

			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("failed to start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		trace, err := emu.LoadTrace(args[0])
		if err != nil {
			return err
		}
		log.WithField("instructions", humanize.Comma(int64(len(trace)))).Info("Loaded trace")

		romPath, _ := cmd.Flags().GetString("rom")
		elfPath, _ := cmd.Flags().GetString("elf")
		img, err := loadImage(romPath, elfPath)
		if err != nil {
			return err
		}

		maxInstr, _ := cmd.Flags().GetUint64("max-instr")
		machine := emu.NewMachine(trace,
			emu.WithImage(img),
			emu.WithMaxInstructions(maxInstr),
		)

		prof := profiler.NewProfiler(machine)

		symPath, _ := cmd.Flags().GetString("symbols")
		if symPath == "" {
			symPath = elfPath
		}
		textPath, _ := cmd.Flags().GetString("sym-text")
		if err := loadSymbols(prof, symPath, textPath); err != nil {
			return err
		}

		if err := prof.Start(cfg.ProfileOptions()); err != nil {
			return err
		}
		start := time.Now()
		retired := machine.Run()
		prof.Stop()

		log.WithFields(log.Fields{
			"instructions": humanize.Comma(int64(retired)),
			"cycles":       humanize.Comma(machine.Cycles()),
			"elapsed":      time.Since(start).Round(time.Millisecond),
		}).Info("Replay complete")

		if prof.Mode() == profiler.ModeCallStack && prof.DroppedFrames() > 0 {
			log.WithField("frames", prof.DroppedFrames()).Warn("Call stack overflowed, some calls were not tracked")
		}

		if err := report.PrintReport(os.Stdout, prof, report.Options{
			MaxFunctions: cfg.Top,
			Humanize:     cfg.Humanize,
			Color:        cfg.Color,
		}); err != nil {
			return err
		}

		if cfg.HistogramPath != "" {
			if err := report.ExportHistogram(cfg.HistogramPath, prof); err != nil {
				return err
			}
			log.WithField("path", cfg.HistogramPath).Info("Exported address histogram")
		}

		if cfg.MetricsPath != "" {
			if err := metrics.WriteTextfile(cfg.MetricsPath, prof); err != nil {
				return err
			}
			log.WithField("path", cfg.MetricsPath).Info("Wrote metrics")
		}

		return nil
	},
}

func loadImage(romPath, elfPath string) (*loader.Image, error) {
	switch {
	case elfPath != "":
		prog, err := loader.Load(elfPath)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"entry":    fmt.Sprintf("%#x", prog.EntryPoint),
			"segments": len(prog.Segments),
		}).Debug("Loaded ELF")
		return prog.Image(), nil
	case romPath != "":
		return loader.LoadROM(romPath)
	}

	log.Warn("No program image given, call stack mode will not see any calls")
	return nil, nil
}

func loadSymbols(prof *profiler.Profiler, symPath, textPath string) error {
	if symPath != "" {
		n, err := prof.LoadFromExternalSymbolSource(symPath)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"path": symPath, "functions": n}).Info("Loaded symbols")
	}

	if textPath != "" {
		n, err := prof.LoadFromTextFile(textPath)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{"path": textPath, "functions": n}).Info("Loaded symbols")
	}

	if prof.SymbolCount() == 0 {
		log.Warn("No symbols loaded, cycles will only be counted in the total")
	}

	return nil
}
