// Package cmd implements the m68kprof commands.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	clihandler "github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sarchlab/m68kprof/config"
)

var (
	cfgFile string
	// Verbose enables debug logging
	Verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "m68kprof",
	Short: "Cycle profiler for 68000 programs",
	Long: `m68kprof replays an execution trace of a 68000 program and attributes
every instruction's cycles to the function that contains it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if Verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihandler.Default)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "profiling config file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

func initConfig() {
	viper.SetEnvPrefix("m68kprof")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// loadConfig builds the effective configuration. The config file, if any,
// replaces the built-in defaults; environment variables and flags bound to
// viper override both.
func loadConfig() (*config.Config, error) {
	base := config.DefaultConfig()
	if cfgFile != "" {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		base = loaded
		log.WithField("path", cfgFile).Debug("Using config file")
	}

	viper.SetDefault("mode", base.Mode)
	viper.SetDefault("sample_rate", base.SampleRate)
	viper.SetDefault("collect_histogram", base.CollectHistogram)
	viper.SetDefault("top", base.Top)
	viper.SetDefault("histogram_path", base.HistogramPath)
	viper.SetDefault("metrics_path", base.MetricsPath)
	viper.SetDefault("humanize", base.Humanize)
	viper.SetDefault("color", base.Color)

	cfg := base.Clone()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
