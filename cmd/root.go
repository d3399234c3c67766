package cmd

import (
	"github.com/jsphweid/harmonia/config"
	"github.com/jsphweid/harmonia/logger"
	"github.com/jsphweid/harmonia/strategy"
	"github.com/spf13/cobra"
)

var (
	cfg        *config.Config
	configPath string
	seedFlag   int64
	kindFlag   string
	keyFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "harmonia",
	Short: "Procedural tonal composer",
	Long: `harmonia composes tonal music measure by measure: it plans harmonic
sections from a weighted chord graph, modulates through pivot chords and
voice-leads every bar.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("seed") {
			cfg.Seed = seedFlag
		}
		if flags.Changed("strategy") {
			cfg.Strategy = kindFlag
		}
		if flags.Changed("key") {
			cfg.Key = keyFlag
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return logger.Init(cfg.SentryDSN, "harmonia")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Flush()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default "+config.DefaultFile+" if present)")
	flags.Int64Var(&seedFlag, "seed", 0, "random seed; 0 picks one from the clock")
	flags.StringVar(&kindFlag, "strategy", "", "chorale, polyphony or modulating")
	flags.StringVar(&keyFlag, "key", "", `home key, e.g. "D major"`)
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func configuredKind() (strategy.Kind, error) {
	return strategy.ParseKind(cfg.Strategy)
}
