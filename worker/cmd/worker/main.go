package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"paperPatent/worker/config"
)

var (
	verbose bool
	noColor bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Paper to patent pipeline tools",
	Long: `Runs the patent generation pipeline on a local PDF and inspects the
lifecycle records published by the API server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
		cfg = config.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print generated content and debug logs")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newRunCmd(), newEventsCmd(), newStatusCmd())
}

// newLogger keeps zap quiet on the terminal unless --verbose is set; the
// feed is the primary output.
func newLogger() *zap.Logger {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	if !verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
