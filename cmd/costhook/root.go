package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "costhook",
	Short:         "Provider credential vault and cost sync service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", os.Getenv("COSTHOOK_CONFIG"), "path to the YAML config file")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if name == "log_level" {
			name = "log-level"
		}
		return pflag.NormalizedName(name)
	})
}

func newLogger() *slogLogger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(logLevel))
	return newSlogLogger(os.Stderr, level)
}
