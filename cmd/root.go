package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "orawipe",
	Short: "Orawipe — drop every object owned by an Oracle schema",
	Long: `Orawipe removes all objects owned by a database schema (tables, views,
sequences, procedures, types, scheduler jobs, and the rest) without
dropping the account itself, retrying dependency-blocked drops across
rounds until the schema is empty or no further progress is possible.`,
}

func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.orawipe/orawipe.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
