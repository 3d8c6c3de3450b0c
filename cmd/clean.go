package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orawipe/orawipe/internal/config"
	"github.com/orawipe/orawipe/internal/engine"
	"github.com/orawipe/orawipe/internal/lock"
	"github.com/orawipe/orawipe/internal/logging"
)

var (
	cleanUser     string
	cleanPassword string
	cleanHost     string
	cleanPort     int
	cleanDatabase string
	cleanSchema   string
	cleanParallel int
	cleanForce    bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop all objects owned by the target schema",
	Long: `Connect to the database and drop every object owned by the target
schema. Dependency-blocked drops are retried round by round until the
schema is empty or no further progress can be made.

The exit status is the number of objects still present after the run,
so 0 means the schema was fully emptied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfigOrDefault()

		if cleanUser != "" {
			cfg.Connection.Username = cleanUser
		}
		if cleanPassword != "" {
			pw, err := config.ResolveValue(cleanPassword)
			if err != nil {
				return fmt.Errorf("resolving password: %w", err)
			}
			cfg.Connection.Password = pw
		}
		if cleanHost != "" {
			cfg.Connection.Host = cleanHost
		}
		if cleanPort != 0 {
			cfg.Connection.Port = cleanPort
		}
		if cleanDatabase != "" {
			cfg.Connection.Database = cleanDatabase
		}
		if cleanParallel != 0 {
			cfg.Parallel = cleanParallel
		}

		if cfg.Connection.Username == "" || cfg.Connection.Host == "" || cfg.Connection.Database == "" {
			return fmt.Errorf("connection user, host, and database are required (flags or config file)")
		}

		logger, err := logging.Setup(logLevel, cfg.Logging.Directory)
		if err != nil {
			return err
		}

		if err := lock.Acquire(""); err != nil {
			return err
		}
		defer lock.Release("")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		req := engine.Request{
			Schema:   cleanSchema,
			Parallel: cfg.Parallel,
			Force:    cleanForce,
		}

		result, err := engine.Clean(ctx, cfg.Connection, cfg.Protection.SchemaPattern, req, logger, engine.Progress{})
		if err != nil {
			return err
		}

		if result.Clean() {
			fmt.Printf("Schema %s is empty after %d round(s), %d object(s) dropped.\n",
				result.Schema, result.Rounds, result.Dropped)
			return nil
		}

		fmt.Printf("Schema %s still holds %d object(s) after %d round(s):\n",
			result.Schema, len(result.Remaining), result.Rounds)
		for _, rem := range result.Remaining {
			fmt.Printf("  %s: %s\n", rem.Object, rem.Reason)
		}

		lock.Release("")
		os.Exit(len(result.Remaining))
		return nil
	},
}

// loadConfigOrDefault loads the config file when one is present and
// falls back to built-in defaults otherwise, so flag-only runs work.
func loadConfigOrDefault() *config.Config {
	path := cfgFile
	if path == "" {
		path = config.ExpandHome(config.DefaultPath)
	}
	if _, err := os.Stat(path); err != nil {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ignoring config %s: %v\n", path, err)
		return config.Default()
	}
	return cfg
}

func init() {
	cleanCmd.Flags().StringVar(&cleanUser, "user", "", "database login user")
	cleanCmd.Flags().StringVar(&cleanPassword, "password", "", "database login password (supports ${ENV:...}, ${VAULT:...}, ${AWS_SM:...})")
	cleanCmd.Flags().StringVar(&cleanHost, "host", "", "database service host")
	cleanCmd.Flags().IntVar(&cleanPort, "port", 0, "database listener port (default 1521)")
	cleanCmd.Flags().StringVar(&cleanDatabase, "database", "", "database service name")
	cleanCmd.Flags().StringVar(&cleanSchema, "target-schema", "", "schema to clear of objects")
	cleanCmd.Flags().IntVar(&cleanParallel, "parallel", 0, "number of concurrent drop workers (default 1)")
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "override the protected schema pattern")
	cleanCmd.MarkFlagRequired("target-schema")
	rootCmd.AddCommand(cleanCmd)
}
