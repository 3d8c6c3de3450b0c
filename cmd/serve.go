package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orawipe/orawipe/internal/api"
	"github.com/orawipe/orawipe/internal/logging"
	"github.com/orawipe/orawipe/internal/ws"
)

var (
	servePort    int
	serveDevMode bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the REST API server. POST /api/clean accepts a connection and a
target schema and runs a clean; /api/ws streams per-round progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfigOrDefault()

		logger, err := logging.Setup(logLevel, cfg.Logging.Directory)
		if err != nil {
			return err
		}

		hub := ws.NewHub(logger)
		go hub.Run()

		srv := api.New(logger, servePort, cfg.Protection.SchemaPattern,
			api.WithHub(hub),
			api.WithDevMode(serveDevMode),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on")
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable CORS for development")
	rootCmd.AddCommand(serveCmd)
}
