package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oyerishi/smart-contract-auditor/internal/logging"
	"github.com/oyerishi/smart-contract-auditor/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auditor REST/WebSocket API server",
	Long: `Starts the HTTP API server: contract upload, scan lifecycle management,
SARIF export, and WebSocket progress streaming.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		logger := logging.NewHclogLogger("auditor", cfg.Logger.Level)

		srv, err := server.NewServer(server.Config{
			ListenAddr: cfg.Server.ListenAddr,
			AppConfig:  cfg.App,
			Logger:     logger,
		})
		if err != nil {
			fmt.Printf("Error starting server: %v\n", err)
			os.Exit(1)
		}

		httpSrv := srv.HTTPServer()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("API server listening", logging.Field{Key: "addr", Value: cfg.Server.ListenAddr})
			errCh <- httpSrv.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			logger.Error("server stopped", logging.Field{Key: "error", Value: err})
			srv.Close()
			os.Exit(1)
		case sig := <-sigCh:
			logger.Info("shutting down", logging.Field{Key: "signal", Value: sig.String()})
			_ = httpSrv.Close()
			srv.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
