package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/role-tracker/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only projections API",
	Long:  `Start an HTTP server that exposes posting projections, runs and the company registry as JSON.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.newServer().Start(ctx)
}

func (a *app) newServer() *server.Server {
	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	return server.New(server.Config{
		Port:              port,
		RequestsPerSecond: a.cfg.Server.RequestsPerSecond,
		Burst:             a.cfg.Server.Burst,
		Logger:            a.logger,
	}, a.store, a.ledger)
}

// serveInBackground runs the API until ctx ends. Errors are logged.
func (a *app) serveInBackground(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.newServer().Start(ctx); err != nil {
			a.logger.Error("server stopped with error", zap.Error(err))
		}
	}()
	return done
}
