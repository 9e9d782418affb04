package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gamepilot/gamepilot/pilotd/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pilotd",
	Short: "Game automation daemon",
	Long: `Pilotd exposes a game automation engine over HTTP. Agents submit
tasks (screenshots, taps, structured routines), pilotd serializes them onto
the single engine handle and streams progress back over SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("pilotd version {{.Version}}\n")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	srv, err := server.New()
	if err != nil {
		return fmt.Errorf("failed to initialize daemon: %w", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		srv.Base.Logger.Info("signal received, shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	return srv.Start()
}

func main() {
	// Missing .env is fine; real deployments configure the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
