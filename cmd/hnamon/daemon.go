package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hna-go/hnamon/internal/hna"
	"github.com/hna-go/hnamon/internal/rpc"
	"github.com/hna-go/hnamon/internal/specfile"
	"github.com/hna-go/hnamon/internal/telemetry"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a long-lived monitor daemon serving the RPC surface over a Unix socket",
	Long: `The daemon builds the slice-tree automaton for --spec once and then serves
it over its RPC socket until terminated, so repeated hnamon check/run
invocations against the same specification don't each pay the cost of
compiling BDD evaluation plans and automaton tables from scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireSpecPath()
		if err != nil {
			return err
		}

		shutdown := telemetry.Discard()
		if telemetryOn {
			shutdown, err = telemetry.Setup(telemetry.Stderr)
			if err != nil {
				return err
			}
		}
		defer func() { _ = shutdown(context.Background()) }()

		doc, err := specfile.Load(path)
		if err != nil {
			return err
		}
		spec, sc, alphabet, err := doc.Build()
		if err != nil {
			return err
		}

		tree, err := hna.NewSlicesTree(spec, sc, alphabet)
		if err != nil {
			return fmt.Errorf("building slice tree: %w", err)
		}

		rpc.ServerVersion = Version
		server := rpc.NewServer(socketPath, tree)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start() }()

		select {
		case <-server.WaitReady():
			slog.Info("daemon listening", "socket", socketPath)
		case err := <-errCh:
			return fmt.Errorf("starting daemon: %w", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("daemon received shutdown signal")
			if err := server.Stop(); err != nil {
				return fmt.Errorf("stopping daemon: %w", err)
			}
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("daemon exited: %w", err)
			}
			return nil
		}
	},
}
