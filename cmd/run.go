package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [source...]",
		Short: "Run supervised catalog passes with the ops server",
		Long: `Runs a full supervised pass (discovery then ingestion) for each source
concurrently, restarting failed passes until they succeed. The ops HTTP
server (health, metrics, status) runs for the duration. Stops cleanly on
SIGINT or SIGTERM.`,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The ops server outlives the passes and is shut down once they
	// all finish.
	opsCtx, cancelOps := context.WithCancel(ctx)
	defer cancelOps()
	opsErr := make(chan error, 1)
	go func() { opsErr <- appInstance.Ops().Serve(opsCtx, appInstance.OpsAddr()) }()

	group, runCtx := errgroup.WithContext(ctx)
	for _, codeName := range resolveSources(appInstance, args) {
		sup, err := appInstance.Supervisor(codeName)
		if err != nil {
			cancelOps()
			return err
		}
		appInstance.Logger().Info("supervising source", zap.String("code_name", codeName))
		group.Go(func() error { return sup.Run(runCtx) })
	}

	err = group.Wait()
	cancelOps()
	if serveErr := <-opsErr; err == nil {
		err = serveErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
