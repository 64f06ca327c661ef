package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [source...]",
		Short: "Walk listing pages and fill the URL frontier",
		Long: `Walks each source's listing pages starting from the batch checkpoint
(or the configured seed) and enqueues every product URL found. Run
without arguments it discovers all configured sources in turn.`,
		RunE: runDiscoverCommand,
	}
}

func runDiscoverCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	for _, codeName := range resolveSources(appInstance, args) {
		w, err := appInstance.Worker(codeName)
		if err != nil {
			return err
		}
		appInstance.Logger().Info("starting discovery", zap.String("code_name", codeName))
		if err := w.Discover(cmd.Context()); err != nil {
			return fmt.Errorf("discovering %s: %w", codeName, err)
		}
	}
	return nil
}
