package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Replay the pending frontier through fetch and ingest",
		Long: `Fetches every unfetched frontier URL for each source, extracts the
product record, and stores it. URLs already ingested are skipped and
marked. Safe to re-run; it picks up where the last run stopped.`,
		RunE: runIngestCommand,
	}
}

func runIngestCommand(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	for _, codeName := range resolveSources(appInstance, args) {
		w, err := appInstance.Worker(codeName)
		if err != nil {
			return err
		}
		appInstance.Logger().Info("starting frontier replay", zap.String("code_name", codeName))
		if err := w.IngestPending(cmd.Context()); err != nil {
			return fmt.Errorf("ingesting %s: %w", codeName, err)
		}
	}
	return nil
}
