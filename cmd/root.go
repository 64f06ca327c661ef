// Package cmd defines the CLI commands for the catalog-crawler
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/app"
	"github.com/shelfwatch/catalog-crawler/internal/config"
	"github.com/shelfwatch/catalog-crawler/internal/ops"
	"github.com/shelfwatch/catalog-crawler/internal/supervisor"
	"github.com/shelfwatch/catalog-crawler/internal/worker"
)

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is the surface commands use, kept as an interface so tests can
// inject a fake.
type App interface {
	Close()
	Logger() *zap.Logger
	Worker(codeName string) (*worker.Worker, error)
	Supervisor(codeName string) (*supervisor.Supervisor, error)
	SourceNames() []string
	Ops() *ops.Server
	OpsAddr() string
}

// newApp is the application factory, swapped in tests.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-crawler",
		Short: "Resumable product catalog crawler",
		Long: `catalog-crawler walks retail catalogs source by source, persists the
discovered product URLs, and ingests each product exactly once. Crawls
are batch-scoped and resume from persisted state after a crash.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initializing application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default reads CATALOG_* environment variables)")

	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// resolveSources expands the command arguments to source code names,
// defaulting to every configured source.
func resolveSources(a App, args []string) []string {
	if len(args) > 0 {
		return args
	}
	return a.SourceNames()
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
