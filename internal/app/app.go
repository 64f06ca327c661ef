// Package app initializes and holds long-lived services, acting as the
// dependency injection container the commands pull from.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shelfwatch/catalog-crawler/internal/archive"
	"github.com/shelfwatch/catalog-crawler/internal/batch"
	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/clock/system"
	"github.com/shelfwatch/catalog-crawler/internal/config"
	"github.com/shelfwatch/catalog-crawler/internal/executor"
	"github.com/shelfwatch/catalog-crawler/internal/extract"
	apifetcher "github.com/shelfwatch/catalog-crawler/internal/fetcher/api"
	"github.com/shelfwatch/catalog-crawler/internal/fetcher/headless"
	"github.com/shelfwatch/catalog-crawler/internal/id/uuid"
	"github.com/shelfwatch/catalog-crawler/internal/ingest"
	"github.com/shelfwatch/catalog-crawler/internal/logging"
	"github.com/shelfwatch/catalog-crawler/internal/metrics"
	"github.com/shelfwatch/catalog-crawler/internal/notify"
	"github.com/shelfwatch/catalog-crawler/internal/ops"
	"github.com/shelfwatch/catalog-crawler/internal/storage/postgres"
	"github.com/shelfwatch/catalog-crawler/internal/supervisor"
	"github.com/shelfwatch/catalog-crawler/internal/worker"
)

// App holds the shared, long-lived services. It is built once at startup
// and fails fast when any critical service cannot be initialized.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool

	batches  *batch.Manager
	frontier catalog.FrontierStore
	notifier catalog.Notifier
	ops      *ops.Server

	workers  map[string]*worker.Worker
	sessions []*headless.Manager
	closers  []func()
}

// New assembles the application from configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger, workers: make(map[string]*worker.Worker)}

	a.pool, err = postgres.NewPool(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: cfg.DB.ConnLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	batchStore, err := postgres.NewBatchStore(a.pool, logger)
	if err != nil {
		return nil, err
	}
	frontierStore, err := postgres.NewFrontierStore(a.pool, logger)
	if err != nil {
		return nil, err
	}
	productStore, err := postgres.NewProductStore(a.pool, logger)
	if err != nil {
		return nil, err
	}
	a.frontier = frontierStore
	a.batches = batch.New(batchStore, uuid.New(), system.New(), logger)

	a.notifier, err = a.buildNotifier(ctx)
	if err != nil {
		return nil, err
	}
	archiveStore, err := a.buildArchive(ctx)
	if err != nil {
		return nil, err
	}

	gate := ingest.NewGate(productStore, logger)
	sink := ingest.NewSink(productStore, logger)
	registry := extract.NewRegistry()

	for codeName, src := range cfg.Sources {
		w, err := a.buildWorker(codeName, src, gate, sink, registry, archiveStore)
		if err != nil {
			return nil, fmt.Errorf("building worker for %s: %w", codeName, err)
		}
		a.workers[codeName] = w
	}

	a.ops = ops.NewServer(batchStore, frontierStore, cfg.SourceNames(), logger)
	logger.Info("application services initialized", zap.Int("sources", len(a.workers)))
	return a, nil
}

func (a *App) buildNotifier(ctx context.Context) (catalog.Notifier, error) {
	var channels notify.Multi
	if a.cfg.Notify.SlackWebhookURL != "" {
		channels = append(channels, notify.NewSlack(a.cfg.Notify.SlackWebhookURL, a.logger))
	}
	if a.cfg.Notify.PubSubProjectID != "" {
		ps, err := notify.NewPubSub(ctx, a.cfg.Notify.PubSubProjectID, a.cfg.Notify.PubSubTopic, a.logger)
		if err != nil {
			return nil, fmt.Errorf("initializing pubsub notifier: %w", err)
		}
		a.closers = append(a.closers, func() { _ = ps.Close() })
		channels = append(channels, ps)
	}
	if len(channels) == 0 {
		a.logger.Info("no notification channel configured")
		return notify.Noop{}, nil
	}
	return channels, nil
}

func (a *App) buildArchive(ctx context.Context) (catalog.BlobStore, error) {
	switch {
	case a.cfg.Archive.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.logger.Info("archiving raw payloads to gcs", zap.String("bucket", a.cfg.Archive.GCSBucket))
		return archive.NewGCS(client, archive.GCSConfig{Bucket: a.cfg.Archive.GCSBucket})
	case a.cfg.Archive.LocalDir != "":
		a.logger.Info("archiving raw payloads locally", zap.String("dir", a.cfg.Archive.LocalDir))
		return archive.NewLocal(archive.LocalConfig{BaseDir: a.cfg.Archive.LocalDir})
	default:
		return nil, nil
	}
}

func (a *App) buildWorker(
	codeName string,
	src config.SourceConfig,
	gate *ingest.Gate,
	sink *ingest.Sink,
	registry *extract.Registry,
	archiveStore catalog.BlobStore,
) (*worker.Worker, error) {
	extractor, err := registry.Lookup(src.Adapter)
	if err != nil {
		return nil, err
	}

	var (
		fetcher  catalog.Fetcher
		recycler executor.Recycler
		creds    executor.CredentialRefresher
	)
	switch src.Fetcher {
	case "headless":
		sessions := headless.NewManager(headless.SessionConfig{
			UserAgent:         src.UserAgent,
			Headless:          true,
			CooldownAfterKill: src.Cooldown(),
			CompanionBrowser:  src.CompanionBrowser,
		}, a.logger)
		a.sessions = append(a.sessions, sessions)
		fetcher = headless.New(headless.Config{
			UserAgent:         src.UserAgent,
			NavigationTimeout: src.PageLoadTimeout(),
			WaitSelector:      src.WaitSelector,
			ConsentSelector:   src.ConsentSelector,
		}, sessions, a.logger)
		recycler = sessions
	case "api":
		tokens := apifetcher.NewTokenSource(nil, nil, a.logger)
		fetcher = apifetcher.New(apifetcher.Config{
			UserAgent: src.UserAgent,
			Timeout:   src.PageLoadTimeout(),
			Tokens:    tokens,
		})
		creds = tokens
	default:
		return nil, fmt.Errorf("unknown fetcher %q", src.Fetcher)
	}

	exec := executor.New(fetcher, executor.FixedPolicy{
		Retry:    src.RetrySleep(),
		Cooldown: src.Cooldown(),
	}, creds, recycler, executor.Config{
		Source:      codeName,
		MaxAttempts: src.MaxRetries,
	}, a.logger)

	var limiter *rate.Limiter
	if src.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(src.RatePerSecond), 1)
	}

	return worker.New(
		a.batches,
		a.frontier,
		gate,
		sink,
		exec,
		extractor,
		limiter,
		archiveStore,
		worker.Config{
			CodeName:      codeName,
			SeedURL:       src.SeedURL,
			ArchivePrefix: a.cfg.Archive.Prefix + codeName + "/",
		},
		a.logger,
	), nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Worker returns the worker for a code name.
func (a *App) Worker(codeName string) (*worker.Worker, error) {
	w, ok := a.workers[codeName]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", codeName)
	}
	return w, nil
}

// SourceNames lists the configured sources.
func (a *App) SourceNames() []string { return a.cfg.SourceNames() }

// Supervisor builds a supervisor around the worker for a code name.
func (a *App) Supervisor(codeName string) (*supervisor.Supervisor, error) {
	w, err := a.Worker(codeName)
	if err != nil {
		return nil, err
	}
	return supervisor.New(w, a.notifier, system.New(), supervisor.Config{
		Source:       codeName,
		RestartDelay: a.cfg.Supervisor.RestartDelay(),
		MaxRestarts:  a.cfg.Supervisor.MaxRestarts,
	}, a.logger), nil
}

// Ops returns the operational HTTP server.
func (a *App) Ops() *ops.Server { return a.ops }

// OpsAddr returns the configured ops listen address.
func (a *App) OpsAddr() string { return a.cfg.Ops.Addr }

// Close releases pooled connections, browser sessions, and clients.
func (a *App) Close() {
	for _, m := range a.sessions {
		m.Close()
	}
	for _, closeFn := range a.closers {
		closeFn()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.logger.Sync()
}
