package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jonathan/role-tracker/internal/config"
	"github.com/jonathan/role-tracker/internal/connector"
	"github.com/jonathan/role-tracker/internal/crawling"
	"github.com/jonathan/role-tracker/internal/db"
	"github.com/jonathan/role-tracker/internal/discovery"
	"github.com/jonathan/role-tracker/internal/fetch"
	"github.com/jonathan/role-tracker/internal/history"
	"github.com/jonathan/role-tracker/internal/ledger"
	"github.com/jonathan/role-tracker/internal/lock"
	"github.com/jonathan/role-tracker/internal/logging"
	"github.com/jonathan/role-tracker/internal/observability"
	"github.com/jonathan/role-tracker/internal/pipeline"
	"github.com/jonathan/role-tracker/internal/store"
	"github.com/jonathan/role-tracker/internal/store/memory"
	"github.com/jonathan/role-tracker/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds everything a command needs, built once from the config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	ledger   *ledger.Ledger
	registry *connector.Registry
	pages    discovery.PageScanner
	engine   *history.Engine
	redis    *redis.Client
	printer  *observability.Printer
}

// loadConfig reads the config file and environment, then applies flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(globalFlags.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store = globalFlags.store
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = globalFlags.databaseURL
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = globalFlags.redisURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = globalFlags.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = globalFlags.logJSON
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the config and builds the app for cmd.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogOptions())
	if err != nil {
		return nil, err
	}
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	client := fetch.NewClient(cfg.FetchOptions())
	registry := connector.NewDefaultRegistry(client)

	a, err := newApp(cmd.Context(), cfg, logger, st, registry, cmd.OutOrStdout())
	if err != nil {
		st.Close()
		return nil, err
	}
	a.pages = crawling.NewScanner(client)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, st store.Store, registry *connector.Registry, out io.Writer) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		ledger:   ledger.New(st),
		registry: registry,
		printer:  observability.NewPrinter(out),
	}

	opts := []history.Option{history.WithLogger(logger.Named("history"))}
	if cfg.RedisURL != "" {
		client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		opts = append(opts, history.WithLocker(lock.NewRedis(client, cfg.Merge.LockKey, cfg.Merge.LockTTL)))
	}
	a.engine = history.NewEngine(st, opts...)
	return a, nil
}

// Close releases the store and Redis connections.
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.store.Close()
	_ = a.logger.Sync()
}

func (a *app) probeTypes() []types.SourceType {
	out := make([]types.SourceType, 0, len(a.cfg.Discovery.ProbeTypes))
	for _, t := range a.cfg.Discovery.ProbeTypes {
		out = append(out, types.SourceType(t))
	}
	return out
}

// discover runs one batch from the persisted cursor and saves the advanced
// cursor. A failed batch leaves the stored cursor untouched.
func (a *app) discover(ctx context.Context) (discovery.BatchResult, types.Cursor, types.Cursor, error) {
	before, err := a.store.LoadCursor(ctx)
	if err != nil {
		return discovery.BatchResult{}, before, before, store.IOError(err, "failed to load cursor")
	}

	logger := a.logger.Named("discovery")
	prober := discovery.NewProber(a.registry, a.probeTypes())
	if a.pages != nil {
		prober.WithPageScanner(a.pages)
	}
	sched := discovery.NewScheduler(a.store, a.store, prober,
		discovery.Config{
			Workers:       a.cfg.Discovery.Workers,
			ProgressEvery: a.cfg.Discovery.ProgressEvery,
			Retry:         a.cfg.RetryPolicy(connector.IsTransient),
			OnProgress: func(p discovery.Progress) {
				logger.Info("discovery progress",
					zap.Int("done", p.Done),
					zap.Int("total", p.Total),
					zap.Int("succeeded", p.Succeeded),
					zap.Int("failed", p.Failed),
					zap.Int64(logging.FieldDurationMS, p.Elapsed.Milliseconds()),
				)
			},
		},
		discovery.WithLedger(a.ledger),
		discovery.WithLogger(logger),
	)

	res, after, err := sched.RunBatch(ctx, before, a.cfg.Discovery.BatchLimit, a.cfg.Discovery.MaxDuration)
	if err != nil {
		return res, before, before, err
	}
	if err := a.store.SaveCursor(ctx, after); err != nil {
		return res, before, before, fmt.Errorf("failed to save cursor: %w", err)
	}
	return res, before, after, nil
}

// track runs one tracking pass over every active source.
func (a *app) track(ctx context.Context) (*types.Run, error) {
	logger := a.logger.Named("track")
	tracker := pipeline.NewTracker(a.store, a.registry, a.engine, a.ledger, pipeline.Options{
		Workers: a.cfg.Track.Workers,
		Retry:   a.cfg.RetryPolicy(connector.IsTransient),
		Logger:  logger,
		OnProgress: func(ev pipeline.ProgressEvent) {
			logger.Debug(ev.Message, zap.String("step", ev.Step), zap.Int("done", ev.Done), zap.Int("total", ev.Total))
		},
	})
	return tracker.Run(ctx)
}

// reportTrack prints a tracking run with its failures and new postings.
func (a *app) reportTrack(ctx context.Context, run *types.Run) error {
	a.printer.PrintRunSummary(run)

	srs, err := a.ledger.ListSourceRuns(ctx, run.ID)
	if err != nil {
		return err
	}
	names := make(map[string]string)
	for _, sr := range srs {
		if sr.Outcome != types.OutcomeFailure {
			continue
		}
		if c, err := a.store.GetCompany(ctx, sr.CompanyID); err == nil && c != nil {
			names[c.ID.String()] = c.Name
		}
	}
	a.printer.PrintSourceRuns(srs, names)

	if run.Status != types.RunStatusCompleted {
		return nil
	}
	rows, err := history.NewPostings(ctx, a.store, run.StartedAt)
	if err != nil {
		return err
	}
	a.printer.PrintPostings("NEW POSTINGS", rows)
	return nil
}
