package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HollandsP/Evergreen-sub003/cache"
	"github.com/HollandsP/Evergreen-sub003/config"
	"github.com/HollandsP/Evergreen-sub003/db"
	"github.com/HollandsP/Evergreen-sub003/errors"
	"github.com/HollandsP/Evergreen-sub003/fingerprint"
	"github.com/HollandsP/Evergreen-sub003/logger"
	"github.com/HollandsP/Evergreen-sub003/metrics"
	"github.com/HollandsP/Evergreen-sub003/sched"
)

// RunCmd starts the scheduler daemon
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler daemon",
	Long: `Start the scheduler daemon: workers poll the job store, dispatch
through the response cache and resource ledger, and settle results back.

By default the daemon wires loopback demo providers for audio, image, and
video so queued jobs can be exercised end to end without provider
credentials. Applications embedding the scheduler register real providers
instead.

Examples:
  evergreen run                     # Run with demo providers
  evergreen run --retention 72h     # Prune terminal jobs after 3 days`,
	RunE: func(cmd *cobra.Command, args []string) error {
		retention, _ := cmd.Flags().GetDuration("retention")
		return runDaemon(retention)
	},
}

func init() {
	RunCmd.Flags().Duration("retention", 7*24*time.Hour, "How long to keep terminal job records")
}

func runDaemon(retention time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	if err := sched.InitSchema(database); err != nil {
		return err
	}

	sink := metrics.NewSink()

	responseCache, err := cache.New(cache.Options{
		CapacityBytes:              cfg.Cache.CapacityBytes,
		CapacityItems:              cfg.Cache.CapacityItems,
		DefaultSimilarityThreshold: cfg.Cache.DefaultSimilarityThreshold,
		Compress:                   cfg.Cache.Compress,
		Metrics:                    sink,
		Logger:                     logger.Logger,
	})
	if err != nil {
		return err
	}

	registry := sched.NewRegistry()
	for _, kind := range []sched.Kind{sched.KindAudio, sched.KindImage, sched.KindVideo} {
		registry.Register(&demoProvider{kind: kind})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler, err := sched.NewWithContext(ctx, database, cfg.Scheduler, responseCache, registry, sink, logger.Logger)
	if err != nil {
		return err
	}

	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				removed, err := scheduler.Cleanup(retention)
				if err != nil {
					logger.Warnw("Job cleanup failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Infow("Pruned old jobs", "removed", removed, "retention", retention)
				}
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats, err := scheduler.Stats()
				if err != nil {
					continue
				}
				logger.Infow("Scheduler heartbeat",
					"queued", stats.Counts[sched.StatePending]+stats.Counts[sched.StateReady],
					"running", stats.Running,
					"completed", stats.Counts[sched.StateCompleted],
					"failed", stats.Counts[sched.StateFailed],
					"window_spend", stats.WindowSpend,
					"cache_hit_rate", stats.Metrics.CacheHitRate,
					"cache_entries", responseCache.Len())
			}
		}
	})

	logger.Infow("Evergreen daemon running", "database", cfg.Database.Path)
	return g.Wait()
}

// demoProvider is a loopback invoker for local runs: it synthesizes a
// response reference after a short delay and charges nothing.
type demoProvider struct {
	kind sched.Kind
}

func (p *demoProvider) Kind() sched.Kind { return p.kind }

func (p *demoProvider) Invoke(ctx context.Context, req fingerprint.Request) (*sched.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}
	return &sched.Result{
		Response: fmt.Sprintf("demo://%s/%s", p.kind, fingerprint.Key(req)),
		Quality:  1,
	}, nil
}
