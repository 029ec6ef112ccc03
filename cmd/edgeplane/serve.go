package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/edgeplane/pkg/api"
	"github.com/cuemby/edgeplane/pkg/events"
	"github.com/cuemby/edgeplane/pkg/ingest"
	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/reconciler"
	"github.com/cuemby/edgeplane/pkg/storage"
	"github.com/cuemby/edgeplane/pkg/types"
	"github.com/cuemby/edgeplane/pkg/xds"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the manifest directory and serve configuration over ADS",
	Long: `Watch the manifest directory, rebuild on every change and publish the
result to connected proxies over the aggregated discovery service.

Examples:
  # Serve with defaults
  edgeplane serve -m ./manifests

  # Serve with a config file
  edgeplane serve -c edgeplane.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("xds-listen", "", "ADS listen address (overrides xds.listen)")
	serveCmd.Flags().String("http-listen", "", "Diagnostics listen address (overrides http.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetString("xds-listen"); v != "" {
		cfg.XDS.Listen = v
	}
	if v, _ := cmd.Flags().GetString("http-listen"); v != "" {
		cfg.HTTP.Listen = v
	}

	logger := log.WithComponent("serve")

	store, err := storage.NewBoltStore(cfg.DataDir, cfg.History)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return err
	}
	defer store.Close()
	metrics.UpdateComponent(metrics.ComponentStorage, true, "open")

	if last, err := store.LastBuild(); err == nil {
		logger.Info().
			Uint64("generation", last.Generation).
			Str("version", last.Version).
			Time("completed_at", last.CompletedAt).
			Msg("last known good build")
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.Warn().Err(err).Msg("failed to read build history")
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipeline := reconciler.NewPipeline(reconciler.PipelineConfig{
		CacheEnabled: cfg.CacheEnabled,
		Render:       cfg.RenderOptions(),
	})
	publisher := xds.NewPublisher(cfg.XDS.NodeID)
	rec := reconciler.NewReconciler(pipeline, reconciler.Options{
		Store:     store,
		Broker:    broker,
		Publisher: publisher,
	})

	watcher := ingest.NewWatcher(cfg.ManifestDir, cfg.Debounce, func(snap *types.Snapshot, err error) {
		if err != nil {
			metrics.UpdateComponent(metrics.ComponentWatcher, false, err.Error())
			logger.Error().Err(err).Msg("failed to load manifests")
			return
		}
		metrics.UpdateComponent(metrics.ComponentWatcher, true, "watching")
		gen := rec.Request(snap)

		ev := events.NewEvent(events.EventSnapshotLoaded, "manifests loaded")
		ev.Metadata = map[string]string{
			"request":   strconv.FormatUint(gen, 10),
			"resources": strconv.Itoa(snap.Len()),
		}
		broker.Publish(ev)
	})

	collector := metrics.NewCollector(pipeline, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	go logEvents(ctx, broker)

	xdsServer := xds.NewServer(ctx, cfg.XDS.Listen, publisher)
	apiServer := api.NewServer(pipeline, rec, store)

	logger.Info().
		Str("manifests", cfg.ManifestDir).
		Bool("cache", cfg.CacheEnabled).
		Str("xds", cfg.XDS.Listen).
		Str("http", cfg.HTTP.Listen).
		Msg("starting control plane")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rec.Run(ctx) })
	g.Go(func() error { return watcher.Run(ctx) })
	g.Go(func() error { return xdsServer.Run(ctx) })
	g.Go(func() error { return apiServer.Run(ctx, cfg.HTTP.Listen) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("control plane stopped: %w", err)
	}
	logger.Info().Msg("control plane stopped")
	return nil
}

// logEvents mirrors the build lifecycle into the log at debug level
func logEvents(ctx context.Context, broker *events.Broker) {
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	logger := log.WithComponent("events")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			logger.Debug().
				Str("type", string(ev.Type)).
				Uint64("generation", ev.Generation).
				Msg(ev.Message)
		}
	}
}
