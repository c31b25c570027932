// Command floodwatch runs the flood post pipeline: the HTTP service, the
// archive backfill, and one-off representative sweeps.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/floodwatch/pipeline/internal/api"
	"github.com/floodwatch/pipeline/internal/archive"
	"github.com/floodwatch/pipeline/internal/config"
	"github.com/floodwatch/pipeline/internal/elasticsearch"
	"github.com/floodwatch/pipeline/internal/geo"
	"github.com/floodwatch/pipeline/internal/geocode"
	"github.com/floodwatch/pipeline/internal/logging"
	"github.com/floodwatch/pipeline/internal/metrics"
	"github.com/floodwatch/pipeline/internal/nlp"
	"github.com/floodwatch/pipeline/internal/normalizer"
	"github.com/floodwatch/pipeline/internal/scheduler"
	"github.com/floodwatch/pipeline/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "floodwatch",
		Short:         "Flood post normalization and clustering pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newBackfillCmd(&configPath))
	root.AddCommand(newSweepCmd(&configPath))
	return root
}

// app holds the wired pipeline components shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	metrics  *metrics.Metrics
	pipeline *service.Pipeline
}

func bootstrap(ctx context.Context, configPath string) (*app, error) {
	if configPath == "" {
		configPath = config.GetConfigPath("config.yml")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger = logger.With(logging.String("service", cfg.Service.Name))

	esClient, err := elasticsearch.NewClient(&cfg.Elasticsearch, logger)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if ensureErr := esClient.EnsureIndex(ctx); ensureErr != nil {
		return nil, fmt.Errorf("ensure index: %w", ensureErr)
	}

	borders, err := geo.LoadBorders(cfg.Normalizer.WorldBordersPath)
	if err != nil {
		return nil, fmt.Errorf("load world borders: %w", err)
	}

	var geocoder geocode.Geocoder = geocode.NewClient(
		cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout, logger)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		geocoder = geocode.NewCachedGeocoder(geocoder, rdb, cfg.Geocoder.CacheTTL, logger)
	}

	tagger := nlp.NewClient(cfg.NLP.BaseURL, cfg.NLP.Timeout, logger)
	norm := normalizer.New(&cfg.Normalizer, esClient, geocoder, tagger, borders, logger)

	m := metrics.New("floodwatch")
	arch := archive.NewReader(cfg.Archive.DataDir, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		pipeline: service.NewPipeline(esClient, norm, arch, cfg, m, logger),
	}, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the periodic representative sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			sched := scheduler.New(&a.cfg.Scheduler, a.pipeline, a.logger)
			if startErr := sched.Start(ctx); startErr != nil {
				return startErr
			}
			defer sched.Stop()

			handler := api.NewHandler(a.pipeline, a.cfg, a.logger)
			server := api.NewServer(handler, a.metrics.Registry(), a.cfg, a.logger)

			a.logger.Info("Pipeline service starting",
				logging.String("version", a.cfg.Service.Version),
				logging.Int("port", a.cfg.Service.Port),
				logging.String("index", a.cfg.Elasticsearch.Index),
			)
			return server.Run()
		},
	}
}

func newBackfillCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Normalize and index the parquet archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			report, err := a.pipeline.Backfill(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d documents, rejected %v\n", report.Indexed, report.Rejected)
			return nil
		},
	}
}

func newSweepCmd(configPath *string) *cobra.Command {
	var terms []string
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one representative sweep over the trailing window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			if len(terms) == 0 {
				terms = a.cfg.Scheduler.SweepTerms
			}
			if window == 0 {
				window = a.cfg.Scheduler.SweepWindow
			}

			report, err := a.pipeline.RetainRepresentatives(ctx, terms, window)
			if err != nil {
				return err
			}
			fmt.Printf("sweep %s: %d clusters, %d representatives, %d suppressed\n",
				report.RunID, report.Clusters, report.Representatives, report.Suppressed)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&terms, "terms", nil, "grouping terms for the sweep")
	cmd.Flags().DurationVar(&window, "window", 0, "trailing time window to sweep")
	return cmd
}
