package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jacentio/shelf/catalog"
	"github.com/jacentio/shelf/internal/logging"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Dataset     string
	Concurrency int
	Rate        float64
	Burst       int
	NoPreflight bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the catalog from a dataset",
		Long: `Populate the catalog from a YAML dataset, or the built-in sample when
--dataset is not given.

Genres are created unless a genre with the same name (ignoring case) exists.
Authors, books and instances are always created, so seeding twice duplicates
them.

Example:
  shelf seed --dataset testdata/catalog.yaml --concurrency 16`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	var concurrency, burst int
	var rate float64
	var dataset string
	if cfg := rootOpts.Config; cfg != nil {
		concurrency, burst, rate, dataset = cfg.Seed.Concurrency, cfg.Seed.Burst, float64(cfg.Seed.RatePerSecond), cfg.Seed.Dataset
		opts.NoPreflight = !cfg.Seed.Preflight
	}

	cmd.Flags().StringVarP(&opts.Dataset, "dataset", "d", dataset, "YAML dataset path (default: built-in sample)")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", concurrency, "max in-flight creates per stage (0 = unbounded)")
	cmd.Flags().Float64Var(&opts.Rate, "rate", rate, "max creates per second (0 = unthrottled)")
	cmd.Flags().IntVar(&opts.Burst, "burst", burst, "rate limiter burst")
	cmd.Flags().BoolVar(&opts.NoPreflight, "no-preflight", opts.NoPreflight, "skip dataset reference validation before writing")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dataset := catalog.DefaultDataset()
	if opts.Dataset != "" {
		d, err := catalog.LoadDatasetFile(opts.Dataset)
		if err != nil {
			return formatter.FailUsage("load dataset", err)
		}
		dataset = d
	}
	formatter.VerboseLog("Seeding %d genre(s), %d author(s), %d book(s), %d instance(s)",
		len(dataset.Genres), len(dataset.Authors), len(dataset.Books), len(dataset.Instances))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	formatter.RunID = runID

	store, err := opts.Open(ctx)
	if err != nil {
		return formatter.Fail("open store", err, nil)
	}

	seeder := catalog.NewSeeder(store,
		catalog.WithConcurrency(opts.Concurrency),
		catalog.WithRateLimit(opts.Rate, opts.Burst),
		catalog.WithPreflight(!opts.NoPreflight),
		catalog.WithLogger(opts.Logger),
	)

	report, err := seeder.Run(ctx, dataset)
	result := seedResult{Report: report, Counts: report.Counts()}
	if err != nil {
		return formatter.Fail("seed", err, result)
	}
	return formatter.Success(result)
}
