// Package pipeline runs the protein q-value recomputation end to end: load
// every dataset, synthesize decoys per dataset, merge, deduplicate, adjust
// globally, and write the result.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bigbio/mad-decoy/internal/fdr"
	"github.com/bigbio/mad-decoy/internal/fetcher"
	"github.com/bigbio/mad-decoy/internal/loader"
	"github.com/bigbio/mad-decoy/internal/model"
	"github.com/bigbio/mad-decoy/internal/sink"
)

// Prepared is one dataset after loading and augmentation.
type Prepared struct {
	Dataset model.Dataset
	Augment fdr.AugmentResult
	Summary DatasetSummary
}

// Result is the adjusted table plus the run report.
type Result struct {
	Table   sink.Table
	Summary *RunSummary
}

// Prepare lists src and loads and augments every dataset, at most
// concurrency at a time. Results keep the listing order. The first load
// error cancels the rest.
func Prepare(ctx context.Context, src fetcher.Source, opts Options) ([]Prepared, error) {
	entries, err := src.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list datasets")
	}
	zap.L().Info("pipeline: datasets found", zap.Int("datasets", len(entries)))

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	prepared := make([]Prepared, len(entries))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, entry := range entries {
		g.Go(func() error {
			ds, err := loader.Load(gCtx, src, entry, opts.Loader)
			if err != nil {
				return err
			}
			prepared[i] = augmentDataset(ds, opts.Augment)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prepared, nil
}

func augmentDataset(ds model.Dataset, opts fdr.AugmentOptions) Prepared {
	log := zap.L().With(zap.String("dataset", ds.Name))

	aug := fdr.Augment(ds.Records, opts)
	targets, decoys := model.Counts(ds.Records)
	summary := DatasetSummary{
		Name:        ds.Name,
		Source:      ds.Source,
		Loaded:      len(ds.Records),
		Dropped:     ds.Dropped,
		Targets:     targets,
		Decoys:      decoys,
		Synthesized: aug.Synthesized,
		Augmented:   len(aug.Records),
		Thresholds:  aug.Thresholds,
	}
	if len(aug.Records) > 0 {
		summary.Accession = aug.Records[0].DatasetAccession
	}

	if len(aug.Records) == 0 {
		summary.Skipped = true
		log.Warn("pipeline: dataset has no target records, skipping",
			zap.Int("loaded", len(ds.Records)),
			zap.Int("dropped", ds.Dropped),
		)
	} else {
		log.Info("pipeline: dataset augmented",
			zap.Int("targets", targets),
			zap.Int("synthesized", aug.Synthesized),
		)
	}

	return Prepared{Dataset: ds, Augment: aug, Summary: summary}
}

// Combine merges the augmented datasets, keeps the best row per accession,
// and recomputes q-values over the whole table.
func Combine(prepared []Prepared, opts fdr.AdjustOptions) (sink.Table, *RunSummary, error) {
	summary := &RunSummary{}
	tables := make([][]model.Record, 0, len(prepared))
	headers := make([][]string, 0, len(prepared))
	for _, p := range prepared {
		summary.Datasets = append(summary.Datasets, p.Summary)
		headers = append(headers, p.Dataset.Columns)
		if len(p.Augment.Records) > 0 {
			tables = append(tables, p.Augment.Records)
		}
	}

	merged := fdr.Merge(tables...)
	deduped := fdr.Deduplicate(merged)
	summary.Merged = len(merged)
	summary.Deduplicated = len(deduped)

	adjusted, err := fdr.Adjust(deduped, opts)
	summary.UndefinedRatios = adjusted.UndefinedRatios
	if err != nil {
		return sink.Table{}, summary, eris.Wrap(err, "pipeline: adjust")
	}
	summary.Rows = len(adjusted.Records)

	return sink.NewTable(adjusted.Records, headers...), summary, nil
}

// Run executes the whole chain for opts and writes the output when
// opts.Output is set.
func Run(ctx context.Context, opts Options) (*Result, error) {
	runID := uuid.New().String()
	started := time.Now().UTC()
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: run started", zap.String("input", opts.Input))

	src, err := fetcher.Open(ctx, opts.Input, opts.Fetch)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open input")
	}
	defer src.Close() //nolint:errcheck

	prepared, err := Prepare(ctx, src, opts)
	if err != nil {
		return nil, err
	}

	tbl, summary, err := Combine(prepared, opts.Adjust)
	summary.RunID = runID
	summary.StartedAt = started
	summary.Input = opts.Input
	if err != nil {
		return &Result{Summary: summary}, err
	}

	if summary.UndefinedRatios > 0 {
		log.Warn("pipeline: decoys precede the first target",
			zap.Int("undefined_ratios", summary.UndefinedRatios),
		)
	}

	if opts.Output != "" {
		n, err := sink.Write(ctx, opts.Output, tbl, opts.Sink)
		if err != nil {
			return &Result{Table: tbl, Summary: summary}, eris.Wrap(err, "pipeline: write output")
		}
		summary.Output = opts.Output
		summary.Written = n
	}
	summary.FinishedAt = time.Now().UTC()

	log.Info("pipeline: run complete",
		zap.Int("datasets", len(summary.Datasets)),
		zap.Int("synthesized", summary.Synthesized()),
		zap.Int("merged", summary.Merged),
		zap.Int("deduplicated", summary.Deduplicated),
		zap.Int("rows", summary.Rows),
		zap.Duration("elapsed", summary.FinishedAt.Sub(started)),
	)
	return &Result{Table: tbl, Summary: summary}, nil
}

// Inspect loads and augments every dataset without merging or writing.
func Inspect(ctx context.Context, opts Options) ([]DatasetSummary, error) {
	src, err := fetcher.Open(ctx, opts.Input, opts.Fetch)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: open input")
	}
	defer src.Close() //nolint:errcheck

	prepared, err := Prepare(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	out := make([]DatasetSummary, len(prepared))
	for i, p := range prepared {
		out[i] = p.Summary
	}
	return out, nil
}
