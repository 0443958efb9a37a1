package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bigbio/mad-decoy/internal/config"
	"github.com/bigbio/mad-decoy/internal/pipeline"
)

var (
	mergeFolderPath      string
	mergeOutputFile      string
	mergeFilterQValue    float64
	mergeFilterDecoy     bool
	mergeConcurrency     int
	mergeFormat          string
	mergePattern         string
	mergeUndefinedRatio  string
	mergeKeepInputDecoys bool
	mergeSummaryPath     string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Augment, merge and globally adjust every dataset in a folder",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applyMergeFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		opts, err := pipeline.NewOptions(cfg)
		if err != nil {
			return err
		}

		res, err := pipeline.Run(cmd.Context(), opts)
		if res != nil && mergeSummaryPath != "" {
			if serr := pipeline.WriteSummary(mergeSummaryPath, res.Summary); serr != nil {
				zap.L().Error("merge: write summary", zap.Error(serr))
			}
		}
		if err != nil {
			return eris.Wrap(err, "merge")
		}

		zap.L().Info("merge complete",
			zap.String("output", cfg.Output.File),
			zap.Int("rows", res.Summary.Rows),
			zap.Int("synthesized", res.Summary.Synthesized()),
		)
		return nil
	},
}

// applyMergeFlags copies explicitly set flags over the loaded config.
func applyMergeFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("folder-path") {
		c.Input.FolderPath = mergeFolderPath
	}
	if flags.Changed("output-file") {
		c.Output.File = mergeOutputFile
	}
	if flags.Changed("filter-qvalue") {
		q := mergeFilterQValue
		c.Filter.QValue = &q
	}
	if flags.Changed("filter-decoy") {
		c.Filter.Decoy = mergeFilterDecoy
	}
	if flags.Changed("concurrency") {
		c.Augment.Concurrency = mergeConcurrency
	}
	if flags.Changed("format") {
		c.Output.Format = mergeFormat
	}
	if flags.Changed("pattern") {
		c.Input.Pattern = mergePattern
	}
	if flags.Changed("undefined-ratio") {
		c.Adjust.UndefinedRatio = mergeUndefinedRatio
	}
	if flags.Changed("keep-input-decoys") {
		c.Augment.KeepInputDecoys = mergeKeepInputDecoys
	}
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeFolderPath, "folder-path", "", "folder, archive, table or ftp/http/s3 location holding the datasets")
	f.StringVar(&mergeOutputFile, "output-file", "", "output file, sqlite:// or postgres:// URL, or s3:// object")
	f.Float64Var(&mergeFilterQValue, "filter-qvalue", 0, "keep rows whose adjusted q-value is at or below this threshold")
	f.BoolVar(&mergeFilterDecoy, "filter-decoy", false, "keep decoy rows only")
	f.IntVar(&mergeConcurrency, "concurrency", 4, "datasets loaded and augmented in parallel")
	f.StringVar(&mergeFormat, "format", "", "output format: csv, tsv, xlsx, sqlite or postgres (default from output target)")
	f.StringVar(&mergePattern, "pattern", "*.tsv", "comma-separated globs selecting dataset files")
	f.StringVar(&mergeUndefinedRatio, "undefined-ratio", "keep", "decoys before the first target: keep, clamp or error")
	f.BoolVar(&mergeKeepInputDecoys, "keep-input-decoys", false, "count the datasets' own decoys when synthesizing")
	f.StringVar(&mergeSummaryPath, "summary", "", "write a YAML run summary to this path")
	rootCmd.AddCommand(mergeCmd)
}
