package pipeline

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/bigbio/mad-decoy/internal/blob"
	"github.com/bigbio/mad-decoy/internal/config"
	"github.com/bigbio/mad-decoy/internal/fdr"
	"github.com/bigbio/mad-decoy/internal/fetcher"
	"github.com/bigbio/mad-decoy/internal/loader"
	"github.com/bigbio/mad-decoy/internal/resilience"
	"github.com/bigbio/mad-decoy/internal/sink"
)

// Options holds everything one run needs.
type Options struct {
	// Input is a folder, archive, single table, or remote location.
	Input string
	// Output is the sink target. Empty skips writing.
	Output string

	Fetch       fetcher.Options
	Loader      loader.Options
	Augment     fdr.AugmentOptions
	Adjust      fdr.AdjustOptions
	Sink        sink.Options
	Concurrency int
}

// NewOptions translates a validated config into run options.
func NewOptions(cfg *config.Config) (Options, error) {
	policy, err := fdr.ParseUndefinedRatioPolicy(cfg.Adjust.UndefinedRatio)
	if err != nil {
		return Options{}, eris.Wrap(err, "pipeline: options")
	}

	s3 := blob.S3Options{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		PathStyle:       cfg.S3.PathStyle,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}

	retry := resilience.DefaultRetryConfig()
	// max_retries counts retries after the first attempt; 0 disables them.
	retry.MaxAttempts = max(cfg.Fetch.MaxRetries, 0) + 1

	return Options{
		Input:  cfg.Input.FolderPath,
		Output: cfg.Output.File,
		Fetch: fetcher.Options{
			Pattern:   cfg.Input.Pattern,
			Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			Retry:     retry,
			RateLimit: cfg.Fetch.RateLimit,
			UserAgent: cfg.Fetch.UserAgent,
			S3:        s3,
		},
		Loader:  loader.Options{Delimiter: cfg.Input.Delimiter},
		Augment: fdr.AugmentOptions{KeepInputDecoys: cfg.Augment.KeepInputDecoys},
		Adjust: fdr.AdjustOptions{
			Filter:    fdr.Filter{MaxQValue: cfg.Filter.QValue, DecoysOnly: cfg.Filter.Decoy},
			Undefined: policy,
		},
		Sink: sink.Options{
			Format: cfg.Output.Format,
			Table:  cfg.Output.Table,
			S3:     s3,
			Retry:  retry,
		},
		Concurrency: cfg.Augment.Concurrency,
	}, nil
}
