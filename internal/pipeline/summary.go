package pipeline

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/bigbio/mad-decoy/internal/fdr"
)

// DatasetSummary reports what happened to one input table.
type DatasetSummary struct {
	Name      string `json:"name" yaml:"name"`
	Source    string `json:"source" yaml:"source"`
	Accession string `json:"dataset_accession,omitempty" yaml:"dataset_accession,omitempty"`

	Loaded      int  `json:"loaded" yaml:"loaded"`
	Dropped     int  `json:"dropped" yaml:"dropped"`
	Targets     int  `json:"targets" yaml:"targets"`
	Decoys      int  `json:"decoys" yaml:"decoys"`
	Synthesized int  `json:"synthesized" yaml:"synthesized"`
	Augmented   int  `json:"augmented" yaml:"augmented"`
	Skipped     bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Thresholds []fdr.Threshold `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// RunSummary reports one merge run.
type RunSummary struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Input      string    `json:"input" yaml:"input"`
	Output     string    `json:"output,omitempty" yaml:"output,omitempty"`

	Datasets []DatasetSummary `json:"datasets" yaml:"datasets"`

	Merged          int   `json:"merged" yaml:"merged"`
	Deduplicated    int   `json:"deduplicated" yaml:"deduplicated"`
	UndefinedRatios int   `json:"undefined_ratios" yaml:"undefined_ratios"`
	Rows            int   `json:"rows" yaml:"rows"`
	Written         int64 `json:"written" yaml:"written"`
}

// Synthesized totals synthesized decoys across datasets.
func (s *RunSummary) Synthesized() int {
	n := 0
	for _, d := range s.Datasets {
		n += d.Synthesized
	}
	return n
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s *RunSummary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal summary")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write summary %s", path)
	}
	return nil
}
