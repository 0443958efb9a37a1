// Package fdr recomputes protein-level target-decoy q-values across datasets.
//
// Every stage takes a record slice and returns a new one; the caller's slice
// is never reordered or modified.
package fdr

import (
	"math"
	"sort"
	"strconv"

	"github.com/bigbio/mad-decoy/internal/model"
)

// AugmentOptions controls decoy synthesis for one dataset.
type AugmentOptions struct {
	// KeepInputDecoys retains the dataset's own decoys and counts them as
	// observed at each threshold. The default drops them before counting,
	// which leaves the observed count at zero.
	KeepInputDecoys bool
}

// Threshold records the decoy accounting at one distinct target q-value.
type Threshold struct {
	QValue      float64 `json:"q_value" yaml:"q_value"`
	Targets     int     `json:"targets" yaml:"targets"`
	Expected    int     `json:"expected" yaml:"expected"`
	Observed    int     `json:"observed" yaml:"observed"`
	Synthesized int     `json:"synthesized" yaml:"synthesized"`
}

// AugmentResult is the augmented table of one dataset.
type AugmentResult struct {
	Records     []model.Record
	Thresholds  []Threshold
	Synthesized int
	// Undefined counts records skipped because their q-value was NaN.
	Undefined int
}

// Augment synthesizes placeholder decoys so that, at every distinct target
// q-value v, floor(targets(q <= v) * v) decoys sit at or below v.
// Synthesized decoys are not counted as observed for later thresholds.
func Augment(records []model.Record, opts AugmentOptions) AugmentResult {
	var res AugmentResult

	considered := make([]model.Record, 0, len(records))
	for _, r := range records {
		if math.IsNaN(r.QValue) {
			res.Undefined++
			continue
		}
		if r.IsDecoy && !opts.KeepInputDecoys {
			continue
		}
		considered = append(considered, r.Clone())
	}
	if len(considered) == 0 {
		return res
	}
	sortByQValue(considered)

	datasetAccession := considered[0].DatasetAccession

	var synthetic []model.Record
	targets, decoys := 0, 0
	for i := 0; i < len(considered); {
		v := considered[i].QValue
		hasTarget := false
		for ; i < len(considered) && considered[i].QValue == v; i++ {
			if considered[i].IsDecoy {
				decoys++
			} else {
				targets++
				hasTarget = true
			}
		}
		if !hasTarget {
			continue
		}

		expected := expectedDecoys(targets, v)
		th := Threshold{QValue: v, Targets: targets, Expected: expected, Observed: decoys}
		for deficit := expected - decoys; th.Synthesized < deficit; th.Synthesized++ {
			synthetic = append(synthetic, model.Record{
				ProteinAccession: model.SyntheticAccessionPrefix + strconv.Itoa(len(synthetic)+1),
				QValue:           v,
				GlobalQValue:     v,
				IsDecoy:          true,
				Condition:        model.SyntheticCondition,
				DatasetAccession: datasetAccession,
				Synthetic:        true,
			})
		}
		res.Thresholds = append(res.Thresholds, th)
	}

	out := make([]model.Record, 0, len(considered)+len(synthetic))
	out = append(out, considered...)
	out = append(out, synthetic...)
	sortByQValue(out)

	res.Records = out
	res.Synthesized = len(synthetic)
	return res
}

// expectedDecoys is floor(targets * v) with v held to [0, 1], so the count
// never exceeds targets.
func expectedDecoys(targets int, v float64) int {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return targets
	}
	return int(math.Floor(float64(targets) * v))
}

func sortByQValue(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].QValue < records[j].QValue
	})
}
