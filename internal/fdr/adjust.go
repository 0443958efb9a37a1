package fdr

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/bigbio/mad-decoy/internal/model"
)

// ErrUndefinedRatio is returned under UndefinedError when one or more decoys
// are ordered before the first target.
var ErrUndefinedRatio = eris.New("decoy/target ratio undefined before the first target")

// UndefinedRatioPolicy decides what happens to positions whose cumulative
// target count is zero.
type UndefinedRatioPolicy string

const (
	// UndefinedKeep leaves the raw ratio at +Inf before the suffix minimum.
	UndefinedKeep UndefinedRatioPolicy = "keep"
	// UndefinedClamp replaces the raw ratio with 1.
	UndefinedClamp UndefinedRatioPolicy = "clamp"
	// UndefinedError fails the adjustment with ErrUndefinedRatio.
	UndefinedError UndefinedRatioPolicy = "error"
)

// ParseUndefinedRatioPolicy maps a config string to a policy. Empty means keep.
func ParseUndefinedRatioPolicy(s string) (UndefinedRatioPolicy, error) {
	switch p := UndefinedRatioPolicy(s); p {
	case "":
		return UndefinedKeep, nil
	case UndefinedKeep, UndefinedClamp, UndefinedError:
		return p, nil
	default:
		return "", eris.Errorf("fdr: unknown undefined ratio policy %q (want keep, clamp or error)", s)
	}
}

// Filter selects rows after adjustment.
type Filter struct {
	// MaxQValue keeps rows whose adjusted q-value is <= the threshold. Nil keeps all.
	MaxQValue *float64
	// DecoysOnly keeps decoy rows only.
	DecoysOnly bool
}

// AdjustOptions configures the global adjustment.
type AdjustOptions struct {
	Filter    Filter
	Undefined UndefinedRatioPolicy
}

// AdjustResult is the globally adjusted table.
type AdjustResult struct {
	// Records are ordered by pre-adjustment q-value, QValue holds the adjusted value.
	Records []model.Record
	// Total is the row count before filtering.
	Total int
	// UndefinedRatios counts positions with no target at or before them.
	UndefinedRatios int
}

// Adjust recomputes q-values over the whole table as the suffix minimum of
// the cumulative decoy/target ratio, then applies opts.Filter.
func Adjust(records []model.Record, opts AdjustOptions) (AdjustResult, error) {
	sorted := model.CloneRecords(records)
	sortByQValue(sorted)

	ratios, undefined := TargetDecoyRatios(sorted)
	res := AdjustResult{Total: len(sorted), UndefinedRatios: undefined}

	if undefined > 0 {
		switch opts.Undefined {
		case UndefinedError:
			return res, eris.Wrapf(ErrUndefinedRatio, "fdr: %d decoys precede the first target", undefined)
		case UndefinedClamp:
			for i, r := range ratios {
				if math.IsInf(r, 1) {
					ratios[i] = 1
				}
			}
		}
	}

	for i, q := range SuffixMin(ratios) {
		sorted[i].QValue = q
	}
	res.Records = opts.Filter.Apply(sorted)
	return res, nil
}

// TargetDecoyRatios returns decoys_cum[i] / targets_cum[i] for records
// already in ascending q-value order. Positions with no target yet get +Inf
// and are counted in undefined.
func TargetDecoyRatios(sorted []model.Record) (ratios []float64, undefined int) {
	ratios = make([]float64, len(sorted))
	targets, decoys := 0, 0
	for i, r := range sorted {
		if r.IsDecoy {
			decoys++
		} else {
			targets++
		}
		if targets == 0 {
			ratios[i] = math.Inf(1)
			undefined++
			continue
		}
		ratios[i] = float64(decoys) / float64(targets)
	}
	return ratios, undefined
}

// SuffixMin returns out[i] = min(raw[i:]).
func SuffixMin(raw []float64) []float64 {
	out := make([]float64, len(raw))
	running := math.Inf(1)
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] < running {
			running = raw[i]
		}
		out[i] = running
	}
	return out
}

// Apply returns the records that pass f, preserving order.
func (f Filter) Apply(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if f.MaxQValue != nil && !(r.QValue <= *f.MaxQValue) {
			continue
		}
		if f.DecoysOnly && !r.IsDecoy {
			continue
		}
		out = append(out, r)
	}
	return out
}
