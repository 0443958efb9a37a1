package fdr

import "github.com/bigbio/mad-decoy/internal/model"

// Merge concatenates per-dataset tables in argument order.
func Merge(tables ...[]model.Record) []model.Record {
	n := 0
	for _, t := range tables {
		n += len(t)
	}
	out := make([]model.Record, 0, n)
	for _, t := range tables {
		for _, r := range t {
			out = append(out, r.Clone())
		}
	}
	return out
}
