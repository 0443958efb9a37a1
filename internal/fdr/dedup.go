package fdr

import (
	"sort"

	"github.com/bigbio/mad-decoy/internal/model"
)

// Deduplicate keeps the lowest q-value record per protein accession.
// Ties keep the record that appears first in the input. The result is
// ordered by accession.
func Deduplicate(records []model.Record) []model.Record {
	sorted := model.CloneRecords(records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ProteinAccession != b.ProteinAccession {
			return a.ProteinAccession < b.ProteinAccession
		}
		return a.QValue < b.QValue
	})

	out := make([]model.Record, 0, len(sorted))
	for i, r := range sorted {
		if i > 0 && r.ProteinAccession == sorted[i-1].ProteinAccession {
			continue
		}
		out = append(out, r)
	}
	return out
}
