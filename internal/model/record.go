// Package model defines the protein identification record shared by every pipeline stage.
package model

// Column names consumed from and written to dataset tables.
const (
	ColProteinAccession = "protein_accessions"
	ColGlobalQValue     = "protein_global_qvalue"
	ColAdjustedQValue   = "protein_adjusted_qvalue"
	ColIsDecoy          = "is_decoy"
	ColCondition        = "condition"
	ColDatasetAccession = "dataset_accession"
)

// RequiredColumns lists the columns every dataset table must carry.
var RequiredColumns = []string{
	ColProteinAccession,
	ColGlobalQValue,
	ColIsDecoy,
	ColCondition,
	ColDatasetAccession,
}

// Placeholder values for synthesized decoys.
const (
	SyntheticAccessionPrefix = "fake_protein_"
	SyntheticCondition       = "fake_condition"
)

// Record is one protein identification entry.
type Record struct {
	ProteinAccession string  `json:"protein_accessions"`
	QValue           float64 `json:"q_value"`
	IsDecoy          bool    `json:"is_decoy"`
	Condition        string  `json:"condition"`
	DatasetAccession string  `json:"dataset_accession"`

	// GlobalQValue is the q-value as loaded. It is never rewritten, so it
	// survives the global adjustment for output and ordering checks.
	GlobalQValue float64 `json:"protein_global_qvalue"`

	Synthetic bool              `json:"synthetic,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Extra != nil {
		extra := make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

// CloneRecords deep-copies a record slice so stages never share backing arrays.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// Dataset is one input table after loading.
type Dataset struct {
	Name    string   `json:"name"`
	Source  string   `json:"source"`
	Columns []string `json:"columns"` // header order as read, used for pass-through output
	Records []Record `json:"-"`

	// Dropped counts rows excluded because their q-value was undefined.
	Dropped int `json:"dropped"`
}

// Counts returns the number of target and decoy records.
func Counts(records []Record) (targets, decoys int) {
	for _, r := range records {
		if r.IsDecoy {
			decoys++
		} else {
			targets++
		}
	}
	return targets, decoys
}

// ExtraColumns returns the columns of header that are not consumed by the
// pipeline, in order.
func ExtraColumns(header []string) []string {
	known := map[string]bool{ColAdjustedQValue: true}
	for _, c := range RequiredColumns {
		known[c] = true
	}
	var extra []string
	for _, c := range header {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	return extra
}
